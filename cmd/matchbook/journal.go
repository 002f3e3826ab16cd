package main

import (
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"matchbook/domain/instruction"
	entrywal "matchbook/infra/wal/entry"
)

var journalCmd = &cobra.Command{Use: "journal", Short: "Operation journal tools"}

var journalDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every journaled operation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dir := viper.GetString("journal-dir")
		last, err := entrywal.Replay(dir, func(rec *entrywal.Record) error {
			ts := time.Unix(0, rec.Time).UTC().Format(time.RFC3339Nano)
			if rec.Type == entrywal.RecordAbort {
				aborted, err := rec.AbortedSeq()
				if err != nil {
					return err
				}
				fmt.Printf("%8d %s %-11s cancels seq %d\n", rec.Seq, ts, rec.Type, aborted)
				return nil
			}
			if rec.Type != entrywal.RecordTransaction {
				fmt.Printf("%8d %s %-11s %s\n", rec.Seq, ts, rec.Type, base58.Encode(rec.Data))
				return nil
			}

			tx, err := instruction.UnmarshalTransaction(rec.Data)
			if err != nil {
				return err
			}
			op := "invalid"
			if ix, err := tx.Instruction(); err == nil {
				op = ix.Opcode().String()
			}
			fmt.Printf("%8d %s %-11s %-16s signer=%s market=%s accounts=%d data=%s\n",
				rec.Seq, ts, rec.Type, op, tx.Signer, tx.Market, len(tx.Accounts), base58.Encode(tx.Data))
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("last seq %d\n", last)
		return nil
	},
}

func init() {
	journalDumpCmd.Flags().String("journal-dir", "./matchbook-data/journal", "Operation journal directory")
	journalCmd.AddCommand(journalDumpCmd)
	RootCmd.AddCommand(journalCmd)
}
