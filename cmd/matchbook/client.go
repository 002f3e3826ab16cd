package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"matchbook/api/grpcserver"
	"matchbook/domain/instruction"
	"matchbook/domain/market"
	"matchbook/engine"
	"matchbook/service"
)

// withClient runs fn against the server at --server-addr.
func withClient(fn func(c *grpcserver.Client) error) error {
	addr := viper.GetString("server-addr")
	client, conn, err := grpcserver.Dial(addr)
	if err != nil {
		return errors.Wrapf(err, "dial %s", addr)
	}
	defer conn.Close()
	return fn(client)
}

func keyFlag(cmd *cobra.Command, name string) (solana.PublicKey, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if raw == "" {
		return solana.PublicKey{}, errors.Newf("--%s is required", name)
	}
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, errors.Wrapf(err, "--%s", name)
	}
	return key, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReceipt(r *service.Receipt) error {
	return printJSON(map[string]any{
		"seq":          r.Seq,
		"opcode":       r.Opcode.String(),
		"market":       r.Market,
		"order_id":     r.OrderID,
		"rested":       r.Rested,
		"fills":        r.Fills,
		"events":       r.Events,
		"drained":      r.Drained,
		"settled_coin": r.SettledCoin,
		"settled_pc":   r.SettledPc,
	})
}

// submit sends ix signed by --signer against --market.
func submit(cmd *cobra.Command, ix instruction.Instruction, accounts ...solana.PublicKey) error {
	signer, err := keyFlag(cmd, "signer")
	if err != nil {
		return err
	}
	mkt, err := keyFlag(cmd, "market")
	if err != nil {
		return err
	}
	return submitTo(cmd, signer, mkt, ix, accounts...)
}

func submitTo(cmd *cobra.Command, signer, mkt solana.PublicKey, ix instruction.Instruction, accounts ...solana.PublicKey) error {
	tx, err := instruction.NewTransaction(signer, mkt, ix, accounts...)
	if err != nil {
		return err
	}
	if tracer.Enabled() {
		zlog.Debug("submitting transaction", zap.Stringer("opcode", ix.Opcode()), ZapBase58("data", tx.Data))
	}
	return withClient(func(c *grpcserver.Client) error {
		r, err := c.Execute(cmd.Context(), tx)
		if err != nil {
			return err
		}
		return printReceipt(r)
	})
}

func marketFlags(cmd *cobra.Command) {
	cmd.Flags().String("market", "", "Base58 market address")
	cmd.Flags().String("signer", "", "Base58 signer identity")
}

// ---- market ----

var marketCmd = &cobra.Command{Use: "market", Short: "Market administration"}

var marketInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the market of a coin/pc mint pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		programID, err := programIDFromConfig()
		if err != nil {
			return err
		}
		coin, err := keyFlag(cmd, "coin-mint")
		if err != nil {
			return err
		}
		pc, err := keyFlag(cmd, "pc-mint")
		if err != nil {
			return err
		}
		signer, err := keyFlag(cmd, "signer")
		if err != nil {
			return err
		}
		capacity, _ := cmd.Flags().GetUint16("book-capacity")

		addrs, err := market.DeriveMarket(programID, coin, pc)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "market %s\n", addrs.Market)
		return submitTo(cmd, signer, addrs.Market, &instruction.InitializeMarket{CoinMint: coin, PcMint: pc, BookCapacity: capacity})
	},
}

// ---- orders ----

var orderCmd = &cobra.Command{Use: "order", Short: "Place and cancel orders"}

var orderCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Place a limit order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rawSide, _ := cmd.Flags().GetString("side")
		side, err := market.ParseSide(rawSide)
		if err != nil {
			return err
		}
		price, _ := cmd.Flags().GetUint64("price")
		qty, _ := cmd.Flags().GetUint64("qty")
		pc, _ := cmd.Flags().GetUint64("pc-qty")
		if side == market.Bid && pc == 0 {
			if pc, err = market.QuoteAmount(qty, price); err != nil {
				return err
			}
		}
		return submit(cmd, &instruction.CreateOrder{Side: side, LimitPrice: price, CoinQty: qty, PcQty: pc})
	},
}

var orderCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a resting order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rawSide, _ := cmd.Flags().GetString("side")
		side, err := market.ParseSide(rawSide)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetUint64("order-id")
		return submit(cmd, &instruction.CancelOrder{OrderID: id, Side: side})
	},
}

// ---- settlement ----

var eventsCmd = &cobra.Command{Use: "events", Short: "Event queue operations"}

var eventsConsumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Settle the next events of a market's queue",
	Long:  "Reads the queue, declares the user accounts its next events credit and submits ConsumeEvents.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		programID, err := programIDFromConfig()
		if err != nil {
			return err
		}
		mkt, err := keyFlag(cmd, "market")
		if err != nil {
			return err
		}
		drain, _ := cmd.Flags().GetUint8("drain")

		var parties []solana.PublicKey
		err = withClient(func(c *grpcserver.Client) error {
			queue, err := fetchQueue(cmd, c, programID, mkt)
			if err != nil {
				return err
			}
			parties, err = engine.PendingParties(programID, mkt, queue, drain)
			return err
		})
		if err != nil {
			return err
		}
		return submit(cmd, &instruction.ConsumeEvents{DrainCount: drain}, parties...)
	},
}

var fundsCmd = &cobra.Command{Use: "funds", Short: "Move settled funds"}

var fundsSettleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Withdraw the signer's free balances to their wallets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return submit(cmd, &instruction.SettleFunds{})
	},
}

var walletCmd = &cobra.Command{Use: "wallet", Short: "Custody wallets"}

var walletFundCmd = &cobra.Command{
	Use:   "fund",
	Short: "Credit a custody wallet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mint, err := keyFlag(cmd, "mint")
		if err != nil {
			return err
		}
		owner, err := keyFlag(cmd, "owner")
		if err != nil {
			return err
		}
		amount, _ := cmd.Flags().GetUint64("amount")
		return withClient(func(c *grpcserver.Client) error {
			seq, err := c.Fund(cmd.Context(), mint, owner, amount)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"seq": seq, "mint": mint, "owner": owner, "amount": amount})
		})
	},
}

func init() {
	marketInitCmd.Flags().String("coin-mint", "", "Base58 coin mint")
	marketInitCmd.Flags().String("pc-mint", "", "Base58 price currency mint")
	marketInitCmd.Flags().String("signer", "", "Base58 signer identity")
	marketInitCmd.Flags().Uint16("book-capacity", 0, "Orders per book side, 0 uses the server default")
	marketCmd.AddCommand(marketInitCmd)

	marketFlags(orderCreateCmd)
	orderCreateCmd.Flags().String("side", "bid", "bid or ask")
	orderCreateCmd.Flags().Uint64("price", 0, "Limit price in pc per coin")
	orderCreateCmd.Flags().Uint64("qty", 0, "Quantity in coin")
	orderCreateCmd.Flags().Uint64("pc-qty", 0, "Pc to lock for a bid, defaults to price*qty")
	marketFlags(orderCancelCmd)
	orderCancelCmd.Flags().String("side", "bid", "Book side of the order")
	orderCancelCmd.Flags().Uint64("order-id", 0, "Order id")
	orderCmd.AddCommand(orderCreateCmd, orderCancelCmd)

	marketFlags(eventsConsumeCmd)
	eventsConsumeCmd.Flags().Uint8("drain", market.MaxDrainCount, "Events to drain")
	eventsCmd.AddCommand(eventsConsumeCmd)

	marketFlags(fundsSettleCmd)
	fundsCmd.AddCommand(fundsSettleCmd)

	walletFundCmd.Flags().String("mint", "", "Base58 mint")
	walletFundCmd.Flags().String("owner", "", "Base58 wallet owner")
	walletFundCmd.Flags().Uint64("amount", 0, "Amount to credit")
	walletCmd.AddCommand(walletFundCmd)

	RootCmd.AddCommand(marketCmd, orderCmd, eventsCmd, fundsCmd, walletCmd)
}
