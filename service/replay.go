package service

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"matchbook/domain/instruction"
	entrywal "matchbook/infra/wal/entry"
)

// ReplayFromWAL re-applies every journaled operation newer than the store's
// last applied sequence, except those a later abort record cancels, then
// resumes the sequencer after the newest one.
// It must complete before the service takes traffic.
func ReplayFromWAL(dir string, svc *MarketService) (applied int, err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	lastApplied, err := svc.store.LastApplied()
	if err != nil {
		return 0, err
	}

	aborted := map[uint64]bool{}
	_, err = entrywal.Replay(dir, func(rec *entrywal.Record) error {
		if rec.Type != entrywal.RecordAbort {
			return nil
		}
		seq, err := rec.AbortedSeq()
		if err != nil {
			return err
		}
		aborted[seq] = true
		return nil
	})
	if err != nil {
		return 0, err
	}

	lastSeq, err := entrywal.Replay(dir, func(rec *entrywal.Record) error {
		if rec.Seq <= lastApplied || aborted[rec.Seq] {
			return nil
		}

		switch rec.Type {
		case entrywal.RecordAbort:
			return nil
		case entrywal.RecordTransaction:
			tx, err := instruction.UnmarshalTransaction(rec.Data)
			if err != nil {
				return errors.Wrapf(err, "decode seq %d", rec.Seq)
			}
			if _, err := svc.applyTransaction(tx, rec.Seq); err != nil {
				return errors.Wrapf(err, "re-apply seq %d", rec.Seq)
			}
		case entrywal.RecordFund:
			f, err := unmarshalFund(rec.Data)
			if err != nil {
				return errors.Wrapf(err, "decode seq %d", rec.Seq)
			}
			if _, err := svc.applyFund(f, rec.Seq); err != nil {
				return errors.Wrapf(err, "re-apply seq %d", rec.Seq)
			}
		default:
			return errors.Wrapf(entrywal.ErrCorruptFrame, "seq %d has record type %d", rec.Seq, rec.Type)
		}
		applied++
		return nil
	})
	if err != nil {
		return applied, err
	}

	svc.seqGen.Resume(max(lastSeq, lastApplied))

	zlog.Info("journal replay completed",
		zap.Int("applied", applied),
		zap.Int("aborted", len(aborted)),
		zap.Uint64("last_applied", lastApplied),
		zap.Uint64("last_seq", lastSeq),
	)
	return applied, nil
}
