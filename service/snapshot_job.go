package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"matchbook/snapshot"
)

const keepSnapshots = 3

// Snapshot checkpoints the store, then drops the journal segments and the
// acknowledged outbox entries the checkpoint covers.
func (s *MarketService) Snapshot(dir string) (*snapshot.Manifest, error) {
	s.mu.Lock()
	seq, err := s.store.LastApplied()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	m, err := snapshot.Write(s.store.DB(), dir, seq)
	s.mu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "write snapshot")
	}

	if s.journal != nil {
		s.mu.Lock()
		segments, err := s.journal.TruncateBefore(seq)
		s.mu.Unlock()
		if err != nil {
			return m, errors.Wrap(err, "truncate journal")
		}
		if segments > 0 {
			zlog.Info("journal truncated", zap.Uint64("seq", seq), zap.Int("segments", segments))
		}
	}

	acked, err := s.outbox.DeleteAcked(seq)
	if err != nil {
		return m, errors.Wrap(err, "clean outbox")
	}
	if _, err := snapshot.Prune(dir, keepSnapshots); err != nil {
		return m, errors.Wrap(err, "prune snapshots")
	}

	zlog.Debug("snapshot cycle done", zap.Uint64("seq", seq), zap.Int("outbox_deleted", acked))
	return m, nil
}

// RunSnapshotJob snapshots every interval until ctx is done.
func (s *MarketService) RunSnapshotJob(ctx context.Context, dir string, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Snapshot(dir); err != nil {
				zlog.Warn("snapshot failed", zap.Error(err))
			}
		}
	}
}
