// Package broadcaster publishes outboxed settlement events to an external
// feed. Delivery is at least once: an entry is marked SENT before it is
// published and ACKED only after the publisher confirmed it.
package broadcaster

import (
	"context"
	"sort"
	"time"

	"github.com/streamingfast/logging"
	"go.uber.org/zap"

	exitwal "matchbook/infra/wal/exit"
)

var zlog, tracer = logging.PackageLogger("broadcaster", "matchbook/jobs/broadcaster")

// Publisher delivers one message to the feed. key groups messages that
// must stay ordered, the market address.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

type Config struct {
	Interval time.Duration
	// MaxRetries stops retrying FAILED entries after that many attempts.
	// Zero retries forever.
	MaxRetries uint32
}

type Broadcaster struct {
	outbox    *exitwal.ExitWAL
	publisher Publisher
	cfg       Config
}

func New(outbox *exitwal.ExitWAL, publisher Publisher, cfg Config) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	return &Broadcaster{
		outbox:    outbox,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Run flushes the outbox every interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	zlog.Info("broadcaster started", zap.Duration("interval", b.cfg.Interval))

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zlog.Info("broadcaster stopped")
			return
		case <-ticker.C:
			if _, err := b.Flush(ctx); err != nil {
				zlog.Warn("outbox flush failed", zap.Error(err))
			}
		}
	}
}

type pending struct {
	key       exitwal.Key
	rec       exitwal.ExitRecord
	partition string
}

func (b *Broadcaster) exhausted(rec exitwal.ExitRecord) bool {
	return rec.State == exitwal.StateFailed && b.cfg.MaxRetries > 0 && rec.Retries >= b.cfg.MaxRetries
}

// Flush makes one delivery attempt for every undelivered entry, oldest
// first, and returns how many were acknowledged. Entries left SENT by a
// crash are delivered again. Once an entry of a market fails, or has used
// up its retries, the later entries of that market wait behind it.
func (b *Broadcaster) Flush(ctx context.Context) (int, error) {
	var todo []pending
	collect := func(key exitwal.Key, rec exitwal.ExitRecord) error {
		p := pending{key: key, rec: rec}
		if ev, err := exitwal.UnmarshalEvent(rec.Payload); err == nil {
			p.partition = ev.Market
		}
		todo = append(todo, p)
		return nil
	}
	for _, state := range []exitwal.ExitState{exitwal.StateSent, exitwal.StateNew, exitwal.StateFailed} {
		if err := b.outbox.ScanByState(state, collect); err != nil {
			return 0, err
		}
	}
	sort.Slice(todo, func(i, j int) bool {
		a, b := todo[i].key, todo[j].key
		return a.Seq < b.Seq || (a.Seq == b.Seq && a.Index < b.Index)
	})

	held := map[string]bool{}
	acked := 0
	for _, p := range todo {
		if ctx.Err() != nil {
			return acked, ctx.Err()
		}
		if held[p.partition] {
			continue
		}
		if b.exhausted(p.rec) {
			zlog.Error("entry out of retries, holding its market",
				zap.Stringer("entry", p.key),
				zap.String("market", p.partition),
				zap.Uint32("retries", p.rec.Retries),
			)
			held[p.partition] = true
			continue
		}

		ok, err := b.deliver(ctx, p)
		if err != nil {
			return acked, err
		}
		if !ok {
			held[p.partition] = true
			continue
		}
		acked++
	}
	return acked, nil
}

func (b *Broadcaster) deliver(ctx context.Context, p pending) (bool, error) {
	if err := b.outbox.UpdateState(p.key, exitwal.StateSent, p.rec.Retries); err != nil {
		return false, err
	}

	if err := b.publisher.Publish(ctx, []byte(p.partition), p.rec.Payload); err != nil {
		zlog.Warn("publish failed, will retry",
			zap.Stringer("entry", p.key),
			zap.Uint32("retries", p.rec.Retries+1),
			zap.Error(err),
		)
		return false, b.outbox.UpdateState(p.key, exitwal.StateFailed, p.rec.Retries+1)
	}

	if tracer.Enabled() {
		zlog.Debug("event published", zap.Stringer("entry", p.key))
	}
	return true, b.outbox.UpdateState(p.key, exitwal.StateAcked, p.rec.Retries)
}

func (b *Broadcaster) Close() error {
	return b.publisher.Close()
}
