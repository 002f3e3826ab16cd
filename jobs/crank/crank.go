// Package crank keeps event queues drained. Each tick it finds the queues
// holding events, works out which user accounts the next batch settles
// and submits a ConsumeEvents for them signed by the program identity.
package crank

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/streamingfast/logging"
	"go.uber.org/zap"

	"matchbook/domain/instruction"
	"matchbook/domain/market"
	"matchbook/engine"
	"matchbook/service"
)

var zlog, _ = logging.PackageLogger("crank", "matchbook/jobs/crank")

type Service interface {
	ProgramID() solana.PublicKey
	PendingQueues() ([]*market.MarketEventsAccount, error)
	Execute(ctx context.Context, tx *instruction.Transaction) (*service.Receipt, error)
}

type Crank struct {
	svc      Service
	interval time.Duration
	drain    uint8
}

func New(svc Service, interval time.Duration, drain uint8) *Crank {
	if drain == 0 {
		drain = market.MaxDrainCount
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Crank{svc: svc, interval: interval, drain: drain}
}

func (c *Crank) Run(ctx context.Context) {
	zlog.Info("crank started", zap.Duration("interval", c.interval), zap.Uint8("drain", c.drain))

	t := time.NewTicker(c.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := c.Turn(ctx); err != nil {
				zlog.Warn("crank turn failed", zap.Error(err))
			}
		}
	}
}

// Turn submits one ConsumeEvents per market with pending events and
// returns how many events were drained in total. A market whose consume
// fails is skipped until the next turn.
func (c *Crank) Turn(ctx context.Context) (int, error) {
	queues, err := c.svc.PendingQueues()
	if err != nil {
		return 0, err
	}

	programID := c.svc.ProgramID()
	drained := 0
	for _, q := range queues {
		parties, err := engine.PendingParties(programID, q.Market, q, c.drain)
		if err != nil {
			return drained, err
		}

		tx, err := instruction.NewTransaction(programID, q.Market, &instruction.ConsumeEvents{DrainCount: c.drain}, parties...)
		if err != nil {
			return drained, err
		}
		r, err := c.svc.Execute(ctx, tx)
		if err != nil {
			zlog.Warn("consume events failed", zap.Stringer("market", q.Market), zap.Error(err))
			continue
		}
		drained += r.Drained
		zlog.Debug("events cranked", zap.Stringer("market", q.Market), zap.Int("drained", r.Drained), zap.Uint64("seq", r.Seq))
	}
	return drained, nil
}
