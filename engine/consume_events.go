package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"matchbook/domain/instruction"
	"matchbook/domain/market"
)

// consumeEvents settles up to MaxDrainCount events from the tail of the
// queue. Every user account a drained Fill credits must be declared on the
// transaction; the engine never discovers accounts on its own.
func (p *Processor) consumeEvents(tx *instruction.Transaction, ix *instruction.ConsumeEvents) (*Result, error) {
	var state market.MarketState
	if err := p.load(tx.Market, &state); err != nil {
		return nil, errors.Wrap(err, "load market")
	}
	eventsAddr, err := market.EventsAddress(p.programID, tx.Market)
	if err != nil {
		return nil, err
	}
	var queue market.MarketEventsAccount
	if err := p.load(eventsAddr, &queue); err != nil {
		return nil, errors.Wrap(err, "load event queue")
	}

	declared := make(map[solana.PublicKey]bool, len(tx.Accounts))
	for _, acc := range tx.Accounts {
		declared[acc] = true
	}

	users := map[solana.PublicKey]*market.UserMarketAccount{}
	resolve := func(owner solana.PublicKey) (*market.UserMarketAccount, error) {
		addr, _, err := market.UserAccountAddress(p.programID, tx.Market, owner)
		if err != nil {
			return nil, err
		}
		if u, ok := users[addr]; ok {
			return u, nil
		}
		if !declared[addr] {
			return nil, errors.Wrapf(market.ErrRecordNotFound, "user account %s of %s not declared", addr, owner)
		}
		u := &market.UserMarketAccount{}
		if err := p.load(addr, u); err != nil {
			return nil, errors.Wrapf(err, "user account of %s", owner)
		}
		users[addr] = u
		return u, nil
	}

	n := queue.DrainCount(ix.DrainCount)
	pending := queue.Peek(n)
	for i := range pending {
		if err := settle(&pending[i], resolve); err != nil {
			return nil, errors.Wrapf(err, "event %d of %d", i+1, n)
		}
	}
	if err := queue.Advance(n); err != nil {
		return nil, err
	}

	for addr, u := range users {
		if err := p.save(addr, u); err != nil {
			return nil, err
		}
	}
	if err := p.save(eventsAddr, &queue); err != nil {
		return nil, err
	}

	if n > 0 {
		zlog.Debug("events consumed",
			zap.Stringer("market", tx.Market),
			zap.Int("drained", n),
			zap.Int("pending", queue.Len()),
		)
	}
	return &Result{Opcode: instruction.OpConsumeEvents, Market: tx.Market, Consumed: pending}, nil
}

// settle credits each party of a Fill with what it received. The maker side
// decides the direction: a resting bid bought coin, a resting ask sold it.
func settle(ev *market.Event, resolve func(solana.PublicKey) (*market.UserMarketAccount, error)) error {
	switch ev.Type {
	case market.EventOut:
		return nil
	case market.EventFill:
	default:
		return errors.Wrapf(market.ErrInvalidState, "event type %d", ev.Type)
	}

	maker, err := resolve(ev.Maker)
	if err != nil {
		return err
	}
	taker, err := resolve(ev.Taker)
	if err != nil {
		return err
	}

	if ev.Side == market.Bid {
		if err := maker.CreditCoin(ev.CoinQty); err != nil {
			return err
		}
		return taker.CreditPc(ev.PcQty)
	}
	if err := maker.CreditPc(ev.PcQty); err != nil {
		return err
	}
	return taker.CreditCoin(ev.CoinQty)
}

// PendingParties lists the user accounts a ConsumeEvents of drain events
// must declare, in first-seen order.
func PendingParties(programID, mkt solana.PublicKey, queue *market.MarketEventsAccount, drain uint8) ([]solana.PublicKey, error) {
	seen := map[solana.PublicKey]bool{}
	var out []solana.PublicKey
	for _, ev := range queue.Peek(queue.DrainCount(drain)) {
		if ev.Type != market.EventFill {
			continue
		}
		for _, owner := range []solana.PublicKey{ev.Maker, ev.Taker} {
			addr, _, err := market.UserAccountAddress(programID, mkt, owner)
			if err != nil {
				return nil, err
			}
			if !seen[addr] {
				seen[addr] = true
				out = append(out, addr)
			}
		}
	}
	return out, nil
}
