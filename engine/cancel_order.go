package engine

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"matchbook/domain/instruction"
	"matchbook/domain/market"
)

// cancelOrder pulls a resting order of the signer out of its book, releases
// what is still committed to it and records an Out event.
func (p *Processor) cancelOrder(tx *instruction.Transaction, ix *instruction.CancelOrder) (*Result, error) {
	if !ix.Side.Valid() {
		return nil, errors.Wrapf(market.ErrInvalidState, "side %d", ix.Side)
	}

	m, err := p.loadMarket(tx.Market)
	if err != nil {
		return nil, err
	}
	owner := tx.Signer

	book := m.book(ix.Side)
	slot, ok := book.Find(ix.OrderID, owner)
	if !ok {
		return nil, errors.Wrapf(market.ErrInvalidState, "order %d not resting in %s book for %s", ix.OrderID, ix.Side, owner)
	}
	order, err := book.Remove(slot)
	if err != nil {
		return nil, err
	}

	user, err := p.loadOrCreateUser(m.addr, owner)
	if err != nil {
		return nil, err
	}
	if err := user.openOrders.Remove(order.EncodedID()); err != nil {
		return nil, err
	}

	remaining := order.Remaining()
	pc, err := market.QuoteAmount(remaining, order.Price)
	if err != nil {
		return nil, err
	}

	unlock := remaining
	if order.Side == market.Bid {
		unlock = pc
	}
	released, err := user.account.Unlock(order.Side, unlock)
	if err != nil {
		return nil, err
	}

	ev := market.Event{
		Type:         market.EventOut,
		Side:         order.Side,
		Maker:        owner,
		Taker:        owner,
		CoinQty:      remaining,
		PcQty:        pc,
		MakerOrderID: order.OrderID,
	}
	if err := m.events.Push(ev); err != nil {
		return nil, err
	}

	if err := p.saveMarket(m); err != nil {
		return nil, err
	}
	if err := p.saveUser(user); err != nil {
		return nil, err
	}

	zlog.Debug("order cancelled",
		zap.Stringer("market", m.addr),
		zap.Stringer("owner", owner),
		zap.Uint64("order_id", order.OrderID),
		zap.Uint64("remaining", remaining),
		zap.Uint64("released", released),
	)
	return &Result{
		Opcode:  instruction.OpCancelOrder,
		Market:  m.addr,
		OrderID: order.OrderID,
		Events:  []market.Event{ev},
	}, nil
}
