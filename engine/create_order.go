package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"matchbook/domain/instruction"
	"matchbook/domain/market"
)

// userRecords are the per-owner records of one market.
type userRecords struct {
	account        market.UserMarketAccount
	accountAddr    solana.PublicKey
	openOrders     market.OpenOrderAccount
	openOrdersAddr solana.PublicKey
}

func (p *Processor) createOrder(tx *instruction.Transaction, ix *instruction.CreateOrder) (*Result, error) {
	if !ix.Side.Valid() {
		return nil, errors.Wrapf(market.ErrInvalidState, "side %d", ix.Side)
	}
	if ix.LimitPrice == 0 || ix.CoinQty == 0 {
		return nil, errors.Wrapf(market.ErrInvalidState, "order of %d @ %d", ix.CoinQty, ix.LimitPrice)
	}

	m, err := p.loadMarket(tx.Market)
	if err != nil {
		return nil, err
	}
	owner := tx.Signer

	user, err := p.loadOrCreateUser(m.addr, owner)
	if err != nil {
		return nil, err
	}

	orderID := m.state.AssignOrderID()
	res := &Result{Opcode: instruction.OpCreateOrder, Market: m.addr, OrderID: orderID}

	// ---- match against the opposite book ----

	var closed []market.Order
	remaining, err := m.book(ix.Side.Opposite()).Match(ix.LimitPrice, ix.CoinQty, func(maker *market.Order, trade uint64) error {
		pc, err := market.QuoteAmount(trade, maker.Price)
		if err != nil {
			return err
		}
		ev := market.Event{
			Type:         market.EventFill,
			Side:         maker.Side,
			Maker:        maker.Owner,
			Taker:        owner,
			CoinQty:      trade,
			PcQty:        pc,
			MakerOrderID: maker.OrderID,
		}
		if err := m.events.Push(ev); err != nil {
			return err
		}
		res.Events = append(res.Events, ev)
		res.Fills++

		if maker.IsFilled() {
			closed = append(closed, *maker)
		}
		if tracer.Enabled() {
			zlog.Debug("fill",
				zap.Uint64("maker_order_id", maker.OrderID),
				zap.Uint64("taker_order_id", orderID),
				zap.Uint64("price", maker.Price),
				zap.Uint64("coin_qty", trade),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// ---- rest the remainder ----

	if remaining > 0 {
		own := m.book(ix.Side)
		order := market.Order{
			OrderID:  orderID,
			Owner:    owner,
			Market:   m.addr,
			Price:    ix.LimitPrice,
			Quantity: remaining,
			Side:     ix.Side,
		}
		if _, err := own.Insert(order); err != nil {
			return nil, err
		}
		own.NextOrderID++

		if err := user.openOrders.Add(order.EncodedID()); err != nil {
			return nil, err
		}
		res.Rested = true
	}

	for _, maker := range closed {
		if err := p.closeOrder(m.addr, maker, owner, user); err != nil {
			return nil, err
		}
	}

	// ---- lock the offered asset at the limit amount ----

	lock := ix.CoinQty
	if ix.Side == market.Bid {
		lock = ix.PcQty
		// pc_qty is taken as given. A bid locking less than its notional is
		// paid out of the shared pc vault when it fills.
		if notional, err := market.QuoteAmount(ix.CoinQty, ix.LimitPrice); err != nil || notional > ix.PcQty {
			zlog.Warn("bid locks less than its notional",
				zap.Stringer("market", m.addr),
				zap.Stringer("owner", owner),
				zap.Uint64("order_id", orderID),
				zap.Uint64("pc_qty", ix.PcQty),
				zap.Uint64("notional", notional),
			)
		}
	}
	deposit, err := user.account.Lock(ix.Side, lock)
	if err != nil {
		return nil, err
	}
	mint, vaultAddr := vault(&m.state, ix.Side)
	if err := p.custody.Transfer(mint, owner, vaultAddr, deposit); err != nil {
		return nil, errors.Wrapf(err, "deposit for order %d", orderID)
	}

	if err := p.saveMarket(m); err != nil {
		return nil, err
	}
	if err := p.saveUser(user); err != nil {
		return nil, err
	}

	zlog.Debug("order created",
		zap.Stringer("market", m.addr),
		zap.Stringer("owner", owner),
		zap.Stringer("side", ix.Side),
		zap.Uint64("order_id", orderID),
		zap.Uint64("limit_price", ix.LimitPrice),
		zap.Uint64("coin_qty", ix.CoinQty),
		zap.Uint64("resting", remaining),
		zap.Int("fills", res.Fills),
	)
	return res, nil
}

// closeOrder drops a fully filled maker order from its owner's open-order
// index. The taker's records are already in memory and are updated in place.
func (p *Processor) closeOrder(mkt solana.PublicKey, maker market.Order, taker solana.PublicKey, takerRecords *userRecords) error {
	if maker.Owner.Equals(taker) {
		return takerRecords.openOrders.Remove(maker.EncodedID())
	}

	addr, _, err := market.OpenOrderAddress(p.programID, mkt, maker.Owner)
	if err != nil {
		return err
	}
	var open market.OpenOrderAccount
	if err := p.load(addr, &open); err != nil {
		return errors.Wrapf(err, "open orders of maker %s", maker.Owner)
	}
	if err := open.Remove(maker.EncodedID()); err != nil {
		return err
	}
	return p.save(addr, &open)
}

// loadOrCreateUser returns the owner's records, creating them on first use.
func (p *Processor) loadOrCreateUser(mkt, owner solana.PublicKey) (*userRecords, error) {
	accountAddr, accountBump, err := market.UserAccountAddress(p.programID, mkt, owner)
	if err != nil {
		return nil, err
	}
	openAddr, openBump, err := market.OpenOrderAddress(p.programID, mkt, owner)
	if err != nil {
		return nil, err
	}
	u := &userRecords{accountAddr: accountAddr, openOrdersAddr: openAddr}

	err = p.load(openAddr, &u.openOrders)
	switch {
	case errors.Is(err, market.ErrRecordNotFound):
		u.openOrders = market.OpenOrderAccount{Owner: owner, Market: mkt, Bump: openBump}
	case err != nil:
		return nil, err
	}

	err = p.load(accountAddr, &u.account)
	switch {
	case errors.Is(err, market.ErrRecordNotFound):
		u.account = market.UserMarketAccount{Owner: owner, Market: mkt, OpenOrder: openAddr, Bump: accountBump}
		zlog.Info("user market account created", zap.Stringer("market", mkt), zap.Stringer("owner", owner))
	case err != nil:
		return nil, err
	}

	if !u.account.Owner.Equals(owner) || !u.openOrders.Owner.Equals(owner) {
		return nil, errors.Wrapf(market.ErrInvalidState, "records of %s are owned by someone else", owner)
	}
	return u, nil
}

func (p *Processor) saveUser(u *userRecords) error {
	if err := p.save(u.openOrdersAddr, &u.openOrders); err != nil {
		return err
	}
	return p.save(u.accountAddr, &u.account)
}
