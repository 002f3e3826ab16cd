package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"matchbook/domain/instruction"
	"matchbook/domain/market"
)

func (p *Processor) initializeMarket(signer solana.PublicKey, ix *instruction.InitializeMarket) (*Result, error) {
	if ix.CoinMint.Equals(ix.PcMint) {
		return nil, errors.Wrapf(market.ErrInvalidState, "coin and pc mint are both %s", ix.CoinMint)
	}

	addrs, err := market.DeriveMarket(p.programID, ix.CoinMint, ix.PcMint)
	if err != nil {
		return nil, err
	}

	found, err := p.exists(addrs.Market)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, errors.Wrapf(market.ErrInvalidState, "market %s already initialized", addrs.Market)
	}

	capacity := int(ix.BookCapacity)
	if capacity == 0 {
		capacity = p.bookCapacity
	}

	state := &market.MarketState{
		CoinVault:   addrs.CoinVault,
		PcVault:     addrs.PcVault,
		CoinMint:    ix.CoinMint,
		PcMint:      ix.PcMint,
		Bids:        addrs.Bids,
		Asks:        addrs.Asks,
		NextOrderID: 1,
		Bump:        addrs.Bump,
	}

	if err := p.save(addrs.Market, state); err != nil {
		return nil, err
	}
	if err := p.save(addrs.Bids, market.NewOrderBook(market.Bid, addrs.Market, capacity)); err != nil {
		return nil, err
	}
	if err := p.save(addrs.Asks, market.NewOrderBook(market.Ask, addrs.Market, capacity)); err != nil {
		return nil, err
	}
	if err := p.save(addrs.Events, market.NewMarketEventsAccount(addrs.Market)); err != nil {
		return nil, err
	}

	zlog.Info("market initialized",
		zap.Stringer("market", addrs.Market),
		zap.Stringer("coin_mint", ix.CoinMint),
		zap.Stringer("pc_mint", ix.PcMint),
		zap.Int("book_capacity", capacity),
		zap.Stringer("signer", signer),
	)

	return &Result{Opcode: instruction.OpInitializeMarket, Market: addrs.Market}, nil
}
