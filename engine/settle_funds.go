package engine

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"matchbook/domain/instruction"
	"matchbook/domain/market"
)

// settleFunds withdraws the signer's free balances from the vaults back to
// the signer's custody wallets.
func (p *Processor) settleFunds(tx *instruction.Transaction) (*Result, error) {
	var state market.MarketState
	if err := p.load(tx.Market, &state); err != nil {
		return nil, errors.Wrap(err, "load market")
	}

	owner := tx.Signer
	addr, _, err := market.UserAccountAddress(p.programID, tx.Market, owner)
	if err != nil {
		return nil, err
	}
	var user market.UserMarketAccount
	if err := p.load(addr, &user); err != nil {
		return nil, errors.Wrapf(err, "user account of %s", owner)
	}

	coin, pc := user.Withdraw()
	if err := p.custody.Transfer(state.CoinMint, state.CoinVault, owner, coin); err != nil {
		return nil, errors.Wrap(err, "withdraw coin")
	}
	if err := p.custody.Transfer(state.PcMint, state.PcVault, owner, pc); err != nil {
		return nil, errors.Wrap(err, "withdraw pc")
	}
	if err := p.save(addr, &user); err != nil {
		return nil, err
	}

	zlog.Debug("funds settled",
		zap.Stringer("market", tx.Market),
		zap.Stringer("owner", owner),
		zap.Uint64("coin", coin),
		zap.Uint64("pc", pc),
	)
	return &Result{
		Opcode:      instruction.OpSettleFunds,
		Market:      tx.Market,
		SettledCoin: coin,
		SettledPc:   pc,
	}, nil
}
