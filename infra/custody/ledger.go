// Package custody is the asset-custody collaborator: exact-amount token
// balances keyed by (mint, holder). A holder is a wallet owner or a market
// vault. Transfers either move the full amount or fail with
// market.ErrInsufficientFunds.
package custody

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"
	"github.com/streamingfast/logging"
	"go.uber.org/zap"

	"matchbook/domain/market"
)

var zlog, tracer = logging.PackageLogger("custody", "matchbook/infra/custody")

// Balances is the storage the ledger reads and writes through. store.Txn
// implements it, so custody moves commit with the operation around them.
type Balances interface {
	Balance(mint, holder solana.PublicKey) (uint64, error)
	SetBalance(mint, holder solana.PublicKey, amount uint64) error
}

type Ledger struct {
	balances Balances
}

func New(balances Balances) *Ledger {
	return &Ledger{balances: balances}
}

func (l *Ledger) Balance(mint, holder solana.PublicKey) (uint64, error) {
	return l.balances.Balance(mint, holder)
}

// Transfer debits from and credits to by exactly amount.
func (l *Ledger) Transfer(mint, from, to solana.PublicKey, amount uint64) error {
	if amount == 0 || from.Equals(to) {
		return nil
	}

	src, err := l.balances.Balance(mint, from)
	if err != nil {
		return errors.Wrap(err, "read source balance")
	}
	if src < amount {
		return errors.Wrapf(market.ErrInsufficientFunds, "%s holds %d of mint %s, needs %d", from, src, mint, amount)
	}

	dst, err := l.balances.Balance(mint, to)
	if err != nil {
		return errors.Wrap(err, "read destination balance")
	}
	sum, carry := bits.Add64(dst, amount, 0)
	if carry != 0 {
		return errors.Wrapf(market.ErrInvalidState, "balance of %s overflows", to)
	}

	if err := l.balances.SetBalance(mint, from, src-amount); err != nil {
		return err
	}
	if err := l.balances.SetBalance(mint, to, sum); err != nil {
		return err
	}

	if tracer.Enabled() {
		zlog.Debug("custody transfer",
			zap.Stringer("mint", mint),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
			zap.Uint64("amount", amount),
		)
	}
	return nil
}

// Mint credits holder out of thin air. It is the bootstrap path for wallets.
func (l *Ledger) Mint(mint, holder solana.PublicKey, amount uint64) error {
	cur, err := l.balances.Balance(mint, holder)
	if err != nil {
		return err
	}
	sum, carry := bits.Add64(cur, amount, 0)
	if carry != 0 {
		return errors.Wrapf(market.ErrInvalidState, "balance of %s overflows", holder)
	}
	return l.balances.SetBalance(mint, holder, sum)
}
