package custody

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/domain/market"
	"matchbook/infra/store"
)

var (
	pcMint = solana.PublicKey{0x10}
	wallet = solana.PublicKey{0x01}
	vault  = solana.PublicKey{0x02}
)

func TestLedger_Transfer(t *testing.T) {
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	txn := s.Begin()
	defer txn.Discard()

	l := New(txn)
	require.NoError(t, l.Mint(pcMint, wallet, 1000))
	require.NoError(t, l.Transfer(pcMint, wallet, vault, 520))

	got, err := l.Balance(pcMint, wallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(480), got)

	got, err = l.Balance(pcMint, vault)
	require.NoError(t, err)
	assert.Equal(t, uint64(520), got)

	err = l.Transfer(pcMint, wallet, vault, 481)
	assert.ErrorIs(t, err, market.ErrInsufficientFunds)

	got, err = l.Balance(pcMint, wallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(480), got)
}

func TestLedger_DiscardedTransferLeavesNoTrace(t *testing.T) {
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	txn := s.Begin()
	require.NoError(t, New(txn).Mint(pcMint, wallet, 50))
	require.NoError(t, txn.Commit())
	txn.Discard()

	txn = s.Begin()
	require.NoError(t, New(txn).Transfer(pcMint, wallet, vault, 50))
	txn.Discard()

	got, err := s.Balance(pcMint, wallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), got)

	got, err = s.Balance(pcMint, vault)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestLedger_ZeroTransferIsNoop(t *testing.T) {
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	txn := s.Begin()
	defer txn.Discard()
	assert.NoError(t, New(txn).Transfer(pcMint, wallet, vault, 0))
}
