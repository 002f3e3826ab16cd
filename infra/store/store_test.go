package store

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/domain/market"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTxn_ReadYourWrites(t *testing.T) {
	s := newTestStore(t)
	addr := solana.PublicKey{0x42}

	txn := s.Begin()
	defer txn.Discard()

	_, err := txn.Get(addr)
	assert.ErrorIs(t, err, market.ErrRecordNotFound)

	require.NoError(t, txn.Put(addr, []byte{1, 2, 3}))
	got, err := txn.Get(addr)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	ok, err := txn.Exists(addr)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Record(addr)
	assert.ErrorIs(t, err, market.ErrRecordNotFound, "uncommitted writes stay invisible")
}

func TestTxn_CommitAndDiscard(t *testing.T) {
	s := newTestStore(t)
	kept, dropped := solana.PublicKey{0x01}, solana.PublicKey{0x02}

	txn := s.Begin()
	require.NoError(t, txn.Put(kept, []byte("kept")))
	require.NoError(t, txn.SetLastApplied(7))
	require.NoError(t, txn.Commit())
	txn.Discard()

	txn = s.Begin()
	require.NoError(t, txn.Put(dropped, []byte("dropped")))
	require.NoError(t, txn.SetLastApplied(8))
	txn.Discard()

	got, err := s.Record(kept)
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), got)

	_, err = s.Record(dropped)
	assert.ErrorIs(t, err, market.ErrRecordNotFound)

	seq, err := s.LastApplied()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), seq)
}

func TestKeys(t *testing.T) {
	addr := solana.PublicKey{0xFE}
	key := Keys.Record(addr)
	assert.Equal(t, byte(TableRecord), key[0])
	assert.Equal(t, addr, Keys.UnpackRecord(key))

	bal := Keys.Balance(solana.PublicKey{1}, solana.PublicKey{2})
	assert.Len(t, bal, 65)
	assert.Equal(t, byte(TableBalance), bal[0])
}

func TestStore_ScanRecordsSkipsBalances(t *testing.T) {
	s := newTestStore(t)

	txn := s.Begin()
	require.NoError(t, txn.Put(solana.PublicKey{2}, []byte("b")))
	require.NoError(t, txn.Put(solana.PublicKey{1}, []byte("a")))
	require.NoError(t, txn.SetBalance(solana.PublicKey{9}, solana.PublicKey{9}, 10))
	require.NoError(t, txn.SetLastApplied(3))
	require.NoError(t, txn.Commit())

	var addrs []solana.PublicKey
	var values []string
	require.NoError(t, s.ScanRecords(func(addr solana.PublicKey, data []byte) error {
		addrs = append(addrs, addr)
		values = append(values, string(data))
		return nil
	}))
	assert.Equal(t, []solana.PublicKey{{1}, {2}}, addrs)
	assert.Equal(t, []string{"a", "b"}, values)
}
