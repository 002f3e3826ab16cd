package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserMarketAccount_LockUsesFreeFirst(t *testing.T) {
	u := &UserMarketAccount{Owner: alice, Market: testMarket, FreePc: 300}

	deposit, err := u.Lock(Bid, 520)
	require.NoError(t, err)
	assert.Equal(t, uint64(220), deposit)
	assert.Zero(t, u.FreePc)
	assert.Equal(t, uint64(520), u.LockedPc)

	u.FreeCoin = 10
	deposit, err = u.Lock(Ask, 4)
	require.NoError(t, err)
	assert.Zero(t, deposit)
	assert.Equal(t, uint64(6), u.FreeCoin)
	assert.Equal(t, uint64(4), u.LockedCoin)
}

func TestUserMarketAccount_UnlockClamps(t *testing.T) {
	u := &UserMarketAccount{LockedPc: 100, LockedCoin: 3}

	released, err := u.Unlock(Bid, 250)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), released)
	assert.Equal(t, uint64(100), u.FreePc)
	assert.Zero(t, u.LockedPc)

	released, err = u.Unlock(Ask, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), released)
	assert.Equal(t, uint64(1), u.LockedCoin)
	assert.Equal(t, uint64(2), u.FreeCoin)
}

func TestUserMarketAccount_Withdraw(t *testing.T) {
	u := &UserMarketAccount{FreeCoin: 5, FreePc: 600, LockedPc: 520}
	coin, pc := u.Withdraw()
	assert.Equal(t, uint64(5), coin)
	assert.Equal(t, uint64(600), pc)
	assert.Zero(t, u.FreeCoin)
	assert.Zero(t, u.FreePc)
	assert.Equal(t, uint64(520), u.LockedPc)
}

func TestUserMarketAccount_CreditOverflow(t *testing.T) {
	u := &UserMarketAccount{FreeCoin: ^uint64(0)}
	assert.ErrorIs(t, u.CreditCoin(1), ErrInvalidState)
}

func TestOpenOrderAccount_AddRemove(t *testing.T) {
	a := &OpenOrderAccount{Owner: alice, Market: testMarket}
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, a.Add(EncodeOrderID(Ask, i)))
	}

	require.NoError(t, a.Remove(EncodeOrderID(Ask, 2)))
	assert.Equal(t, []uint64{EncodeOrderID(Ask, 1), EncodeOrderID(Ask, 3)}, a.Live())
	assert.Equal(t, uint8(2), a.NextArrayIndex)

	assert.ErrorIs(t, a.Remove(EncodeOrderID(Bid, 1)), ErrInvalidState)
}

func TestOpenOrderAccount_Full(t *testing.T) {
	a := &OpenOrderAccount{}
	for i := 0; i < MaxOpenOrders; i++ {
		require.NoError(t, a.Add(uint64(i)))
	}
	assert.ErrorIs(t, a.Add(99), ErrCapacityExceeded)
}

func TestRecordSizes(t *testing.T) {
	records := []struct {
		record Record
		size   int
	}{
		{&MarketState{NextOrderID: 1}, 201},
		{&Order{}, 97},
		{&OpenOrderAccount{}, 578},
		{&UserMarketAccount{}, 129},
		{&Event{}, 90},
	}
	for _, r := range records {
		data, err := Encode(r.record)
		require.NoError(t, err)
		assert.Len(t, data, r.size)
	}
}
