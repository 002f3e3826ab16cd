package engine

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/streamingfast/logging"
	"github.com/stretchr/testify/require"

	"matchbook/domain/instruction"
	"matchbook/domain/market"
	"matchbook/infra/custody"
	"matchbook/infra/store"
)

func init() {
	logging.InstantiateLoggers()
}

var (
	programID = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	coinMint  = solana.PublicKey{0xC0}
	pcMint    = solana.PublicKey{0xDC}

	user  = solana.PublicKey{0x01}
	user2 = solana.PublicKey{0x02}
	user3 = solana.PublicKey{0x03}
)

type harness struct {
	t      testing.TB
	store  *store.Store
	market market.Addresses
}

func newHarness(t testing.TB, bookCapacity uint16) *harness {
	t.Helper()

	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	addrs, err := market.DeriveMarket(programID, coinMint, pcMint)
	require.NoError(t, err)

	h := &harness{t: t, store: s, market: addrs}
	_, err = h.exec(user, &instruction.InitializeMarket{CoinMint: coinMint, PcMint: pcMint, BookCapacity: bookCapacity})
	require.NoError(t, err)

	for _, owner := range []solana.PublicKey{user, user2, user3} {
		h.fund(coinMint, owner, 1_000)
		h.fund(pcMint, owner, 10_000)
	}
	return h
}

// exec runs one instruction the way the host does: commit on success,
// discard every staged write on failure.
func (h *harness) exec(signer solana.PublicKey, ix instruction.Instruction, accounts ...solana.PublicKey) (*Result, error) {
	h.t.Helper()

	tx, err := instruction.NewTransaction(signer, h.market.Market, ix, accounts...)
	require.NoError(h.t, err)

	txn := h.store.Begin()
	defer txn.Discard()

	res, err := NewProcessor(Config{ProgramID: programID}, txn, custody.New(txn)).Execute(tx)
	if err != nil {
		return nil, err
	}
	require.NoError(h.t, txn.Commit())
	return res, nil
}

func (h *harness) order(signer solana.PublicKey, side market.Side, price, qty, pc uint64) *Result {
	h.t.Helper()
	res, err := h.exec(signer, &instruction.CreateOrder{Side: side, LimitPrice: price, CoinQty: qty, PcQty: pc})
	require.NoError(h.t, err)
	return res
}

func (h *harness) fund(mint, owner solana.PublicKey, amount uint64) {
	txn := h.store.Begin()
	defer txn.Discard()
	require.NoError(h.t, custody.New(txn).Mint(mint, owner, amount))
	require.NoError(h.t, txn.Commit())
}

func (h *harness) load(addr solana.PublicKey, r market.Record) {
	h.t.Helper()
	data, err := h.store.Record(addr)
	require.NoError(h.t, err)
	require.NoError(h.t, market.Decode(data, r))
}

func (h *harness) put(addr solana.PublicKey, r market.Record) {
	h.t.Helper()
	data, err := market.Encode(r)
	require.NoError(h.t, err)
	txn := h.store.Begin()
	defer txn.Discard()
	require.NoError(h.t, txn.Put(addr, data))
	require.NoError(h.t, txn.Commit())
}

func (h *harness) state() *market.MarketState {
	out := &market.MarketState{}
	h.load(h.market.Market, out)
	return out
}

func (h *harness) book(side market.Side) *market.OrderBook {
	out := &market.OrderBook{}
	if side == market.Bid {
		h.load(h.market.Bids, out)
	} else {
		h.load(h.market.Asks, out)
	}
	return out
}

func (h *harness) queue() *market.MarketEventsAccount {
	out := &market.MarketEventsAccount{}
	h.load(h.market.Events, out)
	return out
}

func (h *harness) userAddr(owner solana.PublicKey) solana.PublicKey {
	addr, _, err := market.UserAccountAddress(programID, h.market.Market, owner)
	require.NoError(h.t, err)
	return addr
}

func (h *harness) user(owner solana.PublicKey) *market.UserMarketAccount {
	out := &market.UserMarketAccount{}
	h.load(h.userAddr(owner), out)
	return out
}

func (h *harness) openOrders(owner solana.PublicKey) *market.OpenOrderAccount {
	addr, _, err := market.OpenOrderAddress(programID, h.market.Market, owner)
	require.NoError(h.t, err)
	out := &market.OpenOrderAccount{}
	h.load(addr, out)
	return out
}

func (h *harness) balance(mint, holder solana.PublicKey) uint64 {
	v, err := h.store.Balance(mint, holder)
	require.NoError(h.t, err)
	return v
}
