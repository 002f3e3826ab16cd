package broadcaster

import (
	"context"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/domain/market"
	exitwal "matchbook/infra/wal/exit"
)

type fakePublisher struct {
	mu   sync.Mutex
	fail int
	got  [][]byte
	keys []string
}

func (f *fakePublisher) Publish(_ context.Context, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return errors.New("broker unavailable")
	}
	f.got = append(f.got, value)
	f.keys = append(f.keys, string(key))
	return nil
}

func (f *fakePublisher) Close() error { return nil }

var (
	testMarket  = solana.PublicKey{0xAA}
	otherMarket = solana.PublicKey{0xBB}
)

func newOutbox(t *testing.T, n int) *exitwal.ExitWAL {
	t.Helper()
	markets := make([]solana.PublicKey, n)
	for i := range markets {
		markets[i] = testMarket
	}
	return newOutboxFor(t, markets...)
}

// newOutboxFor stages one fill per market, with sequences 1..len(markets).
func newOutboxFor(t *testing.T, markets ...solana.PublicKey) *exitwal.ExitWAL {
	t.Helper()
	db, err := pebble.Open("outbox", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	batch := db.NewBatch()
	defer batch.Close()
	for i, mkt := range markets {
		key := exitwal.Key{Seq: uint64(i + 1)}
		payload, err := exitwal.NewEvent(key, mkt.String(), market.Event{
			Type: market.EventFill, CoinQty: uint64(i + 1), PcQty: 100,
		}).Marshal()
		require.NoError(t, err)
		require.NoError(t, exitwal.Stage(batch, key, payload))
	}
	require.NoError(t, batch.Commit(pebble.Sync))
	return exitwal.New(db)
}

func publishedSeqs(t *testing.T, pub *fakePublisher) []uint64 {
	t.Helper()
	var out []uint64
	for _, raw := range pub.got {
		ev, err := exitwal.UnmarshalEvent(raw)
		require.NoError(t, err)
		out = append(out, ev.Seq)
	}
	return out
}

func count(t *testing.T, w *exitwal.ExitWAL, state exitwal.ExitState) int {
	n := 0
	require.NoError(t, w.ScanByState(state, func(exitwal.Key, exitwal.ExitRecord) error {
		n++
		return nil
	}))
	return n
}

func TestFlush_PublishesInOrderAndAcks(t *testing.T) {
	outbox := newOutbox(t, 3)
	pub := &fakePublisher{}
	b := New(outbox, pub, Config{})

	n, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, count(t, outbox, exitwal.StateAcked))

	require.Len(t, pub.got, 3)
	for i, raw := range pub.got {
		ev, err := exitwal.UnmarshalEvent(raw)
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.Equal(t, "fill", ev.Type)
		assert.Equal(t, testMarket.String(), pub.keys[i])
	}

	n, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "acked entries are not sent again")
}

func TestFlush_RetriesFailedInOrder(t *testing.T) {
	outbox := newOutbox(t, 2)
	pub := &fakePublisher{fail: 1}
	b := New(outbox, pub, Config{MaxRetries: 3})

	n, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, count(t, outbox, exitwal.StateFailed))
	assert.Equal(t, 1, count(t, outbox, exitwal.StateNew), "seq 2 waits behind the failed seq 1")
	assert.Empty(t, pub.got)

	n, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uint64{1, 2}, publishedSeqs(t, pub))

	rec, err := outbox.Get(exitwal.Key{Seq: 1})
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateAcked, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)
}

func TestFlush_FailureHoldsOnlyItsMarket(t *testing.T) {
	outbox := newOutboxFor(t, testMarket, otherMarket, testMarket)
	pub := &fakePublisher{fail: 1}
	b := New(outbox, pub, Config{})

	n, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uint64{2}, publishedSeqs(t, pub))
	assert.Equal(t, []string{otherMarket.String()}, pub.keys)

	n, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uint64{2, 1, 3}, publishedSeqs(t, pub))
}

func TestFlush_ExhaustedEntryHoldsItsMarket(t *testing.T) {
	outbox := newOutboxFor(t, testMarket, testMarket, otherMarket)
	pub := &fakePublisher{fail: 1}
	b := New(outbox, pub, Config{MaxRetries: 1})

	_, err := b.Flush(context.Background())
	require.NoError(t, err)
	n, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, []uint64{3}, publishedSeqs(t, pub))
	rec, err := outbox.Get(exitwal.Key{Seq: 2})
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateNew, rec.State, "never published past the stuck seq 1")
}

func TestFlush_GivesUpAfterMaxRetries(t *testing.T) {
	outbox := newOutbox(t, 1)
	pub := &fakePublisher{fail: 10}
	b := New(outbox, pub, Config{MaxRetries: 1})

	_, err := b.Flush(context.Background())
	require.NoError(t, err)
	_, err = b.Flush(context.Background())
	require.NoError(t, err)

	rec, err := outbox.Get(exitwal.Key{Seq: 1})
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateFailed, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)
	assert.Equal(t, 9, pub.fail, "second flush skipped the entry")
}

func TestFlush_ResendsEntriesLeftSent(t *testing.T) {
	outbox := newOutbox(t, 1)
	require.NoError(t, outbox.UpdateState(exitwal.Key{Seq: 1}, exitwal.StateSent, 0))

	pub := &fakePublisher{}
	n, err := New(outbox, pub, Config{}).Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaramaPublisher(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != "payload" {
			return errors.Newf("unexpected value %q", val)
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewSaramaPublisherWithProducer(producer, "events")
	require.NoError(t, pub.Publish(context.Background(), []byte("k"), []byte("payload")))
	assert.ErrorIs(t, pub.Publish(context.Background(), nil, []byte("x")), sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}
