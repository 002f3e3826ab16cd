package exit

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutbox(t *testing.T) (*ExitWAL, *pebble.DB) {
	t.Helper()
	db, err := pebble.Open("outbox", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), db
}

func stage(t *testing.T, db *pebble.DB, keys ...Key) {
	t.Helper()
	batch := db.NewBatch()
	defer batch.Close()
	for _, k := range keys {
		require.NoError(t, Stage(batch, k, []byte(k.String())))
	}
	require.NoError(t, batch.Commit(pebble.Sync))
}

func scan(t *testing.T, w *ExitWAL, state ExitState) []Key {
	t.Helper()
	var out []Key
	require.NoError(t, w.ScanByState(state, func(k Key, _ ExitRecord) error {
		out = append(out, k)
		return nil
	}))
	return out
}

func TestKey_RoundTripAndOrder(t *testing.T) {
	k := Key{Seq: 12345, Index: 7}
	got, err := parseKey(k.bytes())
	require.NoError(t, err)
	assert.Equal(t, k, got)

	assert.Less(t, string(Key{Seq: 9, Index: 2}.bytes()), string(Key{Seq: 10}.bytes()))
	assert.Less(t, string(Key{Seq: 10, Index: 1}.bytes()), string(Key{Seq: 10, Index: 2}.bytes()))
}

func TestStage_UncommittedBatchLeavesNothing(t *testing.T) {
	w, db := newTestOutbox(t)

	batch := db.NewBatch()
	require.NoError(t, Stage(batch, Key{Seq: 1}, []byte("x")))
	require.NoError(t, batch.Close())

	assert.Empty(t, scan(t, w, StateNew))
}

func TestExitWAL_Lifecycle(t *testing.T) {
	w, db := newTestOutbox(t)
	stage(t, db, Key{Seq: 2, Index: 0}, Key{Seq: 1, Index: 1}, Key{Seq: 1, Index: 0})

	assert.Equal(t, []Key{{1, 0}, {1, 1}, {2, 0}}, scan(t, w, StateNew))

	require.NoError(t, w.UpdateState(Key{Seq: 1}, StateAcked, 0))
	require.NoError(t, w.UpdateState(Key{Seq: 1, Index: 1}, StateFailed, 3))

	rec, err := w.Get(Key{Seq: 1, Index: 1})
	require.NoError(t, err)
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, uint32(3), rec.Retries)
	assert.Positive(t, rec.LastAttempt)
	assert.Equal(t, []byte("1/1"), rec.Payload)

	assert.Equal(t, []Key{{2, 0}}, scan(t, w, StateNew))
	assert.Equal(t, []Key{{1, 1}}, scan(t, w, StateFailed))
	assert.Equal(t, []Key{{1, 0}}, scan(t, w, StateAcked))
}

func TestExitWAL_DeleteAcked(t *testing.T) {
	w, db := newTestOutbox(t)
	stage(t, db, Key{Seq: 1}, Key{Seq: 2}, Key{Seq: 3})
	for _, k := range []Key{{Seq: 1}, {Seq: 3}} {
		require.NoError(t, w.UpdateState(k, StateAcked, 0))
	}

	n, err := w.DeleteAcked(2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = w.Get(Key{Seq: 1})
	assert.ErrorIs(t, err, pebble.ErrNotFound)
	assert.Equal(t, []Key{{3, 0}}, scan(t, w, StateAcked))
	assert.Equal(t, []Key{{2, 0}}, scan(t, w, StateNew))
}

func TestExitWAL_UpdateMissing(t *testing.T) {
	w, _ := newTestOutbox(t)
	err := w.UpdateState(Key{Seq: 99}, StateSent, 0)
	assert.ErrorIs(t, err, pebble.ErrNotFound)
}
