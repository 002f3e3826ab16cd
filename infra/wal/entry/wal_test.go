package entry

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendN(t *testing.T, w *WAL, from, to uint64) {
	t.Helper()
	for seq := from; seq <= to; seq++ {
		typ := RecordTransaction
		if seq%3 == 0 {
			typ = RecordFund
		}
		require.NoError(t, w.Append(NewRecord(typ, seq, []byte{byte(seq), 0xAB})))
	}
}

func collect(t *testing.T, dir string) ([]*Record, uint64) {
	t.Helper()
	var out []*Record
	last, err := Replay(dir, func(r *Record) error {
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	return out, last
}

func TestWAL_AppendReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	require.NoError(t, err)
	appendN(t, w, 1, 10)
	require.NoError(t, w.Close())

	files, err := segments(dir)
	require.NoError(t, err)
	assert.Greater(t, len(files), 1, "small segments rotate")

	recs, last := collect(t, dir)
	require.Len(t, recs, 10)
	assert.Equal(t, uint64(10), last)
	for i, r := range recs {
		assert.Equal(t, uint64(i+1), r.Seq)
		assert.Equal(t, []byte{byte(i + 1), 0xAB}, r.Data)
	}
	assert.Equal(t, RecordFund, recs[2].Type)
}

func TestWAL_ReopenAppendsToNewestSegment(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	appendN(t, w, 1, 3)
	require.NoError(t, w.Close())

	w, err = Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	appendN(t, w, 4, 5)
	require.NoError(t, w.Close())

	recs, last := collect(t, dir)
	assert.Len(t, recs, 5)
	assert.Equal(t, uint64(5), last)
}

func TestReplay_TornTailIsIgnored(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 4)
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, st.Size()-3))

	recs, last := collect(t, dir)
	assert.Len(t, recs, 3)
	assert.Equal(t, uint64(3), last)
}

func TestWAL_ReopenDropsTornTail(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 4)
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, st.Size()-3))

	_, last := collect(t, dir)
	require.Equal(t, uint64(3), last)

	w, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 4, 5)
	require.NoError(t, w.Close())

	recs, last := collect(t, dir)
	require.Len(t, recs, 5)
	assert.Equal(t, uint64(5), last)
	for i, r := range recs {
		assert.Equal(t, uint64(i+1), r.Seq)
	}
}

func TestValidLength(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 2)
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	st, err := os.Stat(path)
	require.NoError(t, err)

	n, err := validLength(path)
	require.NoError(t, err)
	assert.Equal(t, st.Size(), n)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0x00, 0x00, 0x00})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	n, err = validLength(path)
	require.NoError(t, err)
	assert.Equal(t, st.Size(), n, "partial header is not counted")
}

func TestOpen_RefusesCorruptSegment(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 2)
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[headerSize] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Open(Config{Dir: dir})
	assert.ErrorIs(t, err, ErrCorruptFrame)
}

func TestReplay_ChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 2)
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[headerSize] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Replay(dir, func(*Record) error { return nil })
	assert.ErrorIs(t, err, ErrCorruptFrame)
}

func TestWAL_TruncateBefore(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	require.NoError(t, err)
	defer w.Close()
	appendN(t, w, 1, 10)

	before, err := segments(dir)
	require.NoError(t, err)

	removed, err := w.TruncateBefore(6)
	require.NoError(t, err)
	assert.Positive(t, removed)

	after, err := segments(dir)
	require.NoError(t, err)
	assert.Len(t, after, len(before)-removed)

	recs, last := collect(t, dir)
	require.NotEmpty(t, recs)
	assert.LessOrEqual(t, recs[0].Seq, uint64(7), "nothing after the cut is lost")
	assert.Equal(t, uint64(10), last)

	removed, err = w.TruncateBefore(100)
	require.NoError(t, err)
	after, err = segments(dir)
	require.NoError(t, err)
	assert.Len(t, after, 1, "the active segment stays")
}

func TestAbortRecord(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 1)
	require.NoError(t, w.Append(NewAbortRecord(2, 1)))
	require.NoError(t, w.Close())

	recs, last := collect(t, dir)
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(2), last)
	assert.Equal(t, "abort", recs[1].Type.String())

	aborted, err := recs[1].AbortedSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), aborted)

	_, err = recs[0].AbortedSeq()
	assert.ErrorIs(t, err, ErrCorruptFrame)
}
