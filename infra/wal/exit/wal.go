// Package exit is the outbox of settlement events waiting to be published.
// Entries are staged in the same pebble batch as the operation that emitted
// them, so an event is outboxed if and only if its operation committed.
package exit

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Key orders outbox entries by journal sequence, then by position of the
// event within its operation.
type Key struct {
	Seq   uint64
	Index uint16
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.Seq, k.Index)
}

const keyPrefix = "event/"

func (k Key) bytes() []byte {
	return []byte(fmt.Sprintf("%s%020d/%05d", keyPrefix, k.Seq, k.Index))
}

func parseKey(b []byte) (Key, error) {
	var k Key
	if _, err := fmt.Sscanf(string(b), keyPrefix+"%020d/%05d", &k.Seq, &k.Index); err != nil {
		return Key{}, errors.Wrapf(err, "outbox key %q", b)
	}
	return k, nil
}

type ExitRecord struct {
	State       ExitState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
const recordHeader = 1 + 4 + 8

func encodeRecord(r ExitRecord) []byte {
	buf := make([]byte, recordHeader+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHeader:], r.Payload)
	return buf
}

func decodeRecord(b []byte) (ExitRecord, error) {
	if len(b) < recordHeader {
		return ExitRecord{}, errors.Newf("invalid outbox record length %d", len(b))
	}
	return ExitRecord{
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[recordHeader:]...),
	}, nil
}

type ExitWAL struct {
	db *pebble.DB
}

// New keeps the outbox in db, next to the records it describes.
func New(db *pebble.DB) *ExitWAL {
	return &ExitWAL{db: db}
}

// Stage writes a NEW entry into w, normally the batch of the operation that
// produced the event.
func Stage(w pebble.Writer, key Key, payload []byte) error {
	return w.Set(key.bytes(), encodeRecord(ExitRecord{State: StateNew, Payload: payload}), nil)
}

func (w *ExitWAL) Get(key Key) (ExitRecord, error) {
	val, closer, err := w.db.Get(key.bytes())
	if err != nil {
		return ExitRecord{}, err
	}
	defer closer.Close()

	return decodeRecord(val)
}

// UpdateState records a send attempt outcome, keeping the payload.
func (w *ExitWAL) UpdateState(key Key, state ExitState, retries uint32) error {
	rec, err := w.Get(key)
	if err != nil {
		return errors.Wrapf(err, "outbox entry %s", key)
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = time.Now().UnixNano()
	return w.db.Set(key.bytes(), encodeRecord(rec), pebble.Sync)
}

// ScanByState calls fn for every entry in state, oldest first.
func (w *ExitWAL) ScanByState(state ExitState, fn func(key Key, rec ExitRecord) error) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte("event0"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if rec.State != state {
			continue
		}

		key, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		if err := fn(key, rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// DeleteAcked drops ACKED entries whose sequence is at or below seq.
func (w *ExitWAL) DeleteAcked(seq uint64) (int, error) {
	batch := w.db.NewBatch()
	defer batch.Close()

	n := 0
	err := w.ScanByState(StateAcked, func(key Key, _ ExitRecord) error {
		if key.Seq > seq {
			return nil
		}
		n++
		return batch.Delete(key.bytes(), nil)
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, batch.Commit(pebble.Sync)
}
