// Package store is the record-storage service of the engine: fixed-size
// account records and custody balances in one pebble database. Every
// operation runs against a Txn, an indexed batch that either commits whole
// or is discarded.
package store

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/gagliardetto/solana-go"
	"github.com/streamingfast/logging"
	"go.uber.org/zap"

	"matchbook/domain/market"
)

var zlog, tracer = logging.PackageLogger("store", "matchbook/infra/store")

const metaLastApplied = "last_applied"

type Store struct {
	db *pebble.DB
}

type Option func(*pebble.Options)

// WithFS runs the store on fs, typically vfs.NewMem() in tests.
func WithFS(fs vfs.FS) Option {
	return func(o *pebble.Options) { o.FS = fs }
}

func Open(dir string, opts ...Option) (*Store, error) {
	o := &pebble.Options{}
	for _, opt := range opts {
		opt(o)
	}

	db, err := pebble.Open(dir, o)
	if err != nil {
		return nil, errors.Wrapf(err, "open store %q", dir)
	}
	zlog.Info("record store opened", zap.String("dir", dir))
	return &Store{db: db}, nil
}

func OpenInMemory() (*Store, error) {
	return Open("matchbook", WithFS(vfs.NewMem()))
}

func (s *Store) DB() *pebble.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Begin starts an operation. Reads through the Txn observe its own writes.
func (s *Store) Begin() *Txn {
	return &Txn{batch: s.db.NewIndexedBatch()}
}

// Record returns the committed bytes of the record at addr.
func (s *Store) Record(addr solana.PublicKey) ([]byte, error) {
	return getRecord(s.db, addr)
}

// Balance returns the committed custody balance of holder in mint.
func (s *Store) Balance(mint, holder solana.PublicKey) (uint64, error) {
	return getUint64(s.db, Keys.Balance(mint, holder))
}

// LastApplied is the journal sequence of the last committed operation.
func (s *Store) LastApplied() (uint64, error) {
	return getUint64(s.db, Keys.Meta(metaLastApplied))
}

// ---- transaction ----

type Txn struct {
	batch *pebble.Batch
}

func (t *Txn) Get(addr solana.PublicKey) ([]byte, error) {
	return getRecord(t.batch, addr)
}

func (t *Txn) Put(addr solana.PublicKey, data []byte) error {
	if tracer.Enabled() {
		zlog.Debug("put record", zap.Stringer("address", addr), zap.Int("size", len(data)))
	}
	return t.batch.Set(Keys.Record(addr), data, nil)
}

func (t *Txn) Exists(addr solana.PublicKey) (bool, error) {
	_, err := t.Get(addr)
	if errors.Is(err, market.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *Txn) Balance(mint, holder solana.PublicKey) (uint64, error) {
	return getUint64(t.batch, Keys.Balance(mint, holder))
}

func (t *Txn) SetBalance(mint, holder solana.PublicKey, amount uint64) error {
	return t.batch.Set(Keys.Balance(mint, holder), binary.LittleEndian.AppendUint64(nil, amount), nil)
}

func (t *Txn) SetLastApplied(seq uint64) error {
	return t.batch.Set(Keys.Meta(metaLastApplied), binary.LittleEndian.AppendUint64(nil, seq), nil)
}

// Batch exposes the underlying batch so collaborators sharing the database
// (the event outbox) can stage writes in the same commit.
func (t *Txn) Batch() *pebble.Batch {
	return t.batch
}

func (t *Txn) Commit() error {
	if err := t.batch.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "commit operation")
	}
	return nil
}

// Discard drops every staged write. It is safe after Commit.
func (t *Txn) Discard() {
	_ = t.batch.Close()
}

// ---- helpers ----

func getRecord(r pebble.Reader, addr solana.PublicKey) ([]byte, error) {
	out, err := get(r, Keys.Record(addr))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errors.Wrapf(market.ErrRecordNotFound, "no record at %s", addr)
	}
	return out, err
}

func getUint64(r pebble.Reader, key []byte) (uint64, error) {
	val, err := get(r, key)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, errors.Newf("corrupt u64 value of %d bytes", len(val))
	}
	return binary.LittleEndian.Uint64(val), nil
}

func get(r pebble.Reader, key []byte) ([]byte, error) {
	val, closer, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return append([]byte(nil), val...), nil
}

// ScanRecords calls fn for every committed record in address order. data is
// only valid during the call.
func (s *Store) ScanRecords(fn func(addr solana.PublicKey, data []byte) error) error {
	lower, upper := Keys.RecordPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(Keys.UnpackRecord(iter.Key()), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}
