package snapshot

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Write checkpoints db into dir as the snapshot of seq. Writing a sequence
// that already has a snapshot returns the existing one.
func Write(db *pebble.DB, dir string, seq uint64) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	final := filepath.Join(dir, dirName(seq))
	if m, err := readManifest(final); err == nil {
		return m, nil
	}

	tmp := final + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return nil, err
	}
	if err := db.Checkpoint(tmp, pebble.WithFlushedWAL()); err != nil {
		return nil, errors.Wrapf(err, "checkpoint seq %d", seq)
	}

	m := &Manifest{Seq: seq, Created: time.Now().UTC()}
	entries, err := os.ReadDir(tmp)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		if info.Mode().IsRegular() {
			m.Files++
			m.Size += info.Size()
		}
	}

	if err := writeManifest(tmp, m); err != nil {
		return nil, errors.Wrap(err, "write manifest")
	}
	if err := os.RemoveAll(final); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, final); err != nil {
		return nil, err
	}
	m.Path = final

	zlog.Info("snapshot written",
		zap.Uint64("seq", seq),
		zap.String("path", final),
		zap.Int("files", m.Files),
		zap.String("size", humanize.Bytes(uint64(m.Size))),
	)
	return m, nil
}

// Prune keeps the keep newest snapshots of dir and removes the rest.
func Prune(dir string, keep int) (int, error) {
	all, err := List(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := 0; i < len(all)-keep; i++ {
		if err := os.RemoveAll(all[i].Path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
