// Package entry is the operation journal: every operation the engine
// applied, framed and checksummed in append-only segment files, so state
// can be rebuilt after a crash or from an older snapshot.
package entry

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/streamingfast/logging"
	"go.uber.org/zap"

	"matchbook/infra/memory"
)

var zlog, _ = logging.PackageLogger("journal", "matchbook/infra/wal/entry")

const DefaultSegmentSize = 64 << 20

var frames = memory.NewBufferPool(4 << 10)

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
	// Sync fsyncs every append.
	Sync bool
}

type WAL struct {
	cfg        Config
	current    *segment
	segIndex   int
	lastRotate time.Time
}

// Open resumes appending to the newest segment in cfg.Dir, creating the
// first one when the directory is empty.
func Open(cfg Config) (*WAL, error) {
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = DefaultSegmentSize
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create journal dir %q", cfg.Dir)
	}

	files, err := segments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	index := 0
	if len(files) > 0 {
		index = segmentIndex(files[len(files)-1])
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, errors.Wrap(err, "open segment")
	}
	if err := seg.dropTornTail(); err != nil {
		_ = seg.close()
		return nil, err
	}

	zlog.Info("journal opened",
		zap.String("dir", cfg.Dir),
		zap.Int("segment", index),
		zap.Int64("offset", seg.offset),
	)
	return &WAL{
		cfg:        cfg,
		current:    seg,
		segIndex:   index,
		lastRotate: time.Now(),
	}, nil
}

func (w *WAL) Append(r *Record) error {
	buf := frames.Get()
	*buf = r.appendFrame(*buf)
	err := w.current.append(*buf, w.cfg.Sync)
	frames.Put(buf)
	if err != nil {
		return errors.Wrapf(err, "append seq %d", r.Seq)
	}

	if w.current.offset >= w.cfg.SegmentSize ||
		(w.cfg.SegmentDuration > 0 && time.Since(w.lastRotate) >= w.cfg.SegmentDuration) {
		return w.rotate()
	}
	return nil
}

func (w *WAL) rotate() error {
	if err := w.current.close(); err != nil {
		return err
	}
	w.segIndex++

	seg, err := openSegment(w.cfg.Dir, w.segIndex)
	if err != nil {
		return errors.Wrap(err, "rotate")
	}

	w.current = seg
	w.lastRotate = time.Now()
	zlog.Debug("journal rotated", zap.Int("segment", w.segIndex))
	return nil
}

func (w *WAL) Dir() string {
	return w.cfg.Dir
}

func (w *WAL) Close() error {
	return w.current.close()
}

// TruncateBefore removes closed segments whose records all have a sequence
// at or below seq. The segment being appended to is always kept.
func (w *WAL) TruncateBefore(seq uint64) (int, error) {
	files, err := segments(w.cfg.Dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range files {
		if segmentIndex(path) >= w.segIndex {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			zlog.Warn("skipping unreadable segment", zap.String("path", path), zap.Error(err))
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
