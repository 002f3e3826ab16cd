package entry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const segmentPattern = "segment-*.wal"

type segment struct {
	file   *os.File
	offset int64
}

func segmentPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("segment-%06d.wal", index))
}

func openSegment(dir string, index int) (*segment, error) {
	f, err := os.OpenFile(segmentPath(dir, index), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{file: f, offset: st.Size()}, nil
}

// append writes one frame. On a failed write or sync the segment is cut
// back to where the frame started, so a later append never lands behind a
// partial frame.
func (s *segment) append(b []byte, sync bool) error {
	_, err := s.file.Write(b)
	if err == nil && sync {
		err = s.file.Sync()
	}
	if err != nil {
		return errors.CombineErrors(err, s.truncate(s.offset))
	}
	s.offset += int64(len(b))
	return nil
}

// dropTornTail cuts a frame left incomplete by a crash off the end of the
// segment before anything is appended after it.
func (s *segment) dropTornTail() error {
	valid, err := validLength(s.file.Name())
	if err != nil {
		return errors.Wrapf(err, "scan %s", s.file.Name())
	}
	if valid == s.offset {
		return nil
	}
	zlog.Warn("truncating torn frame at journal tail",
		zap.String("path", s.file.Name()),
		zap.Int64("size", s.offset),
		zap.Int64("valid", valid),
	)
	return s.truncate(valid)
}

func (s *segment) truncate(size int64) error {
	if err := s.file.Truncate(size); err != nil {
		return errors.Wrapf(err, "truncate %s to %d", s.file.Name(), size)
	}
	s.offset = size
	return nil
}

func (s *segment) close() error {
	return s.file.Close()
}

// segments lists the segment files of dir ordered by index.
func segments(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, segmentPattern))
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return segmentIndex(files[i]) < segmentIndex(files[j]) })
	return files, nil
}

func segmentIndex(path string) int {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "segment-"), ".wal")
	i, err := strconv.Atoi(name)
	if err != nil {
		return -1
	}
	return i
}
