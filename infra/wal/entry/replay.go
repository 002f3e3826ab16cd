package entry

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

type ReplayHandler func(*Record) error

// Replay feeds every journaled record to fn in sequence order and returns
// the last sequence seen. A frame cut short at the very end of the newest
// segment is a torn append from a crash and ends the replay; any other
// damage is ErrCorruptFrame.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := segments(dir)
	if err != nil {
		return 0, err
	}

	for i, path := range files {
		last := i == len(files)-1
		lastSeq, err = replaySegment(path, last, lastSeq, fn)
		if err != nil {
			return lastSeq, errors.Wrapf(err, "segment %s", path)
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, last bool, lastSeq uint64, fn ReplayHandler) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return lastSeq, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		rec, err := readRecord(r)
		if err == io.EOF {
			return lastSeq, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) && last {
			zlog.Warn("ignoring torn frame at journal tail", zap.String("path", path), zap.Uint64("after_seq", lastSeq))
			return lastSeq, nil
		}
		if err != nil {
			return lastSeq, err
		}

		if rec.Seq <= lastSeq {
			return lastSeq, errors.Wrapf(ErrCorruptFrame, "non-monotonic seq %d after %d", rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq

		if err := fn(rec); err != nil {
			return lastSeq, err
		}
	}
}

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	l := binary.BigEndian.Uint32(header[17:21])
	body := make([]byte, int(l)+trailerSize)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := body[:l]
	sum := binary.BigEndian.Uint32(body[l:])
	if checksum(append(header, payload...)) != sum {
		return nil, errors.Wrapf(ErrCorruptFrame, "crc mismatch at seq %d", binary.BigEndian.Uint64(header[1:9]))
	}

	return &Record{
		Type: RecordType(header[0]),
		Seq:  binary.BigEndian.Uint64(header[1:9]),
		Time: int64(binary.BigEndian.Uint64(header[9:17])),
		Data: payload,
	}, nil
}
