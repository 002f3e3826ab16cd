package entry

import (
	"encoding/binary"
	"hash/crc32"
	"time"

	"github.com/cockroachdb/errors"
)

type RecordType uint8

const (
	// RecordTransaction carries a marshalled instruction.Transaction.
	RecordTransaction RecordType = iota
	// RecordFund carries a custody credit made outside any instruction.
	RecordFund
	// RecordAbort marks an earlier journaled operation that never
	// committed. Its payload is that operation's sequence.
	RecordAbort
)

func (t RecordType) String() string {
	switch t {
	case RecordTransaction:
		return "transaction"
	case RecordFund:
		return "fund"
	case RecordAbort:
		return "abort"
	default:
		return "unknown"
	}
}

var ErrCorruptFrame = errors.New("corrupt journal frame")

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

// NewAbortRecord journals under seq that the operation journaled as
// aborted did not commit.
func NewAbortRecord(seq, aborted uint64) *Record {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, aborted)
	return NewRecord(RecordAbort, seq, data)
}

// AbortedSeq returns the sequence an abort record cancels.
func (r *Record) AbortedSeq() (uint64, error) {
	if r.Type != RecordAbort || len(r.Data) != 8 {
		return 0, errors.Wrapf(ErrCorruptFrame, "seq %d is not an abort record", r.Seq)
	}
	return binary.BigEndian.Uint64(r.Data), nil
}

// Frame layout, big endian:
// [type:1][seq:8][time:8][len:4][payload][crc:4]
const (
	headerSize  = 1 + 8 + 8 + 4
	trailerSize = 4
)

// appendFrame encodes r onto dst and returns the extended slice.
func (r *Record) appendFrame(dst []byte) []byte {
	n := len(r.Data)
	start := len(dst)
	dst = append(dst, make([]byte, headerSize+n+trailerSize)...)
	buf := dst[start:]

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], uint32(n))
	copy(buf[headerSize:], r.Data)
	binary.BigEndian.PutUint32(buf[headerSize+n:], checksum(buf[:headerSize+n]))
	return dst
}

func checksum(b []byte) uint32 {
	return crc32.Checksum(b, crcTable)
}

var crcTable = crc32.MakeTable(crc32.Castagnoli)
