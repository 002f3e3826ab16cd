package market

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

func (s Side) Valid() bool {
	return s == Bid || s == Ask
}

func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func ParseSide(value string) (Side, error) {
	switch strings.ToLower(value) {
	case "bid", "buy", "b":
		return Bid, nil
	case "ask", "sell", "s":
		return Ask, nil
	default:
		return 0, errors.Newf("unknown side %q", value)
	}
}

const orderIDMask = uint64(1)<<63 - 1

// EncodeOrderID packs the book side into the most significant bit so the
// open-order index can locate an order with a single word.
func EncodeOrderID(side Side, orderID uint64) uint64 {
	return uint64(side)<<63 | orderID&orderIDMask
}

func DecodeOrderID(encoded uint64) (Side, uint64) {
	return Side(encoded >> 63), encoded & orderIDMask
}
