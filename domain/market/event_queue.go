package market

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/cockroachdb/errors"
)

const (
	EventQueueCapacity = 512
	MaxDrainCount      = 5

	MarketEventsAccountSize = keySize + 2 + 2 + EventQueueCapacity*EventSize
)

// MarketEventsAccount is a single-producer ring of settlement events.
// Head is the next write position, Tail the next unread one. One slot is
// always left empty so a full ring is distinguishable from an empty one.
type MarketEventsAccount struct {
	Market solana.PublicKey
	Head   uint16
	Tail   uint16
	Events [EventQueueCapacity]Event
}

func NewMarketEventsAccount(market solana.PublicKey) *MarketEventsAccount {
	return &MarketEventsAccount{Market: market}
}

func (q *MarketEventsAccount) Size() int { return MarketEventsAccountSize }

// Len is the number of unread events.
func (q *MarketEventsAccount) Len() int {
	return (int(q.Head) - int(q.Tail) + EventQueueCapacity) % EventQueueCapacity
}

func (q *MarketEventsAccount) IsFull() bool {
	return q.Len() == EventQueueCapacity-1
}

// Push appends e. A full ring is a hard failure; events are never dropped.
func (q *MarketEventsAccount) Push(e Event) error {
	if q.IsFull() {
		return errors.Wrapf(ErrCapacityExceeded, "event queue of %s full (%d pending)", q.Market, q.Len())
	}
	q.Events[q.Head] = e
	q.Head = uint16((int(q.Head) + 1) % EventQueueCapacity)
	return nil
}

// Peek returns up to n unread events in queue order without consuming them.
func (q *MarketEventsAccount) Peek(n int) []Event {
	n = min(n, q.Len())
	out := make([]Event, n)
	for i := range out {
		out[i] = q.Events[(int(q.Tail)+i)%EventQueueCapacity]
	}
	return out
}

// Advance marks n events as consumed. Payloads are left in place.
func (q *MarketEventsAccount) Advance(n int) error {
	if n < 0 || n > q.Len() {
		return errors.Wrapf(ErrInvalidState, "advance %d past %d pending events", n, q.Len())
	}
	q.Tail = uint16((int(q.Tail) + n) % EventQueueCapacity)
	return nil
}

// DrainCount clamps a caller request to what one consume call may process.
func (q *MarketEventsAccount) DrainCount(requested uint8) int {
	return min(int(requested), q.Len(), MaxDrainCount)
}

func (q *MarketEventsAccount) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writeKey(enc, q.Market); err != nil {
		return err
	}
	if err := enc.WriteUint16(q.Head, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint16(q.Tail, bin.LE); err != nil {
		return err
	}
	for i := range q.Events {
		if err := q.Events[i].MarshalWithEncoder(enc); err != nil {
			return err
		}
	}
	return nil
}

func (q *MarketEventsAccount) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if q.Market, err = readKey(dec); err != nil {
		return err
	}
	if q.Head, err = dec.ReadUint16(bin.LE); err != nil {
		return err
	}
	if q.Tail, err = dec.ReadUint16(bin.LE); err != nil {
		return err
	}
	if q.Head >= EventQueueCapacity || q.Tail >= EventQueueCapacity {
		return errors.Newf("head %d / tail %d out of range", q.Head, q.Tail)
	}
	for i := range q.Events {
		if err := q.Events[i].UnmarshalWithDecoder(dec); err != nil {
			return err
		}
	}
	return nil
}
