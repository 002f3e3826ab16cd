package market

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type EventType uint8

const (
	EventFill EventType = iota
	EventOut
)

func (t EventType) String() string {
	switch t {
	case EventFill:
		return "fill"
	case EventOut:
		return "out"
	default:
		return "unknown"
	}
}

const EventSize = 1 + 1 + 2*keySize + 3*8

// Event is a settlement instruction produced by matching or cancellation.
// Side is the maker's side; for Out events Maker and Taker are both the owner.
type Event struct {
	Type         EventType
	Side         Side
	Maker        solana.PublicKey
	Taker        solana.PublicKey
	CoinQty      uint64
	PcQty        uint64
	MakerOrderID uint64
}

func (e *Event) Size() int { return EventSize }

func (e *Event) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint8(uint8(e.Type)); err != nil {
		return err
	}
	if err := enc.WriteUint8(uint8(e.Side)); err != nil {
		return err
	}
	if err := writeKey(enc, e.Maker); err != nil {
		return err
	}
	if err := writeKey(enc, e.Taker); err != nil {
		return err
	}
	return writeU64s(enc, e.CoinQty, e.PcQty, e.MakerOrderID)
}

func (e *Event) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	typ, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	side, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	e.Type, e.Side = EventType(typ), Side(side)
	if e.Maker, err = readKey(dec); err != nil {
		return err
	}
	if e.Taker, err = readKey(dec); err != nil {
		return err
	}
	return readU64s(dec, &e.CoinQty, &e.PcQty, &e.MakerOrderID)
}
