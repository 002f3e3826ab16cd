// Package instruction is the opcode-tagged operation surface of the engine.
// Instruction data is [opcode:u8] followed by a fixed little-endian payload.
package instruction

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/cockroachdb/errors"

	"matchbook/domain/market"
)

type Opcode uint8

const (
	OpInitializeMarket Opcode = iota
	OpCreateOrder
	OpConsumeEvents
	OpCancelOrder
	OpSettleFunds
)

func (o Opcode) String() string {
	switch o {
	case OpInitializeMarket:
		return "initialize_market"
	case OpCreateOrder:
		return "create_order"
	case OpConsumeEvents:
		return "consume_events"
	case OpCancelOrder:
		return "cancel_order"
	case OpSettleFunds:
		return "settle_funds"
	default:
		return "unknown"
	}
}

var ErrUnknownOpcode = errors.New("unknown opcode")

type Instruction interface {
	bin.EncoderDecoder
	Opcode() Opcode
}

// InitializeMarket creates the records of the coin/pc pair. BookCapacity of
// zero selects market.DefaultBookCapacity.
type InitializeMarket struct {
	CoinMint     solana.PublicKey
	PcMint       solana.PublicKey
	BookCapacity uint16
}

type CreateOrder struct {
	Side       market.Side
	LimitPrice uint64
	CoinQty    uint64
	PcQty      uint64
}

// ConsumeEvents drains the queue; the user accounts it settles are declared
// on the enclosing transaction.
type ConsumeEvents struct {
	DrainCount uint8
}

type CancelOrder struct {
	OrderID uint64
	Side    market.Side
}

type SettleFunds struct{}

func (*InitializeMarket) Opcode() Opcode { return OpInitializeMarket }
func (*CreateOrder) Opcode() Opcode      { return OpCreateOrder }
func (*ConsumeEvents) Opcode() Opcode    { return OpConsumeEvents }
func (*CancelOrder) Opcode() Opcode      { return OpCancelOrder }
func (*SettleFunds) Opcode() Opcode      { return OpSettleFunds }

// Encode produces the wire form of ix.
func Encode(ix Instruction) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint8(uint8(ix.Opcode())); err != nil {
		return nil, err
	}
	if err := ix.MarshalWithEncoder(enc); err != nil {
		return nil, errors.Wrapf(err, "encode %s", ix.Opcode())
	}
	return buf.Bytes(), nil
}

// Decode parses instruction data. Trailing bytes are rejected.
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(market.ErrInvalidState, "empty instruction data")
	}

	var ix Instruction
	switch op := Opcode(data[0]); op {
	case OpInitializeMarket:
		ix = &InitializeMarket{}
	case OpCreateOrder:
		ix = &CreateOrder{}
	case OpConsumeEvents:
		ix = &ConsumeEvents{}
	case OpCancelOrder:
		ix = &CancelOrder{}
	case OpSettleFunds:
		ix = &SettleFunds{}
	default:
		return nil, errors.Wrapf(ErrUnknownOpcode, "opcode %d", op)
	}

	dec := bin.NewBorshDecoder(data[1:])
	if err := ix.UnmarshalWithDecoder(dec); err != nil {
		return nil, errors.Wrapf(market.ErrInvalidState, "decode %s: %s", ix.Opcode(), err)
	}
	if dec.Remaining() != 0 {
		return nil, errors.Wrapf(market.ErrInvalidState, "decode %s: %d trailing bytes", ix.Opcode(), dec.Remaining())
	}
	return ix, nil
}

// ---- payloads ----

func (ix *InitializeMarket) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(ix.CoinMint[:], false); err != nil {
		return err
	}
	if err := enc.WriteBytes(ix.PcMint[:], false); err != nil {
		return err
	}
	return enc.WriteUint16(ix.BookCapacity, bin.LE)
}

func (ix *InitializeMarket) UnmarshalWithDecoder(dec *bin.Decoder) error {
	coin, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	pc, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	ix.CoinMint, ix.PcMint = solana.PublicKeyFromBytes(coin), solana.PublicKeyFromBytes(pc)
	ix.BookCapacity, err = dec.ReadUint16(bin.LE)
	return err
}

func (ix *CreateOrder) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint8(uint8(ix.Side)); err != nil {
		return err
	}
	for _, v := range []uint64{ix.LimitPrice, ix.CoinQty, ix.PcQty} {
		if err := enc.WriteUint64(v, bin.LE); err != nil {
			return err
		}
	}
	return nil
}

func (ix *CreateOrder) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	side, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	ix.Side = market.Side(side)
	for _, p := range []*uint64{&ix.LimitPrice, &ix.CoinQty, &ix.PcQty} {
		if *p, err = dec.ReadUint64(bin.LE); err != nil {
			return err
		}
	}
	return nil
}

func (ix *ConsumeEvents) MarshalWithEncoder(enc *bin.Encoder) error {
	return enc.WriteUint8(ix.DrainCount)
}

func (ix *ConsumeEvents) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	ix.DrainCount, err = dec.ReadUint8()
	return err
}

func (ix *CancelOrder) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint64(ix.OrderID, bin.LE); err != nil {
		return err
	}
	return enc.WriteUint8(uint8(ix.Side))
}

func (ix *CancelOrder) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if ix.OrderID, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	side, err := dec.ReadUint8()
	ix.Side = market.Side(side)
	return err
}

func (*SettleFunds) MarshalWithEncoder(*bin.Encoder) error   { return nil }
func (*SettleFunds) UnmarshalWithDecoder(*bin.Decoder) error { return nil }
