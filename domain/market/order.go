package market

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/cockroachdb/errors"
)

const OrderSize = 8 + 2*keySize + 3*8 + 1

// Order is one resting order. Quantity is the size it rested with, not the
// size originally requested by the taker.
type Order struct {
	OrderID        uint64
	Owner          solana.PublicKey
	Market         solana.PublicKey
	Price          uint64
	Quantity       uint64
	FilledQuantity uint64
	Side           Side
}

func (o *Order) Size() int { return OrderSize }

func (o *Order) Remaining() uint64 {
	return o.Quantity - o.FilledQuantity
}

func (o *Order) IsFilled() bool {
	return o.FilledQuantity == o.Quantity
}

// Fill records qty as executed. It never lets filled exceed quantity.
func (o *Order) Fill(qty uint64) error {
	if qty > o.Remaining() {
		return errors.Wrapf(ErrInvalidState, "order %d: fill %d exceeds remaining %d", o.OrderID, qty, o.Remaining())
	}
	o.FilledQuantity += qty
	return nil
}

// EncodedID is the side-tagged identifier stored in the open-order index.
func (o *Order) EncodedID() uint64 {
	return EncodeOrderID(o.Side, o.OrderID)
}

func (o *Order) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint64(o.OrderID, bin.LE); err != nil {
		return err
	}
	if err := writeKey(enc, o.Owner); err != nil {
		return err
	}
	if err := writeKey(enc, o.Market); err != nil {
		return err
	}
	if err := writeU64s(enc, o.Price, o.Quantity, o.FilledQuantity); err != nil {
		return err
	}
	return enc.WriteUint8(uint8(o.Side))
}

func (o *Order) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if o.OrderID, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if o.Owner, err = readKey(dec); err != nil {
		return err
	}
	if o.Market, err = readKey(dec); err != nil {
		return err
	}
	if err = readU64s(dec, &o.Price, &o.Quantity, &o.FilledQuantity); err != nil {
		return err
	}
	side, err := dec.ReadUint8()
	o.Side = Side(side)
	return err
}
