package market

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/cockroachdb/errors"
)

const (
	MaxOpenOrders        = 64
	OpenOrderAccountSize = 2*keySize + MaxOpenOrders*8 + 1 + 1
)

// OpenOrderAccount indexes the side-encoded ids of an owner's resting
// orders. Entries [0, NextArrayIndex) are live.
type OpenOrderAccount struct {
	Owner          solana.PublicKey
	Market         solana.PublicKey
	OrderIDs       [MaxOpenOrders]uint64
	NextArrayIndex uint8
	Bump           uint8
}

func (a *OpenOrderAccount) Size() int { return OpenOrderAccountSize }

func (a *OpenOrderAccount) Live() []uint64 {
	return a.OrderIDs[:a.NextArrayIndex]
}

func (a *OpenOrderAccount) Contains(encoded uint64) bool {
	return a.indexOf(encoded) >= 0
}

func (a *OpenOrderAccount) Add(encoded uint64) error {
	if int(a.NextArrayIndex) >= MaxOpenOrders {
		return errors.Wrapf(ErrCapacityExceeded, "open orders of %s full (%d)", a.Owner, MaxOpenOrders)
	}
	a.OrderIDs[a.NextArrayIndex] = encoded
	a.NextArrayIndex++
	return nil
}

// Remove drops encoded and shifts the later entries down.
func (a *OpenOrderAccount) Remove(encoded uint64) error {
	i := a.indexOf(encoded)
	if i < 0 {
		side, id := DecodeOrderID(encoded)
		return errors.Wrapf(ErrInvalidState, "order %d (%s) not open for %s", id, side, a.Owner)
	}
	n := int(a.NextArrayIndex)
	copy(a.OrderIDs[i:n-1], a.OrderIDs[i+1:n])
	a.OrderIDs[n-1] = 0
	a.NextArrayIndex--
	return nil
}

func (a *OpenOrderAccount) indexOf(encoded uint64) int {
	for i, id := range a.Live() {
		if id == encoded {
			return i
		}
	}
	return -1
}

func (a *OpenOrderAccount) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writeKey(enc, a.Owner); err != nil {
		return err
	}
	if err := writeKey(enc, a.Market); err != nil {
		return err
	}
	if err := writeU64s(enc, a.OrderIDs[:]...); err != nil {
		return err
	}
	if err := enc.WriteUint8(a.NextArrayIndex); err != nil {
		return err
	}
	return enc.WriteUint8(a.Bump)
}

func (a *OpenOrderAccount) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if a.Owner, err = readKey(dec); err != nil {
		return err
	}
	if a.Market, err = readKey(dec); err != nil {
		return err
	}
	for i := range a.OrderIDs {
		if a.OrderIDs[i], err = dec.ReadUint64(bin.LE); err != nil {
			return err
		}
	}
	if a.NextArrayIndex, err = dec.ReadUint8(); err != nil {
		return err
	}
	if int(a.NextArrayIndex) > MaxOpenOrders {
		return errors.Newf("next_array_index %d out of range", a.NextArrayIndex)
	}
	a.Bump, err = dec.ReadUint8()
	return err
}
