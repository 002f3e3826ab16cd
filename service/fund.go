package service

import (
	"bytes"

	"github.com/cockroachdb/errors"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"matchbook/domain/market"
)

// fundPayload is the journaled form of a custody credit:
// [mint:32][owner:32][amount:u64 LE].
type fundPayload struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

const fundPayloadSize = 2*solana.PublicKeyLength + 8

func (f fundPayload) marshal() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, fundPayloadSize))
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(f.Mint[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(f.Owner[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(f.Amount, bin.LE); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalFund(data []byte) (fundPayload, error) {
	if len(data) != fundPayloadSize {
		return fundPayload{}, errors.Wrapf(market.ErrInvalidState, "fund payload of %d bytes", len(data))
	}
	var f fundPayload
	copy(f.Mint[:], data[:32])
	copy(f.Owner[:], data[32:64])
	f.Amount = bin.LE.Uint64(data[64:])
	return f, nil
}
