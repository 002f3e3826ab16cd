package grpcserver

import (
	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"
	"google.golang.org/protobuf/encoding/protowire"

	"matchbook/domain/instruction"
	"matchbook/domain/market"
	"matchbook/service"
)

const (
	receiptSeq         protowire.Number = 1
	receiptOpcode      protowire.Number = 2
	receiptMarket      protowire.Number = 3
	receiptOrderID     protowire.Number = 4
	receiptRested      protowire.Number = 5
	receiptFills       protowire.Number = 6
	receiptEvents      protowire.Number = 7
	receiptDrained     protowire.Number = 8
	receiptSettledCoin protowire.Number = 9
	receiptSettledPc   protowire.Number = 10

	fundMint   protowire.Number = 1
	fundOwner  protowire.Number = 2
	fundAmount protowire.Number = 3
)

func marshalReceipt(r *service.Receipt) []byte {
	var b []byte
	varint := func(n protowire.Number, v uint64) {
		b = protowire.AppendTag(b, n, protowire.VarintType)
		b = protowire.AppendVarint(b, v)
	}
	varint(receiptSeq, r.Seq)
	varint(receiptOpcode, uint64(r.Opcode))
	b = protowire.AppendTag(b, receiptMarket, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Market[:])
	varint(receiptOrderID, r.OrderID)
	varint(receiptRested, protowire.EncodeBool(r.Rested))
	varint(receiptFills, uint64(r.Fills))
	varint(receiptEvents, uint64(r.Events))
	varint(receiptDrained, uint64(r.Drained))
	varint(receiptSettledCoin, r.SettledCoin)
	varint(receiptSettledPc, r.SettledPc)
	return b
}

func unmarshalReceipt(b []byte) (*service.Receipt, error) {
	r := &service.Receipt{}
	err := consumeFields(b, func(num protowire.Number, v uint64, raw []byte) error {
		switch num {
		case receiptSeq:
			r.Seq = v
		case receiptOpcode:
			r.Opcode = instruction.Opcode(v)
		case receiptMarket:
			if len(raw) != solana.PublicKeyLength {
				return errors.Wrapf(market.ErrInvalidState, "receipt market of %d bytes", len(raw))
			}
			r.Market = solana.PublicKeyFromBytes(raw)
		case receiptOrderID:
			r.OrderID = v
		case receiptRested:
			r.Rested = protowire.DecodeBool(v)
		case receiptFills:
			r.Fills = int(v)
		case receiptEvents:
			r.Events = int(v)
		case receiptDrained:
			r.Drained = int(v)
		case receiptSettledCoin:
			r.SettledCoin = v
		case receiptSettledPc:
			r.SettledPc = v
		}
		return nil
	})
	return r, err
}

type fundRequest struct {
	Mint, Owner solana.PublicKey
	Amount      uint64
}

func marshalFund(f fundRequest) []byte {
	var b []byte
	b = protowire.AppendTag(b, fundMint, protowire.BytesType)
	b = protowire.AppendBytes(b, f.Mint[:])
	b = protowire.AppendTag(b, fundOwner, protowire.BytesType)
	b = protowire.AppendBytes(b, f.Owner[:])
	b = protowire.AppendTag(b, fundAmount, protowire.VarintType)
	return protowire.AppendVarint(b, f.Amount)
}

func unmarshalFund(b []byte) (fundRequest, error) {
	var f fundRequest
	err := consumeFields(b, func(num protowire.Number, v uint64, raw []byte) error {
		switch num {
		case fundMint, fundOwner:
			key, err := toKey(raw)
			if err != nil {
				return err
			}
			if num == fundMint {
				f.Mint = key
			} else {
				f.Owner = key
			}
		case fundAmount:
			f.Amount = v
		}
		return nil
	})
	return f, err
}

func toKey(b []byte) (solana.PublicKey, error) {
	if len(b) != solana.PublicKeyLength {
		return solana.PublicKey{}, errors.Wrapf(market.ErrInvalidState, "address of %d bytes", len(b))
	}
	return solana.PublicKeyFromBytes(b), nil
}

// consumeFields walks a message of varint and bytes fields, skipping any
// other wire type.
func consumeFields(b []byte, fn func(num protowire.Number, v uint64, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "tag")
		}
		b = b[n:]

		var (
			v   uint64
			raw []byte
		)
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return errors.Wrapf(protowire.ParseError(n), "field %d", num)
		}
		b = b[n:]

		if typ == protowire.VarintType || typ == protowire.BytesType {
			if err := fn(num, v, raw); err != nil {
				return err
			}
		}
	}
	return nil
}
