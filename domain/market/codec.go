package market

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/cockroachdb/errors"
)

const keySize = solana.PublicKeyLength

// Record is a fixed-size account layout. Size is the exact encoded length.
type Record interface {
	bin.EncoderDecoder
	Size() int
}

// Encode serializes r into a buffer of exactly r.Size() bytes.
func Encode(r Record) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, r.Size()))
	if err := r.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, errors.Wrap(err, "encode record")
	}
	if buf.Len() != r.Size() {
		return nil, errors.Wrapf(ErrInvalidState, "encoded %d bytes, layout is %d", buf.Len(), r.Size())
	}
	return buf.Bytes(), nil
}

// Decode fills r from data. The whole buffer must be consumed.
func Decode(data []byte, r Record) error {
	dec := bin.NewBorshDecoder(data)
	if err := r.UnmarshalWithDecoder(dec); err != nil {
		return errors.Wrapf(ErrInvalidState, "decode record: %s", err)
	}
	if rem := dec.Remaining(); rem != 0 {
		return errors.Wrapf(ErrInvalidState, "decode record: %d trailing bytes", rem)
	}
	return nil
}

func writeKey(enc *bin.Encoder, key solana.PublicKey) error {
	return enc.WriteBytes(key[:], false)
}

func readKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(keySize)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

func writeU64s(enc *bin.Encoder, values ...uint64) error {
	for _, v := range values {
		if err := enc.WriteUint64(v, bin.LE); err != nil {
			return err
		}
	}
	return nil
}

func readU64s(dec *bin.Decoder, out ...*uint64) (err error) {
	for _, p := range out {
		if *p, err = dec.ReadUint64(bin.LE); err != nil {
			return err
		}
	}
	return nil
}
