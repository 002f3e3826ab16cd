package store

import (
	"github.com/gagliardetto/solana-go"
)

const (
	TableRecord  = 0x01
	TableBalance = 0x02
	TableMeta    = 0x03
)

var Keys keyer

type keyer struct{}

func (keyer) Record(addr solana.PublicKey) (out []byte) {
	out = make([]byte, 1+solana.PublicKeyLength)
	out[0] = TableRecord
	copy(out[1:], addr[:])
	return out
}

func (keyer) UnpackRecord(key []byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(key[1:])
}

func (keyer) Balance(mint, holder solana.PublicKey) (out []byte) {
	out = make([]byte, 1+2*solana.PublicKeyLength)
	out[0] = TableBalance
	copy(out[1:33], mint[:])
	copy(out[33:65], holder[:])
	return out
}

func (keyer) Meta(name string) (out []byte) {
	out = make([]byte, 1+len(name))
	out[0] = TableMeta
	copy(out[1:], name)
	return out
}

// RecordPrefix bounds an iteration over every stored record.
func (keyer) RecordPrefix() (lower, upper []byte) {
	return []byte{TableRecord}, []byte{TableRecord + 1}
}
