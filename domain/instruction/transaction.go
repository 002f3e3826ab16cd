package instruction

import (
	"github.com/gagliardetto/solana-go"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cockroachdb/errors"

	"matchbook/domain/market"
)

// Transaction is one authorized operation as delivered by a caller: who
// signs it, which market it targets, the extra accounts it declares and the
// instruction data. It is what the journal records and the RPC surface
// carries.
type Transaction struct {
	Signer   solana.PublicKey
	Market   solana.PublicKey
	Accounts []solana.PublicKey
	Data     []byte
}

const (
	fieldSigner   protowire.Number = 1
	fieldMarket   protowire.Number = 2
	fieldAccounts protowire.Number = 3
	fieldData     protowire.Number = 4
)

func NewTransaction(signer, mkt solana.PublicKey, ix Instruction, accounts ...solana.PublicKey) (*Transaction, error) {
	data, err := Encode(ix)
	if err != nil {
		return nil, err
	}
	return &Transaction{Signer: signer, Market: mkt, Accounts: accounts, Data: data}, nil
}

func (t *Transaction) Instruction() (Instruction, error) {
	return Decode(t.Data)
}

// Marshal encodes t as protobuf wire format.
func (t *Transaction) Marshal() []byte {
	b := make([]byte, 0, 2*(2+solana.PublicKeyLength)+len(t.Accounts)*(2+solana.PublicKeyLength)+len(t.Data)+4)
	b = protowire.AppendTag(b, fieldSigner, protowire.BytesType)
	b = protowire.AppendBytes(b, t.Signer[:])
	b = protowire.AppendTag(b, fieldMarket, protowire.BytesType)
	b = protowire.AppendBytes(b, t.Market[:])
	for _, acc := range t.Accounts {
		b = protowire.AppendTag(b, fieldAccounts, protowire.BytesType)
		b = protowire.AppendBytes(b, acc[:])
	}
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	return protowire.AppendBytes(b, t.Data)
}

func UnmarshalTransaction(b []byte) (*Transaction, error) {
	t := &Transaction{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "transaction tag")
		}
		b = b[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.Wrapf(protowire.ParseError(n), "transaction field %d", num)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, errors.Wrapf(protowire.ParseError(n), "transaction field %d", num)
		}
		b = b[n:]

		switch num {
		case fieldSigner:
			key, err := toKey(v)
			if err != nil {
				return nil, err
			}
			t.Signer = key
		case fieldMarket:
			key, err := toKey(v)
			if err != nil {
				return nil, err
			}
			t.Market = key
		case fieldAccounts:
			key, err := toKey(v)
			if err != nil {
				return nil, err
			}
			t.Accounts = append(t.Accounts, key)
		case fieldData:
			t.Data = append([]byte(nil), v...)
		}
	}
	return t, nil
}

func toKey(v []byte) (solana.PublicKey, error) {
	if len(v) != solana.PublicKeyLength {
		return solana.PublicKey{}, errors.Wrapf(market.ErrInvalidState, "account key of %d bytes", len(v))
	}
	return solana.PublicKeyFromBytes(v), nil
}
