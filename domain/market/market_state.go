package market

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const MarketStateSize = 6*keySize + 8 + 1

// MarketState is the registry record of one trading pair. NextOrderID is the
// market-wide order counter; it starts at 1 and is only ever incremented.
type MarketState struct {
	CoinVault   solana.PublicKey
	PcVault     solana.PublicKey
	CoinMint    solana.PublicKey
	PcMint      solana.PublicKey
	Bids        solana.PublicKey
	Asks        solana.PublicKey
	NextOrderID uint64
	Bump        uint8
}

func (m *MarketState) Size() int { return MarketStateSize }

// AssignOrderID hands out the current counter value and advances it.
func (m *MarketState) AssignOrderID() uint64 {
	id := m.NextOrderID
	m.NextOrderID++
	return id
}

// Book returns the identity of the book holding orders of the given side.
func (m *MarketState) Book(side Side) solana.PublicKey {
	if side == Bid {
		return m.Bids
	}
	return m.Asks
}

func (m *MarketState) MarshalWithEncoder(enc *bin.Encoder) error {
	for _, k := range []solana.PublicKey{m.CoinVault, m.PcVault, m.CoinMint, m.PcMint, m.Bids, m.Asks} {
		if err := writeKey(enc, k); err != nil {
			return err
		}
	}
	if err := enc.WriteUint64(m.NextOrderID, bin.LE); err != nil {
		return err
	}
	return enc.WriteUint8(m.Bump)
}

func (m *MarketState) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	for _, k := range []*solana.PublicKey{&m.CoinVault, &m.PcVault, &m.CoinMint, &m.PcMint, &m.Bids, &m.Asks} {
		if *k, err = readKey(dec); err != nil {
			return err
		}
	}
	if m.NextOrderID, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	m.Bump, err = dec.ReadUint8()
	return err
}
