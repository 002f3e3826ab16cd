package instruction

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/domain/market"
)

func TestCreateOrderWireFormat(t *testing.T) {
	data, err := Encode(&CreateOrder{Side: market.Ask, LimitPrice: 200, CoinQty: 5, PcQty: 1})
	require.NoError(t, err)

	require.Len(t, data, 1+1+3*8)
	assert.Equal(t, byte(OpCreateOrder), data[0])
	assert.Equal(t, byte(market.Ask), data[1])
	assert.Equal(t, []byte{200, 0, 0, 0, 0, 0, 0, 0}, data[2:10])
	assert.Equal(t, []byte{5, 0, 0, 0, 0, 0, 0, 0}, data[10:18])

	ix, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, &CreateOrder{Side: market.Ask, LimitPrice: 200, CoinQty: 5, PcQty: 1}, ix)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, market.ErrInvalidState)

	_, err = Decode([]byte{9})
	assert.ErrorIs(t, err, ErrUnknownOpcode)

	_, err = Decode([]byte{byte(OpConsumeEvents)})
	assert.ErrorIs(t, err, market.ErrInvalidState)

	_, err = Decode([]byte{byte(OpConsumeEvents), 5, 0})
	assert.ErrorIs(t, err, market.ErrInvalidState)
}

func TestInstructionVariants(t *testing.T) {
	for _, ix := range []Instruction{
		&InitializeMarket{CoinMint: solana.PublicKey{1}, PcMint: solana.PublicKey{2}, BookCapacity: 10},
		&ConsumeEvents{DrainCount: 5},
		&CancelOrder{OrderID: 3, Side: market.Bid},
		&SettleFunds{},
	} {
		t.Run(ix.Opcode().String(), func(t *testing.T) {
			data, err := Encode(ix)
			require.NoError(t, err)
			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, ix, decoded)
		})
	}
}

func TestTransactionEnvelope(t *testing.T) {
	tx, err := NewTransaction(
		solana.PublicKey{7},
		solana.PublicKey{8},
		&ConsumeEvents{DrainCount: 2},
		solana.PublicKey{9}, solana.PublicKey{10},
	)
	require.NoError(t, err)

	decoded, err := UnmarshalTransaction(tx.Marshal())
	require.NoError(t, err)
	assert.Equal(t, tx, decoded)

	ix, err := decoded.Instruction()
	require.NoError(t, err)
	assert.Equal(t, &ConsumeEvents{DrainCount: 2}, ix)

	_, err = UnmarshalTransaction([]byte{0x0a, 0x02, 0x01, 0x02})
	assert.ErrorIs(t, err, market.ErrInvalidState)
}
