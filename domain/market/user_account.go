package market

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const UserMarketAccountSize = 2*keySize + 4*8 + keySize + 1

// UserMarketAccount is the balance ledger of one owner in one market.
// Locked amounts back resting orders and are never spent elsewhere.
type UserMarketAccount struct {
	Owner      solana.PublicKey
	Market     solana.PublicKey
	FreeCoin   uint64
	LockedCoin uint64
	FreePc     uint64
	LockedPc   uint64
	OpenOrder  solana.PublicKey
	Bump       uint8
}

func (u *UserMarketAccount) Size() int { return UserMarketAccountSize }

// Lock commits amount of the asset an order on side offers: quote for a
// bid, base for an ask. Free balance is used first; the shortfall is
// returned as the amount that must be deposited from custody.
func (u *UserMarketAccount) Lock(side Side, amount uint64) (deposit uint64, err error) {
	free, locked := u.balances(side)

	if *free >= amount {
		*free -= amount
	} else {
		deposit = amount - *free
		*free = 0
	}
	if *locked, err = checkedAdd(*locked, amount); err != nil {
		return 0, err
	}
	return deposit, nil
}

// Unlock moves up to amount of the side's locked asset back to free and
// returns what was actually released.
func (u *UserMarketAccount) Unlock(side Side, amount uint64) (uint64, error) {
	free, locked := u.balances(side)

	released := min(amount, *locked)
	sum, err := checkedAdd(*free, released)
	if err != nil {
		return 0, err
	}
	*locked -= released
	*free = sum
	return released, nil
}

func (u *UserMarketAccount) CreditCoin(amount uint64) (err error) {
	u.FreeCoin, err = checkedAdd(u.FreeCoin, amount)
	return err
}

func (u *UserMarketAccount) CreditPc(amount uint64) (err error) {
	u.FreePc, err = checkedAdd(u.FreePc, amount)
	return err
}

// Withdraw zeroes both free balances and returns them.
func (u *UserMarketAccount) Withdraw() (coin, pc uint64) {
	coin, pc = u.FreeCoin, u.FreePc
	u.FreeCoin, u.FreePc = 0, 0
	return coin, pc
}

func (u *UserMarketAccount) balances(side Side) (free, locked *uint64) {
	if side == Bid {
		return &u.FreePc, &u.LockedPc
	}
	return &u.FreeCoin, &u.LockedCoin
}

func (u *UserMarketAccount) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writeKey(enc, u.Owner); err != nil {
		return err
	}
	if err := writeKey(enc, u.Market); err != nil {
		return err
	}
	if err := writeU64s(enc, u.FreeCoin, u.LockedCoin, u.FreePc, u.LockedPc); err != nil {
		return err
	}
	if err := writeKey(enc, u.OpenOrder); err != nil {
		return err
	}
	return enc.WriteUint8(u.Bump)
}

func (u *UserMarketAccount) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if u.Owner, err = readKey(dec); err != nil {
		return err
	}
	if u.Market, err = readKey(dec); err != nil {
		return err
	}
	if err = readU64s(dec, &u.FreeCoin, &u.LockedCoin, &u.FreePc, &u.LockedPc); err != nil {
		return err
	}
	if u.OpenOrder, err = readKey(dec); err != nil {
		return err
	}
	u.Bump, err = dec.ReadUint8()
	return err
}
