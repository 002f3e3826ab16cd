package market

import (
	"github.com/gagliardetto/solana-go"

	"github.com/cockroachdb/errors"
)

const (
	seedMarket      = "market"
	seedCoinVault   = "coin_vault"
	seedPcVault     = "pc_vault"
	seedBids        = "bids"
	seedAsks        = "asks"
	seedEvents      = "events"
	seedOpenOrder   = "open_order"
	seedUserAccount = "user_market_account"
)

// Derive returns the program-derived identity for seeds. Records are located
// by derivation, never by stored references.
func Derive(programID solana.PublicKey, seeds ...[]byte) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, errors.Wrapf(err, "derive address under %s", programID)
	}
	return addr, bump, nil
}

// Addresses are the identities of every market-level record.
type Addresses struct {
	Market    solana.PublicKey
	Bump      uint8
	CoinVault solana.PublicKey
	PcVault   solana.PublicKey
	Bids      solana.PublicKey
	Asks      solana.PublicKey
	Events    solana.PublicKey
}

func DeriveMarket(programID, coinMint, pcMint solana.PublicKey) (Addresses, error) {
	mkt, bump, err := Derive(programID, []byte(seedMarket), pcMint[:], coinMint[:])
	if err != nil {
		return Addresses{}, err
	}
	out := Addresses{Market: mkt, Bump: bump}

	for _, d := range []struct {
		seed string
		into *solana.PublicKey
	}{
		{seedCoinVault, &out.CoinVault},
		{seedPcVault, &out.PcVault},
		{seedBids, &out.Bids},
		{seedAsks, &out.Asks},
		{seedEvents, &out.Events},
	} {
		if *d.into, _, err = Derive(programID, []byte(d.seed), mkt[:]); err != nil {
			return Addresses{}, err
		}
	}
	return out, nil
}

func EventsAddress(programID, mkt solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := Derive(programID, []byte(seedEvents), mkt[:])
	return addr, err
}

func OpenOrderAddress(programID, mkt, owner solana.PublicKey) (solana.PublicKey, uint8, error) {
	return Derive(programID, []byte(seedOpenOrder), mkt[:], owner[:])
}

func UserAccountAddress(programID, mkt, owner solana.PublicKey) (solana.PublicKey, uint8, error) {
	return Derive(programID, []byte(seedUserAccount), mkt[:], owner[:])
}
