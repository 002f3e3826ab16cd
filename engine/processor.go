// Package engine executes market instructions against a declared record set.
// It is deterministic and never blocks: every instruction either returns a
// Result or an error, and on error the caller must discard every write the
// processor staged.
package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"
	"github.com/streamingfast/logging"

	"matchbook/domain/instruction"
	"matchbook/domain/market"
)

var zlog, tracer = logging.PackageLogger("engine", "matchbook/engine")

// Accounts is the record storage an instruction reads and writes. Get
// returns an error wrapping market.ErrRecordNotFound for unknown addresses.
type Accounts interface {
	Get(addr solana.PublicKey) ([]byte, error)
	Put(addr solana.PublicKey, data []byte) error
}

// Custody moves exact token amounts between holders.
type Custody interface {
	Transfer(mint, from, to solana.PublicKey, amount uint64) error
}

type Config struct {
	ProgramID    solana.PublicKey
	BookCapacity int
}

type Processor struct {
	programID    solana.PublicKey
	bookCapacity int
	accounts     Accounts
	custody      Custody
}

func NewProcessor(cfg Config, accounts Accounts, custody Custody) *Processor {
	capacity := cfg.BookCapacity
	if capacity <= 0 {
		capacity = market.DefaultBookCapacity
	}
	return &Processor{
		programID:    cfg.ProgramID,
		bookCapacity: capacity,
		accounts:     accounts,
		custody:      custody,
	}
}

// Result describes what one instruction did.
type Result struct {
	Opcode  instruction.Opcode
	Market  solana.PublicKey
	OrderID uint64
	Rested  bool
	Fills   int

	// Events were appended to the queue, in queue order.
	Events []market.Event
	// Consumed were drained from the queue and settled.
	Consumed []market.Event

	SettledCoin uint64
	SettledPc   uint64
}

func (p *Processor) Execute(tx *instruction.Transaction) (*Result, error) {
	ix, err := tx.Instruction()
	if err != nil {
		return nil, err
	}

	switch ix := ix.(type) {
	case *instruction.InitializeMarket:
		return p.initializeMarket(tx.Signer, ix)
	case *instruction.CreateOrder:
		return p.createOrder(tx, ix)
	case *instruction.ConsumeEvents:
		return p.consumeEvents(tx, ix)
	case *instruction.CancelOrder:
		return p.cancelOrder(tx, ix)
	case *instruction.SettleFunds:
		return p.settleFunds(tx)
	default:
		return nil, errors.Wrapf(instruction.ErrUnknownOpcode, "opcode %s", ix.Opcode())
	}
}

// ---- record access ----

func (p *Processor) load(addr solana.PublicKey, r market.Record) error {
	data, err := p.accounts.Get(addr)
	if err != nil {
		return err
	}
	if err := market.Decode(data, r); err != nil {
		return errors.Wrapf(err, "record at %s", addr)
	}
	return nil
}

func (p *Processor) save(addr solana.PublicKey, r market.Record) error {
	data, err := market.Encode(r)
	if err != nil {
		return errors.Wrapf(err, "record at %s", addr)
	}
	return p.accounts.Put(addr, data)
}

func (p *Processor) exists(addr solana.PublicKey) (bool, error) {
	_, err := p.accounts.Get(addr)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, market.ErrRecordNotFound):
		return false, nil
	default:
		return false, err
	}
}

// marketRecords are the market-level records an order operation touches.
type marketRecords struct {
	addr       solana.PublicKey
	eventsAddr solana.PublicKey
	state      market.MarketState
	bids       market.OrderBook
	asks       market.OrderBook
	events     market.MarketEventsAccount
}

func (m *marketRecords) book(side market.Side) *market.OrderBook {
	if side == market.Bid {
		return &m.bids
	}
	return &m.asks
}

func (p *Processor) loadMarket(addr solana.PublicKey) (*marketRecords, error) {
	m := &marketRecords{addr: addr}
	if err := p.load(addr, &m.state); err != nil {
		return nil, errors.Wrap(err, "load market")
	}
	if err := p.load(m.state.Bids, &m.bids); err != nil {
		return nil, errors.Wrap(err, "load bids")
	}
	if err := p.load(m.state.Asks, &m.asks); err != nil {
		return nil, errors.Wrap(err, "load asks")
	}

	eventsAddr, err := market.EventsAddress(p.programID, addr)
	if err != nil {
		return nil, err
	}
	m.eventsAddr = eventsAddr
	if err := p.load(eventsAddr, &m.events); err != nil {
		return nil, errors.Wrap(err, "load event queue")
	}
	return m, nil
}

func (p *Processor) saveMarket(m *marketRecords) error {
	if err := p.save(m.addr, &m.state); err != nil {
		return err
	}
	if err := p.save(m.state.Bids, &m.bids); err != nil {
		return err
	}
	if err := p.save(m.state.Asks, &m.asks); err != nil {
		return err
	}
	return p.save(m.eventsAddr, &m.events)
}

// vault returns the mint and vault holding the asset a side offers.
func vault(state *market.MarketState, side market.Side) (mint, holder solana.PublicKey) {
	if side == market.Bid {
		return state.PcMint, state.PcVault
	}
	return state.CoinMint, state.CoinVault
}
