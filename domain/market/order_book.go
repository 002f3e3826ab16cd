package market

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/cockroachdb/errors"
)

const (
	DefaultBookCapacity = 10
	orderBookHeaderSize = 1 + keySize + 8 + 2
)

// OrderBook holds the resting orders of one side in a fixed slot array.
// Slots [0, SlotsFilled) are occupied and kept in priority order: best price
// first, then ascending order id. It is single-writer and deterministic.
type OrderBook struct {
	Side        Side
	Market      solana.PublicKey
	NextOrderID uint64
	Orders      []Order
	SlotsFilled uint16
}

// NewOrderBook reserves capacity slots up front; the book never grows.
func NewOrderBook(side Side, market solana.PublicKey, capacity int) *OrderBook {
	return &OrderBook{
		Side:   side,
		Market: market,
		Orders: make([]Order, capacity),
	}
}

func OrderBookSize(capacity int) int {
	return orderBookHeaderSize + capacity*OrderSize
}

func (b *OrderBook) Size() int { return OrderBookSize(len(b.Orders)) }

func (b *OrderBook) Capacity() int { return len(b.Orders) }

func (b *OrderBook) Len() int { return int(b.SlotsFilled) }

func (b *OrderBook) IsFull() bool { return b.Len() >= b.Capacity() }

// Resting returns the occupied slots in priority order. The slice aliases
// the book.
func (b *OrderBook) Resting() []Order {
	return b.Orders[:b.SlotsFilled]
}

// Best returns the highest-priority resting order.
func (b *OrderBook) Best() (*Order, bool) {
	if b.SlotsFilled == 0 {
		return nil, false
	}
	return &b.Orders[0], true
}

// Find locates an order by id and owner.
func (b *OrderBook) Find(orderID uint64, owner solana.PublicKey) (int, bool) {
	for i := range b.Resting() {
		if b.Orders[i].OrderID == orderID && b.Orders[i].Owner.Equals(owner) {
			return i, true
		}
	}
	return -1, false
}

// Insert places o behind every order that outranks it and returns its slot.
func (b *OrderBook) Insert(o Order) (int, error) {
	if o.Side != b.Side {
		return -1, errors.Wrapf(ErrInvalidState, "%s order inserted in %s book", o.Side, b.Side)
	}
	if b.IsFull() {
		return -1, errors.Wrapf(ErrCapacityExceeded, "%s book full (%d slots)", b.Side, b.Capacity())
	}

	n := b.Len()
	slot := n
	for i := 0; i < n; i++ {
		if b.outranks(&o, &b.Orders[i]) {
			slot = i
			break
		}
	}

	copy(b.Orders[slot+1:n+1], b.Orders[slot:n])
	b.Orders[slot] = o
	b.SlotsFilled++
	return slot, nil
}

// Remove frees slot and compacts the tail left, preserving priority.
func (b *OrderBook) Remove(slot int) (Order, error) {
	n := b.Len()
	if slot < 0 || slot >= n {
		return Order{}, errors.Wrapf(ErrInvalidState, "%s book slot %d not occupied (%d filled)", b.Side, slot, n)
	}

	removed := b.Orders[slot]
	copy(b.Orders[slot:n-1], b.Orders[slot+1:n])
	b.Orders[n-1] = Order{}
	b.SlotsFilled--
	return removed, nil
}

// outranks reports whether a has priority over c within this book.
func (b *OrderBook) outranks(a, c *Order) bool {
	if a.Price != c.Price {
		if b.Side == Bid {
			return a.Price > c.Price
		}
		return a.Price < c.Price
	}
	return a.OrderID < c.OrderID
}

// ---- matching ----

// FillFunc observes one execution against maker. It runs before a fully
// filled maker leaves the book.
type FillFunc func(maker *Order, trade uint64) error

// Crosses reports whether a taker limit price reaches a maker resting in
// this book. A buyer crosses asks priced at or below its limit, a seller
// crosses bids priced at or above it.
func (b *OrderBook) Crosses(limit uint64, maker *Order) bool {
	if b.Side == Ask {
		return limit >= maker.Price
	}
	return limit <= maker.Price
}

// Match executes qty against this book at maker prices until qty is gone or
// the best maker no longer crosses limit. It returns the unfilled quantity.
func (b *OrderBook) Match(limit, qty uint64, fn FillFunc) (uint64, error) {
	for qty > 0 {
		maker, ok := b.Best()
		if !ok || !b.Crosses(limit, maker) {
			break
		}

		trade := min(qty, maker.Remaining())
		if err := maker.Fill(trade); err != nil {
			return qty, err
		}
		qty -= trade

		if err := fn(maker, trade); err != nil {
			return qty, err
		}

		if maker.IsFilled() {
			if _, err := b.Remove(0); err != nil {
				return qty, err
			}
		}
	}
	return qty, nil
}

// ---- codec ----

func (b *OrderBook) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint8(uint8(b.Side)); err != nil {
		return err
	}
	if err := writeKey(enc, b.Market); err != nil {
		return err
	}
	if err := enc.WriteUint64(b.NextOrderID, bin.LE); err != nil {
		return err
	}
	for i := range b.Orders {
		if err := b.Orders[i].MarshalWithEncoder(enc); err != nil {
			return err
		}
	}
	return enc.WriteUint16(b.SlotsFilled, bin.LE)
}

// UnmarshalWithDecoder derives the slot capacity from the record length.
func (b *OrderBook) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	body := dec.Remaining() - orderBookHeaderSize
	if body < 0 || body%OrderSize != 0 {
		return errors.Newf("order book record of %d bytes", dec.Remaining())
	}

	side, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	b.Side = Side(side)
	if b.Market, err = readKey(dec); err != nil {
		return err
	}
	if b.NextOrderID, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}

	b.Orders = make([]Order, body/OrderSize)
	for i := range b.Orders {
		if err := b.Orders[i].UnmarshalWithDecoder(dec); err != nil {
			return err
		}
	}
	if b.SlotsFilled, err = dec.ReadUint16(bin.LE); err != nil {
		return err
	}
	if b.Len() > b.Capacity() {
		return errors.Newf("slots_filled %d exceeds capacity %d", b.SlotsFilled, b.Capacity())
	}
	return nil
}
