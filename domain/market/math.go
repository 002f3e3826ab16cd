package market

import (
	"math/bits"

	"github.com/cockroachdb/errors"
)

// QuoteAmount returns qty*price, failing instead of wrapping.
func QuoteAmount(qty, price uint64) (uint64, error) {
	hi, lo := bits.Mul64(qty, price)
	if hi != 0 {
		return 0, errors.Wrapf(ErrInvalidState, "quote overflow %d*%d", qty, price)
	}
	return lo, nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, errors.Wrapf(ErrInvalidState, "balance overflow %d+%d", a, b)
	}
	return sum, nil
}
