package market

import "github.com/cockroachdb/errors"

// Every operation failure wraps exactly one of these. Callers classify
// with errors.Is; nothing is ever partially applied.
var (
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRecordNotFound    = errors.New("record not found")
	ErrInvalidState      = errors.New("invalid state")
)
