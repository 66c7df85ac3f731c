// Package apperrors declares the sentinel error values used across the
// simulator, matched against with errors.Is rather than string comparison.
package apperrors

import "errors"

// Standardized simulator errors, per spec.md §7.
var (
	// ErrDataError signals a malformed or non-monotonic market-data record.
	// It surfaces out of the market-data iterator and terminates the run.
	ErrDataError = errors.New("data error")

	// ErrConfigError signals an invalid RunParams value. It terminates the
	// run before the event loop starts.
	ErrConfigError = errors.New("config error")

	// ErrInsufficientFunds is returned by PlaceOrder (as OrderId(0)) when
	// the pre-trade sufficiency check fails. It is local and recoverable:
	// the strategy may retry with a smaller order.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrOrderNotFound names the case of a target order id that is not
	// present in the pending-order set. Cancel and Replace report through
	// their bool result and do not return it.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnknownSymbol signals an order or quote referencing a symbol index
	// outside the configured symbol universe.
	ErrUnknownSymbol = errors.New("unknown symbol index")
)
