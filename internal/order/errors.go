package order

import "errors"

// Pipeline error kinds. Wrap these with fmt.Errorf("%w: ...") so callers can
// classify failures with errors.Is.
var (
	// ErrInvalidVenueQuote marks a venue quote call that failed; it fails the
	// whole routing attempt rather than excluding the venue.
	ErrInvalidVenueQuote = errors.New("invalid venue quote")

	// ErrUnsupportedOrderKind marks an order kind the pipeline cannot execute.
	ErrUnsupportedOrderKind = errors.New("unsupported order kind")

	// ErrExcessiveSlippage marks a realized price that diverged from the quote
	// beyond tolerance.
	ErrExcessiveSlippage = errors.New("excessive slippage")

	// ErrInvalidTransition is returned by the ledger when a write does not
	// follow a defined state machine edge.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound is returned when an order id has no ledger row.
	ErrNotFound = errors.New("order not found")
)
