// Package order defines the order model, its lifecycle state machine, and the
// ledger that persists every state transition.
package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order kinds
const (
	KindMarket = "market"
)

// Status is the lifecycle state of an order.
type Status string

// Order statuses
const (
	StatusPending   Status = "pending"
	StatusRouting   Status = "routing"
	StatusBuilding  Status = "building"
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// statusRank orders statuses along the success path. failed shares the top
// rank with confirmed so that both terminate the lifecycle.
var statusRank = map[Status]int{
	StatusPending:   0,
	StatusRouting:   1,
	StatusBuilding:  2,
	StatusSubmitted: 3,
	StatusConfirmed: 4,
	StatusFailed:    4,
}

// Terminal reports whether no further transition is defined out of s.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// AtOrAfter reports whether s is at least as far along the lifecycle as o.
func (s Status) AtOrAfter(o Status) bool {
	return statusRank[s] >= statusRank[o]
}

// CanTransition reports whether from -> to is a defined edge of the state
// machine: one step forward on the success path, or failed from any
// non-terminal state.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	return statusRank[to] == statusRank[from]+1
}

// Order represents a market order routed to one of the configured venues.
type Order struct {
	ID            uuid.UUID       `json:"id"`
	TokenIn       string          `json:"tokenIn"`
	TokenOut      string          `json:"tokenOut"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          string          `json:"kind"`
	Status        Status          `json:"status"`
	Venue         string          `json:"dex,omitempty"`
	SettlementID  string          `json:"txHash,omitempty"`
	ErrorMessage  string          `json:"error,omitempty"`
	ExecutedPrice decimal.Decimal `json:"executedPrice,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Transition describes one state change together with the fields that become
// known at that point. Use the constructors below rather than filling the
// struct directly: each status admits only the fields its constructor takes.
type Transition struct {
	Status        Status
	Venue         string
	SettlementID  string
	ErrorMessage  string
	ExecutedPrice decimal.Decimal
}

// Routing marks the routing decision as in flight.
func Routing() Transition {
	return Transition{Status: StatusRouting}
}

// Building records the chosen venue.
func Building(venue string) Transition {
	return Transition{Status: StatusBuilding, Venue: venue}
}

// Submitted marks execution as dispatched.
func Submitted() Transition {
	return Transition{Status: StatusSubmitted}
}

// Confirmed records the settlement outcome.
func Confirmed(venue, settlementID string, executedPrice decimal.Decimal) Transition {
	return Transition{
		Status:        StatusConfirmed,
		Venue:         venue,
		SettlementID:  settlementID,
		ExecutedPrice: executedPrice,
	}
}

// Failed records the terminal failure cause.
func Failed(message string) Transition {
	return Transition{Status: StatusFailed, ErrorMessage: message}
}
