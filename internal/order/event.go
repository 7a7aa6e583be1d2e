package order

import (
	"encoding/json"
	"time"
)

// StatusEvent is one lifecycle notification for an order. It carries only the
// fields valid for its status; Event filters them from the persisted row.
type StatusEvent struct {
	OrderID       string
	Status        Status
	Venue         string
	SettlementID  string
	ErrorMessage  string
	ExecutedPrice *float64
	Timestamp     time.Time
}

// wireEvent is the JSON shape sent to observers and external consumers.
type wireEvent struct {
	OrderID       string   `json:"orderId"`
	Status        string   `json:"status"`
	Dex           string   `json:"dex,omitempty"`
	TxHash        string   `json:"txHash,omitempty"`
	Error         string   `json:"error,omitempty"`
	ExecutedPrice *float64 `json:"executedPrice,omitempty"`
	Timestamp     string   `json:"timestamp"`
}

// MarshalJSON serializes the event to the wire shape with an ISO-8601 timestamp.
func (e StatusEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		OrderID:       e.OrderID,
		Status:        string(e.Status),
		Dex:           e.Venue,
		TxHash:        e.SettlementID,
		Error:         e.ErrorMessage,
		ExecutedPrice: e.ExecutedPrice,
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

// Event builds the status notification for the order's current state. The
// event reflects the persisted row, so a broadcast never precedes durability.
func (o *Order) Event() StatusEvent {
	ev := StatusEvent{
		OrderID:   o.ID.String(),
		Status:    o.Status,
		Timestamp: o.UpdatedAt,
	}
	switch o.Status {
	case StatusBuilding, StatusSubmitted:
		ev.Venue = o.Venue
	case StatusConfirmed:
		ev.Venue = o.Venue
		ev.SettlementID = o.SettlementID
		price := o.ExecutedPrice.InexactFloat64()
		ev.ExecutedPrice = &price
	case StatusFailed:
		ev.Venue = o.Venue
		ev.ErrorMessage = o.ErrorMessage
	}
	return ev
}
