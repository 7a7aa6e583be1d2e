// Package broadcast fans order status events out to live observers.
package broadcast

import (
	"sync"

	"go.uber.org/zap"

	"github.com/nexlify/dexrouter/internal/order"
)

// Registry maps order ids to their observer channels. It is safe for
// concurrent use by worker slots and observer connections. Delivery is
// best-effort: there is no queueing for disconnected observers and no replay
// for late subscribers.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]map[chan order.StatusEvent]struct{}
	logger *zap.Logger
}

// NewRegistry creates an empty observer registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		subs:   make(map[string]map[chan order.StatusEvent]struct{}),
		logger: logger.Named("broadcast"),
	}
}

// Subscribe registers ch to receive future events for orderID.
func (r *Registry) Subscribe(orderID string, ch chan order.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subs[orderID]
	if !ok {
		set = make(map[chan order.StatusEvent]struct{})
		r.subs[orderID] = set
	}
	set[ch] = struct{}{}
}

// Unsubscribe removes ch. The entry for orderID is dropped once its set is
// empty; the channel itself is never closed here.
func (r *Registry) Unsubscribe(orderID string, ch chan order.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subs[orderID]
	if !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(r.subs, orderID)
	}
}

// Publish sends the event to every observer of its order. An observer whose
// channel is full is pruned rather than blocked on. Publishing a terminal
// event drops the whole registration: every interested party has been
// notified and no further events will follow.
func (r *Registry) Publish(ev order.StatusEvent) {
	r.mu.RLock()
	set := r.subs[ev.OrderID]
	targets := make([]chan order.StatusEvent, 0, len(set))
	for ch := range set {
		targets = append(targets, ch)
	}
	r.mu.RUnlock()

	var stale []chan order.StatusEvent
	for _, ch := range targets {
		select {
		case ch <- ev:
		default:
			stale = append(stale, ch)
		}
	}

	if len(stale) > 0 {
		r.mu.Lock()
		if set, ok := r.subs[ev.OrderID]; ok {
			for _, ch := range stale {
				delete(set, ch)
			}
			if len(set) == 0 {
				delete(r.subs, ev.OrderID)
			}
		}
		r.mu.Unlock()
		r.logger.Debug("pruned unresponsive observers",
			zap.String("order_id", ev.OrderID),
			zap.Int("count", len(stale)))
	}

	if ev.Status.Terminal() {
		r.mu.Lock()
		delete(r.subs, ev.OrderID)
		r.mu.Unlock()
	}
}

// Observers returns the number of channels currently registered for orderID.
func (r *Registry) Observers(orderID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[orderID])
}
