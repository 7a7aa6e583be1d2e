package broadcast

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nexlify/dexrouter/internal/order"
)

func event(orderID string, status order.Status) order.StatusEvent {
	return order.StatusEvent{OrderID: orderID, Status: status, Timestamp: time.Now()}
}

func TestPublishDeliversToAllObservers(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	a := make(chan order.StatusEvent, 4)
	b := make(chan order.StatusEvent, 4)
	r.Subscribe("o1", a)
	r.Subscribe("o1", b)

	r.Publish(event("o1", order.StatusRouting))

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, order.StatusRouting, (<-a).Status)
	assert.Equal(t, order.StatusRouting, (<-b).Status)
}

func TestPublishIsScopedToOrder(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	a := make(chan order.StatusEvent, 4)
	b := make(chan order.StatusEvent, 4)
	r.Subscribe("o1", a)
	r.Subscribe("o2", b)

	r.Publish(event("o1", order.StatusBuilding))

	assert.Len(t, a, 1)
	assert.Len(t, b, 0)
}

func TestUnsubscribeDropsEmptyEntry(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	ch := make(chan order.StatusEvent, 1)
	r.Subscribe("o1", ch)
	assert.Equal(t, 1, r.Observers("o1"))

	r.Unsubscribe("o1", ch)
	assert.Equal(t, 0, r.Observers("o1"))

	// Unsubscribing twice is harmless.
	r.Unsubscribe("o1", ch)
}

func TestSlowObserverIsPruned(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	full := make(chan order.StatusEvent) // unbuffered, nobody reading
	ok := make(chan order.StatusEvent, 4)
	r.Subscribe("o1", full)
	r.Subscribe("o1", ok)

	r.Publish(event("o1", order.StatusRouting))

	assert.Equal(t, 1, r.Observers("o1"), "blocked observer must be pruned")
	assert.Len(t, ok, 1)
}

func TestTerminalPublishDropsRegistration(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	ch := make(chan order.StatusEvent, 4)
	r.Subscribe("o1", ch)

	r.Publish(event("o1", order.StatusConfirmed))

	require.Len(t, ch, 1)
	assert.Equal(t, 0, r.Observers("o1"))
}

func TestLateSubscriberSeesNoHistory(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	early := make(chan order.StatusEvent, 8)
	r.Subscribe("o1", early)
	r.Publish(event("o1", order.StatusRouting))
	r.Publish(event("o1", order.StatusConfirmed))

	late := make(chan order.StatusEvent, 8)
	r.Subscribe("o1", late)

	// No replay, and nothing further for a terminal order.
	assert.Len(t, late, 0)
	assert.Len(t, early, 2)
}

func TestConcurrentSubscribePublish(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		orderID := fmt.Sprintf("o%d", i%4)
		go func(id string) {
			defer wg.Done()
			ch := make(chan order.StatusEvent, 8)
			r.Subscribe(id, ch)
			r.Unsubscribe(id, ch)
		}(orderID)
		go func(id string) {
			defer wg.Done()
			r.Publish(event(id, order.StatusRouting))
		}(orderID)
	}
	wg.Wait()
}
