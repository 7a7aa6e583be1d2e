package order

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusRouting, true},
		{StatusRouting, StatusBuilding, true},
		{StatusBuilding, StatusSubmitted, true},
		{StatusSubmitted, StatusConfirmed, true},
		{StatusPending, StatusFailed, true},
		{StatusRouting, StatusFailed, true},
		{StatusBuilding, StatusFailed, true},
		{StatusSubmitted, StatusFailed, true},

		// No skipping, no moving backwards.
		{StatusPending, StatusBuilding, false},
		{StatusPending, StatusConfirmed, false},
		{StatusRouting, StatusPending, false},
		{StatusSubmitted, StatusRouting, false},
		{StatusRouting, StatusRouting, false},

		// Terminal states have no outgoing edges.
		{StatusConfirmed, StatusFailed, false},
		{StatusConfirmed, StatusConfirmed, false},
		{StatusFailed, StatusRouting, false},
		{StatusFailed, StatusFailed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusConfirmed.Terminal())
	assert.True(t, StatusFailed.Terminal())
	for _, s := range []Status{StatusPending, StatusRouting, StatusBuilding, StatusSubmitted} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestStatusAtOrAfter(t *testing.T) {
	assert.True(t, StatusSubmitted.AtOrAfter(StatusRouting))
	assert.True(t, StatusRouting.AtOrAfter(StatusRouting))
	assert.False(t, StatusRouting.AtOrAfter(StatusBuilding))
	// failed and confirmed share the terminal rank
	assert.True(t, StatusFailed.AtOrAfter(StatusConfirmed))
}

func TestEventWireShape(t *testing.T) {
	id := uuid.New()
	base := Order{
		ID:        id,
		TokenIn:   "WSOL",
		TokenOut:  "USDC",
		Amount:    decimal.NewFromFloat(1.5),
		Kind:      KindMarket,
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("routing carries no optional fields", func(t *testing.T) {
		o := base
		o.Status = StatusRouting
		o.Venue = "Raydium" // set in the row, but not valid for this status

		raw, err := json.Marshal(o.Event())
		require.NoError(t, err)
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &m))

		assert.Equal(t, id.String(), m["orderId"])
		assert.Equal(t, "routing", m["status"])
		assert.NotContains(t, m, "dex")
		assert.NotContains(t, m, "txHash")
		assert.NotContains(t, m, "error")
		assert.NotContains(t, m, "executedPrice")
		_, err = time.Parse(time.RFC3339Nano, m["timestamp"].(string))
		assert.NoError(t, err)
	})

	t.Run("building carries the venue", func(t *testing.T) {
		o := base
		o.Status = StatusBuilding
		o.Venue = "Orca"

		raw, err := json.Marshal(o.Event())
		require.NoError(t, err)
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &m))

		assert.Equal(t, "Orca", m["dex"])
		assert.NotContains(t, m, "txHash")
	})

	t.Run("confirmed carries settlement fields", func(t *testing.T) {
		o := base
		o.Status = StatusConfirmed
		o.Venue = "Raydium"
		o.SettlementID = "abc123"
		o.ExecutedPrice = decimal.NewFromFloat(150.42)

		raw, err := json.Marshal(o.Event())
		require.NoError(t, err)
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &m))

		assert.Equal(t, "Raydium", m["dex"])
		assert.Equal(t, "abc123", m["txHash"])
		assert.InDelta(t, 150.42, m["executedPrice"].(float64), 1e-9)
		assert.NotContains(t, m, "error")
	})

	t.Run("failed carries the error summary", func(t *testing.T) {
		o := base
		o.Status = StatusFailed
		o.ErrorMessage = "excessive slippage: 0.0120 exceeds tolerance 0.01"

		raw, err := json.Marshal(o.Event())
		require.NoError(t, err)
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &m))

		assert.Equal(t, "failed", m["status"])
		assert.Contains(t, m["error"], "excessive slippage")
		assert.NotContains(t, m, "txHash")
		assert.NotContains(t, m, "executedPrice")
	})
}

func TestTransitionConstructors(t *testing.T) {
	tr := Confirmed("Raydium", "sid", decimal.NewFromFloat(150))
	assert.Equal(t, StatusConfirmed, tr.Status)
	assert.Equal(t, "Raydium", tr.Venue)
	assert.Equal(t, "sid", tr.SettlementID)
	assert.True(t, tr.ExecutedPrice.Equal(decimal.NewFromFloat(150)))
	assert.Empty(t, tr.ErrorMessage)

	tr = Failed("boom")
	assert.Equal(t, StatusFailed, tr.Status)
	assert.Equal(t, "boom", tr.ErrorMessage)
	assert.Empty(t, tr.Venue)
}
