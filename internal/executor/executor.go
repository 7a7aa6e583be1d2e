// Package executor simulates trade settlement against a chosen venue.
package executor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexlify/dexrouter/internal/config"
)

// Settlement is the result of one successful execution attempt.
type Settlement struct {
	ID            string // opaque, unique per execution
	ExecutedPrice decimal.Decimal
}

// Executor settles an order at a venue for a quoted price. The caller is
// responsible for validating the realized price against the quote.
type Executor interface {
	Execute(ctx context.Context, venueName, orderID string, quotedPrice decimal.Decimal) (*Settlement, error)
}

// Simulated settles after a randomized delay with slippage drawn from a
// narrow band around the quoted price. It never rejects a trade.
type Simulated struct {
	minLatency   time.Duration
	maxLatency   time.Duration
	slippageBand float64
	logger       *zap.Logger
}

// NewSimulated builds the settlement simulator from configuration.
func NewSimulated(cfg config.ExecutorConfig, logger *zap.Logger) *Simulated {
	return &Simulated{
		minLatency:   cfg.MinLatency,
		maxLatency:   cfg.MaxLatency,
		slippageBand: cfg.SlippageBand,
		logger:       logger.Named("executor"),
	}
}

// Execute simulates on-chain settlement: it suspends for the configured
// latency range, applies a slippage factor centered on 1.0, and mints a fresh
// settlement identifier.
func (s *Simulated) Execute(ctx context.Context, venueName, orderID string, quotedPrice decimal.Decimal) (*Settlement, error) {
	d := s.minLatency
	if s.maxLatency > s.minLatency {
		d += time.Duration(mrand.Int63n(int64(s.maxLatency - s.minLatency + 1)))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	factor := 1 + (mrand.Float64()*2-1)*s.slippageBand
	executed := quotedPrice.Mul(decimal.NewFromFloat(factor))
	id := newSettlementID()

	s.logger.Debug("settlement complete",
		zap.String("order_id", orderID),
		zap.String("venue", venueName),
		zap.String("settlement_id", id),
		zap.String("executed_price", executed.String()))

	return &Settlement{ID: id, ExecutedPrice: executed}, nil
}

// newSettlementID mints a 64-character hex identifier resembling a
// transaction hash.
func newSettlementID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%064x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
