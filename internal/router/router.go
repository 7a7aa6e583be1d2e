// Package router selects the best execution venue for an order by comparing
// fee-adjusted quotes from all configured venues.
package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexlify/dexrouter/internal/order"
	"github.com/nexlify/dexrouter/internal/venue"
	"github.com/nexlify/dexrouter/pkg/metrics"
)

// Decision is the outcome of one routing attempt.
type Decision struct {
	Venue string
	Quote *venue.Quote
}

// Engine fans out to all venues concurrently and picks the one with the
// greatest effective price. Venue list order is the tie-break priority.
type Engine struct {
	venues []venue.QuoteSource
	logger *zap.Logger
}

// NewEngine creates a routing engine over the given venues.
func NewEngine(venues []venue.QuoteSource, logger *zap.Logger) *Engine {
	return &Engine{venues: venues, logger: logger.Named("router")}
}

// Route quotes every venue concurrently, waits for all of them, and returns
// the venue with the strictly greatest effective price. A slow venue delays
// the decision but is never excluded; a failed venue fails the whole attempt.
func (e *Engine) Route(ctx context.Context, tokenIn, tokenOut string, amount decimal.Decimal) (*Decision, error) {
	quotes := make([]*venue.Quote, len(e.venues))
	errs := make([]error, len(e.venues))

	var wg sync.WaitGroup
	for i, src := range e.venues {
		wg.Add(1)
		go func(i int, src venue.QuoteSource) {
			defer wg.Done()
			quotes[i], errs[i] = src.Quote(ctx, tokenIn, tokenOut, amount)
		}(i, src)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", order.ErrInvalidVenueQuote, e.venues[i].Name(), err)
		}
	}

	best := 0
	fields := make([]zap.Field, 0, len(quotes)+1)
	for i, q := range quotes {
		fields = append(fields, zap.String(q.Venue, q.EffectivePrice().String()))
		// Strictly greater wins; ties keep the earlier (higher priority) venue.
		if i > 0 && q.EffectivePrice().GreaterThan(quotes[best].EffectivePrice()) {
			best = i
		}
	}
	chosen := quotes[best]
	fields = append(fields, zap.String("winner", chosen.Venue))
	e.logger.Info("routing decision", fields...)
	metrics.RoutingDecisions.WithLabelValues(chosen.Venue).Inc()

	return &Decision{Venue: chosen.Venue, Quote: chosen}, nil
}
