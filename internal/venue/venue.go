// Package venue simulates quote sources for competing execution venues.
package venue

import (
	"context"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexlify/dexrouter/internal/config"
)

// Quote is one venue's answer for a token pair. It is ephemeral: produced
// fresh per routing attempt and never cached.
type Quote struct {
	Venue string
	Price decimal.Decimal // output-token-per-input-token
	Fee   decimal.Decimal // fraction in [0,1)
}

// EffectivePrice returns the price after fee deduction, used to compare venues.
func (q *Quote) EffectivePrice() decimal.Decimal {
	return q.Price.Mul(decimal.NewFromInt(1).Sub(q.Fee))
}

// QuoteSource produces quotes for one venue.
type QuoteSource interface {
	Name() string
	Quote(ctx context.Context, tokenIn, tokenOut string, amount decimal.Decimal) (*Quote, error)
}

// NormalizeToken upper-cases a token symbol and canonicalizes the native SOL
// alias to its wrapped form, so price derivation sees one identity per asset.
func NormalizeToken(symbol string) string {
	up := strings.ToUpper(strings.TrimSpace(symbol))
	if up == "SOL" {
		return "WSOL"
	}
	return up
}

// basePrices anchors well-known pairs; anything else derives a stable price
// from the pair identity.
var basePrices = map[string]float64{
	"WSOL/USDC": 150.0,
	"WSOL/USDT": 150.0,
	"WETH/USDC": 2600.0,
	"WBTC/USDC": 64000.0,
	"RAY/USDC":  2.4,
	"JUP/USDC":  0.95,
	"USDC/WSOL": 1.0 / 150.0,
}

// basePrice derives a deterministic base price for a normalized pair: the same
// pair always yields the same value across calls and venues.
func basePrice(tokenIn, tokenOut string) float64 {
	pair := tokenIn + "/" + tokenOut
	if p, ok := basePrices[pair]; ok {
		return p
	}
	h := fnv.New64a()
	h.Write([]byte(pair))
	// Spread unknown pairs over (0.1, 1000.1).
	return 0.1 + float64(h.Sum64()%100000)/100.0
}

// Simulated is a QuoteSource with randomized latency and per-venue price noise.
type Simulated struct {
	name       string
	fee        decimal.Decimal
	noiseBand  float64
	minLatency time.Duration
	maxLatency time.Duration
}

// NewSimulated builds a simulated venue from configuration.
func NewSimulated(cfg config.VenueConfig) *Simulated {
	return &Simulated{
		name:       cfg.Name,
		fee:        decimal.NewFromFloat(cfg.Fee),
		noiseBand:  cfg.NoiseBand,
		minLatency: cfg.MinLatency,
		maxLatency: cfg.MaxLatency,
	}
}

func (s *Simulated) Name() string { return s.name }

// Quote returns a quote after a randomized delay modeling network latency to
// the venue. The price is the pair's deterministic base perturbed by this
// venue's noise band. Amount does not move the price: simulated venues have
// unbounded depth.
func (s *Simulated) Quote(ctx context.Context, tokenIn, tokenOut string, amount decimal.Decimal) (*Quote, error) {
	if err := sleepRandom(ctx, s.minLatency, s.maxLatency); err != nil {
		return nil, err
	}

	in := NormalizeToken(tokenIn)
	out := NormalizeToken(tokenOut)
	noise := 1 + (rand.Float64()*2-1)*s.noiseBand
	price := decimal.NewFromFloat(basePrice(in, out) * noise)

	return &Quote{Venue: s.name, Price: price, Fee: s.fee}, nil
}

// sleepRandom suspends for a uniformly random duration in [min, max],
// honoring context cancellation.
func sleepRandom(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min + 1)))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
