// Package worker drives queued orders through the execution pipeline with a
// bounded pool of concurrent slots.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexlify/dexrouter/internal/broadcast"
	"github.com/nexlify/dexrouter/internal/config"
	"github.com/nexlify/dexrouter/internal/executor"
	"github.com/nexlify/dexrouter/internal/order"
	"github.com/nexlify/dexrouter/internal/router"
	"github.com/nexlify/dexrouter/pkg/metrics"
)

// Task is one queued order execution.
type Task struct {
	OrderID  uuid.UUID
	TokenIn  string
	TokenOut string
	Amount   decimal.Decimal
	Kind     string
}

// FailedTask is a task retained after exhausting its attempts, kept for
// operator inspection.
type FailedTask struct {
	Task     Task
	Err      error
	Attempts int
	FailedAt time.Time
}

// Router selects a venue for an order.
type Router interface {
	Route(ctx context.Context, tokenIn, tokenOut string, amount decimal.Decimal) (*router.Decision, error)
}

// TerminalPublisher receives terminal events for external consumers. It is
// optional; a nil publisher is skipped.
type TerminalPublisher interface {
	PublishTerminal(ctx context.Context, ev order.StatusEvent) error
}

// Pool runs a fixed number of execution slots. Each slot owns one order at a
// time and is the only component that mutates its status.
type Pool struct {
	cfg       config.WorkerConfig
	ledger    order.Ledger
	router    Router
	executor  executor.Executor
	registry  *broadcast.Registry
	publisher TerminalPublisher
	logger    *zap.Logger
	tolerance decimal.Decimal

	tasks chan Task
	wg    sync.WaitGroup

	mu     sync.Mutex
	failed map[string]FailedTask
	closed bool
}

// NewPool wires the pipeline. publisher may be nil.
func NewPool(
	cfg config.WorkerConfig,
	ledger order.Ledger,
	rt Router,
	ex executor.Executor,
	registry *broadcast.Registry,
	publisher TerminalPublisher,
	logger *zap.Logger,
) *Pool {
	return &Pool{
		cfg:       cfg,
		ledger:    ledger,
		router:    rt,
		executor:  ex,
		registry:  registry,
		publisher: publisher,
		logger:    logger.Named("worker"),
		tolerance: decimal.NewFromFloat(cfg.SlippageTolerance),
		tasks:     make(chan Task, cfg.QueueSize),
		failed:    make(map[string]FailedTask),
	}
}

// Start launches the worker slots. They run until ctx is cancelled and the
// queue has drained.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.runSlot(ctx)
	}
	p.logger.Info("worker pool started", zap.Int("concurrency", p.cfg.Concurrency))
}

// Stop closes the queue and waits for in-flight orders to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Submit enqueues one execution task. It fails fast when the queue is full
// rather than blocking the ingestion path.
func (p *Pool) Submit(t Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("worker pool is stopped")
	}
	p.mu.Unlock()

	select {
	case p.tasks <- t:
		return nil
	default:
		return fmt.Errorf("execution queue full")
	}
}

// FailedTasks returns a snapshot of tasks that exhausted their retries.
func (p *Pool) FailedTasks() []FailedTask {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]FailedTask, 0, len(p.failed))
	for _, ft := range p.failed {
		out = append(out, ft)
	}
	return out
}

func (p *Pool) runSlot(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			p.process(ctx, t)
		}
	}
}

// process drives one order to a terminal status, retrying the full pipeline
// on failure with exponential backoff. Intermediate attempt failures are
// logged but not surfaced to observers; only the final outcome is.
func (p *Pool) process(ctx context.Context, t Task) {
	start := time.Now()
	cur := order.StatusPending

	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		lastErr = p.attempt(ctx, t, &cur)
		if lastErr == nil {
			metrics.OrdersCompleted.WithLabelValues(string(order.StatusConfirmed)).Inc()
			metrics.PipelineLatency.Observe(time.Since(start).Seconds())
			return
		}
		if errors.Is(lastErr, context.Canceled) {
			p.logger.Warn("execution abandoned on shutdown", zap.String("order_id", t.OrderID.String()))
			return
		}
		p.logger.Warn("execution attempt failed",
			zap.String("order_id", t.OrderID.String()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.cfg.MaxAttempts),
			zap.Error(lastErr))
		if attempt < p.cfg.MaxAttempts {
			metrics.ExecutionRetries.Inc()
			// 500ms, 1s, 2s, ... between attempts.
			backoff := p.cfg.BackoffBase << (attempt - 1)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}

	if err := p.advance(ctx, t.OrderID, &cur, order.Failed(failureMessage(lastErr))); err != nil {
		p.logger.Error("failed to record terminal failure",
			zap.String("order_id", t.OrderID.String()), zap.Error(err))
	}
	p.mu.Lock()
	p.failed[t.OrderID.String()] = FailedTask{
		Task:     t,
		Err:      lastErr,
		Attempts: p.cfg.MaxAttempts,
		FailedAt: time.Now(),
	}
	p.mu.Unlock()
	metrics.OrdersCompleted.WithLabelValues(string(order.StatusFailed)).Inc()
	metrics.PipelineLatency.Observe(time.Since(start).Seconds())
}

// attempt runs the full pipeline once: route, validate kind, execute, check
// slippage. Quotes and simulated settlement are not safe to resume, so every
// attempt restarts from routing.
func (p *Pool) attempt(ctx context.Context, t Task, cur *order.Status) error {
	if err := p.advance(ctx, t.OrderID, cur, order.Routing()); err != nil {
		return err
	}

	dec, err := p.router.Route(ctx, t.TokenIn, t.TokenOut, t.Amount)
	if err != nil {
		return err
	}

	if err := p.advance(ctx, t.OrderID, cur, order.Building(dec.Venue)); err != nil {
		return err
	}

	if t.Kind != order.KindMarket {
		return fmt.Errorf("%w: %q", order.ErrUnsupportedOrderKind, t.Kind)
	}

	if err := p.advance(ctx, t.OrderID, cur, order.Submitted()); err != nil {
		return err
	}

	quoted := dec.Quote.Price
	settlement, err := p.executor.Execute(ctx, dec.Venue, t.OrderID.String(), quoted)
	if err != nil {
		return err
	}

	slippage := settlement.ExecutedPrice.Sub(quoted).Abs().Div(quoted)
	if slippage.GreaterThan(p.tolerance) {
		return fmt.Errorf("%w: %s exceeds tolerance %s (quoted %s, executed %s)",
			order.ErrExcessiveSlippage,
			slippage.StringFixed(4), p.tolerance.String(),
			quoted.String(), settlement.ExecutedPrice.String())
	}

	return p.advance(ctx, t.OrderID, cur, order.Confirmed(dec.Venue, settlement.ID, settlement.ExecutedPrice))
}

// advance persists the transition and broadcasts the resulting state. A
// transition the order has already reached (a retry re-running the pipeline)
// is skipped, so observers never see a status repeat or move backwards. The
// broadcast is built from the persisted row, never from in-flight values.
func (p *Pool) advance(ctx context.Context, id uuid.UUID, cur *order.Status, tr order.Transition) error {
	if cur.AtOrAfter(tr.Status) {
		return nil
	}
	o, err := p.ledger.ApplyTransition(ctx, id, tr)
	if err != nil {
		return err
	}
	*cur = o.Status

	ev := o.Event()
	p.registry.Publish(ev)
	if o.Status.Terminal() && p.publisher != nil {
		if err := p.publisher.PublishTerminal(ctx, ev); err != nil {
			p.logger.Warn("terminal event publish failed",
				zap.String("order_id", id.String()), zap.Error(err))
		}
	}
	return nil
}

// failureMessage reduces the last attempt's error to a short human-readable
// summary for the failed event.
func failureMessage(err error) string {
	if err == nil {
		return "execution failed"
	}
	return err.Error()
}
