package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger is the durable source of truth for orders. ApplyTransition is the
// single write path the worker pool uses per status change.
type Ledger interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	ApplyTransition(ctx context.Context, id uuid.UUID, t Transition) (*Order, error)
}

const cacheTTL = 30 * time.Second

// orderRow is the database representation of an Order. Optional fields are
// pointers so that NULL distinguishes "never set" from a zero value.
type orderRow struct {
	ID            string `gorm:"primaryKey;size:36"`
	TokenIn       string `gorm:"size:16;not null"`
	TokenOut      string `gorm:"size:16;not null"`
	Amount        float64
	Kind          string `gorm:"size:16"`
	Status        string `gorm:"size:16;index"`
	Venue         *string
	SettlementID  *string
	ErrorMessage  *string
	ExecutedPrice *float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (orderRow) TableName() string { return "orders" }

// AutoMigrate creates or updates the orders table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&orderRow{})
}

// GormLedger implements Ledger using GORM, with an optional Redis read cache.
type GormLedger struct {
	db     *gorm.DB
	logger *zap.Logger
	cache  *redis.Client // nil disables caching
}

// NewGormLedger creates a GORM-backed ledger. cache may be nil.
func NewGormLedger(db *gorm.DB, logger *zap.Logger, cache *redis.Client) *GormLedger {
	return &GormLedger{db: db, logger: logger.Named("ledger"), cache: cache}
}

// Create inserts a new order row.
func (l *GormLedger) Create(ctx context.Context, o *Order) error {
	row := toRow(o)
	if err := l.db.WithContext(ctx).Create(row).Error; err != nil {
		l.logger.Error("failed to create order", zap.Error(err), zap.String("order_id", o.ID.String()))
		return fmt.Errorf("failed to create order: %w", err)
	}
	l.cacheSet(ctx, o)
	return nil
}

// Get retrieves an order, consulting the cache first when available.
func (l *GormLedger) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	if o := l.cacheGet(ctx, id); o != nil {
		return o, nil
	}
	var row orderRow
	if err := l.db.WithContext(ctx).Where("id = ?", id.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	o, err := fromRow(&row)
	if err != nil {
		return nil, err
	}
	l.cacheSet(ctx, o)
	return o, nil
}

// ApplyTransition validates the state machine edge, persists the new status
// together with any newly-known fields, and returns the updated order. Fields
// already set in the row are never overwritten; unspecified fields are left
// untouched. The returned order is what callers must broadcast from, so that
// observers only ever see durable state.
func (l *GormLedger) ApplyTransition(ctx context.Context, id uuid.UUID, t Transition) (*Order, error) {
	var row orderRow
	if err := l.db.WithContext(ctx).Where("id = ?", id.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load order for transition: %w", err)
	}

	if !CanTransition(Status(row.Status), t.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, row.Status, t.Status)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     string(t.Status),
		"updated_at": now,
	}
	if t.Venue != "" && row.Venue == nil {
		updates["venue"] = t.Venue
		row.Venue = &t.Venue
	}
	if t.SettlementID != "" && row.SettlementID == nil {
		updates["settlement_id"] = t.SettlementID
		row.SettlementID = &t.SettlementID
	}
	if t.ErrorMessage != "" && row.ErrorMessage == nil {
		updates["error_message"] = t.ErrorMessage
		row.ErrorMessage = &t.ErrorMessage
	}
	if !t.ExecutedPrice.IsZero() && row.ExecutedPrice == nil {
		price := t.ExecutedPrice.InexactFloat64()
		updates["executed_price"] = price
		row.ExecutedPrice = &price
	}

	if err := l.db.WithContext(ctx).Model(&orderRow{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
		l.logger.Error("failed to apply transition",
			zap.Error(err),
			zap.String("order_id", row.ID),
			zap.String("status", string(t.Status)))
		return nil, fmt.Errorf("failed to apply transition: %w", err)
	}
	row.Status = string(t.Status)
	row.UpdatedAt = now

	o, err := fromRow(&row)
	if err != nil {
		return nil, err
	}
	l.cacheSet(ctx, o)
	l.logger.Debug("transition applied",
		zap.String("order_id", row.ID),
		zap.String("status", string(t.Status)))
	return o, nil
}

func (l *GormLedger) cacheKey(id string) string { return "order:" + id }

func (l *GormLedger) cacheGet(ctx context.Context, id uuid.UUID) *Order {
	if l.cache == nil {
		return nil
	}
	data, err := l.cache.Get(ctx, l.cacheKey(id.String())).Bytes()
	if err != nil {
		return nil
	}
	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil
	}
	return &o
}

func (l *GormLedger) cacheSet(ctx context.Context, o *Order) {
	if l.cache == nil {
		return
	}
	data, err := json.Marshal(o)
	if err != nil {
		return
	}
	if err := l.cache.Set(ctx, l.cacheKey(o.ID.String()), data, cacheTTL).Err(); err != nil {
		l.logger.Debug("cache set failed", zap.Error(err), zap.String("order_id", o.ID.String()))
	}
}

func toRow(o *Order) *orderRow {
	row := &orderRow{
		ID:        o.ID.String(),
		TokenIn:   o.TokenIn,
		TokenOut:  o.TokenOut,
		Amount:    o.Amount.InexactFloat64(),
		Kind:      o.Kind,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if o.Venue != "" {
		row.Venue = &o.Venue
	}
	if o.SettlementID != "" {
		row.SettlementID = &o.SettlementID
	}
	if o.ErrorMessage != "" {
		row.ErrorMessage = &o.ErrorMessage
	}
	if !o.ExecutedPrice.IsZero() {
		price := o.ExecutedPrice.InexactFloat64()
		row.ExecutedPrice = &price
	}
	return row
}

func fromRow(row *orderRow) (*Order, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid order id in ledger: %w", err)
	}
	o := &Order{
		ID:        id,
		TokenIn:   row.TokenIn,
		TokenOut:  row.TokenOut,
		Amount:    decimal.NewFromFloat(row.Amount),
		Kind:      row.Kind,
		Status:    Status(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.Venue != nil {
		o.Venue = *row.Venue
	}
	if row.SettlementID != nil {
		o.SettlementID = *row.SettlementID
	}
	if row.ErrorMessage != nil {
		o.ErrorMessage = *row.ErrorMessage
	}
	if row.ExecutedPrice != nil {
		o.ExecutedPrice = decimal.NewFromFloat(*row.ExecutedPrice)
	}
	return o, nil
}
