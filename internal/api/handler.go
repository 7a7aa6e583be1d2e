package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexlify/dexrouter/internal/order"
	"github.com/nexlify/dexrouter/internal/worker"
)

type createOrderRequest struct {
	TokenIn  string  `json:"tokenIn" binding:"required"`
	TokenOut string  `json:"tokenOut" binding:"required"`
	Amount   float64 `json:"amount" binding:"required,gt=0"`
	Kind     string  `json:"kind"`
}

// createOrder accepts a market order, writes the pending ledger row, and
// enqueues exactly one execution task before responding.
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Kind == "" {
		req.Kind = order.KindMarket
	}

	now := time.Now()
	o := &order.Order{
		ID:        uuid.New(),
		TokenIn:   req.TokenIn,
		TokenOut:  req.TokenOut,
		Amount:    decimal.NewFromFloat(req.Amount),
		Kind:      req.Kind,
		Status:    order.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ledger.Create(c.Request.Context(), o); err != nil {
		s.logger.Error("failed to create order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create order"})
		return
	}

	task := worker.Task{
		OrderID:  o.ID,
		TokenIn:  o.TokenIn,
		TokenOut: o.TokenOut,
		Amount:   o.Amount,
		Kind:     o.Kind,
	}
	if err := s.pool.Submit(task); err != nil {
		s.logger.Error("failed to enqueue order", zap.Error(err), zap.String("order_id", o.ID.String()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "execution queue unavailable"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"orderId": o.ID.String()})
}

// getOrder reads an order back from the ledger.
func (s *Server) getOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	o, err := s.ledger.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		s.logger.Error("failed to read order", zap.Error(err), zap.String("order_id", id.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read order"})
		return
	}
	c.JSON(http.StatusOK, o)
}
