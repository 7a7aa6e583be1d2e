// Package api exposes the HTTP ingestion boundary and the WebSocket status
// stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nexlify/dexrouter/internal/broadcast"
	"github.com/nexlify/dexrouter/internal/config"
	"github.com/nexlify/dexrouter/internal/order"
	"github.com/nexlify/dexrouter/internal/worker"
)

// TaskSubmitter hands execution tasks to the worker pool.
type TaskSubmitter interface {
	Submit(t worker.Task) error
}

// Server wires the gin router and owns the http.Server lifecycle.
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	ledger   order.Ledger
	pool     TaskSubmitter
	registry *broadcast.Registry
	httpSrv  *http.Server
}

// NewServer builds the HTTP server and its routes.
func NewServer(
	cfg config.ServerConfig,
	logger *zap.Logger,
	ledger order.Ledger,
	pool TaskSubmitter,
	registry *broadcast.Registry,
) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger.Named("api"),
		ledger:   ledger,
		pool:     pool,
		registry: registry,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(s.logger, true))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/orders", s.createOrder)
		v1.GET("/orders/:id", s.getOrder)
	}
	r.GET("/ws/orders/:id", s.streamOrder)

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains connections within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}
