package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nexlify/dexrouter/internal/api"
	"github.com/nexlify/dexrouter/internal/broadcast"
	"github.com/nexlify/dexrouter/internal/config"
	"github.com/nexlify/dexrouter/internal/database"
	"github.com/nexlify/dexrouter/internal/executor"
	"github.com/nexlify/dexrouter/internal/messaging"
	"github.com/nexlify/dexrouter/internal/order"
	"github.com/nexlify/dexrouter/internal/router"
	"github.com/nexlify/dexrouter/internal/venue"
	"github.com/nexlify/dexrouter/internal/worker"
	"github.com/nexlify/dexrouter/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// Order ledger
	db, err := database.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := order.AutoMigrate(db); err != nil {
		zapLogger.Fatal("Failed to migrate order ledger", zap.Error(err))
	}

	// Optional Redis read cache
	var cache *redis.Client
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			zapLogger.Warn("Redis not available, proceeding without cache", zap.Error(err))
		} else {
			cache = rdb
			zapLogger.Info("Redis cache initialized")
		}
		cancel()
	}
	ledger := order.NewGormLedger(db, zapLogger, cache)

	// Optional Kafka terminal event publisher
	var publisher worker.TerminalPublisher
	var kafkaPub *messaging.Publisher
	if cfg.Kafka.Enabled {
		kafkaPub = messaging.NewPublisher(cfg.Kafka, zapLogger)
		publisher = kafkaPub
		zapLogger.Info("Kafka terminal event publisher enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// Execution pipeline
	venues := make([]venue.QuoteSource, 0, len(cfg.Venues))
	for _, vc := range cfg.Venues {
		venues = append(venues, venue.NewSimulated(vc))
	}
	routingEngine := router.NewEngine(venues, zapLogger)
	settler := executor.NewSimulated(cfg.Executor, zapLogger)
	registry := broadcast.NewRegistry(zapLogger)
	pool := worker.NewPool(cfg.Worker, ledger, routingEngine, settler, registry, publisher, zapLogger)

	poolCtx, poolCancel := context.WithCancel(context.Background())
	pool.Start(poolCtx)

	server := api.NewServer(cfg.Server, zapLogger, ledger, pool, registry)
	go func() {
		if err := server.Run(); err != nil {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down")

	if err := server.Shutdown(context.Background()); err != nil {
		zapLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	pool.Stop()
	poolCancel()
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			zapLogger.Error("Kafka publisher close failed", zap.Error(err))
		}
	}
	zapLogger.Info("Shutdown complete")
}
