// Package messaging publishes terminal order events to Kafka for external
// consumers.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/nexlify/dexrouter/internal/config"
	"github.com/nexlify/dexrouter/internal/order"
)

// Publisher writes confirmed/failed events to a topic, keyed by order id so
// one order's events stay on one partition.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher creates a Kafka publisher from configuration.
func NewPublisher(cfg config.KafkaConfig, logger *zap.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		Compression:  kafka.Snappy,
	}
	return &Publisher{writer: writer, logger: logger.Named("messaging")}
}

// PublishTerminal sends one terminal event in the status wire shape.
func (p *Publisher) PublishTerminal(ctx context.Context, ev order.StatusEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish terminal event: %w", err)
	}
	p.logger.Debug("terminal event published",
		zap.String("order_id", ev.OrderID),
		zap.String("status", string(ev.Status)))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
