package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/herdbook-io/herdbook/internal/config"
	"github.com/herdbook-io/herdbook/internal/inventory"
	"github.com/herdbook-io/herdbook/internal/storage"
)

const publishTimeout = 10 * time.Second

// messageWriter abstracts *kafka.Writer so tests can capture messages
// without a broker.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits one Kafka message per committed ledger movement.
// Messages are keyed by balance ID so consumers see the movements of one
// (farm, category) pair in order.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher creates a Kafka-backed movement publisher.
func NewPublisher(cfg *Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feed configuration: %w", err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		// Movements arrive one at a time from commit hooks; batching would
		// only add latency.
		BatchSize: 1,
	}

	return &Publisher{
		writer: writer,
		topic:  cfg.Topic,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelDebug),
		})),
	}, nil
}

// Publish writes one message per movement. Returns the first write error.
func (p *Publisher) Publish(ctx context.Context, movements []*inventory.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(movements))

	for _, movement := range movements {
		value, err := json.Marshal(movement)
		if err != nil {
			return fmt.Errorf("failed to marshal movement %s: %w", movement.ID, err)
		}

		messages = append(messages, kafka.Message{
			Key:   []byte(movement.BalanceID),
			Value: value,
			Time:  movement.CreatedAt,
		})
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("failed to publish movements: %w", err)
	}

	return nil
}

// CommitHook adapts the publisher to the storage commit hook signature.
// The hook runs after the database transaction has committed, so publish
// failures cannot roll the ledger back; they are logged and the feed simply
// misses those movements. Consumers needing completeness reconcile against
// the movements endpoint.
func (p *Publisher) CommitHook() storage.CommitHook {
	return func(ctx context.Context, movements []*inventory.Movement) {
		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		if err := p.Publish(publishCtx, movements); err != nil {
			ids := make([]string, 0, len(movements))
			for _, movement := range movements {
				ids = append(ids, movement.ID)
			}

			p.logger.Error("failed to publish committed movements",
				slog.String("topic", p.topic),
				slog.Any("movement_ids", ids),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}

	return nil
}
