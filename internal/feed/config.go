// Package feed publishes committed ledger movements to Kafka so downstream
// consumers (dashboards, sync services, analytics) can follow the herd book
// without polling the database.
package feed

import (
	"errors"

	"github.com/herdbook-io/herdbook/internal/config"
)

const (
	defaultTopic = "herdbook.movements"
)

// ErrNoBrokers indicates the broker list is empty.
var ErrNoBrokers = errors.New("at least one Kafka broker is required")

// Config holds movement feed configuration.
type Config struct {
	// Brokers is the Kafka bootstrap broker list.
	Brokers []string

	// Topic receives one message per committed movement.
	Topic string
}

// LoadConfig loads feed configuration from environment variables.
// An empty HERDBOOK_KAFKA_BROKERS disables the feed; callers check
// Enabled() before constructing a publisher.
func LoadConfig() *Config {
	return &Config{
		Brokers: config.ParseCommaSeparatedList(config.GetEnvStr("HERDBOOK_KAFKA_BROKERS", "")),
		Topic:   config.GetEnvStr("HERDBOOK_KAFKA_TOPIC", defaultTopic),
	}
}

// Enabled reports whether the feed is configured.
func (c *Config) Enabled() bool {
	return len(c.Brokers) > 0
}

// Validate validates the feed configuration.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}

	return nil
}
