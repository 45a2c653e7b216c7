package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDisabledByDefault(t *testing.T) {
	cfg := LoadConfig()

	assert.False(t, cfg.Enabled())
	assert.Equal(t, defaultTopic, cfg.Topic)
	assert.ErrorIs(t, cfg.Validate(), ErrNoBrokers)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("HERDBOOK_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("HERDBOOK_KAFKA_TOPIC", "farm.movements")

	cfg := LoadConfig()

	assert.True(t, cfg.Enabled())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.Equal(t, "farm.movements", cfg.Topic)
	assert.NoError(t, cfg.Validate())
}
