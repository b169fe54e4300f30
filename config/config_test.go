package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PG_POOL_MAX", "2")
	t.Setenv("PG_URL", "postgres://u:p@localhost:5432/shop")
}

func TestNew_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "orders:retry", cfg.Redis.QueueKey)
	assert.Equal(t, "order.created", cfg.RabbitMQ.RoutingKey)
	assert.True(t, cfg.RunsRelay())
	assert.False(t, cfg.RunsConsumer())
	assert.Equal(t, time.Hour, cfg.Export.Interval())
	assert.Equal(t, 10*time.Minute, cfg.Export.MaxRetryDelay())
	assert.True(t, cfg.Export.ContinueOnError)
}

func TestNew_BothModes(t *testing.T) {
	setRequired(t)
	t.Setenv("WORKER_MODE", "both")

	cfg, err := New()
	require.NoError(t, err)

	assert.True(t, cfg.RunsRelay())
	assert.True(t, cfg.RunsConsumer())
}

func TestNew_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"worker mode":      {"WORKER_MODE": "all"},
		"kafka no brokers": {"PUBLISHER_DRIVER": "kafka"},
		"idempotency":      {"IDEMPOTENCY_DRIVER": "mongo"},
		"export no url":    {"EXPORT_ENABLED": "true"},
	}

	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range vars {
				t.Setenv(k, v)
			}

			_, err := New()
			assert.Error(t, err)
		})
	}
}
