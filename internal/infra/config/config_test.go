package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staypay/internal/infra/config"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "STORE_DRIVER", "KAFKA_BROKERS", "IDEMP_TTL", "RETRY_BACKOFF", "GRPC_ADDR"} {
		t.Setenv(key, "")
	}

	cfg, err := config.FromEnv()

	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, config.DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 5*time.Second, cfg.PersistenceTimeout)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.False(t, cfg.KafkaEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@localhost/staypay?sslmode=disable")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LOCK_TTL", "3s")
	t.Setenv("RETRY_BACKOFF", "100ms,2s")

	cfg, err := config.FromEnv()

	require.NoError(t, err)
	assert.Equal(t, config.DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.LockTTL)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 2 * time.Second}, cfg.RetryBackoff)
	assert.True(t, cfg.KafkaEnabled())
}

func TestFromEnv_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":      {"PERSISTENCE_TIMEOUT": "soon"},
		"negative duration": {"LOCK_TTL": "-1s"},
		"bad backoff":       {"RETRY_BACKOFF": "1s,later"},
		"unknown driver":    {"STORE_DRIVER": "cassandra"},
		"mongo without uri": {"STORE_DRIVER": "mongo", "MONGO_URI": ""},
		"postgres no dsn":   {"STORE_DRIVER": "postgres", "POSTGRES_DSN": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := config.FromEnv()
			assert.Error(t, err)
		})
	}
}
