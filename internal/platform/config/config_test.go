package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"CIVICID_ADDR", "IDENTUS_CLOUD_AGENT_URL", "DATABASE_URL", "DATABASE_DRIVER", "KAFKA_BROKERS", "LINK_POLL_INTERVAL", "RATE_LIMIT_PER_IP", "RATE_LIMIT_PER_USER"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, DefaultAgentURL, cfg.Agent.URL)
	assert.Equal(t, DefaultInvitationLabel, cfg.Agent.InvitationLabel)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultEventsTopic, cfg.Kafka.Topic)
	assert.Equal(t, 5*time.Second, cfg.Linking.PollInterval)
	assert.Equal(t, 60, cfg.Linking.PollMaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Redis.DedupeTTL)
	assert.Equal(t, 300, cfg.RateLimit.PerIPPerMinute)
	assert.Equal(t, 60, cfg.RateLimit.PerUserPerMinute)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("IDENTUS_CLOUD_AGENT_URL", "https://agent.example.org/cloud-agent/")
	t.Setenv("IDENTUS_TIMEOUT", "3s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("DATABASE_DRIVER", "pgx")
	t.Setenv("LINK_POLL_MAX_ATTEMPTS", "5")
	t.Setenv("RATE_LIMIT_PER_IP", "0")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://agent.example.org/cloud-agent", cfg.Agent.URL)
	assert.Equal(t, 3*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Linking.PollMaxAttempts)
	assert.Zero(t, cfg.RateLimit.PerIPPerMinute, "zero disables the limit")
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Run("duration", func(t *testing.T) {
		t.Setenv("IDENTUS_TIMEOUT", "soon")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "IDENTUS_TIMEOUT")
	})

	t.Run("driver", func(t *testing.T) {
		t.Setenv("DATABASE_DRIVER", "sqlite")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "DATABASE_DRIVER")
	})

	t.Run("attempts", func(t *testing.T) {
		t.Setenv("LINK_POLL_MAX_ATTEMPTS", "0")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "LINK_POLL_MAX_ATTEMPTS")
	})

	t.Run("rate limit", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_PER_USER", "-1")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "RATE_LIMIT_PER_USER")
	})
}
