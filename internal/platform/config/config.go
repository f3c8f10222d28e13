package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "civicid/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	LogLevel      string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	WebhookToken  string

	Agent     AgentConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Linking   LinkingConfig
	RateLimit RateLimitConfig
}

// AgentConfig points at the Identus cloud agent.
type AgentConfig struct {
	URL             string
	APIKey          string
	Timeout         time.Duration
	InvitationLabel string
}

// DatabaseConfig selects the store backend. An empty URL keeps everything in memory.
type DatabaseConfig struct {
	URL          string
	Driver       string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig configures webhook de-duplication. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DedupeTTL    time.Duration
}

// KafkaConfig configures the domain event publisher. No brokers means events are only logged.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LinkingConfig tunes how long clients wait for a wallet to accept an invitation.
type LinkingConfig struct {
	PollInterval    time.Duration
	PollMaxAttempts int
}

// RateLimitConfig sets request budgets per minute. Zero disables a limit.
// Counters live in Redis when it is configured, otherwise in process.
type RateLimitConfig struct {
	PerIPPerMinute   int
	PerUserPerMinute int
}

const (
	DefaultAgentURL        = "http://localhost:8080/cloud-agent"
	DefaultInvitationLabel = "CivicChain Platform"
	DefaultEventsTopic     = "civicid.events"
	DefaultPollInterval    = 5 * time.Second
	DefaultPollAttempts    = 60
)

// FromEnv builds the server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	p := &parser{}
	cfg := Server{
		Addr:          stringOr("CIVICID_ADDR", ":8080"),
		LogLevel:      stringOr("LOG_LEVEL", "info"),
		JWTSigningKey: stringOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     os.Getenv("JWT_ISSUER"),
		JWTAudience:   os.Getenv("JWT_AUDIENCE"),
		WebhookToken:  os.Getenv("WEBHOOK_TOKEN"),
		Agent: AgentConfig{
			URL:             strings.TrimRight(stringOr("IDENTUS_CLOUD_AGENT_URL", DefaultAgentURL), "/"),
			APIKey:          os.Getenv("IDENTUS_API_KEY"),
			Timeout:         p.duration("IDENTUS_TIMEOUT", 10*time.Second),
			InvitationLabel: stringOr("IDENTUS_INVITATION_LABEL", DefaultInvitationLabel),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			Driver:       stringOr("DATABASE_DRIVER", "postgres"),
			MaxOpenConns: p.int("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: p.int("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			DedupeTTL:    p.duration("WEBHOOK_DEDUPE_TTL", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: strutil.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   stringOr("KAFKA_EVENTS_TOPIC", DefaultEventsTopic),
		},
		Linking: LinkingConfig{
			PollInterval:    p.duration("LINK_POLL_INTERVAL", DefaultPollInterval),
			PollMaxAttempts: p.int("LINK_POLL_MAX_ATTEMPTS", DefaultPollAttempts),
		},
		RateLimit: RateLimitConfig{
			PerIPPerMinute:   p.nonNegativeInt("RATE_LIMIT_PER_IP", 300),
			PerUserPerMinute: p.nonNegativeInt("RATE_LIMIT_PER_USER", 60),
		},
	}
	if p.err != nil {
		return Server{}, p.err
	}
	switch cfg.Database.Driver {
	case "postgres", "pgx":
	default:
		return Server{}, fmt.Errorf("DATABASE_DRIVER must be postgres or pgx, got %q", cfg.Database.Driver)
	}
	return cfg, nil
}

type parser struct {
	err error
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		if p.err == nil {
			p.err = fmt.Errorf("%s: invalid duration %q", key, raw)
		}
		return def
	}
	return d
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		if p.err == nil {
			p.err = fmt.Errorf("%s: invalid positive integer %q", key, raw)
		}
		return def
	}
	return n
}

func (p *parser) nonNegativeInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		if p.err == nil {
			p.err = fmt.Errorf("%s: invalid non-negative integer %q", key, raw)
		}
		return def
	}
	return n
}

func stringOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
