// Package config builds runtime configuration from environment variables so
// main stays lean. Every knob has a development default; production overrides
// via STAGEPASS_* variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full server configuration.
type Config struct {
	Addr           string
	DatabaseURL    string
	JWTSigningKey  string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
	AdminToken     string

	Redis    RedisConfig
	Kafka    KafkaConfig
	Draw     DrawConfig
	Verifier VerifierConfig
}

// RedisConfig configures the go-redis client. An empty URL disables Redis
// and the draw service falls back to its in-process lock.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the outbox publisher. Empty brokers disable
// publishing; outbox rows then stay pending until a publisher comes up.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// DrawConfig holds draw engine knobs.
type DrawConfig struct {
	// PaymentGrace is how long a winner has to confirm before the sweeper
	// cancels the registration.
	PaymentGrace time.Duration
	// SweepInterval is how often the deadline sweeper runs.
	SweepInterval time.Duration
	// LockTTL bounds how long a crashed draw holds the Redis mutex.
	LockTTL time.Duration
}

// VerifierConfig points at the external identity verification service.
type VerifierConfig struct {
	BaseURL string
	Timeout time.Duration
}

// FromEnv reads configuration from the environment.
func FromEnv() Config {
	return Config{
		Addr:           envString("STAGEPASS_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("STAGEPASS_DATABASE_URL"),
		JWTSigningKey:  envString("STAGEPASS_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:      envString("STAGEPASS_JWT_ISSUER", "stagepass"),
		JWTAudience:    envString("STAGEPASS_JWT_AUDIENCE", "stagepass-api"),
		AccessTokenTTL: envDuration("STAGEPASS_ACCESS_TOKEN_TTL", time.Hour),
		AdminToken:     envString("STAGEPASS_ADMIN_TOKEN", "dev-admin-token"),
		Redis: RedisConfig{
			URL:          os.Getenv("STAGEPASS_REDIS_URL"),
			PoolSize:     envInt("STAGEPASS_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("STAGEPASS_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("STAGEPASS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("STAGEPASS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("STAGEPASS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("STAGEPASS_KAFKA_BROKERS")),
			Topic:   envString("STAGEPASS_KAFKA_TOPIC", "stagepass.registration-events"),
		},
		Draw: DrawConfig{
			PaymentGrace:  envDuration("STAGEPASS_PAYMENT_GRACE", 72*time.Hour),
			SweepInterval: envDuration("STAGEPASS_SWEEP_INTERVAL", time.Minute),
			LockTTL:       envDuration("STAGEPASS_DRAW_LOCK_TTL", 5*time.Minute),
		},
		Verifier: VerifierConfig{
			BaseURL: os.Getenv("STAGEPASS_VERIFIER_BASE_URL"),
			Timeout: envDuration("STAGEPASS_VERIFIER_TIMEOUT", 10*time.Second),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
