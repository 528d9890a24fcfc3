// Package config builds explicit configuration structs from the environment.
// Only main reads the environment; every component takes its config struct at
// construction so tests can inject values directly.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// Postgres holds the connection string for the validation stores.
type Postgres struct {
	URL string
}

// Redis configures the duplicate-hash index client. An empty URL disables
// Redis; the in-memory index is used instead.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the decision event publisher. Empty brokers disable it.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Classifier configures the external model client. APIKey is required when
// classification is enabled; its absence is a fatal configuration error
// surfaced on the first classify call, never a retry.
type Classifier struct {
	APIKey      string
	BaseURL     string
	VisionModel string
	TextModel   string
	Timeout     time.Duration
}

// Secrets holds the credential sealing key (32 bytes, base64 in the env).
type Secrets struct {
	Key []byte
}

// Worker bounds queue processing.
type Worker struct {
	BatchSize    int
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	PollInterval time.Duration
}

// StageTimeouts fixes per-stage deadlines inside the pipeline. The upstream
// design left these open; they are explicit here so a hung classification
// call can only consume its own job's slot.
type StageTimeouts struct {
	Fetch    time.Duration
	Classify time.Duration
	Persist  time.Duration
	Job      time.Duration
}

// Config is the root configuration passed to main's wiring.
type Config struct {
	Server     Server
	Postgres   Postgres
	Redis      Redis
	Kafka      Kafka
	Classifier Classifier
	Secrets    Secrets
	Worker     Worker
	Stages     StageTimeouts
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr: envOr("DOCGATE_ADDR", ":8080"),
		},
		Postgres: Postgres{
			URL: os.Getenv("DOCGATE_POSTGRES_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("DOCGATE_REDIS_URL"),
			PoolSize:     envInt("DOCGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("DOCGATE_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("DOCGATE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("DOCGATE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("DOCGATE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("DOCGATE_KAFKA_BROKERS")),
			Topic:   envOr("DOCGATE_KAFKA_TOPIC", "document.validated"),
		},
		Classifier: Classifier{
			APIKey:      os.Getenv("DOCGATE_MODEL_API_KEY"),
			BaseURL:     envOr("DOCGATE_MODEL_BASE_URL", "https://api.openai.com/v1"),
			VisionModel: envOr("DOCGATE_MODEL_VISION", "gpt-4o-mini"),
			TextModel:   envOr("DOCGATE_MODEL_TEXT", "gpt-4o-mini"),
			Timeout:     envDuration("DOCGATE_MODEL_TIMEOUT", 30*time.Second),
		},
		Worker: Worker{
			BatchSize:    envInt("DOCGATE_WORKER_BATCH_SIZE", 10),
			MaxAttempts:  envInt("DOCGATE_WORKER_MAX_ATTEMPTS", 3),
			BackoffBase:  envDuration("DOCGATE_WORKER_BACKOFF_BASE", 30*time.Second),
			BackoffCap:   envDuration("DOCGATE_WORKER_BACKOFF_CAP", time.Hour),
			PollInterval: envDuration("DOCGATE_WORKER_POLL_INTERVAL", 30*time.Second),
		},
		Stages: StageTimeouts{
			Fetch:    envDuration("DOCGATE_STAGE_FETCH_TIMEOUT", 20*time.Second),
			Classify: envDuration("DOCGATE_STAGE_CLASSIFY_TIMEOUT", 30*time.Second),
			Persist:  envDuration("DOCGATE_STAGE_PERSIST_TIMEOUT", 5*time.Second),
			Job:      envDuration("DOCGATE_STAGE_JOB_TIMEOUT", 90*time.Second),
		},
	}

	if raw := os.Getenv("DOCGATE_SECRET_KEY"); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("decode DOCGATE_SECRET_KEY: %w", err)
		}
		cfg.Secrets.Key = key
	}

	return cfg, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(raw string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if part := raw[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
