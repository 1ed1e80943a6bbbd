package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config carries everything the process reads from its environment.
type Config struct {
	Env                string
	HTTPAddr           string
	StorageMode        string
	MongoURI           string
	MongoDB            string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaGroupID       string
	EventSource        string
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	SessionTTL         time.Duration
	StreamBuffer       int
	S3Endpoint         string
	S3PublicEndpoint   string
	S3AccessKey        string
	S3SecretKey        string
	S3Bucket           string
	S3UseSSL           bool
}

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
)

// Load parses configuration from the current environment. The memory
// storage mode needs no external services; mongo mode requires
// MONGO_URI. Kafka distribution is optional either way.
func Load() (Config, error) {
	var env envReader
	cfg := Config{
		Env:                env.str("APP_ENV", "dev"),
		HTTPAddr:           env.str("HTTP_ADDR", ":8080"),
		StorageMode:        strings.ToLower(env.str("STORAGE_MODE", StorageMemory)),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            env.str("MONGO_DB", "karta"),
		KafkaBrokers:       env.list("KAFKA_BROKERS", nil),
		KafkaTopicPrefix:   env.str("KAFKA_TOPIC_PREFIX", ""),
		KafkaGroupID:       env.str("KAFKA_GROUP_ID", "karta-relay"),
		EventSource:        env.str("EVENT_SOURCE", "app://karta"),
		IdempotencyTTL:     env.duration("IDEMP_TTL", 168*time.Hour),
		OutboxPollInterval: env.duration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
		RetryBackoff:       env.durations("RETRY_BACKOFF", "1s,5s,30s"),
		SessionTTL:         env.duration("SESSION_TTL", 24*time.Hour),
		StreamBuffer:       env.integer("STREAM_BUFFER", 64),
		S3Endpoint:         env.str("S3_ENDPOINT", "http://localhost:9000"),
		S3PublicEndpoint:   env.str("S3_PUBLIC_ENDPOINT", ""),
		S3AccessKey:        env.str("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        env.str("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:           env.str("S3_BUCKET", "karta-photos"),
		S3UseSSL:           env.boolean("S3_USE_SSL", false),
	}
	if env.err != nil {
		return Config{}, env.err
	}
	if cfg.S3PublicEndpoint == "" {
		cfg.S3PublicEndpoint = cfg.S3Endpoint
	}
	// The relay broadcasts to all instances only if each runs in its
	// own consumer group, and echo suppression only works if each
	// stamps its own source. Shared defaults would break both, so
	// derive per-instance values unless the operator pinned them.
	if len(cfg.KafkaBrokers) > 0 {
		suffix := instanceSuffix()
		if os.Getenv("KAFKA_GROUP_ID") == "" {
			cfg.KafkaGroupID += "-" + suffix
		}
		if os.Getenv("EVENT_SOURCE") == "" {
			cfg.EventSource += "/" + suffix
		}
	}
	switch cfg.StorageMode {
	case StorageMemory:
	case StorageMongo:
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORAGE_MODE=mongo")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_MODE %q", cfg.StorageMode)
	}
	return cfg, nil
}

func instanceSuffix() string {
	short := uuid.NewString()[:8]
	host, err := os.Hostname()
	if err != nil || host == "" {
		return short
	}
	return host + "-" + short
}

// envReader reads typed environment values and remembers the first
// parse failure, so Load can assemble the whole struct before checking.
type envReader struct {
	err error
}

func (r *envReader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (r *envReader) list(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	return strings.Split(raw, ",")
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.fail(fmt.Errorf("invalid %s duration: %w", key, err))
		return 0
	}
	return d
}

func (r *envReader) durations(key, def string) []time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		raw = def
	}
	var out []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			r.fail(fmt.Errorf("invalid %s component %q: %w", key, part, err))
			return nil
		}
		out = append(out, d)
	}
	return out
}

func (r *envReader) integer(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(fmt.Errorf("invalid %s integer: %w", key, err))
		return 0
	}
	return v
}

func (r *envReader) boolean(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true
	case "0", "f", "false", "no", "n", "off":
		return false
	default:
		r.fail(fmt.Errorf("invalid %s boolean: %q", key, raw))
		return false
	}
}

func (r *envReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}
