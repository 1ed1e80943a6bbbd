package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageMode != StorageMemory {
		t.Fatalf("storage mode = %q, want memory", cfg.StorageMode)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("brokers = %v, want none", cfg.KafkaBrokers)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("session ttl = %v", cfg.SessionTTL)
	}
	if len(cfg.RetryBackoff) != 3 || cfg.RetryBackoff[0] != time.Second {
		t.Fatalf("retry backoff = %v", cfg.RetryBackoff)
	}
	if cfg.S3PublicEndpoint != cfg.S3Endpoint {
		t.Fatalf("public endpoint should fall back to endpoint")
	}
	if cfg.KafkaGroupID != "karta-relay" || cfg.EventSource != "app://karta" {
		t.Fatalf("group = %q source = %q", cfg.KafkaGroupID, cfg.EventSource)
	}
}

func TestLoadDerivesInstanceRelayIdentity(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092")

	first, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.HasPrefix(first.KafkaGroupID, "karta-relay-") {
		t.Fatalf("group = %q", first.KafkaGroupID)
	}
	if !strings.HasPrefix(first.EventSource, "app://karta/") {
		t.Fatalf("source = %q", first.EventSource)
	}
	// Two instances starting from the same environment must not share a
	// consumer group or a source, or the relay degrades to one receiver
	// that drops everything as its own echo.
	if first.KafkaGroupID == second.KafkaGroupID {
		t.Fatalf("group id not instance-unique: %q", first.KafkaGroupID)
	}
	if first.EventSource == second.EventSource {
		t.Fatalf("event source not instance-unique: %q", first.EventSource)
	}
}

func TestLoadKeepsExplicitRelayIdentity(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092")
	t.Setenv("KAFKA_GROUP_ID", "fleet-relay")
	t.Setenv("EVENT_SOURCE", "app://karta/eu-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.KafkaGroupID != "fleet-relay" || cfg.EventSource != "app://karta/eu-1" {
		t.Fatalf("group = %q source = %q", cfg.KafkaGroupID, cfg.EventSource)
	}
}

func TestLoadMongoModeRequiresURI(t *testing.T) {
	t.Setenv("STORAGE_MODE", "mongo")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without MONGO_URI")
	}

	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageMode != StorageMongo || cfg.MongoURI == "" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsUnknownStorageMode(t *testing.T) {
	t.Setenv("STORAGE_MODE", "postgres")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown storage mode")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("STREAM_BUFFER", "128")
	t.Setenv("RETRY_BACKOFF", "100ms,1s")
	t.Setenv("S3_USE_SSL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.SessionTTL != 2*time.Hour || cfg.StreamBuffer != 128 {
		t.Fatalf("ttl = %v buffer = %d", cfg.SessionTTL, cfg.StreamBuffer)
	}
	if len(cfg.RetryBackoff) != 2 || cfg.RetryBackoff[0] != 100*time.Millisecond {
		t.Fatalf("backoff = %v", cfg.RetryBackoff)
	}
	if !cfg.S3UseSSL {
		t.Fatalf("use ssl not parsed")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}
