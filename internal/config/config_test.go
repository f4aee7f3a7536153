package config

import (
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadLockAndKafkaSettings(t *testing.T) {
	t.Setenv("LOCK_TTL_SECONDS", "45")
	t.Setenv("LOCK_WAIT_MS", "-5")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("DATABASE_MIGRATE", "true")

	cfg := Load()
	if cfg.LockTTL != 45*time.Second {
		t.Fatalf("expected 45s lock ttl, got %s", cfg.LockTTL)
	}
	if cfg.LockWait != 2*time.Second {
		t.Fatalf("expected default lock wait for negative value, got %s", cfg.LockWait)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %#v", cfg.KafkaBrokers)
	}
	if !cfg.DatabaseMigrate {
		t.Fatalf("expected DATABASE_MIGRATE to be parsed")
	}
}

func TestAddress(t *testing.T) {
	if got := (Config{Port: "9090"}).Address(); got != ":9090" {
		t.Fatalf("unexpected address %q", got)
	}
}
