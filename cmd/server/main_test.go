package main

import (
	"testing"
	"time"

	"stockroom/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", AccessTokenTTLMinutes: 60, AppEnv: "development"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigRejectsWildcardOriginInProduction(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:            "0123456789abcdef0123456789abcdef",
		AccessTokenTTLMinutes: 60,
		AppEnv:                "production",
		AllowedOrigin:         "*",
	})
	if err == nil {
		t.Fatalf("expected wildcard origin to be rejected in production")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:            "0123456789abcdef0123456789abcdef",
		AccessTokenTTLMinutes: 60,
		AppEnv:                "production",
		AllowedOrigin:         "https://stock.example.edu",
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidateLockConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{"local locks ignore ttl", config.Config{LockTTL: time.Second}, false},
		{"ttl shorter than request", config.Config{RedisAddr: "redis:6379", LockTTL: 5 * time.Second, LockWait: time.Second}, true},
		{"ttl equal to request", config.Config{RedisAddr: "redis:6379", LockTTL: 10 * time.Second, LockWait: time.Second}, true},
		{"ttl shorter than wait", config.Config{RedisAddr: "redis:6379", LockTTL: 20 * time.Second, LockWait: 30 * time.Second}, true},
		{"defaults", config.Config{RedisAddr: "redis:6379", LockTTL: 30 * time.Second, LockWait: 2 * time.Second}, false},
	}
	for _, tc := range cases {
		err := validateLockConfig(tc.cfg, 10*time.Second)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: expected error=%v, got %v", tc.name, tc.wantErr, err)
		}
	}
}
