// Package integration contains tests that exercise real external
// dependencies. Each test skips itself when its dependency (PostgreSQL,
// Redis) is unreachable, so the suite is safe to run anywhere.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/kavyarao/streamfilter/internal/auth/apikey"
	"github.com/kavyarao/streamfilter/internal/queryd/cache"
	"github.com/kavyarao/streamfilter/pkg/config"
	"github.com/kavyarao/streamfilter/pkg/postgres"
	pkgredis "github.com/kavyarao/streamfilter/pkg/redis"
)

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "streamfilter_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "streamfilter"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func skipIfNoRedis(t *testing.T) (*pkgredis.Client, config.RedisConfig) {
	t.Helper()
	cfg := config.RedisConfig{
		Addr:     envOrDefault("TEST_REDIS_ADDR", "localhost:6379"),
		PoolSize: 5,
		CacheTTL: 10 * time.Second,
	}
	client, err := pkgredis.NewClient(cfg)
	if err != nil {
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, cfg
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func TestAPIKeyLifecycle(t *testing.T) {
	db := skipIfNoPostgres(t)
	validator := apikey.NewValidator(db)
	ctx := context.Background()

	raw, err := validator.CreateKey(ctx, "integration-test", 50, nil)
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	t.Cleanup(func() { validator.RevokeKey(ctx, raw) })

	info, err := validator.Validate(ctx, raw)
	if err != nil {
		t.Fatalf("validate fresh key: %v", err)
	}
	if info.Name != "integration-test" || info.RateLimit != 50 {
		t.Errorf("unexpected key info: %+v", info)
	}

	if err := validator.RevokeKey(ctx, raw); err != nil {
		t.Fatalf("revoke key: %v", err)
	}
	if _, err := validator.Validate(ctx, raw); err != apikey.ErrInvalidKey {
		t.Errorf("validate revoked key: got %v, want ErrInvalidKey", err)
	}
}

func TestCompileCacheRoundTrip(t *testing.T) {
	client, cfg := skipIfNoRedis(t)
	c := cache.New(client, cfg)
	ctx := context.Background()

	if _, err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	computes := 0
	compute := func() (*cache.Entry, error) {
		computes++
		return &cache.Entry{}, nil
	}

	if _, hit, err := c.GetOrCompute(ctx, "movies on netflix", "movie", compute); err != nil || hit {
		t.Fatalf("first lookup: hit=%v err=%v", hit, err)
	}
	if _, hit, err := c.GetOrCompute(ctx, " MOVIES  on netflix ", "movie", compute); err != nil || !hit {
		t.Fatalf("normalized lookup should hit: hit=%v err=%v", hit, err)
	}
	if computes != 1 {
		t.Errorf("computes = %d, want 1", computes)
	}

	deleted, err := c.Invalidate(ctx)
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if deleted < 1 {
		t.Errorf("expected at least one key deleted, got %d", deleted)
	}
}
