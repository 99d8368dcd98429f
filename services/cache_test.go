package services

import (
	"context"
	"testing"
	"time"

	"github.com/iEdgir01/traffic-manager/config"
)

func TestCacheServiceDisabled(t *testing.T) {
	cache, err := NewCacheService(config.RedisConfig{}, discardLogger())
	if err != nil {
		t.Fatalf("NewCacheService() error = %v", err)
	}
	if cache.Available() {
		t.Fatal("Available() = true without Redis configured")
	}

	ctx := context.Background()
	var dest map[string]string
	if found, err := cache.Get(ctx, "k", &dest); found || err != nil {
		t.Errorf("Get() = %v, %v", found, err)
	}
	if err := cache.Set(ctx, "k", "v", time.Second); err != nil {
		t.Errorf("Set() = %v", err)
	}
	if err := cache.Publish(ctx, AlertsChannel, AlertEvent{}); err != nil {
		t.Errorf("Publish() = %v", err)
	}
	if ps := cache.Subscribe(ctx, AlertsChannel); ps != nil {
		t.Error("Subscribe() should be nil without Redis")
	}
	release, ok, err := cache.Lock(ctx, "lock", time.Second)
	if !ok || err != nil {
		t.Errorf("Lock() = %v, %v; want acquired", ok, err)
	}
	release()
}

func TestCacheServiceNilReceiver(t *testing.T) {
	var cache *CacheService
	if cache.Available() {
		t.Fatal("nil cache reported available")
	}
	release, ok, err := cache.Lock(context.Background(), "lock", time.Second)
	if !ok || err != nil {
		t.Errorf("Lock() on nil cache = %v, %v", ok, err)
	}
	release()
	if err := cache.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestCacheServiceInvalidURL(t *testing.T) {
	if _, err := NewCacheService(config.RedisConfig{URL: "://bad"}, discardLogger()); err == nil {
		t.Error("expected error for invalid REDIS_URL")
	}
}
