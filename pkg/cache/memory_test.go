package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(4)
	now := time.Unix(1_700_000_000, 0)
	mc.now = func() time.Time { return now }

	if err := mc.Set(ctx, "universe", `["BTCUSDT"]`, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := mc.Set(ctx, "short", "x", time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(time.Hour)
	if v, err := mc.Get(ctx, "universe"); err != nil || v != `["BTCUSDT"]` {
		t.Fatalf("zero ttl entry lost: %q %v", v, err)
	}
	if _, err := mc.Get(ctx, "short"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if mc.Len() != 1 {
		t.Fatalf("expired entry should be dropped on read, len=%d", mc.Len())
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(2)
	_ = mc.Set(ctx, "a", "1", 0)
	_ = mc.Set(ctx, "b", "2", 0)
	if _, err := mc.Get(ctx, "a"); err != nil {
		t.Fatalf("get a: %v", err)
	}
	_ = mc.Set(ctx, "c", "3", 0)

	if _, err := mc.Get(ctx, "b"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, err := mc.Get(ctx, k); err != nil {
			t.Fatalf("%s missing: %v", k, err)
		}
	}
	_ = mc.Delete(ctx, "a", "missing")
	if mc.Len() != 1 {
		t.Fatalf("expected 1 entry after delete, got %d", mc.Len())
	}
}

func TestGenerateKeyWithParams(t *testing.T) {
	if got := GenerateKeyWithParams("candles", "BTCUSDT", "3m", 100); got != "candles:BTCUSDT:3m:100" {
		t.Fatalf("unexpected key %q", got)
	}
}
