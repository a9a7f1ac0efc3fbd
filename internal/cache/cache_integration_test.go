//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/secondchance/secondchance/internal/testutil"
)

func newTestCache(t *testing.T) (context.Context, *Cache) {
	t.Helper()
	ctx := context.Background()
	client := testutil.NewRedisClient(t)
	if err := testutil.FlushRedis(ctx, client); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return ctx, NewWithClient(client, WithItemTTL(time.Minute))
}

func TestIntegrationCache_ItemRoundTrip(t *testing.T) {
	ctx, c := newTestCache(t)

	if _, err := c.GetItem(ctx, "7"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	item := testutil.NewTestItem(t, "lamp")
	item.ID = "7"
	if err := c.SetItem(ctx, item); err != nil {
		t.Fatalf("SetItem: %v", err)
	}

	got, err := c.GetItem(ctx, "7")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Name != "lamp" || got.AgeYears != item.AgeYears {
		t.Errorf("cached item mismatch: %+v", got)
	}

	if err := c.DeleteItem(ctx, "7"); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if _, err := c.GetItem(ctx, "7"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss after delete, got %v", err)
	}
}

func TestIntegrationCache_NegativeEntry(t *testing.T) {
	ctx, c := newTestCache(t)

	if err := c.SetItemNotFound(ctx, "99"); err != nil {
		t.Fatalf("SetItemNotFound: %v", err)
	}
	if _, err := c.GetItem(ctx, "99"); !errors.Is(err, ErrNegativeHit) {
		t.Fatalf("expected ErrNegativeHit, got %v", err)
	}

	item := testutil.NewTestItem(t, "chair")
	item.ID = "99"
	if err := c.SetItem(ctx, item); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if _, err := c.GetItem(ctx, "99"); err != nil {
		t.Errorf("SetItem should clear the negative entry, got %v", err)
	}
}

func TestIntegrationCache_RateLimit(t *testing.T) {
	ctx, c := newTestCache(t)

	const burst = 3
	for i := 0; i < burst; i++ {
		res, err := c.CheckIPRateLimit(ctx, "auth", "203.0.113.9", 1, burst)
		if err != nil {
			t.Fatalf("CheckIPRateLimit: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	res, err := c.CheckIPRateLimit(ctx, "auth", "203.0.113.9", 1, burst)
	if err != nil {
		t.Fatalf("CheckIPRateLimit: %v", err)
	}
	if res.Allowed {
		t.Error("request past burst should be rejected")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", res.RetryAfter)
	}
}
