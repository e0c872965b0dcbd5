package cache_test

import (
	"context"
	"os"
	"testing"

	"stockroom/internal/cache"
)

func setupTestCache(t *testing.T) (*cache.Cache, context.Context) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set — skipping integration test to protect live cache")
	}
	c := cache.New(addr)
	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("redis ping failed: %v", err)
	}
	return c, ctx
}

func TestCache_NilIsNoop(t *testing.T) {
	var c *cache.Cache
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Errorf("nil cache Ping: %v", err)
	}
	if got := c.GetOrderStatus(ctx, 1); got != "" {
		t.Errorf("nil cache GetOrderStatus = %q, want miss", got)
	}
	id, claimed, err := c.ClaimOrderCreate(ctx, "key-1")
	if err != nil || !claimed || id != 0 {
		t.Errorf("nil cache ClaimOrderCreate = (%d, %v, %v), want (0, true, nil)", id, claimed, err)
	}
	c.SetOrderStatus(ctx, 1, "PENDING")
	c.ConfirmOrderCreate(ctx, "key-1", 1)
	c.ReleaseOrderCreate(ctx, "key-1")
}

func TestCache_ClaimLifecycle(t *testing.T) {
	c, ctx := setupTestCache(t)
	defer c.Close()

	key := "test-claim-lifecycle"
	c.ReleaseOrderCreate(ctx, key)

	// First caller wins the claim.
	id, claimed, err := c.ClaimOrderCreate(ctx, key)
	if err != nil || !claimed || id != 0 {
		t.Fatalf("first claim = (%d, %v, %v), want (0, true, nil)", id, claimed, err)
	}

	// A racing duplicate sees the unconfirmed placeholder, not order 0.
	id, claimed, err = c.ClaimOrderCreate(ctx, key)
	if err != nil || claimed {
		t.Fatalf("duplicate claim = (%d, %v, %v), want unclaimed", id, claimed, err)
	}
	if id != 0 {
		t.Fatalf("duplicate claim before confirm returned order %d, want 0 placeholder", id)
	}

	// After confirmation the duplicate resolves to the created order.
	c.ConfirmOrderCreate(ctx, key, 42)
	id, claimed, err = c.ClaimOrderCreate(ctx, key)
	if err != nil || claimed || id != 42 {
		t.Fatalf("claim after confirm = (%d, %v, %v), want (42, false, nil)", id, claimed, err)
	}

	// Releasing frees the key for a fresh attempt.
	c.ReleaseOrderCreate(ctx, key)
	_, claimed, err = c.ClaimOrderCreate(ctx, key)
	if err != nil || !claimed {
		t.Fatalf("claim after release: claimed=%v err=%v, want claimed", claimed, err)
	}
	c.ReleaseOrderCreate(ctx, key)
}
