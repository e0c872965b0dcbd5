package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key formats and TTLs. Order status is the hot read path (polled by
// storefronts), idempotency keys guard order creation retries.
const (
	keyOrderStatus     = "order_status:%d"
	keyIdemOrderCreate = "idem:order:create:%s"
)

var (
	ttlStatusCache = 5 * time.Minute
	ttlIdempotency = 24 * time.Hour
)

// Cache is a thin Redis wrapper. A nil *Cache is valid: every method becomes
// a no-op or a miss, so the application runs identically without Redis.
type Cache struct {
	rdb *redis.Client
}

func New(addr string) *Cache {
	if addr == "" {
		return nil
	}
	return &Cache{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

// GetOrderStatus returns the cached status, or "" on a miss. Errors read as
// misses; the database answer is always available behind this.
func (c *Cache) GetOrderStatus(ctx context.Context, orderID int) string {
	if c == nil {
		return ""
	}
	v, err := c.rdb.Get(ctx, fmt.Sprintf(keyOrderStatus, orderID)).Result()
	if err != nil {
		return ""
	}
	return v
}

func (c *Cache) SetOrderStatus(ctx context.Context, orderID int, status string) {
	if c == nil {
		return
	}
	_ = c.rdb.Set(ctx, fmt.Sprintf(keyOrderStatus, orderID), status, ttlStatusCache).Err()
}

func (c *Cache) InvalidateOrderStatus(ctx context.Context, orderID int) {
	if c == nil {
		return
	}
	_ = c.rdb.Del(ctx, fmt.Sprintf(keyOrderStatus, orderID)).Err()
}

// ClaimOrderCreate reserves an idempotency key for order creation. It returns
// claimed=true when this caller holds the claim and should proceed. When the
// key was used before, claimed is false and orderID is the created order, or
// 0 while the original creation is still in flight (unconfirmed placeholder).
func (c *Cache) ClaimOrderCreate(ctx context.Context, idemKey string) (orderID int, claimed bool, err error) {
	if c == nil || idemKey == "" {
		return 0, true, nil
	}
	key := fmt.Sprintf(keyIdemOrderCreate, idemKey)
	ok, err := c.rdb.SetNX(ctx, key, 0, ttlIdempotency).Result()
	if err != nil {
		// Redis down must not block order creation.
		return 0, true, nil
	}
	if ok {
		return 0, true, nil
	}
	id, err := c.rdb.Get(ctx, key).Int()
	if err != nil {
		return 0, true, nil
	}
	return id, false, nil
}

// ConfirmOrderCreate stores the created order id under the claimed key.
func (c *Cache) ConfirmOrderCreate(ctx context.Context, idemKey string, orderID int) {
	if c == nil || idemKey == "" {
		return
	}
	_ = c.rdb.Set(ctx, fmt.Sprintf(keyIdemOrderCreate, idemKey), orderID, ttlIdempotency).Err()
}

// ReleaseOrderCreate frees a claimed key after a failed creation so the
// client can retry.
func (c *Cache) ReleaseOrderCreate(ctx context.Context, idemKey string) {
	if c == nil || idemKey == "" {
		return
	}
	_ = c.rdb.Del(ctx, fmt.Sprintf(keyIdemOrderCreate, idemKey)).Err()
}
