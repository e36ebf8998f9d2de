package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KretovDmitry/order-store-service/internal/models/order"
	"github.com/KretovDmitry/order-store-service/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Cache key per order: order:{order_id} -> order JSON.
const keyOrder = "order:%s"

// Cache is a best-effort read cache for lookups by order ID.
// Every error is logged and swallowed: a broken cache degrades to
// plain repository reads, never to a failed request.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCache(rdb *redis.Client, ttl time.Duration, logger logger.Logger) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *Cache) Get(ctx context.Context, orderID string) (*order.Order, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, fmt.Sprintf(keyOrder, orderID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debugf("order cache get %q: %s", orderID, err)
		}
		return nil, false
	}

	o := new(order.Order)
	if err = json.Unmarshal(data, o); err != nil {
		c.logger.Debugf("order cache unmarshal %q: %s", orderID, err)
		return nil, false
	}

	return o, true
}

func (c *Cache) Set(ctx context.Context, o *order.Order) {
	if c == nil || c.rdb == nil {
		return
	}

	data, err := json.Marshal(o)
	if err != nil {
		c.logger.Debugf("order cache marshal %q: %s", o.OrderID, err)
		return
	}

	if err = c.rdb.Set(ctx, fmt.Sprintf(keyOrder, o.OrderID), data, c.ttl).Err(); err != nil {
		c.logger.Debugf("order cache set %q: %s", o.OrderID, err)
	}
}

func (c *Cache) Invalidate(ctx context.Context, orderID string) {
	if c == nil || c.rdb == nil {
		return
	}

	if err := c.rdb.Del(ctx, fmt.Sprintf(keyOrder, orderID)).Err(); err != nil {
		c.logger.Debugf("order cache del %q: %s", orderID, err)
	}
}
