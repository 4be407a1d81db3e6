package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/valuescreen/pkg/logger"
)

// Store is a byte-blob cache backend. A miss is (nil, false, nil); errors
// are reserved for backend failures.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key builds the canonical cache key for a source payload.
func Key(source, ticker string, asOf time.Time) string {
	return fmt.Sprintf("%s:%s:%s", source, ticker, asOf.Format("2006-01-02"))
}

// Cache is a read-through wrapper: concurrent callers for the same key share
// one fetch, and a backend failure degrades to fetching directly rather than
// failing the request.
type Cache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *logger.Logger
}

func New(store Store, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{store: store, ttl: ttl, logger: log}
}

// GetOrFetch returns the cached payload for key, or runs fetch once across
// all concurrent callers and stores the result.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if val, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("cache read failed, fetching directly")
	} else if ok {
		return val, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A racing caller may have filled the key while we queued.
		if val, ok, err := c.store.Get(ctx, key); err == nil && ok {
			return val, nil
		}
		val, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(ctx, key, val, c.ttl); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("cache write failed")
		}
		return val, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate drops one key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}
