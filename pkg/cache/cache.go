package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/uptimeoor/pkg/config"
	"github.com/ethpandaops/uptimeoor/pkg/models"
)

// ErrCacheMiss is returned when a key is not cached.
var ErrCacheMiss = errors.New("cache miss")

const pingTimeout = 2 * time.Second

// Cache keeps entities in Redis in their cache text form.
type Cache struct {
	log    logrus.FieldLogger
	cfg    *config.CacheConfig
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a Cache for the configured Redis server. Call Start
// before use.
func NewCache(log logrus.FieldLogger, cfg *config.CacheConfig) *Cache {
	return &Cache{
		log: log.WithField("component", "cache"),
		cfg: cfg,
	}
}

// Start connects to Redis and verifies the connection.
func (c *Cache) Start(ctx context.Context) error {
	ttl, err := c.cfg.TTLDuration()
	if err != nil {
		return err
	}

	c.ttl = ttl
	c.client = redis.NewClient(&redis.Options{
		Addr:     c.cfg.Address,
		Password: c.cfg.Password,
		DB:       c.cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := c.client.Ping(pingCtx).Err(); err != nil {
		_ = c.client.Close()
		c.client = nil

		return fmt.Errorf("connecting to redis at %s: %w", c.cfg.Address, err)
	}

	c.log.WithField("address", c.cfg.Address).Info("Cache connected")

	return nil
}

// Stop closes the Redis connection.
func (c *Cache) Stop() error {
	if c.client == nil {
		return nil
	}

	return c.client.Close()
}

func (c *Cache) key(id string) string {
	return c.cfg.Prefix + id
}

// Set caches e under id. A non-positive ttl uses the configured default.
func (c *Cache) Set(ctx context.Context, id string, e models.Entity, ttl time.Duration) error {
	text, err := models.StringifyForCache(e)
	if err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = c.ttl
	}

	if err := c.client.Set(ctx, c.key(id), text, ttl).Err(); err != nil {
		return fmt.Errorf("caching %s: %w", id, err)
	}

	return nil
}

// Delete evicts id. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("evicting %s: %w", id, err)
	}

	return nil
}

// Get loads the entity cached under id. ErrCacheMiss is returned when the
// key is absent.
func Get[T any, P interface {
	*T
	models.Entity
}](ctx context.Context, c *Cache, id string) (*T, error) {
	text, err := c.client.Get(ctx, c.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}

	if err != nil {
		return nil, fmt.Errorf("reading cached %s: %w", id, err)
	}

	v, err := models.ParseFromCache[T, P](text)
	if err != nil {
		return nil, fmt.Errorf("parsing cached %s: %w", id, err)
	}

	return v, nil
}
