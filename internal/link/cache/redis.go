// Package cache кэширует ссылки по короткому коду в Redis.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"couponhub/internal/link"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*RedisCache)

func WithPrefix(prefix string) Option {
	return func(c *RedisCache) { c.prefix = strings.Trim(prefix, ":") }
}

func WithTTL(d time.Duration) Option {
	return func(c *RedisCache) { c.ttl = d }
}

// NewRedisCache с nil-клиентом возвращает кэш, который ничего не хранит.
func NewRedisCache(rdb *redis.Client, opts ...Option) *RedisCache {
	c := &RedisCache{
		rdb:    rdb,
		prefix: "link:code",
		ttl:    time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClient разбирает redis:// URL. Пустой URL - кэш выключен.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return rdb, nil
}

func (c *RedisCache) key(code string) string {
	return c.prefix + ":" + code
}

// Get возвращает nil, nil при промахе.
func (c *RedisCache) Get(ctx context.Context, code string) (*link.Link, error) {
	if c == nil || c.rdb == nil {
		return nil, nil
	}

	raw, err := c.rdb.Get(ctx, c.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}

	var l link.Link
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, errors.Wrap(err, "decode cached link")
	}
	return &l, nil
}

func (c *RedisCache) Set(ctx context.Context, l *link.Link) error {
	if c == nil || c.rdb == nil {
		return nil
	}

	ttl := c.ttlFor(l)
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(l)
	if err != nil {
		return errors.Wrap(err, "encode link")
	}
	return errors.Wrap(c.rdb.Set(ctx, c.key(l.ShortCode), raw, ttl).Err(), "redis set")
}

func (c *RedisCache) Delete(ctx context.Context, code string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return errors.Wrap(c.rdb.Del(ctx, c.key(code)).Err(), "redis del")
}

// ttlFor не даёт записи пережить саму ссылку.
func (c *RedisCache) ttlFor(l *link.Link) time.Duration {
	left := l.ExpiresAt.Sub(c.now())
	if left < c.ttl {
		return left
	}
	return c.ttl
}
