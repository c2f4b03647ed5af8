package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meetme/matchmaker/internal/config"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by GetJSON when the key does not exist.
var ErrMiss = errors.New("cache miss")

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// SetJSON stores v as JSON with a TTL.
func (c *RedisCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.Client.Set(ctx, key, b, ttl).Err()
}

// GetJSON loads key into v. A missing key returns ErrMiss.
func (c *RedisCache) GetJSON(ctx context.Context, key string, v any) error {
	b, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	} else if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// KeyForDraft generates Redis key for a user's registration draft
func (c *RedisCache) KeyForDraft(userID int64) string {
	return fmt.Sprintf("reg:draft:%d", userID)
}

// KeyForStats is the key of the cached admin statistics snapshot.
func (c *RedisCache) KeyForStats() string {
	return "admin:stats"
}
