package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookstore-be/internal/catalog"
	"bookstore-be/internal/config"
	"bookstore-be/internal/logger"

	"github.com/redis/go-redis/v9"
)

const bookKeyPrefix = "book:"

// InitRedis connects to the configured redis and pings it.
func InitRedis(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.L().Info("Redis connection established")
	return rdb, nil
}

// BookCache stores books as JSON under book:<id>.
type BookCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewBookCache(rdb *redis.Client, ttl time.Duration) *BookCache {
	return &BookCache{rdb: rdb, ttl: ttl}
}

func bookKey(id string) string {
	return bookKeyPrefix + id
}

func (c *BookCache) GetBook(ctx context.Context, bookID string) (*catalog.Book, error) {
	data, err := c.rdb.Get(ctx, bookKey(bookID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, catalog.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var b catalog.Book
	if err := json.Unmarshal(data, &b); err != nil {
		// corrupt entry, treat as a miss
		_ = c.rdb.Del(ctx, bookKey(bookID)).Err()
		return nil, catalog.ErrCacheMiss
	}
	return &b, nil
}

func (c *BookCache) SetBook(ctx context.Context, b *catalog.Book) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, bookKey(b.ID), data, c.ttl).Err()
}

func (c *BookCache) DeleteBook(ctx context.Context, bookID string) error {
	return c.rdb.Del(ctx, bookKey(bookID)).Err()
}
