package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// JSONCache keeps a corpus snapshot under one key. It satisfies
// corpus.Cache.
type JSONCache[T any] struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

type envelope[T any] struct {
	RefreshedAt time.Time `json:"refreshed_at"`
	Items       []T       `json:"items"`
}

// NewJSONCache stores under "orgai:corpus:<name>". ttl 0 keeps it forever.
func NewJSONCache[T any](rdb redis.Cmdable, name string, ttl time.Duration) *JSONCache[T] {
	return &JSONCache[T]{rdb: rdb, key: "orgai:corpus:" + name, ttl: ttl}
}

func (c *JSONCache[T]) Key() string { return c.key }

func (c *JSONCache[T]) Load(ctx context.Context) ([]T, time.Time, error) {
	b, err := c.rdb.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, time.Time{}, ErrCacheMiss
		}
		return nil, time.Time{}, err
	}
	return decode[T](b)
}

func (c *JSONCache[T]) Save(ctx context.Context, items []T, refreshedAt time.Time) error {
	b, err := json.Marshal(envelope[T]{RefreshedAt: refreshedAt, Items: items})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key, b, c.ttl).Err()
}

func decode[T any](b []byte) ([]T, time.Time, error) {
	var env envelope[T]
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode cached corpus: %w", err)
	}
	return env.Items, env.RefreshedAt, nil
}
