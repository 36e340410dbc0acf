package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/orgai/internal/corpus"
)

// compile-time check against the corpus cache contract
var _ corpus.Cache[corpus.Document] = (*JSONCache[corpus.Document])(nil)

func TestDecode(t *testing.T) {
	items, at, err := decode[corpus.Document]([]byte(`{"refreshed_at":"2026-01-02T03:04:05Z","items":[{"id":"POL-1","name":"Leave"}]}`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Leave", items[0].Title)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), at.UTC())

	_, _, err = decode[corpus.Document]([]byte(`[`))
	assert.Error(t, err)
}

func TestJSONCache_Unreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	c := NewJSONCache[corpus.Document](rdb, "policy", 0)
	assert.Equal(t, "orgai:corpus:policy", c.Key())

	_, _, err := c.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.Error(t, c.Save(context.Background(), nil, time.Now()))
}
