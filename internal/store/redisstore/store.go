package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	RDB *redis.Client
}

func New(addr, password string, db int) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	return &Store{RDB: rdb}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.RDB.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.RDB.Close()
}
