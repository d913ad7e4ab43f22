package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const storageOpTimeout = 2 * time.Second

// Storage adapts a Redis client to fiber.Storage so Fiber middleware state
// such as CSRF tokens is shared between instances. Keys are namespaced by
// prefix and Reset only clears that namespace.
type Storage struct {
	rdb    *redis.Client
	prefix string
}

func NewStorage(rdb *redis.Client, prefix string) *Storage {
	return &Storage{rdb: rdb, prefix: prefix}
}

func (s *Storage) key(k string) string { return s.prefix + k }

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storageOpTimeout)
}

// Get returns nil without an error for a missing key.
func (s *Storage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	ctx, cancel := opContext()
	defer cancel()
	val, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// Set stores val; a zero exp keeps the key until it is deleted.
func (s *Storage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := opContext()
	defer cancel()
	return s.rdb.Set(ctx, s.key(key), val, exp).Err()
}

func (s *Storage) Delete(key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := opContext()
	defer cancel()
	return s.rdb.Del(ctx, s.key(key)).Err()
}

func (s *Storage) Reset() error {
	ctx, cancel := opContext()
	defer cancel()
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close is a no-op; the client is owned by whoever created it.
func (s *Storage) Close() error { return nil }
