package session

import (
	"context"
	"errors"
	"time"

	"github.com/256dpi/xo"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store that keeps one Redis hash per session.
type RedisStore struct {
	client redis.UniversalClient
	expiry time.Duration
}

// NewRedisStore creates a redis backed store using the provided client.
// Sessions expire after the provided duration has passed since the last
// write.
func NewRedisStore(client redis.UniversalClient, expiry time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		expiry: expiry,
	}
}

// Set implements the Store interface.
func (s *RedisStore) Set(ctx context.Context, key, field, value string) error {
	// set field
	err := s.client.HSet(ctx, key, field, value).Err()
	if err != nil {
		return xo.W(err)
	}

	// reset expiry
	err = s.client.Expire(ctx, key, s.expiry).Err()
	if err != nil {
		return xo.W(err)
	}

	return nil
}

// Get implements the Store interface.
func (s *RedisStore) Get(ctx context.Context, key, field string) (string, error) {
	// get field
	value, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession.Wrap()
	} else if err != nil {
		return "", xo.W(err)
	}

	return value, nil
}

// Del implements the Store interface.
func (s *RedisStore) Del(ctx context.Context, key string, fields ...string) error {
	// remove whole session if no fields are given
	if len(fields) == 0 {
		return xo.W(s.client.Del(ctx, key).Err())
	}

	// remove fields
	return xo.W(s.client.HDel(ctx, key, fields...).Err())
}
