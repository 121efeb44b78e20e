package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// Redis implements Cache over a Redis backend. All calls go through a
// circuit breaker so a flapping backend fails fast instead of stalling
// every request on connection timeouts.
type Redis struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
}

func NewRedis(addr, password string, db int) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "redis-cache",
			Timeout: 10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.breaker.Execute(func() (any, error) {
		b, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, ErrMiss
	}
	b, ok := val.([]byte)
	if !ok || b == nil {
		return nil, ErrMiss
	}
	return b, nil
}

func (r *Redis) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.client.Set(ctx, key, value, ttl).Err()
	})
	return err
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.client.Del(ctx, keys...).Err()
	})
	return err
}

func (r *Redis) ScanDelete(ctx context.Context, pattern string) error {
	_, err := r.breaker.Execute(func() (any, error) {
		iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, nil
		}
		return nil, r.client.Del(ctx, keys...).Err()
	})
	return err
}

// Client exposes the underlying connection for the notification store,
// which shares the Redis instance.
func (r *Redis) Client() *redis.Client { return r.client }
