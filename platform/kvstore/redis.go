package kvstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldValue    = "v"
	fieldStoredAt = "t"
)

// RedisStore stores each key as a hash holding the value and its write time.
type RedisStore struct {
	client    redis.UniversalClient
	now       Clock
	retention time.Duration
}

// RedisOption customizes a RedisStore.
type RedisOption func(*RedisStore)

// WithClock overrides the clock used to stamp and judge values.
func WithClock(now Clock) RedisOption {
	return func(s *RedisStore) { s.now = now }
}

// WithRetention overrides DefaultRetention. Zero disables key expiry.
func WithRetention(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.retention = d }
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, now: time.Now, retention: DefaultRetention}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenRedis parses redisURL, applies the TLS policy and pings the server.
func OpenRedis(ctx context.Context, redisURL string, tlsInsecure bool) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.TLSConfig != nil && tlsInsecure {
		opt.TLSConfig = opt.TLSConfig.Clone()
		opt.TLSConfig.InsecureSkipVerify = true
	} else if tlsInsecure {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Put(ctx context.Context, key, value string) error {
	return s.put(ctx, key, value, s.retention)
}

// PutPermanent writes the value and clears any expiry left on the key.
func (s *RedisStore) PutPermanent(ctx context.Context, key, value string) error {
	return s.put(ctx, key, value, 0)
}

func (s *RedisStore) put(ctx context.Context, key, value string, retention time.Duration) error {
	stamp := strconv.FormatInt(s.now().UnixMilli(), 10)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldValue, value, fieldStoredAt, stamp)
		if retention > 0 {
			pipe.Expire(ctx, key, retention)
		} else {
			pipe.Persist(ctx, key)
		}
		return nil
	})
	return err
}

func (s *RedisStore) GetFresh(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	vals, err := s.client.HMGet(ctx, key, fieldValue, fieldStoredAt).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	value, okValue := vals[0].(string)
	rawStamp, okStamp := vals[1].(string)
	if !okValue || !okStamp {
		return "", false, nil
	}

	millis, err := strconv.ParseInt(rawStamp, 10, 64)
	if err != nil {
		// Unreadable stamp: treat as stale.
		_ = s.client.Del(ctx, key).Err()
		return "", false, nil
	}
	if isStale(time.UnixMilli(millis), s.now(), ttl) {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return value, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
