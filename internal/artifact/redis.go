package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "parley:artifact:"

// RedisStore keeps artifacts in redis with a native TTL, so retention
// needs no janitor and multiple relay instances can share one store.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Put(ctx context.Context, data []byte, kind Kind) (Ref, error) {
	ref := newRef()
	key := redisKeyPrefix + string(ref)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "kind", string(kind), "data", data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	return ref, nil
}

func (s *RedisStore) Get(ctx context.Context, ref Ref) ([]byte, Kind, error) {
	fields, err := s.client.HGetAll(ctx, redisKeyPrefix+string(ref)).Result()
	if err != nil {
		return nil, "", fmt.Errorf("fetch artifact: %w", err)
	}
	if len(fields) == 0 {
		return nil, "", ErrNotFound
	}
	return []byte(fields["data"]), Kind(fields["kind"]), nil
}

func (s *RedisStore) Delete(ctx context.Context, ref Ref) error {
	if err := s.client.Del(ctx, redisKeyPrefix+string(ref)).Err(); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
