package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/squeakhq/squeakd/internal/logutil"
)

type (
	// RedisStore keeps session records in redis under a common key prefix.
	// Expiry is enforced twice: redis evicts the key at its TTL, and
	// FindActive still compares the stored expiry against now so a lagging
	// eviction cannot extend a session.
	RedisStore struct {
		client *redis.Client
		prefix string
	}
)

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Insert(ctx context.Context, id string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: refusing to insert already-expired record %v", logutil.TokenDigest(id))
	}
	err := s.client.Set(ctx, s.key(id), strconv.FormatInt(expiresAt.UnixMilli(), 10), ttl).Err()
	if err != nil {
		return fmt.Errorf("unable to insert session record, cause %w", err)
	}
	return nil
}

func (s *RedisStore) FindActive(ctx context.Context, id string, now time.Time) (bool, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("unable to look up session record, cause %w", err)
	}
	expiresAt, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, fmt.Errorf("unable to parse session record, cause %w", err)
	}
	return now.UnixMilli() < expiresAt, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("unable to delete session record, cause %w", err)
	}
	return nil
}

// DeleteAll walks the key space under the store prefix and removes every
// record. Only used by the startup sweep, so the SCAN cost is irrelevant.
func (s *RedisStore) DeleteAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("unable to sweep session records, cause %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("unable to sweep session records, cause %w", err)
	}
	return nil
}
