package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/allegro/bigcache/v3"
)

type (
	// MemoryStore is an in-process Store for deployments without a backing
	// database. bigcache's life window matches the session TTL, but as with
	// the redis store, FindActive checks the stored expiry itself rather than
	// trusting eviction timing.
	MemoryStore struct {
		cache *bigcache.BigCache
	}
)

func NewMemoryStore(ttl time.Duration) (*MemoryStore, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.CleanWindow = time.Minute
	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create in-memory session store, cause %w", err)
	}
	return &MemoryStore{cache: cache}, nil
}

func (s *MemoryStore) Insert(_ context.Context, id string, expiresAt time.Time) error {
	err := s.cache.Set(id, []byte(strconv.FormatInt(expiresAt.UnixMilli(), 10)))
	if err != nil {
		return fmt.Errorf("unable to insert session record, cause %w", err)
	}
	return nil
}

func (s *MemoryStore) FindActive(_ context.Context, id string, now time.Time) (bool, error) {
	val, err := s.cache.Get(id)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("unable to look up session record, cause %w", err)
	}
	expiresAt, err := strconv.ParseInt(string(val), 10, 64)
	if err != nil {
		return false, fmt.Errorf("unable to parse session record, cause %w", err)
	}
	return now.UnixMilli() < expiresAt, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	err := s.cache.Delete(id)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	} else if err != nil {
		return fmt.Errorf("unable to delete session record, cause %w", err)
	}
	return nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) error {
	if err := s.cache.Reset(); err != nil {
		return fmt.Errorf("unable to sweep session records, cause %w", err)
	}
	return nil
}
