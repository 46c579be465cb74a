package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/folio/internal/domain"
)

// DefaultGalleryTTL is used when CacheGallery is given a non-positive TTL.
const DefaultGalleryTTL = 5 * time.Minute

// Store wraps a Redis client. It serves two roles: the server-side cache of
// the gallery response, and a plain key-value store for the client-side
// synchronizer cache.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore creates a Store whose key-value entries live under KeyPrefix.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client, prefix: KeyPrefix}
}

// NewScopedStore creates a Store whose key-value entries live under prefix.
func NewScopedStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get returns the raw value stored under key. A missing key is not an error.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.ScopedKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores value under key without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.ScopedKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.ScopedKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// CacheGallery stores the gallery response for ttl.
func (s *Store) CacheGallery(ctx context.Context, data domain.GalleryData, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultGalleryTTL
	}
	payload, err := json.Marshal(data.Normalize())
	if err != nil {
		return fmt.Errorf("failed to marshal gallery: %w", err)
	}
	if err := s.client.Set(ctx, GalleryKey(), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache gallery: %w", err)
	}
	return nil
}

// CachedGallery returns the cached gallery response, if any.
func (s *Store) CachedGallery(ctx context.Context) (domain.GalleryData, bool, error) {
	payload, err := s.client.Get(ctx, GalleryKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.GalleryData{}, false, nil // Cache miss
		}
		return domain.GalleryData{}, false, fmt.Errorf("failed to get cached gallery: %w", err)
	}

	var data domain.GalleryData
	if err := json.Unmarshal(payload, &data); err != nil {
		return domain.GalleryData{}, false, fmt.Errorf("failed to unmarshal cached gallery: %w", err)
	}
	return data.Normalize(), true, nil
}

// InvalidateGallery drops the cached gallery response.
func (s *Store) InvalidateGallery(ctx context.Context) error {
	if err := s.client.Del(ctx, GalleryKey()).Err(); err != nil {
		return fmt.Errorf("failed to invalidate gallery cache: %w", err)
	}
	return nil
}

// Flush removes every key-value entry under the store prefix.
func (s *Store) Flush(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}
