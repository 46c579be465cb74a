package gallerysync

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/folio/internal/domain"
	"github.com/MrSnakeDoc/folio/internal/logger"
)

const (
	// KeyData holds the serialized GalleryData.
	KeyData = "gallery:data"
	// KeyTimestamp holds the write time in unix milliseconds.
	KeyTimestamp = "gallery:timestamp"

	DefaultFreshness = 5 * time.Minute
)

// Cache is the local key-value store holding the snapshot. Implemented by
// the Redis store and by the memory and file caches.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type snapshot struct {
	data    domain.GalleryData
	present bool
	fresh   bool
}

// readSnapshot returns the cached gallery. An expired or unreadable entry
// is deleted, but an expired one is still returned (fresh=false) so that it
// can serve as offline fallback.
func (s *Synchronizer) readSnapshot(ctx context.Context) snapshot {
	raw, ok, err := s.cache.Get(ctx, KeyData)
	if err != nil {
		s.log.Warn("failed to read gallery cache", logger.Error(err))
		return snapshot{}
	}
	if !ok {
		return snapshot{}
	}

	var data domain.GalleryData
	if err := json.Unmarshal(raw, &data); err != nil {
		s.log.Warn("discarding corrupt gallery cache", logger.Error(err))
		s.evict(ctx)
		return snapshot{}
	}
	snap := snapshot{data: sanitize(data), present: true}

	written, ok := s.cachedAt(ctx)
	if ok && s.now().Sub(written) < s.freshness {
		snap.fresh = true
		return snap
	}

	s.log.Debug("gallery cache expired", logger.Bool("has_timestamp", ok))
	s.evict(ctx)
	return snap
}

func (s *Synchronizer) cachedAt(ctx context.Context) (time.Time, bool) {
	raw, ok, err := s.cache.Get(ctx, KeyTimestamp)
	if err != nil || !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (s *Synchronizer) writeSnapshot(ctx context.Context, data domain.GalleryData) {
	raw, err := json.Marshal(data.Normalize())
	if err != nil {
		s.log.Warn("failed to encode gallery cache", logger.Error(err))
		return
	}
	if err := s.cache.Set(ctx, KeyData, raw); err != nil {
		s.log.Warn("failed to write gallery cache", logger.Error(err))
		return
	}
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.cache.Set(ctx, KeyTimestamp, []byte(ts)); err != nil {
		s.log.Warn("failed to write gallery cache timestamp", logger.Error(err))
	}
}

func (s *Synchronizer) evict(ctx context.Context) {
	for _, key := range []string{KeyData, KeyTimestamp} {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.log.Warn("failed to evict gallery cache", logger.String("key", key), logger.Error(err))
		}
	}
}

// sanitize re-partitions by category and drops duplicate ids, keeping the
// first occurrence.
func sanitize(d domain.GalleryData) domain.GalleryData {
	seen := make(map[string]bool, d.Len())
	images := make([]domain.GalleryImage, 0, d.Len())
	for _, img := range d.All() {
		if seen[img.ID] {
			continue
		}
		seen[img.ID] = true
		images = append(images, img)
	}
	return domain.Partition(images)
}
