package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/folio/internal/domain"
	"github.com/MrSnakeDoc/folio/internal/logger"
)

// GalleryFetcher reads the gallery from the database and refreshes the
// response cache as a side effect.
type GalleryFetcher interface {
	Fetch(ctx context.Context) (domain.GalleryData, error)
}

// CacheWarmer fills the Redis gallery cache on startup so that the first
// visitors do not all hit Postgres.
type CacheWarmer struct {
	fetcher GalleryFetcher
	logger  logger.Logger
}

func NewCacheWarmer(fetcher GalleryFetcher, log logger.Logger) *CacheWarmer {
	return &CacheWarmer{
		fetcher: fetcher,
		logger:  log,
	}
}

// Warm loads the gallery once.
func (cw *CacheWarmer) Warm(ctx context.Context) error {
	cw.logger.Info("warming gallery cache from postgres")

	data, err := cw.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	cw.logger.Info("gallery cache warmed",
		logger.Int("finished", len(data.Finished)),
		logger.Int("wip", len(data.WIP)))
	return nil
}
