package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/folio/internal/domain"
	"github.com/MrSnakeDoc/folio/internal/logger"
	"github.com/MrSnakeDoc/folio/internal/sources/seed"
)

// SeedImages registers images that already exist in storage.
type SeedImages interface {
	Sources(ctx context.Context) ([]string, error)
	Register(ctx context.Context, meta domain.NewImage) (domain.GalleryImage, error)
}

// SeedLinks appends links.
type SeedLinks interface {
	List(ctx context.Context) ([]domain.Link, error)
	Create(ctx context.Context, in domain.LinkInput) (domain.Link, error)
}

// SeedResult counts what a reload did.
type SeedResult struct {
	ImagesAdded   int
	ImagesSkipped int
	LinksAdded    int
	LinksSkipped  int
}

// SeedReloader applies the seed file: images whose src is unknown are
// registered and links whose url is unknown are appended. Existing records
// are never modified, so reloading is idempotent.
type SeedReloader struct {
	loader        *seed.Loader
	mapper        *seed.Mapper
	images        SeedImages
	links         SeedLinks
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewSeedReloader creates a reloader. interval <= 0 means the file is only
// applied at start and on manual triggers.
func NewSeedReloader(
	seedFile string,
	publicURL string,
	images SeedImages,
	links SeedLinks,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *SeedReloader {
	return &SeedReloader{
		loader:        seed.NewLoader(seedFile),
		mapper:        seed.NewMapper(publicURL),
		images:        images,
		links:         links,
		logger:        log.With(logger.Component("seed")),
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start applies the seed file once, then listens for triggers.
func (sr *SeedReloader) Start(ctx context.Context) error {
	if _, err := sr.Reload(ctx); err != nil {
		return fmt.Errorf("initial seed failed: %w", err)
	}

	go func() {
		// nil channel: never fires when periodic reload is off
		var tick <-chan time.Time
		if sr.interval > 0 {
			ticker := time.NewTicker(sr.interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-tick:
				sr.reloadLogged(ctx)
			case <-sr.manualTrigger:
				sr.logger.Info("manual reseed triggered")
				sr.reloadLogged(ctx)
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (sr *SeedReloader) reloadLogged(ctx context.Context) {
	if _, err := sr.Reload(ctx); err != nil {
		sr.logger.Error("failed to apply seed file", logger.Error(err))
	}
}

// Stop stops the reloader.
func (sr *SeedReloader) Stop() {
	close(sr.stopCh)
}

// Reload parses the seed file and registers what is missing.
func (sr *SeedReloader) Reload(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	sr.logger.Info("applying seed file", logger.String("file", sr.loader.Path()))

	cfg, err := sr.loader.Load()
	if err != nil {
		return res, err
	}
	images, err := sr.mapper.MapImages(cfg)
	if err != nil {
		return res, fmt.Errorf("invalid seed images: %w", err)
	}
	links, err := sr.mapper.MapLinks(cfg)
	if err != nil {
		return res, fmt.Errorf("invalid seed links: %w", err)
	}

	if err := sr.seedImages(ctx, images, &res); err != nil {
		return res, err
	}
	if err := sr.seedLinks(ctx, links, &res); err != nil {
		return res, err
	}

	sr.logger.Info("seed file applied",
		logger.Int("images_added", res.ImagesAdded),
		logger.Int("images_skipped", res.ImagesSkipped),
		logger.Int("links_added", res.LinksAdded),
		logger.Int("links_skipped", res.LinksSkipped))
	return res, nil
}

func (sr *SeedReloader) seedImages(ctx context.Context, images []domain.NewImage, res *SeedResult) error {
	if len(images) == 0 {
		return nil
	}
	srcs, err := sr.images.Sources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list image sources: %w", err)
	}
	known := make(map[string]bool, len(srcs))
	for _, s := range srcs {
		known[s] = true
	}

	for _, meta := range images {
		if known[meta.Src] {
			res.ImagesSkipped++
			continue
		}
		img, err := sr.images.Register(ctx, meta)
		switch {
		case errors.Is(err, domain.ErrConflict):
			res.ImagesSkipped++
			continue
		case err != nil:
			return fmt.Errorf("failed to register %s: %w", meta.Src, err)
		}
		known[meta.Src] = true
		res.ImagesAdded++
		sr.logger.Debug("seeded image", logger.String("id", img.ID), logger.String("src", img.Src))
	}
	return nil
}

func (sr *SeedReloader) seedLinks(ctx context.Context, links []domain.LinkInput, res *SeedResult) error {
	if len(links) == 0 {
		return nil
	}
	existing, err := sr.links.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list links: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, l := range existing {
		known[l.URL] = true
	}

	for _, in := range links {
		if known[in.URL] {
			res.LinksSkipped++
			continue
		}
		if _, err := sr.links.Create(ctx, in); err != nil {
			return fmt.Errorf("failed to create link %s: %w", in.URL, err)
		}
		known[in.URL] = true
		res.LinksAdded++
	}
	return nil
}
