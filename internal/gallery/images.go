// Package gallery holds the server-side business rules of the portfolio:
// image uploads and metadata, outbound links, and the admin secret.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MrSnakeDoc/folio/internal/domain"
	"github.com/MrSnakeDoc/folio/internal/logger"
	"github.com/MrSnakeDoc/folio/internal/objectstore"
)

// ImageRepository persists image metadata.
type ImageRepository interface {
	ListImages(ctx context.Context) ([]domain.GalleryImage, error)
	CreateImage(ctx context.Context, in domain.NewImage) (domain.GalleryImage, error)
	UpdateImage(ctx context.Context, id string, p domain.ImagePatch) (domain.GalleryImage, error)
	DeleteImage(ctx context.Context, id string) (domain.GalleryImage, error)
	ReorderImages(ctx context.Context, ids []string) error
	ImageSources(ctx context.Context) ([]string, error)
}

// ObjectStore keeps the binary files.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	DeleteURL(ctx context.Context, src string) error
}

// ResponseCache caches the GET /gallery payload. Optional.
type ResponseCache interface {
	CacheGallery(ctx context.Context, data domain.GalleryData, ttl time.Duration) error
	CachedGallery(ctx context.Context) (domain.GalleryData, bool, error)
	InvalidateGallery(ctx context.Context) error
}

// Upload is a new binary plus its metadata.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	Meta        domain.NewImage
}

// Images implements the image operations of the API.
type Images struct {
	repo     ImageRepository
	objects  ObjectStore
	cache    ResponseCache
	cacheTTL time.Duration
	validate *validator.Validate
	log      logger.Logger
	now      func() time.Time

	mu       sync.RWMutex
	lastGood *domain.GalleryData
}

// NewImages wires the image service. cache may be nil.
func NewImages(repo ImageRepository, objects ObjectStore, cache ResponseCache, cacheTTL time.Duration, log logger.Logger) *Images {
	return &Images{
		repo:     repo,
		objects:  objects,
		cache:    cache,
		cacheTTL: cacheTTL,
		validate: newValidator(),
		log:      log.With(logger.Component("gallery")),
		now:      time.Now,
	}
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// List returns all images partitioned by category. It never fails: when the
// database is unavailable the last good copy, or an empty gallery, is served.
func (s *Images) List(ctx context.Context) domain.GalleryData {
	if s.cache != nil {
		data, ok, err := s.cache.CachedGallery(ctx)
		if err != nil {
			s.log.Warn("gallery cache read failed", logger.Error(err))
		} else if ok {
			return data
		}
	}

	data, err := s.Fetch(ctx)
	if err != nil {
		s.log.Error("failed to fetch gallery, serving fallback", logger.Error(err))
		return s.fallback()
	}
	return data
}

// Fetch reads the gallery from the database and refreshes the response cache.
func (s *Images) Fetch(ctx context.Context) (domain.GalleryData, error) {
	images, err := s.repo.ListImages(ctx)
	if err != nil {
		return domain.GalleryData{}, err
	}
	domain.SortImages(images)
	data := domain.Partition(images)

	s.mu.Lock()
	snapshot := data.Clone()
	s.lastGood = &snapshot
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.CacheGallery(ctx, data, s.cacheTTL); err != nil {
			s.log.Warn("failed to cache gallery", logger.Error(err))
		}
	}
	return data, nil
}

func (s *Images) fallback() domain.GalleryData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastGood == nil {
		return domain.EmptyGallery()
	}
	return s.lastGood.Clone()
}

// Upload stores the binary, then the metadata row. If the row cannot be
// written the object is removed again.
func (s *Images) Upload(ctx context.Context, up Upload) (domain.GalleryImage, error) {
	if up.Body == nil {
		return domain.GalleryImage{}, fmt.Errorf("%w: No image file provided", domain.ErrInvalid)
	}
	if up.ContentType != "" && !strings.HasPrefix(up.ContentType, "image/") {
		return domain.GalleryImage{}, fmt.Errorf("%w: only image files are allowed", domain.ErrInvalid)
	}
	meta := up.Meta
	meta.Src = ""
	if err := s.validateNew(meta); err != nil {
		return domain.GalleryImage{}, err
	}

	key := objectstore.NewKey(up.Filename, s.now())
	src, err := s.objects.Put(ctx, key, up.Body, up.Size, up.ContentType)
	if err != nil {
		return domain.GalleryImage{}, fmt.Errorf("failed to store image: %w", err)
	}
	s.log.Info("image uploaded",
		logger.String("key", key),
		logger.Int64("size", up.Size),
		logger.String("type", up.ContentType))

	meta.Src = src
	img, err := s.repo.CreateImage(ctx, meta)
	if err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			s.log.Error("failed to remove uploaded object after insert failure",
				logger.String("key", key), logger.Error(delErr))
		}
		return domain.GalleryImage{}, err
	}

	s.invalidate(ctx)
	return img, nil
}

// Register records an image whose binary is already in the bucket or
// elsewhere. Duplicate src values are rejected with ErrConflict.
func (s *Images) Register(ctx context.Context, meta domain.NewImage) (domain.GalleryImage, error) {
	if strings.TrimSpace(meta.Src) == "" {
		return domain.GalleryImage{}, fmt.Errorf("%w: Missing required fields", domain.ErrInvalid)
	}
	if err := s.validateNew(meta); err != nil {
		return domain.GalleryImage{}, err
	}

	img, err := s.repo.CreateImage(ctx, meta)
	if err != nil {
		return domain.GalleryImage{}, err
	}
	s.invalidate(ctx)
	return img, nil
}

// Update applies a partial update.
func (s *Images) Update(ctx context.Context, id string, p domain.ImagePatch) (domain.GalleryImage, error) {
	if err := p.Validate(); err != nil {
		return domain.GalleryImage{}, err
	}
	if err := s.validate.Struct(p); err != nil {
		return domain.GalleryImage{}, validationError(err)
	}

	img, err := s.repo.UpdateImage(ctx, id, p)
	if err != nil {
		return domain.GalleryImage{}, err
	}
	s.invalidate(ctx)
	return img, nil
}

// Delete removes the row, then the object. The row is authoritative: a
// failure to delete the object is logged and otherwise ignored.
func (s *Images) Delete(ctx context.Context, id string) error {
	img, err := s.repo.DeleteImage(ctx, id)
	if err != nil {
		return err
	}
	s.invalidate(ctx)

	if err := s.objects.DeleteURL(ctx, img.Src); err != nil {
		s.log.Warn("failed to delete image object",
			logger.String("id", id),
			logger.String("src", img.Src),
			logger.Error(err))
	}
	return nil
}

// Reorder persists a full ordered id list.
func (s *Images) Reorder(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids are required", domain.ErrInvalid)
	}
	if err := s.repo.ReorderImages(ctx, ids); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Sources lists the src of every stored image.
func (s *Images) Sources(ctx context.Context) ([]string, error) {
	return s.repo.ImageSources(ctx)
}

func (s *Images) validateNew(meta domain.NewImage) error {
	if meta.Width != 0 && !domain.ValidWidth(meta.Width) {
		return fmt.Errorf("%w: %s", domain.ErrInvalid, domain.ErrWidthRange)
	}
	if err := s.validate.Struct(meta); err != nil {
		return validationError(err)
	}
	return nil
}

func (s *Images) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateGallery(ctx); err != nil {
		s.log.Warn("failed to invalidate gallery cache", logger.Error(err))
	}
}

// validationError turns validator output into a short user-facing message.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalid, err.Error())
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return fmt.Errorf("%w: Missing required fields", domain.ErrInvalid)
		}
	}
	fe := verrs[0]
	if fe.Field() == "Width" {
		return fmt.Errorf("%w: %s", domain.ErrInvalid, domain.ErrWidthRange)
	}
	return fmt.Errorf("%w: invalid %s", domain.ErrInvalid, strings.ToLower(fe.Field()))
}
