package gallery

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/MrSnakeDoc/folio/internal/domain"
	"github.com/MrSnakeDoc/folio/internal/logger"
)

// LinkRepository persists navigation links.
type LinkRepository interface {
	ListLinks(ctx context.Context) ([]domain.Link, error)
	CreateLink(ctx context.Context, in domain.LinkInput) (domain.Link, error)
	UpdateLink(ctx context.Context, id int, in domain.LinkInput) (domain.Link, error)
	DeleteLink(ctx context.Context, id int) error
	ReorderLinks(ctx context.Context, ids []int) ([]domain.Link, error)
}

// Links implements the link operations of the API.
type Links struct {
	repo     LinkRepository
	validate *validator.Validate
	log      logger.Logger
}

func NewLinks(repo LinkRepository, log logger.Logger) *Links {
	return &Links{
		repo:     repo,
		validate: newValidator(),
		log:      log.With(logger.Component("links")),
	}
}

func (s *Links) List(ctx context.Context) ([]domain.Link, error) {
	return s.repo.ListLinks(ctx)
}

// Create appends a link after the last one.
func (s *Links) Create(ctx context.Context, in domain.LinkInput) (domain.Link, error) {
	if err := s.check(in); err != nil {
		return domain.Link{}, err
	}
	return s.repo.CreateLink(ctx, in)
}

// Update changes text and url; the position is kept.
func (s *Links) Update(ctx context.Context, id int, in domain.LinkInput) (domain.Link, error) {
	if err := s.check(in); err != nil {
		return domain.Link{}, err
	}
	return s.repo.UpdateLink(ctx, id, in)
}

func (s *Links) Delete(ctx context.Context, id int) error {
	return s.repo.DeleteLink(ctx, id)
}

// Reorder sets order = index+1 following ids, atomically.
func (s *Links) Reorder(ctx context.Context, ids []int) ([]domain.Link, error) {
	if ids == nil {
		return nil, fmt.Errorf("%w: Links array is required", domain.ErrInvalid)
	}
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate link %d", domain.ErrInvalid, id)
		}
		seen[id] = struct{}{}
	}

	links, err := s.repo.ReorderLinks(ctx, ids)
	if err != nil {
		return nil, err
	}
	s.log.Info("links reordered", logger.Int("count", len(links)))
	return links, nil
}

func (s *Links) check(in domain.LinkInput) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: Text and URL are required", domain.ErrInvalid)
	}
	return in.Validate()
}
