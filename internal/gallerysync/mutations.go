package gallerysync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/folio/internal/client"
	"github.com/MrSnakeDoc/folio/internal/domain"
	"github.com/MrSnakeDoc/folio/internal/logger"
)

// mutate applies next as a local write: revision bump, cache rewrite,
// notification. It returns the previous data for rollback.
func (s *Synchronizer) mutate(ctx context.Context, next func(domain.GalleryData) (domain.GalleryData, bool)) (prev domain.GalleryData, ok bool) {
	var data domain.GalleryData
	s.commit(func(st *State) bool {
		prev = st.Data.Clone()
		data, ok = next(st.Data)
		if !ok {
			return false
		}
		st.Data = data
		st.Revision++
		st.Error = ""
		return true
	})
	if ok {
		s.writeSnapshot(ctx, data)
	}
	return prev, ok
}

// track marks a remote mutation as pending until the returned func runs.
// Reads issued or answered meanwhile are discarded.
func (s *Synchronizer) track() (done func()) {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}
}

// rollback restores the exact pre-mutation data and records msg.
func (s *Synchronizer) rollback(ctx context.Context, prev domain.GalleryData, msg string) {
	s.commit(func(st *State) bool {
		st.Data = prev
		st.Revision++
		st.Error = msg
		return true
	})
	s.writeSnapshot(ctx, prev)
}

// reject records a failure that did not touch the data.
func (s *Synchronizer) reject(msg string) {
	s.commit(func(st *State) bool {
		changed := st.Error != msg
		st.Error = msg
		return changed
	})
}

// UpdateImage merges p into the local image, then persists it. The local
// merge is skipped when id is unknown locally; the remote call is made
// regardless.
func (s *Synchronizer) UpdateImage(ctx context.Context, id string, p domain.ImagePatch) error {
	if err := p.Validate(); err != nil {
		s.reject(describe(err, MsgUpdateFailed))
		return err
	}

	defer s.track()()
	prev, applied := s.mutate(ctx, func(d domain.GalleryData) (domain.GalleryData, bool) {
		return d.WithPatch(id, p)
	})

	img, err := s.remote.UpdateImage(ctx, id, p)
	if err != nil {
		s.log.Warn("image update rejected", logger.String("id", id), logger.Error(err))
		if applied {
			s.rollback(ctx, prev, describe(err, MsgUpdateFailed))
		} else {
			s.reject(describe(err, MsgUpdateFailed))
		}
		return err
	}

	s.reconcile(ctx, id, img)
	return nil
}

// DeleteImage removes the image locally, then remotely.
func (s *Synchronizer) DeleteImage(ctx context.Context, id string) error {
	defer s.track()()
	prev, applied := s.mutate(ctx, func(d domain.GalleryData) (domain.GalleryData, bool) {
		return d.Without(id)
	})

	if err := s.remote.DeleteImage(ctx, id); err != nil {
		s.log.Warn("image delete rejected", logger.String("id", id), logger.Error(err))
		if applied {
			s.rollback(ctx, prev, describe(err, MsgDeleteFailed))
		} else {
			s.reject(describe(err, MsgDeleteFailed))
		}
		return err
	}
	return nil
}

// PendingPrefix marks optimistic records not yet confirmed by the server.
const PendingPrefix = "pending-"

// IsPending reports whether img is an optimistic placeholder.
func IsPending(img domain.GalleryImage) bool {
	return strings.HasPrefix(img.ID, PendingPrefix)
}

// AddImage appends img to its collection and registers it remotely
// (its Src must already exist). When img has no id it gets a placeholder
// id, and the server record replaces the placeholder on success.
func (s *Synchronizer) AddImage(ctx context.Context, img domain.GalleryImage) (domain.GalleryImage, error) {
	if img.Width == 0 {
		img.Width = domain.DefaultWidth
	}
	meta := domain.NewImage{
		Src:         img.Src,
		Alt:         img.Alt,
		Description: img.Description,
		Category:    img.Category,
		Year:        img.Year,
		Width:       img.Width,
	}
	for _, err := range []error{img.Validate(), validateMeta(meta)} {
		if err != nil {
			s.reject(describe(err, MsgAddFailed))
			return domain.GalleryImage{}, err
		}
	}

	return s.add(ctx, img, func() (domain.GalleryImage, error) {
		return s.remote.RegisterImage(ctx, meta)
	})
}

// UploadImage is AddImage for a new binary. The placeholder has no Src
// until the server answers.
func (s *Synchronizer) UploadImage(ctx context.Context, up client.Upload) (domain.GalleryImage, error) {
	if up.Meta.Width == 0 {
		up.Meta.Width = domain.DefaultWidth
	}
	if err := validateMeta(up.Meta); err != nil {
		s.reject(describe(err, MsgAddFailed))
		return domain.GalleryImage{}, err
	}
	if up.Body == nil {
		err := fmt.Errorf("%w: No image file provided", domain.ErrInvalid)
		s.reject(describe(err, MsgAddFailed))
		return domain.GalleryImage{}, err
	}

	placeholder := domain.GalleryImage{
		Alt:         up.Meta.Alt,
		Description: up.Meta.Description,
		Category:    up.Meta.Category,
		Year:        up.Meta.Year,
		Width:       up.Meta.Width,
	}
	return s.add(ctx, placeholder, func() (domain.GalleryImage, error) {
		return s.remote.CreateImage(ctx, up)
	})
}

func (s *Synchronizer) add(ctx context.Context, img domain.GalleryImage, create func() (domain.GalleryImage, error)) (domain.GalleryImage, error) {
	if img.ID == "" {
		img.ID = newPendingID()
	}
	defer s.track()()
	now := s.now()
	if img.CreatedAt.IsZero() {
		img.CreatedAt, img.UpdatedAt = now, now
	}

	prev, _ := s.mutate(ctx, func(d domain.GalleryData) (domain.GalleryData, bool) {
		if _, exists := d.Find(img.ID); exists {
			return d, false
		}
		img.Order = d.NextOrder(img.Category)
		return d.WithImage(img), true
	})

	created, err := create()
	if err != nil {
		s.log.Warn("image create rejected", logger.String("placeholder", img.ID), logger.Error(err))
		s.rollback(ctx, prev, describe(err, MsgAddFailed))
		return domain.GalleryImage{}, err
	}

	s.reconcile(ctx, img.ID, created)
	return created, nil
}

// reconcile swaps the local record localID for the server's version. If the
// server record is already present (a refresh brought it in), the local one
// is just dropped.
func (s *Synchronizer) reconcile(ctx context.Context, localID string, server domain.GalleryImage) {
	if server.ID == "" {
		return
	}
	var data domain.GalleryData
	var changed bool
	s.commit(func(st *State) bool {
		if localID != server.ID {
			if _, exists := st.Data.Find(server.ID); exists {
				data, changed = st.Data.Without(localID)
				if changed {
					st.Data = data
				}
				return changed
			}
		}
		current, found := st.Data.Find(localID)
		if !found {
			return false
		}
		if localID == server.ID && equalImage(current, server) {
			return false
		}
		data, changed = st.Data.Replace(localID, server)
		if changed {
			st.Data = data
		}
		return changed
	})
	if changed {
		s.writeSnapshot(ctx, data)
	}
}

func equalImage(a, b domain.GalleryImage) bool {
	return domain.GalleryData{Finished: []domain.GalleryImage{a}}.Equal(domain.GalleryData{Finished: []domain.GalleryImage{b}})
}

// ReorderImages re-partitions a full ordered list and rewrites each Order
// to the position within its category. It only touches local state and the
// cache; persisting the order is the caller's job. It reports false, and
// changes nothing, when the per-category id sequence is already the same.
func (s *Synchronizer) ReorderImages(ctx context.Context, images []domain.GalleryImage) bool {
	seen := make(map[string]bool, len(images))
	unique := make([]domain.GalleryImage, 0, len(images))
	for _, img := range images {
		if seen[img.ID] {
			continue
		}
		seen[img.ID] = true
		unique = append(unique, img)
	}
	reordered := domain.Reordered(unique)

	_, ok := s.mutate(ctx, func(d domain.GalleryData) (domain.GalleryData, bool) {
		if d.SameSequence(reordered) {
			return d, false
		}
		return reordered, true
	})
	return ok
}

func newPendingID() string {
	return PendingPrefix + uuid.NewString()
}

// validateMeta runs before any network call.
func validateMeta(meta domain.NewImage) error {
	if strings.TrimSpace(meta.Alt) == "" || strings.TrimSpace(meta.Description) == "" || meta.Year <= 0 {
		return fmt.Errorf("%w: Missing required fields", domain.ErrInvalid)
	}
	if !meta.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", domain.ErrInvalid, meta.Category)
	}
	if meta.Width != 0 && !domain.ValidWidth(meta.Width) {
		return fmt.Errorf("%w: %s", domain.ErrInvalid, domain.ErrWidthRange)
	}
	return nil
}

// describe turns err into the single user-facing string kept in State.
// Validation messages and 4xx answers are shown verbatim.
func describe(err error, fallback string) string {
	var se *client.StatusError
	if errors.As(err, &se) && se.StatusCode < 500 && se.Message != "" {
		return se.Message
	}
	if errors.Is(err, domain.ErrInvalid) {
		msg := err.Error()
		if i := strings.LastIndex(msg, domain.ErrInvalid.Error()+": "); i >= 0 {
			return msg[i+len(domain.ErrInvalid.Error())+2:]
		}
		return msg
	}
	return fallback
}
