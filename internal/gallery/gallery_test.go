package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/folio/internal/domain"
	"github.com/MrSnakeDoc/folio/internal/logger"
)

type fakeRepo struct {
	mu        sync.Mutex
	images    []domain.GalleryImage
	nextID    int
	listErr   error
	createErr error
	reordered []string
}

func (r *fakeRepo) ListImages(context.Context) ([]domain.GalleryImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]domain.GalleryImage, len(r.images))
	copy(out, r.images)
	return out, nil
}

func (r *fakeRepo) CreateImage(_ context.Context, in domain.NewImage) (domain.GalleryImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return domain.GalleryImage{}, r.createErr
	}
	for _, img := range r.images {
		if img.Src == in.Src {
			return domain.GalleryImage{}, fmt.Errorf("%w: duplicate", domain.ErrConflict)
		}
	}
	r.nextID++
	img := domain.GalleryImage{
		ID: fmt.Sprintf("img-%d", r.nextID), Src: in.Src, Alt: in.Alt,
		Description: in.Description, Category: in.Category, Year: in.Year, Width: in.Width,
	}
	img.Order = domain.Partition(r.images).NextOrder(in.Category)
	r.images = append(r.images, img)
	return img, nil
}

func (r *fakeRepo) UpdateImage(_ context.Context, id string, p domain.ImagePatch) (domain.GalleryImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, img := range r.images {
		if img.ID == id {
			r.images[i] = p.Apply(img)
			return r.images[i], nil
		}
	}
	return domain.GalleryImage{}, domain.ErrNotFound
}

func (r *fakeRepo) DeleteImage(_ context.Context, id string) (domain.GalleryImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, img := range r.images {
		if img.ID == id {
			r.images = append(r.images[:i], r.images[i+1:]...)
			return img, nil
		}
	}
	return domain.GalleryImage{}, domain.ErrNotFound
}

func (r *fakeRepo) ReorderImages(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reordered = ids
	return nil
}

func (r *fakeRepo) ImageSources(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.images))
	for _, img := range r.images {
		out = append(out, img.Src)
	}
	return out, nil
}

type fakeObjects struct {
	mu      sync.Mutex
	stored  map[string]string
	deleted []string
	putErr  error
	delErr  error
}

func newFakeObjects() *fakeObjects { return &fakeObjects{stored: map[string]string{}} }

func (o *fakeObjects) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if o.putErr != nil {
		return "", o.putErr
	}
	b, _ := io.ReadAll(body)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stored[key] = string(b)
	return "https://media.example.com/" + key, nil
}

func (o *fakeObjects) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted = append(o.deleted, key)
	if o.delErr != nil {
		return o.delErr
	}
	delete(o.stored, key)
	return nil
}

func (o *fakeObjects) DeleteURL(ctx context.Context, src string) error {
	return o.Delete(ctx, strings.TrimPrefix(src, "https://media.example.com/"))
}

type fakeCache struct {
	data        *domain.GalleryData
	invalidated int
}

func (c *fakeCache) CacheGallery(_ context.Context, data domain.GalleryData, _ time.Duration) error {
	d := data.Clone()
	c.data = &d
	return nil
}

func (c *fakeCache) CachedGallery(context.Context) (domain.GalleryData, bool, error) {
	if c.data == nil {
		return domain.GalleryData{}, false, nil
	}
	return c.data.Clone(), true, nil
}

func (c *fakeCache) InvalidateGallery(context.Context) error {
	c.data = nil
	c.invalidated++
	return nil
}

func newImagesService(repo *fakeRepo, objects *fakeObjects, cache ResponseCache) *Images {
	return NewImages(repo, objects, cache, time.Minute, logger.Nop())
}

func meta(c domain.Category) domain.NewImage {
	return domain.NewImage{Alt: "Cat", Description: "A cat", Category: c, Year: 2024}
}

func TestListPartitionsAndSorts(t *testing.T) {
	repo := &fakeRepo{images: []domain.GalleryImage{
		{ID: "b", Category: domain.CategoryWIP, Order: 0},
		{ID: "c", Category: domain.CategoryFinished, Order: 1},
		{ID: "a", Category: domain.CategoryFinished, Order: 0},
	}}
	svc := newImagesService(repo, newFakeObjects(), nil)

	data := svc.List(context.Background())
	require.Len(t, data.Finished, 2)
	assert.Equal(t, "a", data.Finished[0].ID)
	assert.Equal(t, "c", data.Finished[1].ID)
	require.Len(t, data.WIP, 1)
}

func TestListFallsBack(t *testing.T) {
	repo := &fakeRepo{images: []domain.GalleryImage{{ID: "a", Category: domain.CategoryFinished}}}
	svc := newImagesService(repo, newFakeObjects(), nil)

	t.Run("empty when never loaded", func(t *testing.T) {
		fresh := newImagesService(&fakeRepo{listErr: errors.New("db down")}, newFakeObjects(), nil)
		data := fresh.List(context.Background())
		assert.NotNil(t, data.Finished)
		assert.NotNil(t, data.WIP)
		assert.Equal(t, 0, data.Len())
	})

	t.Run("last good copy after an outage", func(t *testing.T) {
		first := svc.List(context.Background())
		repo.listErr = errors.New("db down")
		assert.True(t, svc.List(context.Background()).Equal(first))
	})
}

func TestListUsesResponseCache(t *testing.T) {
	repo := &fakeRepo{images: []domain.GalleryImage{{ID: "a", Category: domain.CategoryFinished}}}
	cache := &fakeCache{}
	svc := newImagesService(repo, newFakeObjects(), cache)

	svc.List(context.Background())
	require.NotNil(t, cache.data)

	repo.listErr = errors.New("should not be called")
	data := svc.List(context.Background())
	assert.Equal(t, 1, data.Len())
}

func TestUploadStoresObjectThenRow(t *testing.T) {
	repo := &fakeRepo{}
	objects := newFakeObjects()
	cache := &fakeCache{}
	svc := newImagesService(repo, objects, cache)

	img, err := svc.Upload(context.Background(), Upload{
		Filename: "cat.PNG", ContentType: "image/png", Size: 3,
		Body: strings.NewReader("png"), Meta: meta(domain.CategoryWIP),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(img.Src, "https://media.example.com/"))
	assert.True(t, strings.HasSuffix(img.Src, ".png"))
	assert.Len(t, objects.stored, 1)
	assert.Equal(t, 1, cache.invalidated)
}

func TestUploadRemovesObjectWhenInsertFails(t *testing.T) {
	repo := &fakeRepo{createErr: errors.New("insert failed")}
	objects := newFakeObjects()
	svc := newImagesService(repo, objects, nil)

	_, err := svc.Upload(context.Background(), Upload{
		Filename: "a.jpg", ContentType: "image/jpeg", Body: strings.NewReader("x"), Meta: meta(domain.CategoryFinished),
	})
	require.Error(t, err)
	assert.Empty(t, objects.stored)
	assert.Len(t, objects.deleted, 1)
}

func TestUploadValidation(t *testing.T) {
	svc := newImagesService(&fakeRepo{}, newFakeObjects(), nil)

	tests := []struct {
		name string
		up   Upload
		msg  string
	}{
		{name: "no file", up: Upload{Meta: meta(domain.CategoryWIP)}, msg: "No image file provided"},
		{name: "not an image", up: Upload{ContentType: "text/plain", Body: strings.NewReader("x"), Meta: meta(domain.CategoryWIP)}, msg: "only image files"},
		{name: "missing alt", up: Upload{Body: strings.NewReader("x"), Meta: domain.NewImage{Description: "d", Category: domain.CategoryWIP, Year: 2020}}, msg: "Missing required fields"},
		{name: "bad width", up: Upload{Body: strings.NewReader("x"), Meta: domain.NewImage{Alt: "a", Description: "d", Category: domain.CategoryWIP, Year: 2020, Width: 9}}, msg: domain.ErrWidthRange},
		{name: "bad category", up: Upload{Body: strings.NewReader("x"), Meta: domain.NewImage{Alt: "a", Description: "d", Category: "sketch", Year: 2020}}, msg: "invalid category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tt.up)
			require.ErrorIs(t, err, domain.ErrInvalid)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRegisterDuplicateSrc(t *testing.T) {
	svc := newImagesService(&fakeRepo{}, newFakeObjects(), nil)
	m := meta(domain.CategoryFinished)
	m.Src = "https://media.example.com/a.jpg"

	first, err := svc.Register(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Order)

	_, err = svc.Register(context.Background(), m)
	assert.ErrorIs(t, err, domain.ErrConflict)

	m.Src = ""
	_, err = svc.Register(context.Background(), m)
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestUpdate(t *testing.T) {
	repo := &fakeRepo{images: []domain.GalleryImage{{ID: "a", Category: domain.CategoryFinished, Width: 1}}}
	svc := newImagesService(repo, newFakeObjects(), nil)

	img, err := svc.Update(context.Background(), "a", domain.Resize(4))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Width)

	_, err = svc.Update(context.Background(), "a", domain.Resize(8))
	require.ErrorIs(t, err, domain.ErrInvalid)
	assert.Contains(t, err.Error(), domain.ErrWidthRange)

	_, err = svc.Update(context.Background(), "a", domain.ImagePatch{})
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = svc.Update(context.Background(), "missing", domain.Resize(2))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteIgnoresObjectFailure(t *testing.T) {
	repo := &fakeRepo{images: []domain.GalleryImage{{ID: "a", Src: "https://media.example.com/a.jpg", Category: domain.CategoryWIP}}}
	objects := newFakeObjects()
	objects.delErr = errors.New("bucket unavailable")
	svc := newImagesService(repo, objects, nil)

	require.NoError(t, svc.Delete(context.Background(), "a"))
	assert.Empty(t, repo.images)
	assert.Equal(t, []string{"a.jpg"}, objects.deleted)

	assert.ErrorIs(t, svc.Delete(context.Background(), "a"), domain.ErrNotFound)
}

func TestReorder(t *testing.T) {
	repo := &fakeRepo{}
	svc := newImagesService(repo, newFakeObjects(), nil)

	assert.ErrorIs(t, svc.Reorder(context.Background(), nil), domain.ErrInvalid)
	require.NoError(t, svc.Reorder(context.Background(), []string{"b", "a"}))
	assert.Equal(t, []string{"b", "a"}, repo.reordered)
}

type fakeLinks struct {
	links []domain.Link
}

func (f *fakeLinks) ListLinks(context.Context) ([]domain.Link, error) { return f.links, nil }

func (f *fakeLinks) CreateLink(_ context.Context, in domain.LinkInput) (domain.Link, error) {
	order := 1
	for _, l := range f.links {
		if l.Order >= order {
			order = l.Order + 1
		}
	}
	l := domain.Link{ID: len(f.links) + 1, Text: in.Text, URL: in.URL, Order: order}
	f.links = append(f.links, l)
	return l, nil
}

func (f *fakeLinks) UpdateLink(_ context.Context, id int, in domain.LinkInput) (domain.Link, error) {
	for i, l := range f.links {
		if l.ID == id {
			f.links[i].Text, f.links[i].URL = in.Text, in.URL
			return f.links[i], nil
		}
	}
	return domain.Link{}, domain.ErrNotFound
}

func (f *fakeLinks) DeleteLink(context.Context, int) error { return nil }

func (f *fakeLinks) ReorderLinks(_ context.Context, ids []int) ([]domain.Link, error) {
	return domain.ReorderLinks(f.links, ids)
}

func TestLinks(t *testing.T) {
	svc := NewLinks(&fakeLinks{}, logger.Nop())
	ctx := context.Background()

	a, err := svc.Create(ctx, domain.LinkInput{Text: "GitHub", URL: "https://github.com"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, domain.LinkInput{Text: "Blog", URL: "https://blog.example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, a.Order)
	assert.Equal(t, 2, b.Order)

	_, err = svc.Create(ctx, domain.LinkInput{Text: "", URL: "https://x.com"})
	assert.ErrorIs(t, err, domain.ErrInvalid)

	links, err := svc.Reorder(ctx, []int{b.ID, a.ID})
	require.NoError(t, err)
	assert.Equal(t, b.ID, links[0].ID)
	assert.Equal(t, 1, links[0].Order)

	_, err = svc.Reorder(ctx, []int{a.ID, a.ID})
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = svc.Reorder(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = svc.Update(ctx, 99, domain.LinkInput{Text: "x", URL: "https://x.com"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuth(t *testing.T) {
	auth := NewAuth("s3cret")

	assert.True(t, auth.Check("s3cret"))
	assert.False(t, auth.Check("s3cre"))
	assert.False(t, auth.Check(""))
	assert.True(t, auth.CheckHeader("Bearer s3cret"))
	assert.False(t, auth.CheckHeader("s3cret"))
	assert.False(t, auth.CheckHeader("Bearer wrong"))

	assert.False(t, NewAuth("").Check(""))
}
