package gallerysync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/folio/internal/cache"
	"github.com/MrSnakeDoc/folio/internal/client"
	"github.com/MrSnakeDoc/folio/internal/domain"
)

var errOffline = errors.New("dial tcp: connection refused")

type fakeRemote struct {
	mu      sync.Mutex
	gallery domain.GalleryData
	created domain.GalleryImage

	getErr    error
	updateErr error
	deleteErr error
	createErr error

	// gate, when set, blocks GetGallery until closed; started is signalled
	// once the call is in flight.
	gate    chan struct{}
	started chan struct{}
	// during runs inside every mutation call, before it returns.
	during func()

	getCalls    atomic.Int32
	mutateCalls atomic.Int32
}

func (f *fakeRemote) GetGallery(ctx context.Context) (domain.GalleryData, error) {
	f.getCalls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	if err := ctx.Err(); err != nil {
		return domain.GalleryData{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.GalleryData{}, f.getErr
	}
	return f.gallery.Clone(), nil
}

func (f *fakeRemote) mutation() {
	f.mutateCalls.Add(1)
	if f.during != nil {
		f.during()
	}
}

func (f *fakeRemote) UpdateImage(_ context.Context, id string, p domain.ImagePatch) (domain.GalleryImage, error) {
	f.mutation()
	if f.updateErr != nil {
		return domain.GalleryImage{}, f.updateErr
	}
	img, _ := f.gallery.Find(id)
	return p.Apply(img), nil
}

func (f *fakeRemote) DeleteImage(context.Context, string) error {
	f.mutation()
	return f.deleteErr
}

func (f *fakeRemote) RegisterImage(_ context.Context, meta domain.NewImage) (domain.GalleryImage, error) {
	f.mutation()
	if f.createErr != nil {
		return domain.GalleryImage{}, f.createErr
	}
	img := f.created
	img.Src = meta.Src
	return img, nil
}

func (f *fakeRemote) CreateImage(_ context.Context, up client.Upload) (domain.GalleryImage, error) {
	f.mutation()
	if f.createErr != nil {
		return domain.GalleryImage{}, f.createErr
	}
	img := f.created
	img.Src = "https://media.example.com/" + up.Filename
	return img, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func image(id string, c domain.Category, order int) domain.GalleryImage {
	return domain.GalleryImage{
		ID:          id,
		Src:         "https://media.example.com/" + id + ".jpg",
		Alt:         strings.ToUpper(id),
		Description: "desc " + id,
		Category:    c,
		Year:        2024,
		Order:       order,
		Width:       1,
	}
}

// draft is an image to add: no id, a known src.
func draft(c domain.Category) domain.GalleryImage {
	img := image("new", c, 0)
	img.ID = ""
	return img
}

func gallery(images ...domain.GalleryImage) domain.GalleryData {
	return domain.Partition(images)
}

type fixture struct {
	remote *fakeRemote
	cache  *cache.Memory
	clock  *clock
	sync   *Synchronizer
}

func newFixture(t *testing.T, remoteData domain.GalleryData) *fixture {
	t.Helper()
	f := &fixture{
		remote: &fakeRemote{gallery: remoteData, created: image("srv-1", domain.CategoryWIP, 0)},
		cache:  cache.NewMemory(),
		clock:  &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.sync = New(f.remote, f.cache, WithClock(f.clock.Now))
	t.Cleanup(f.sync.Wait)
	return f
}

// seedCache writes a snapshot as if it had been stored age ago.
func (f *fixture) seedCache(t *testing.T, data domain.GalleryData, age time.Duration) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, f.cache.Set(ctx, KeyData, raw))
	ts := strconv.FormatInt(f.clock.Now().Add(-age).UnixMilli(), 10)
	require.NoError(t, f.cache.Set(ctx, KeyTimestamp, []byte(ts)))
}

func (f *fixture) cached(t *testing.T) (domain.GalleryData, bool) {
	t.Helper()
	raw, ok, err := f.cache.Get(context.Background(), KeyData)
	require.NoError(t, err)
	if !ok {
		return domain.GalleryData{}, false
	}
	var data domain.GalleryData
	require.NoError(t, json.Unmarshal(raw, &data))
	return data, true
}

// loaded returns a fixture whose synchronizer is READY with data.
func loaded(t *testing.T, data domain.GalleryData) *fixture {
	t.Helper()
	f := newFixture(t, data)
	st := f.sync.Load(context.Background())
	require.Equal(t, StatusReady, st.Status)
	return f
}

func assertPartition(t *testing.T, d domain.GalleryData) {
	t.Helper()
	seen := map[string]bool{}
	for _, img := range d.Finished {
		assert.Equal(t, domain.CategoryFinished, img.Category, img.ID)
		assert.False(t, seen[img.ID], "duplicate id %s", img.ID)
		seen[img.ID] = true
	}
	for _, img := range d.WIP {
		assert.Equal(t, domain.CategoryWIP, img.Category, img.ID)
		assert.False(t, seen[img.ID], "duplicate id %s", img.ID)
		seen[img.ID] = true
	}
}

func TestInitialState(t *testing.T) {
	f := newFixture(t, domain.EmptyGallery())

	st := f.sync.State()
	assert.Equal(t, StatusUninitialized, st.Status)
	assert.NotNil(t, st.Data.Finished)
	assert.NotNil(t, st.Data.WIP)
	assert.Zero(t, f.remote.getCalls.Load())
}

// ─────────────────────────────
// Read path
// ─────────────────────────────

func TestLoadEmptyCacheFetches(t *testing.T) {
	imgA := image("a", domain.CategoryFinished, 0)
	f := newFixture(t, gallery(imgA))

	var statuses []Status
	f.sync.Subscribe(func(st State) { statuses = append(statuses, st.Status) })

	st := f.sync.Load(context.Background())

	assert.Equal(t, StatusReady, st.Status)
	assert.Empty(t, st.Error)
	assert.True(t, st.Data.Equal(gallery(imgA)))
	assert.Equal(t, []Status{StatusLoadingFromCache, StatusReady}, statuses)

	cached, ok := f.cached(t)
	require.True(t, ok)
	assert.True(t, cached.Equal(gallery(imgA)))
	ts, ok, _ := f.cache.Get(context.Background(), KeyTimestamp)
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(f.clock.Now().UnixMilli(), 10), string(ts))
}

func TestLoadFreshCacheServesImmediately(t *testing.T) {
	imgA := image("a", domain.CategoryFinished, 0)
	imgB := image("b", domain.CategoryWIP, 0)
	f := newFixture(t, gallery(imgA, imgB))
	f.seedCache(t, gallery(imgA), 5*time.Minute-time.Millisecond)
	f.remote.gate = make(chan struct{})

	st := f.sync.Load(context.Background())

	assert.Equal(t, StatusBackgroundRefreshing, st.Status)
	assert.True(t, st.Data.Equal(gallery(imgA)), "cached data served before the network answers")

	close(f.remote.gate)
	f.sync.Wait()

	st = f.sync.State()
	assert.Equal(t, StatusReady, st.Status)
	assert.True(t, st.Data.Equal(gallery(imgA, imgB)))
	assert.Equal(t, int32(1), f.remote.getCalls.Load())
}

func TestLoadExpiredCacheFetchesAndEvicts(t *testing.T) {
	imgA := image("a", domain.CategoryFinished, 0)
	f := newFixture(t, domain.EmptyGallery())
	f.seedCache(t, gallery(imgA), 5*time.Minute)
	f.remote.getErr = errOffline

	st := f.sync.Load(context.Background())

	assert.Equal(t, int32(1), f.remote.getCalls.Load(), "expired entry triggers a fetch")
	_, ok := f.cached(t)
	assert.False(t, ok, "expired entry removed")
	_, ok, _ = f.cache.Get(context.Background(), KeyTimestamp)
	assert.False(t, ok)

	assert.Equal(t, StatusErrorWithStaleData, st.Status, "stale copy still used offline")
	assert.Equal(t, MsgOffline, st.Error)
	assert.True(t, st.Data.Equal(gallery(imgA)))
}

func TestLoadOfflineWithRecentCache(t *testing.T) {
	imgA := image("a", domain.CategoryFinished, 0)
	f := newFixture(t, domain.EmptyGallery())
	f.seedCache(t, gallery(imgA), time.Minute)
	f.remote.getErr = errOffline

	st := f.sync.Load(context.Background())
	assert.True(t, st.Data.Equal(gallery(imgA)))

	f.sync.Wait()
	st = f.sync.State()
	assert.Equal(t, StatusErrorWithStaleData, st.Status)
	assert.Equal(t, MsgOffline, st.Error)
	assert.True(t, st.Data.Equal(gallery(imgA)))
}

func TestLoadOfflineWithoutCache(t *testing.T) {
	f := newFixture(t, domain.EmptyGallery())
	f.remote.getErr = errOffline

	st := f.sync.Load(context.Background())

	assert.Equal(t, StatusErrorNoData, st.Status)
	assert.Equal(t, MsgLoadFailed, st.Error)
	assert.NotNil(t, st.Data.Finished)
	assert.NotNil(t, st.Data.WIP)
	assert.Zero(t, st.Data.Len())
}

func TestLoadCorruptCacheIsIgnored(t *testing.T) {
	imgA := image("a", domain.CategoryFinished, 0)
	f := newFixture(t, gallery(imgA))
	require.NoError(t, f.cache.Set(context.Background(), KeyData, []byte("{oops")))

	st := f.sync.Load(context.Background())

	assert.Equal(t, StatusReady, st.Status)
	assert.True(t, st.Data.Equal(gallery(imgA)))
}

func TestCachedDataIsRepartitioned(t *testing.T) {
	misplaced := image("w", domain.CategoryWIP, 0)
	f := newFixture(t, domain.EmptyGallery())
	f.remote.gate = make(chan struct{})
	f.seedCache(t, domain.GalleryData{
		Finished: []domain.GalleryImage{misplaced, image("a", domain.CategoryFinished, 0)},
		WIP:      []domain.GalleryImage{misplaced},
	}, time.Second)

	st := f.sync.Load(context.Background())
	close(f.remote.gate)

	assertPartition(t, st.Data)
	assert.Len(t, st.Data.Finished, 1)
	assert.Len(t, st.Data.WIP, 1)
}

func TestConcurrentLoadsFetchOnce(t *testing.T) {
	f := newFixture(t, gallery(image("a", domain.CategoryFinished, 0)))
	f.remote.gate = make(chan struct{})
	f.remote.started = make(chan struct{}, 1)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.sync.Load(context.Background())
		}()
	}
	<-f.remote.started
	close(f.remote.gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.remote.getCalls.Load())
	assert.Equal(t, StatusReady, f.sync.State().Status)

	f.sync.Load(context.Background())
	assert.Equal(t, int32(1), f.remote.getCalls.Load(), "already initialized")
}

func TestConcurrentRefreshesShareOneFetch(t *testing.T) {
	f := loaded(t, gallery(image("a", domain.CategoryFinished, 0)))
	f.remote.gate = make(chan struct{})
	f.remote.started = make(chan struct{}, 1)
	before := f.remote.getCalls.Load()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, f.sync.Refresh(context.Background()))
	}()
	<-f.remote.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, f.sync.Refresh(context.Background()))
	}()
	time.Sleep(20 * time.Millisecond)
	close(f.remote.gate)
	wg.Wait()

	assert.Equal(t, before+1, f.remote.getCalls.Load())
}

func TestRefreshBypassesCacheAndGuard(t *testing.T) {
	imgA := image("a", domain.CategoryFinished, 0)
	imgB := image("b", domain.CategoryFinished, 1)
	f := loaded(t, gallery(imgA))

	f.remote.mu.Lock()
	f.remote.gallery = gallery(imgA, imgB)
	f.remote.mu.Unlock()

	require.NoError(t, f.sync.Refresh(context.Background()))
	assert.True(t, f.sync.Gallery().Equal(gallery(imgA, imgB)))
	assert.Equal(t, int32(2), f.remote.getCalls.Load())
}

func TestRefreshFailureKeepsData(t *testing.T) {
	imgA := image("a", domain.CategoryFinished, 0)
	f := loaded(t, gallery(imgA))
	f.remote.getErr = errOffline

	err := f.sync.Refresh(context.Background())

	assert.ErrorIs(t, err, errOffline)
	st := f.sync.State()
	assert.True(t, st.Data.Equal(gallery(imgA)))
	assert.Equal(t, MsgRefreshFailed, st.Error)
	assert.Equal(t, StatusReady, st.Status)
}

func TestIdenticalRefreshDoesNotNotify(t *testing.T) {
	f := loaded(t, gallery(image("a", domain.CategoryFinished, 0)))

	notified := 0
	f.sync.Subscribe(func(State) { notified++ })

	require.NoError(t, f.sync.Refresh(context.Background()))
	assert.Zero(t, notified)
}

func TestBackgroundRefreshDiscardedAfterLocalWrite(t *testing.T) {
	imgA := image("a", domain.CategoryFinished, 0)
	f := newFixture(t, gallery(imgA))
	f.seedCache(t, gallery(imgA), time.Second)
	f.remote.gate = make(chan struct{})
	f.remote.started = make(chan struct{}, 1)

	f.sync.Load(context.Background())
	<-f.remote.started

	// the remote still answers width 1 for the in-flight read
	require.NoError(t, f.sync.UpdateImage(context.Background(), "a", domain.Resize(4)))
	close(f.remote.gate)
	f.sync.Wait()

	st := f.sync.State()
	img, ok := st.Data.Find("a")
	require.True(t, ok)
	assert.Equal(t, 4, img.Width, "stale background read must not undo the local write")
	assert.Equal(t, StatusReady, st.Status)

	cached, _ := f.cached(t)
	img, _ = cached.Find("a")
	assert.Equal(t, 4, img.Width)
}

func TestRefreshDuringDeleteIsDiscarded(t *testing.T) {
	imgA := image("a", domain.CategoryFinished, 0)
	imgB := image("b", domain.CategoryFinished, 1)
	f := loaded(t, gallery(imgA, imgB))

	// the server still lists a until its delete returns
	f.remote.during = func() {
		assert.NoError(t, f.sync.Refresh(context.Background()))
	}

	require.NoError(t, f.sync.DeleteImage(context.Background(), "a"))

	st := f.sync.State()
	_, ok := st.Data.Find("a")
	assert.False(t, ok, "a is gone from state")
	assert.Empty(t, st.Error)
	cached, _ := f.cached(t)
	_, ok = cached.Find("a")
	assert.False(t, ok, "a is gone from the cache")

	f.remote.during = nil
	f.remote.mu.Lock()
	f.remote.gallery = gallery(imgB)
	f.remote.mu.Unlock()
	require.NoError(t, f.sync.Refresh(context.Background()))
	assert.True(t, f.sync.Gallery().Equal(gallery(imgB)), "later refreshes apply again")
}

func TestDiscardedFetchKeepsMutationError(t *testing.T) {
	imgA := image("a", domain.CategoryFinished, 0)
	f := newFixture(t, gallery(imgA))
	f.seedCache(t, gallery(imgA), time.Second)
	f.remote.gate = make(chan struct{})
	f.remote.started = make(chan struct{}, 1)
	f.remote.updateErr = errOffline

	f.sync.Load(context.Background())
	<-f.remote.started

	require.ErrorIs(t, f.sync.UpdateImage(context.Background(), "a", domain.Resize(4)), errOffline)
	require.Equal(t, MsgUpdateFailed, f.sync.State().Error)

	close(f.remote.gate)
	f.sync.Wait()

	st := f.sync.State()
	assert.Equal(t, MsgUpdateFailed, st.Error)
	assert.Equal(t, StatusReady, st.Status)
	img, _ := st.Data.Find("a")
	assert.Equal(t, 1, img.Width)
}

func TestRefreshSurvivesCancelledSharedLoad(t *testing.T) {
	imgA := image("a", domain.CategoryFinished, 0)
	f := newFixture(t, gallery(imgA))
	f.remote.gate = make(chan struct{})
	f.remote.started = make(chan struct{}, 1)

	loadCtx, cancel := context.WithCancel(context.Background())
	loadDone := make(chan State, 1)
	go func() { loadDone <- f.sync.Load(loadCtx) }()
	<-f.remote.started

	cancel()
	st := <-loadDone
	assert.Equal(t, StatusErrorNoData, st.Status)

	refreshErr := make(chan error, 1)
	go func() { refreshErr <- f.sync.Refresh(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(f.remote.gate)

	require.NoError(t, <-refreshErr)
	assert.Equal(t, int32(1), f.remote.getCalls.Load(), "refresh joined the load's request")
	st = f.sync.State()
	assert.Equal(t, StatusReady, st.Status)
	assert.True(t, st.Data.Equal(gallery(imgA)))
}

// ─────────────────────────────
// Mutations
// ─────────────────────────────

func TestUpdateImageOptimistic(t *testing.T) {
	f := loaded(t, gallery(image("x", domain.CategoryFinished, 0)))

	var during domain.GalleryData
	f.remote.during = func() { during = f.sync.Gallery() }

	require.NoError(t, f.sync.UpdateImage(context.Background(), "x", domain.Resize(3)))

	img, _ := during.Find("x")
	assert.Equal(t, 3, img.Width, "applied before the remote call")
	img, _ = f.sync.Gallery().Find("x")
	assert.Equal(t, 3, img.Width)
}

func TestUpdateImageRollback(t *testing.T) {
	before := gallery(image("x", domain.CategoryFinished, 0), image("y", domain.CategoryWIP, 0))
	f := loaded(t, before)
	f.remote.updateErr = &client.StatusError{StatusCode: http.StatusInternalServerError, Message: "boom"}

	err := f.sync.UpdateImage(context.Background(), "x", domain.Resize(3))

	require.Error(t, err)
	st := f.sync.State()
	assert.True(t, st.Data.Equal(before))
	img, _ := st.Data.Find("x")
	assert.Equal(t, 1, img.Width)
	assert.Equal(t, MsgUpdateFailed, st.Error)

	cached, _ := f.cached(t)
	assert.True(t, cached.Equal(before), "cache rolled back too")
}

func TestUpdateImageSurfacesServerValidation(t *testing.T) {
	f := loaded(t, gallery(image("x", domain.CategoryFinished, 0)))
	f.remote.updateErr = &client.StatusError{StatusCode: http.StatusBadRequest, Message: "invalid description"}

	_ = f.sync.UpdateImage(context.Background(), "x", domain.Rename("new"))
	assert.Equal(t, "invalid description", f.sync.State().Error)
}

func TestUpdateImageValidatesBeforeNetwork(t *testing.T) {
	f := loaded(t, gallery(image("x", domain.CategoryFinished, 0)))
	rev := f.sync.State().Revision

	err := f.sync.UpdateImage(context.Background(), "x", domain.Resize(8))

	assert.ErrorIs(t, err, domain.ErrInvalid)
	assert.Zero(t, f.remote.mutateCalls.Load())
	st := f.sync.State()
	assert.Equal(t, domain.ErrWidthRange, st.Error)
	assert.Equal(t, rev, st.Revision)

	err = f.sync.UpdateImage(context.Background(), "x", domain.ImagePatch{})
	assert.ErrorIs(t, err, domain.ErrInvalid)
	assert.Zero(t, f.remote.mutateCalls.Load())
}

func TestUpdateImageUnknownLocally(t *testing.T) {
	before := gallery(image("x", domain.CategoryFinished, 0))
	f := loaded(t, before)
	rev := f.sync.State().Revision

	require.NoError(t, f.sync.UpdateImage(context.Background(), "ghost", domain.Resize(2)))

	st := f.sync.State()
	assert.True(t, st.Data.Equal(before))
	assert.Equal(t, rev, st.Revision, "local no-op")
	assert.Equal(t, int32(1), f.remote.mutateCalls.Load())
}

func TestUpdateImageCategoryMove(t *testing.T) {
	f := loaded(t, gallery(
		image("a", domain.CategoryFinished, 0),
		image("b", domain.CategoryFinished, 1),
		image("w", domain.CategoryWIP, 0),
	))

	require.NoError(t, f.sync.UpdateImage(context.Background(), "a", domain.Recategorize(domain.CategoryWIP)))

	d := f.sync.Gallery()
	assertPartition(t, d)
	require.Len(t, d.WIP, 2)
	assert.Equal(t, "a", d.WIP[1].ID, "moved to the end of the other collection")
	assert.Len(t, d.Finished, 1)
}

func TestDeleteImage(t *testing.T) {
	f := loaded(t, gallery(image("a", domain.CategoryFinished, 0), image("w", domain.CategoryWIP, 0)))

	require.NoError(t, f.sync.DeleteImage(context.Background(), "w"))

	d := f.sync.Gallery()
	_, ok := d.Find("w")
	assert.False(t, ok)
	assert.NotNil(t, d.WIP)
}

func TestDeleteImageRollback(t *testing.T) {
	before := gallery(image("a", domain.CategoryFinished, 0), image("w", domain.CategoryWIP, 0))
	f := loaded(t, before)
	f.remote.deleteErr = errOffline

	var during domain.GalleryData
	f.remote.during = func() { during = f.sync.Gallery() }

	err := f.sync.DeleteImage(context.Background(), "a")

	assert.ErrorIs(t, err, errOffline)
	_, ok := during.Find("a")
	assert.False(t, ok, "removed before the remote call")
	st := f.sync.State()
	assert.True(t, st.Data.Equal(before))
	assert.Equal(t, MsgDeleteFailed, st.Error)
}

func TestAddImageReplacesPlaceholder(t *testing.T) {
	f := loaded(t, gallery(image("w", domain.CategoryWIP, 3)))

	var during domain.GalleryData
	f.remote.during = func() { during = f.sync.Gallery() }

	add := draft(domain.CategoryWIP)
	add.Src = "https://cdn.example.com/new.jpg"
	created, err := f.sync.AddImage(context.Background(), add)
	require.NoError(t, err)

	require.Len(t, during.WIP, 2)
	pending := during.WIP[1]
	assert.True(t, IsPending(pending), pending.ID)
	assert.Equal(t, 4, pending.Order, "appended after max order")

	assert.Equal(t, "srv-1", created.ID)
	d := f.sync.Gallery()
	require.Len(t, d.WIP, 2)
	assert.Equal(t, "srv-1", d.WIP[1].ID)
	assert.Equal(t, "https://cdn.example.com/new.jpg", d.WIP[1].Src)
	_, ok := d.Find(pending.ID)
	assert.False(t, ok)
	assertPartition(t, d)

	cached, _ := f.cached(t)
	_, ok = cached.Find("srv-1")
	assert.True(t, ok)
}

func TestAddImageServerRecordAlreadyPresent(t *testing.T) {
	f := loaded(t, gallery(image("srv-1", domain.CategoryWIP, 0)))

	add := draft(domain.CategoryWIP)
	_, err := f.sync.AddImage(context.Background(), add)
	require.NoError(t, err)

	d := f.sync.Gallery()
	assert.Len(t, d.WIP, 1, "placeholder dropped instead of duplicating srv-1")
	assertPartition(t, d)
}

func TestAddImageRollback(t *testing.T) {
	before := gallery(image("a", domain.CategoryFinished, 0))
	f := loaded(t, before)
	f.remote.createErr = &client.StatusError{StatusCode: http.StatusConflict, Message: "image already exists"}

	add := draft(domain.CategoryFinished)
	_, err := f.sync.AddImage(context.Background(), add)

	assert.ErrorIs(t, err, domain.ErrConflict)
	st := f.sync.State()
	assert.True(t, st.Data.Equal(before))
	assert.Equal(t, "image already exists", st.Error)
}

func TestAddImageValidation(t *testing.T) {
	f := loaded(t, domain.EmptyGallery())

	tests := []struct {
		name  string
		image domain.GalleryImage
	}{
		{name: "no src", image: domain.GalleryImage{Alt: "a", Description: "d", Category: domain.CategoryWIP, Year: 1}},
		{name: "bad category", image: domain.GalleryImage{Src: "https://x/a", Alt: "a", Description: "d", Category: "draft", Year: 1}},
		{name: "bad width", image: domain.GalleryImage{Src: "https://x/a", Alt: "a", Description: "d", Category: domain.CategoryWIP, Year: 1, Width: 9}},
		{name: "missing alt", image: domain.GalleryImage{Src: "https://x/a", Description: "d", Category: domain.CategoryWIP, Year: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sync.AddImage(context.Background(), tt.image)
			assert.ErrorIs(t, err, domain.ErrInvalid)
		})
	}
	assert.Zero(t, f.remote.mutateCalls.Load())
	assert.Zero(t, f.sync.Gallery().Len())
}

func TestUploadImage(t *testing.T) {
	f := loaded(t, domain.EmptyGallery())

	var during domain.GalleryData
	f.remote.during = func() { during = f.sync.Gallery() }

	created, err := f.sync.UploadImage(context.Background(), client.Upload{
		Filename: "cat.png",
		Body:     strings.NewReader("png"),
		Meta:     domain.NewImage{Alt: "Cat", Description: "d", Category: domain.CategoryWIP, Year: 2024},
	})
	require.NoError(t, err)

	require.Len(t, during.WIP, 1)
	assert.True(t, IsPending(during.WIP[0]))
	assert.Equal(t, domain.DefaultWidth, during.WIP[0].Width)

	assert.Equal(t, "https://media.example.com/cat.png", created.Src)
	d := f.sync.Gallery()
	require.Len(t, d.WIP, 1)
	assert.Equal(t, "srv-1", d.WIP[0].ID)

	_, err = f.sync.UploadImage(context.Background(), client.Upload{
		Filename: "x.png",
		Meta:     domain.NewImage{Alt: "Cat", Description: "d", Category: domain.CategoryWIP, Year: 2024},
	})
	assert.ErrorIs(t, err, domain.ErrInvalid, "no body")
}

func TestReorderImages(t *testing.T) {
	imgA := image("a", domain.CategoryFinished, 0)
	imgB := image("b", domain.CategoryFinished, 1)
	imgW := image("w", domain.CategoryWIP, 0)
	f := loaded(t, gallery(imgA, imgB, imgW))

	changed := f.sync.ReorderImages(context.Background(), []domain.GalleryImage{imgB, imgW, imgA})
	require.True(t, changed)

	d := f.sync.Gallery()
	require.Len(t, d.Finished, 2)
	assert.Equal(t, "b", d.Finished[0].ID)
	assert.Equal(t, 0, d.Finished[0].Order)
	assert.Equal(t, "a", d.Finished[1].ID)
	assert.Equal(t, 1, d.Finished[1].Order)
	require.Len(t, d.WIP, 1)
	assert.Equal(t, "w", d.WIP[0].ID)

	cached, _ := f.cached(t)
	assert.True(t, cached.SameSequence(d))
}

func TestReorderImagesNoop(t *testing.T) {
	imgA := image("a", domain.CategoryFinished, 0)
	imgB := image("b", domain.CategoryFinished, 1)
	f := loaded(t, gallery(imgA, imgB))
	rev := f.sync.State().Revision

	notified := 0
	f.sync.Subscribe(func(State) { notified++ })

	changed := f.sync.ReorderImages(context.Background(), []domain.GalleryImage{imgA, imgB})

	assert.False(t, changed)
	assert.Zero(t, notified)
	assert.Equal(t, rev, f.sync.State().Revision)
	assert.Zero(t, f.remote.mutateCalls.Load(), "reorder never persists by itself")
}

func TestReorderImagesDropsDuplicates(t *testing.T) {
	imgA := image("a", domain.CategoryFinished, 0)
	imgB := image("b", domain.CategoryFinished, 1)
	f := loaded(t, gallery(imgA, imgB))

	f.sync.ReorderImages(context.Background(), []domain.GalleryImage{imgB, imgA, imgB})

	d := f.sync.Gallery()
	assertPartition(t, d)
	assert.Len(t, d.Finished, 2)
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, gallery(image("a", domain.CategoryFinished, 0)))

	var mu sync.Mutex
	var got []State
	unsubscribe := f.sync.Subscribe(func(st State) {
		mu.Lock()
		got = append(got, st)
		mu.Unlock()
	})

	f.sync.Load(context.Background())
	require.NoError(t, f.sync.DeleteImage(context.Background(), "a"))
	unsubscribe()
	f.sync.ReorderImages(context.Background(), []domain.GalleryImage{image("a", domain.CategoryFinished, 0)})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.Equal(t, StatusReady, got[1].Status)
	assert.Equal(t, uint64(1), got[2].Revision)
	assert.Zero(t, got[2].Data.Len())
}

func TestStateIsACopy(t *testing.T) {
	f := loaded(t, gallery(image("a", domain.CategoryFinished, 0)))

	st := f.sync.State()
	st.Data.Finished[0].Alt = "mutated"

	img, _ := f.sync.Gallery().Find("a")
	assert.Equal(t, "A", img.Alt)
}
