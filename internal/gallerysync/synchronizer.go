package gallerysync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/folio/internal/client"
	"github.com/MrSnakeDoc/folio/internal/domain"
	"github.com/MrSnakeDoc/folio/internal/logger"
)

// Remote is the gallery service. *client.Client implements it.
type Remote interface {
	GetGallery(ctx context.Context) (domain.GalleryData, error)
	UpdateImage(ctx context.Context, id string, p domain.ImagePatch) (domain.GalleryImage, error)
	DeleteImage(ctx context.Context, id string) error
	RegisterImage(ctx context.Context, meta domain.NewImage) (domain.GalleryImage, error)
	CreateImage(ctx context.Context, up client.Upload) (domain.GalleryImage, error)
}

type Option func(*Synchronizer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// WithFreshness overrides DefaultFreshness.
func WithFreshness(d time.Duration) Option {
	return func(s *Synchronizer) { s.freshness = d }
}

func WithLogger(log logger.Logger) Option {
	return func(s *Synchronizer) { s.log = log }
}

// Synchronizer owns the in-memory gallery, its cached snapshot and the
// optimistic mutations applied to both.
type Synchronizer struct {
	remote    Remote
	cache     Cache
	log       logger.Logger
	now       func() time.Time
	freshness time.Duration

	flight singleflight.Group
	bg     sync.WaitGroup

	mu          sync.Mutex
	state       State
	initialized bool
	// inflight counts remote mutations not yet answered.
	inflight    int
	listeners   map[int]func(State)
	nextID      int
}

func New(remote Remote, cache Cache, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		remote:    remote,
		cache:     cache,
		log:       logger.Nop(),
		now:       time.Now,
		freshness: DefaultFreshness,
		state:     State{Status: StatusUninitialized, Data: domain.EmptyGallery()},
		listeners: map[int]func(State){},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the current state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Gallery returns the current data; collections are never nil.
func (s *Synchronizer) Gallery() domain.GalleryData {
	return s.State().Data
}

// Subscribe registers fn to be called after every effective state change.
// fn may run on a background goroutine and must not block.
func (s *Synchronizer) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Wait blocks until background refreshes started by Load are done.
func (s *Synchronizer) Wait() {
	s.bg.Wait()
}

// commit applies fn to the state under the lock and notifies listeners when
// fn reports a change.
func (s *Synchronizer) commit(fn func(st *State) bool) State {
	s.mu.Lock()
	changed := fn(&s.state)
	snap := s.state.clone()
	var listeners []func(State)
	if changed {
		listeners = make([]func(State), 0, len(s.listeners))
		for _, l := range s.listeners {
			listeners = append(listeners, l)
		}
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap.clone())
	}
	return snap
}

// ─────────────────────────────
// Read path
// ─────────────────────────────

// Load is the mount transition. The first call in the lifetime of the
// Synchronizer serves a fresh cached snapshot immediately and refreshes it in
// the background, or fetches directly when there is none. Concurrent calls
// share the first one; later calls return the current state untouched.
func (s *Synchronizer) Load(ctx context.Context) State {
	_, _, _ = s.flight.Do("load", func() (any, error) {
		s.mu.Lock()
		if s.initialized {
			s.mu.Unlock()
			return nil, nil
		}
		s.initialized = true
		s.mu.Unlock()

		s.load(ctx)
		return nil, nil
	})
	return s.State()
}

func (s *Synchronizer) load(ctx context.Context) {
	s.mu.Lock()
	rev := s.state.Revision
	s.mu.Unlock()

	snap := s.readSnapshot(ctx)

	if snap.fresh {
		s.commit(func(st *State) bool {
			st.Status = StatusBackgroundRefreshing
			st.Data = snap.data
			st.Error = ""
			return true
		})
		s.log.Debug("serving cached gallery, refreshing in background")

		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			s.backgroundRefresh(context.WithoutCancel(ctx), snap, rev)
		}()
		return
	}

	s.commit(func(st *State) bool {
		changed := st.Status != StatusLoadingFromCache
		st.Status = StatusLoadingFromCache
		return changed
	})

	res, err := s.fetch(ctx)
	if err != nil {
		s.log.Warn("failed to fetch gallery", logger.Error(err))
		s.failRead(snap, rev)
		return
	}
	s.applyFetched(ctx, res)
}

func (s *Synchronizer) backgroundRefresh(ctx context.Context, cached snapshot, rev uint64) {
	res, err := s.fetch(ctx)
	if err != nil {
		s.log.Warn("background refresh failed", logger.Error(err))
		s.failRead(cached, rev)
		return
	}
	s.applyFetched(ctx, res)
}

// failRead falls back to the cached copy, stale or not. Local writes made
// since rev are kept and count as data to show.
func (s *Synchronizer) failRead(snap snapshot, rev uint64) {
	s.commit(func(st *State) bool {
		localWrites := st.Revision != rev
		switch {
		case snap.present && !localWrites:
			st.Data = snap.data
			fallthrough
		case localWrites:
			st.Status = StatusErrorWithStaleData
			st.Error = MsgOffline
		default:
			st.Status = StatusErrorNoData
			st.Data = domain.EmptyGallery()
			st.Error = MsgLoadFailed
		}
		return true
	})
}

type fetchResult struct {
	data       domain.GalleryData
	revision   uint64
	// overlapped is set when a remote mutation was pending at issue time;
	// the server may not have applied it yet.
	overlapped bool
}

// fetch collapses concurrent remote reads into one request. The revision is
// captured when the request is issued, not when a caller joins it. The
// shared request ignores the cancellation of whichever caller started it;
// each caller stops waiting when its own ctx is done.
func (s *Synchronizer) fetch(ctx context.Context) (fetchResult, error) {
	ch := s.flight.DoChan("fetch", func() (any, error) {
		s.mu.Lock()
		rev, overlapped := s.state.Revision, s.inflight > 0
		s.mu.Unlock()

		data, err := s.remote.GetGallery(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return fetchResult{data: sanitize(data), revision: rev, overlapped: overlapped}, nil
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return fetchResult{}, ctx.Err()
	}
	if r.Err != nil {
		return fetchResult{}, r.Err
	}
	if r.Shared {
		s.log.Debug("joined in-flight gallery fetch")
	}
	res := r.Val.(fetchResult)
	res.data = res.data.Clone()
	return res, nil
}

// applyFetched installs remote data unless it may predate a local write: a
// write happened since the fetch was issued, or a remote mutation was
// pending while it ran. Identical data leaves Data untouched. A discarded
// result keeps Error so that a failed mutation stays visible.
func (s *Synchronizer) applyFetched(ctx context.Context, res fetchResult) {
	var stale bool
	s.commit(func(st *State) bool {
		prevStatus, prevErr := st.Status, st.Error

		if res.revision != st.Revision || res.overlapped || s.inflight > 0 {
			stale = true
			if st.Status == StatusLoadingFromCache || st.Status == StatusBackgroundRefreshing {
				st.Status = StatusReady
			}
			return prevStatus != st.Status
		}

		st.Status = StatusReady
		st.Error = ""
		if !st.Data.Equal(res.data) {
			st.Data = res.data
			return true
		}
		// unchanged, keep Data to spare a re-render
		return prevStatus != st.Status || prevErr != st.Error
	})

	if stale {
		s.log.Info("discarding gallery fetched around a local change",
			logger.Uint64("fetched_at_revision", res.revision),
			logger.Bool("overlapped", res.overlapped))
		return
	}
	s.writeSnapshot(ctx, res.data)
}

// Refresh forces a remote fetch, bypassing the cache and the initialized
// guard. On failure the data is left unchanged and the error is returned.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	res, err := s.fetch(ctx)
	if err != nil {
		s.log.Warn("gallery refresh failed", logger.Error(err))
		s.commit(func(st *State) bool {
			if st.Status == StatusUninitialized || st.Status == StatusLoadingFromCache {
				st.Status = StatusErrorNoData
			}
			st.Error = MsgRefreshFailed
			return true
		})
		return fmt.Errorf("refresh gallery: %w", err)
	}
	s.applyFetched(ctx, res)
	return nil
}

