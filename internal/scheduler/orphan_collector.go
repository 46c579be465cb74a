package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MrSnakeDoc/folio/internal/logger"
	"github.com/MrSnakeDoc/folio/internal/objectstore"
)

const (
	// DefaultOrphanGrace protects objects whose row may still be in flight.
	DefaultOrphanGrace = 24 * time.Hour
)

var (
	orphansDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "folio",
		Subsystem: "orphan_gc",
		Name:      "deleted_total",
		Help:      "Bucket objects deleted because no image references them",
	})
	orphanRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "folio",
		Subsystem: "orphan_gc",
		Name:      "runs_total",
		Help:      "Orphan collector runs by result",
	}, []string{"result"})
)

// Bucket is the part of the object store the collector needs.
type Bucket interface {
	List(ctx context.Context) ([]objectstore.Object, error)
	Delete(ctx context.Context, key string) error
	Orphans(objects []objectstore.Object, srcs []string, now time.Time, grace time.Duration) []objectstore.Object
}

// SourceLister returns the src of every stored image.
type SourceLister interface {
	Sources(ctx context.Context) ([]string, error)
}

// OrphanCollector deletes bucket objects that no image points to anymore:
// leftovers of failed uploads or of deletes whose object removal failed.
type OrphanCollector struct {
	bucket   Bucket
	sources  SourceLister
	logger   logger.Logger
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
	stopCh   chan struct{}
}

// NewOrphanCollector creates a collector. A zero grace uses DefaultOrphanGrace.
func NewOrphanCollector(
	bucket Bucket,
	sources SourceLister,
	log logger.Logger,
	interval time.Duration,
	grace time.Duration,
) *OrphanCollector {
	if grace == 0 {
		grace = DefaultOrphanGrace
	}

	return &OrphanCollector{
		bucket:   bucket,
		sources:  sources,
		logger:   log.With(logger.Component("orphan_gc")),
		interval: interval,
		grace:    grace,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs a collection immediately, then every interval. A non-positive
// interval disables the periodic run.
func (oc *OrphanCollector) Start(ctx context.Context) error {
	if oc.interval <= 0 {
		oc.logger.Info("orphan collector disabled")
		return nil
	}

	if _, err := oc.Collect(ctx); err != nil {
		oc.logger.Warn("initial orphan collection failed", logger.Error(err))
	}

	ticker := time.NewTicker(oc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := oc.Collect(ctx); err != nil {
					oc.logger.Error("orphan collection failed", logger.Error(err))
				}
			case <-oc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the periodic run.
func (oc *OrphanCollector) Stop() {
	close(oc.stopCh)
}

// FindOrphans lists unreferenced objects older than the grace period
// without deleting them.
func (oc *OrphanCollector) FindOrphans(ctx context.Context) ([]objectstore.Object, error) {
	objects, err := oc.bucket.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket: %w", err)
	}
	srcs, err := oc.sources.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list image sources: %w", err)
	}
	return oc.bucket.Orphans(objects, srcs, oc.now(), oc.grace), nil
}

// Collect deletes orphans and returns how many were removed. Individual
// delete failures are logged and skipped.
func (oc *OrphanCollector) Collect(ctx context.Context) (int, error) {
	orphans, err := oc.FindOrphans(ctx)
	if err != nil {
		orphanRuns.WithLabelValues("error").Inc()
		return 0, err
	}

	deleted := 0
	for _, o := range orphans {
		if err := oc.bucket.Delete(ctx, o.Key); err != nil {
			oc.logger.Warn("failed to delete orphan object",
				logger.String("key", o.Key),
				logger.Error(err))
			continue
		}
		deleted++
		orphansDeleted.Inc()
		oc.logger.Info("garbage collected orphan object",
			logger.String("key", o.Key),
			logger.Int64("size", o.Size),
			logger.String("age", oc.now().Sub(o.LastModified).Round(time.Second).String()))
	}

	if deleted > 0 {
		oc.logger.Info("orphan collection completed",
			logger.Int("found", len(orphans)),
			logger.Int("deleted", deleted))
	} else {
		oc.logger.Debug("no orphan objects to collect")
	}
	orphanRuns.WithLabelValues("ok").Inc()
	return deleted, nil
}
