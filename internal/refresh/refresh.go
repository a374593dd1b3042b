// Package refresh orchestrates the lifecycle of the derived
// mv_region_dashboard table: read the five base relations from a source,
// compute the summary, and atomically replace the table's contents.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudburst-mgmt/summary-refresh-service/internal/domain"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/observability"
)

// ErrSourceUnavailable marks a refresh that failed because the anchoring
// region relation could not be read. Failures on the other four relations
// are non-fatal and degrade that axis to its defaults.
var ErrSourceUnavailable = errors.New("region source unavailable")

// ErrSchemaConflict marks a derived table that already exists with an
// incompatible column shape. It must surface rather than let a refresh
// silently write into the wrong columns.
var ErrSchemaConflict = errors.New("summary table schema conflict")

// Source provides one full scan per base relation.
type Source interface {
	Name() string
	Regions(ctx context.Context) ([]domain.Region, error)
	Alerts(ctx context.Context) ([]domain.Alert, error)
	Resources(ctx context.Context) ([]domain.Resource, error)
	Distributions(ctx context.Context) ([]domain.DistributionEvent, error)
	Rainfall(ctx context.Context) ([]domain.RainfallReading, error)
}

// SummaryStore owns the derived table: schema creation and wholesale
// replacement of its rows.
type SummaryStore interface {
	// EnsureSchema idempotently creates the derived table and fails with
	// ErrSchemaConflict if it exists with an incompatible shape.
	EnsureSchema(ctx context.Context) error

	// ReplaceAll clears the table and bulk-inserts rows, transactionally
	// where the store supports it.
	ReplaceAll(ctx context.Context, rows []domain.RegionSummary) error
}

// Notifier publishes a refresh-completed event to downstream consumers.
type Notifier interface {
	NotifyRefreshed(ctx context.Context, sum domain.Summary, source string) error
}

// Refresher drives the aggregation engine against a source and persists
// the result. Overlapping refreshes are serialized: the design assumes one
// run completes before the next begins, so a mutex is the whole story.
type Refresher struct {
	logger   *slog.Logger
	metrics  *observability.Metrics
	notifier Notifier

	mu        sync.Mutex
	refreshed atomic.Bool
	last      atomic.Pointer[domain.Summary]
}

// New creates a Refresher. Pass a nil notifier to disable refresh-completed
// events.
func New(logger *slog.Logger, metrics *observability.Metrics, notifier Notifier) *Refresher {
	return &Refresher{
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
	}
}

// CheckReadiness returns nil once at least one refresh has completed
// successfully since startup.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if !r.refreshed.Load() {
		return errors.New("no refresh has completed yet")
	}
	return nil
}

// LastSummary returns the result of the most recent successful refresh.
// The boolean is false until one has completed.
func (r *Refresher) LastSummary() (domain.Summary, bool) {
	sum := r.last.Load()
	if sum == nil {
		return domain.Summary{}, false
	}
	return *sum, true
}

// Compute reads all five base relations from src and runs the aggregation
// engine, with no persistence side effects. A failed region scan is fatal;
// a failure on any other relation degrades that axis to empty and the
// computation proceeds.
func (r *Refresher) Compute(ctx context.Context, src Source) (domain.Summary, error) {
	regions, err := src.Regions(ctx)
	if err != nil {
		r.metrics.RefreshRuns.WithLabelValues(src.Name(), "compute_error").Inc()
		return domain.Summary{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	ds := domain.Dataset{Regions: regions}
	ds.Alerts = partial(ctx, r, src, "alerts", src.Alerts)
	ds.Resources = partial(ctx, r, src, "resources", src.Resources)
	ds.Distributions = partial(ctx, r, src, "distributions", src.Distributions)
	ds.Rainfall = partial(ctx, r, src, "rainfall", src.Rainfall)

	sum := domain.ComputeSummary(ds, domain.Today())

	r.metrics.SummaryRows.Set(float64(len(sum.Rows)))
	r.metrics.UnmatchedResourceRows.Set(float64(sum.UnmatchedResources))
	r.metrics.UnmatchedAlertRows.Set(float64(sum.UnmatchedAlerts))
	if sum.UnmatchedResources > 0 || sum.UnmatchedAlerts > 0 {
		r.logger.Warn("rows dropped by string-keyed joins",
			"unmatched_resources", sum.UnmatchedResources,
			"unmatched_alerts", sum.UnmatchedAlerts,
		)
	}

	return sum, nil
}

// Refresh computes the summary from src and replaces the derived table in
// store. The relations are read and the rows computed before the table is
// touched, so a source failure never leaves the table truncated. A nil
// store makes Refresh a compute-only preview.
func (r *Refresher) Refresh(ctx context.Context, src Source, store SummaryStore) (domain.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.RefreshRunning.Set(1)
	defer r.metrics.RefreshRunning.Set(0)
	start := time.Now()

	sum, err := r.Compute(ctx, src)
	if err != nil {
		return domain.Summary{}, err
	}

	if store != nil {
		if err := r.persist(ctx, src, store, sum); err != nil {
			return sum, err
		}
	}

	r.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	r.metrics.RefreshRuns.WithLabelValues(src.Name(), "success").Inc()
	r.metrics.LastRefreshTime.Set(float64(sum.RefreshedAt.Unix()))
	r.refreshed.Store(true)
	r.last.Store(&sum)

	r.logger.Info("summary refreshed",
		"source", src.Name(),
		"rows", len(sum.Rows),
		"as_of", sum.AsOf.Format(time.DateOnly),
		"persisted", store != nil,
	)

	r.notify(ctx, sum, src.Name())
	return sum, nil
}

// Persist writes previously computed rows into store using the same
// ensure-schema-then-replace contract as Refresh. It exists for the file
// path, where a caller computes once and fans out to several targets.
func (r *Refresher) Persist(ctx context.Context, store SummaryStore, sum domain.Summary) error {
	return r.persist(ctx, nil, store, sum)
}

func (r *Refresher) persist(ctx context.Context, src Source, store SummaryStore, sum domain.Summary) error {
	name := "none"
	if src != nil {
		name = src.Name()
	}

	if err := store.EnsureSchema(ctx); err != nil {
		r.metrics.RefreshRuns.WithLabelValues(name, "persist_error").Inc()
		return fmt.Errorf("ensure summary schema: %w", err)
	}
	if err := store.ReplaceAll(ctx, sum.Rows); err != nil {
		r.metrics.RefreshRuns.WithLabelValues(name, "persist_error").Inc()
		// The table may now be empty until the next successful refresh;
		// that window is the documented cost of the destructive rebuild.
		r.logger.Error("summary bulk write failed, table may be empty until next refresh", "error", err)
		return fmt.Errorf("replace summary rows: %w", err)
	}
	return nil
}

func (r *Refresher) notify(ctx context.Context, sum domain.Summary, source string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyRefreshed(ctx, sum, source); err != nil {
		r.metrics.NotifyFailures.Inc()
		r.logger.Warn("refresh notification failed", "error", err)
	}
}

// partial runs one non-anchoring relation scan, logging and counting a
// failure instead of propagating it.
func partial[T any](ctx context.Context, r *Refresher, src Source, entity string, fetch func(context.Context) ([]T, error)) []T {
	rows, err := fetch(ctx)
	if err != nil {
		r.metrics.PartialDataErrors.WithLabelValues(entity).Inc()
		r.logger.Warn("base relation unavailable, degrading to empty",
			"entity", entity, "source", src.Name(), "error", err)
		return nil
	}
	return rows
}
