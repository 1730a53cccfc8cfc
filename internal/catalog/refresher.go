package catalog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kavyarao/streamfilter/internal/query/pattern"
	"github.com/kavyarao/streamfilter/pkg/resilience"
)

// Refresher rebuilds the pattern table from catalog lookups on a fixed
// interval, so newly added providers and genres become recognizable
// without a restart. The current table is swapped atomically; readers
// always see a complete table.
type Refresher struct {
	store    *Store
	interval time.Duration
	table    atomic.Pointer[pattern.Table]
	logger   *slog.Logger

	onRefresh func(status string)
}

// NewRefresher creates a refresher seeded with the given table. seed
// must not be nil; use pattern.Default() when the catalog is down at
// startup.
func NewRefresher(store *Store, seed *pattern.Table, interval time.Duration) *Refresher {
	r := &Refresher{
		store:    store,
		interval: interval,
		logger:   slog.Default().With("component", "lookup-refresher"),
	}
	r.table.Store(seed)
	return r
}

// OnRefresh registers a callback invoked with "success" or "failure"
// after each refresh attempt, for metrics.
func (r *Refresher) OnRefresh(fn func(status string)) {
	r.onRefresh = fn
}

// Table returns the current pattern table. Safe for concurrent use.
func (r *Refresher) Table() *pattern.Table {
	return r.table.Load()
}

// Refresh loads lookups and rebuilds the table once, with retries.
// The old table stays in place on failure.
func (r *Refresher) Refresh(ctx context.Context) error {
	var table *pattern.Table
	err := resilience.Retry(ctx, "lookup-refresh", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		lookups, err := r.store.LoadLookups(ctx)
		if err != nil {
			return err
		}
		t, err := pattern.NewFromLookups(lookups)
		if err != nil {
			return err
		}
		table = t
		return nil
	})
	if err != nil {
		if r.onRefresh != nil {
			r.onRefresh("failure")
		}
		return err
	}

	r.table.Store(table)
	if r.onRefresh != nil {
		r.onRefresh("success")
	}
	r.logger.Info("pattern table refreshed", "rules", table.Len())
	return nil
}

// Start launches the periodic refresh loop. It returns immediately;
// the loop stops when ctx is canceled.
func (r *Refresher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := r.Refresh(ctx); err != nil {
					r.logger.Error("periodic refresh failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	r.logger.Info("periodic lookup refresh started", "interval", r.interval)
}
