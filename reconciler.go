package octobloom

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// ColumnScanner streams every non-null value of one column from a
// point-in-time snapshot of the backing table. The host database provides
// the implementation; the scan may be long-running and must be restartable
// (each call produces a fresh snapshot).
type ColumnScanner interface {
	ScanColumn(ctx context.Context, table TableID, column ColumnID, fn func(value []byte) error) error
}

// ReconcilerConfig holds the reconciler's scheduling and growth policy.
type ReconcilerConfig struct {
	// Interval is the idle time between reconciliation passes.
	Interval time.Duration
	// GrowthTrigger rebuilds an entry once its live count exceeds
	// expectedCount * GrowthTrigger.
	GrowthTrigger float64
	// GrowthFactor scales expectedCount when an overgrown entry is resized.
	GrowthFactor float64
}

// DefaultReconcilerConfig returns the default policy: a pass every five
// minutes, resize at 1.5x overgrowth, doubling the expected count.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval:      5 * time.Minute,
		GrowthTrigger: 1.5,
		GrowthFactor:  2.0,
	}
}

// Validate checks if the reconciler configuration is valid.
func (c *ReconcilerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidParameter)
	}
	if c.GrowthTrigger <= 1 {
		return fmt.Errorf("%w: growth trigger must be greater than 1", ErrInvalidParameter)
	}
	if c.GrowthFactor <= 1 {
		return fmt.Errorf("%w: growth factor must be greater than 1", ErrInvalidParameter)
	}
	return nil
}

// Reconciler is the background task that audits the registry and repairs
// entries that have drifted (marked invalid) or outgrown their sizing.
// Exactly one reconciler should run per registry.
type Reconciler struct {
	cfg     ReconcilerConfig
	reg     *Registry
	scanner ColumnScanner
	logger  log.Logger
	metrics *Metrics
}

// NewReconciler creates a reconciler over reg using scanner for table
// snapshots. logger and metrics may be nil.
func NewReconciler(cfg ReconcilerConfig, reg *Registry, scanner ColumnScanner, logger log.Logger, metrics *Metrics) (*Reconciler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if scanner == nil {
		return nil, fmt.Errorf("%w: scanner cannot be nil", ErrInvalidParameter)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Reconciler{
		cfg:     cfg,
		reg:     reg,
		scanner: scanner,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Run alternates between idle waits and reconciliation passes until ctx is
// cancelled. Cancellation is checked at the top of each idle wait; a pass
// already underway runs to completion.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single reconciliation pass over the registry. For each
// entry it rebuilds if the entry is invalid, resizes if the live count has
// exceeded the growth trigger, and otherwise leaves the entry untouched.
// The pass never holds a lock across a table scan; only the final filter
// swap locks the entry.
func (r *Reconciler) RunOnce(ctx context.Context) {
	for _, key := range r.reg.keys() {
		e, ok := r.reg.getEntry(key)
		if !ok {
			// Unregistered since the snapshot.
			continue
		}

		e.mu.RLock()
		valid := e.valid
		expected := e.expectedCount
		current := e.currentCount
		fpRate := e.fpRate
		e.mu.RUnlock()

		switch {
		case !valid:
			r.rebuild(ctx, key, e, expected, fpRate, rebuildOutcomeRebuilt)
		case float64(current) > float64(expected)*r.cfg.GrowthTrigger:
			target := uint64(float64(expected) * r.cfg.GrowthFactor)
			if target < current {
				target = current
			}
			r.rebuild(ctx, key, e, target, fpRate, rebuildOutcomeResized)
		}
	}
}

// rebuild constructs a fresh filter sized for expectedCount, streams the
// column's current values into it, and swaps it into the entry. The old
// filter stays authoritative until the new one is fully built: a failed
// scan leaves the entry exactly as it was, to be retried next pass.
func (r *Reconciler) rebuild(ctx context.Context, key Key, e *entry, expectedCount uint64, fpRate float64, outcome string) {
	fresh := New(expectedCount, fpRate)

	var count uint64
	err := r.scanner.ScanColumn(ctx, key.Table, key.Column, func(value []byte) error {
		fresh.Add(value)
		count++
		return nil
	})
	if err != nil {
		level.Warn(r.logger).Log("msg", "filter rebuild failed", "table", key.Table, "column", key.Column, "err", err)
		r.observeRebuild(rebuildOutcomeFailed)
		return
	}

	if err := r.reg.swapFilter(key, e, fresh, expectedCount, count); err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			// The resized filter does not fit the memory budget; the old
			// valid filter stays in place at its degraded false positive
			// rate rather than overrunning the pool.
			level.Warn(r.logger).Log("msg", "filter resize skipped", "table", key.Table, "column", key.Column, "err", err)
			r.observeRebuild(rebuildOutcomeSkipped)
		}
		// Otherwise the entry was unregistered or replaced while we were
		// scanning; drop the rebuilt filter.
		return
	}

	r.observeRebuild(outcome)
	level.Info(r.logger).Log("msg", "filter rebuilt", "table", key.Table, "column", key.Column,
		"rows", count, "expected_count", expectedCount, "bytes", fresh.MemoryUsage())
}

func (r *Reconciler) observeRebuild(outcome string) {
	if r.metrics != nil {
		r.metrics.Rebuilds.WithLabelValues(outcome).Inc()
	}
}
