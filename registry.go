package octobloom

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// TableID identifies a table in the host database.
type TableID uint32

// ColumnID identifies a column within a table, as resolved by the host's
// column metadata (attribute numbers start at 1; negative values are system
// columns and are never registered).
type ColumnID int16

// Key identifies one registered filter. Exactly one entry exists per key.
type Key struct {
	Table  TableID
	Column ColumnID
}

// entry is the per-key record owning one filter plus its bookkeeping.
// entry.mu guards every field; the registry's structural lock only guards
// membership of the entry in the key map. Lock order is always structural
// lock before entry lock.
type entry struct {
	mu            sync.RWMutex
	filter        *Filter
	expectedCount uint64
	currentCount  uint64
	fpRate        float64
	valid         bool
}

// RegistryConfig bounds the shared filter pool. Both limits are fixed at
// initialization; a full registry rejects new keys rather than evicting,
// since each entry is a user-declared index, not a cache.
type RegistryConfig struct {
	// MaxFilters is the maximum number of concurrently tracked entries.
	MaxFilters int
	// MaxMemory is the total byte budget across all filter bit arrays.
	MaxMemory uint64
}

// DefaultRegistryConfig returns a registry sized for 10 filters of 64KiB
// each.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		MaxFilters: 10,
		MaxMemory:  10 * 64 * 1024,
	}
}

// Validate checks if the registry configuration is valid.
func (c *RegistryConfig) Validate() error {
	if c.MaxFilters <= 0 {
		return fmt.Errorf("%w: max filters must be positive", ErrInvalidParameter)
	}
	if c.MaxMemory == 0 {
		return fmt.Errorf("%w: max memory must be positive", ErrInvalidParameter)
	}
	return nil
}

// Registry is the shared map of (table, column) keys to filters. It is safe
// for concurrent use: lookups on different entries never block each other,
// and mutations to one entry never block reads of another.
type Registry struct {
	cfg     RegistryConfig
	logger  log.Logger
	metrics *Metrics

	mu         sync.RWMutex // structural lock: guards entries and usedMemory
	entries    map[Key]*entry
	usedMemory uint64
}

// NewRegistry creates a bounded filter registry. logger and metrics may be
// nil.
func NewRegistry(cfg RegistryConfig, logger log.Logger, metrics *Metrics) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Registry{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		entries: make(map[Key]*entry, cfg.MaxFilters),
	}, nil
}

// Register creates a filter for (table, column) sized to expectedCount
// values at the given false positive rate. Registering an existing key is
// destructive: the prior filter and its accumulated membership state are
// discarded and replaced by a fresh, empty filter.
//
// Register fails with ErrInvalidParameter on bad sizing inputs and
// ErrCapacityExceeded when the entry or memory budget cannot accommodate
// the filter. Existing entries are never corrupted by a failed call.
func (r *Registry) Register(table TableID, column ColumnID, expectedCount uint64, falsePositiveRate float64) error {
	if expectedCount == 0 {
		return fmt.Errorf("%w: expected count must be greater than zero", ErrInvalidParameter)
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		return fmt.Errorf("%w: false positive rate must be between 0 and 1", ErrInvalidParameter)
	}

	filter := New(expectedCount, falsePositiveRate)
	need := filter.MemoryUsage()

	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key{Table: table, Column: column}
	if prev, ok := r.entries[key]; ok {
		prev.mu.Lock()
		old := prev.filter.MemoryUsage()
		if r.usedMemory-old+need > r.cfg.MaxMemory {
			prev.mu.Unlock()
			return fmt.Errorf("%w: filter needs %d bytes, budget is %d", ErrCapacityExceeded, need, r.cfg.MaxMemory)
		}
		// Outstanding handles and in-flight rebuilds keep the old entry;
		// invalidating it makes both resolve conservatively.
		prev.valid = false
		prev.mu.Unlock()

		r.entries[key] = &entry{
			filter:        filter,
			expectedCount: expectedCount,
			fpRate:        falsePositiveRate,
			valid:         true,
		}
		r.usedMemory = r.usedMemory - old + need
		if r.metrics != nil {
			r.metrics.Registrations.Inc()
		}
		r.observeSize()
		level.Debug(r.logger).Log("msg", "filter replaced", "table", table, "column", column, "expected_count", expectedCount)
		return nil
	}

	if len(r.entries) >= r.cfg.MaxFilters {
		return fmt.Errorf("%w: %d filters already tracked", ErrCapacityExceeded, len(r.entries))
	}
	if r.usedMemory+need > r.cfg.MaxMemory {
		return fmt.Errorf("%w: filter needs %d bytes, %d of %d in use", ErrCapacityExceeded, need, r.usedMemory, r.cfg.MaxMemory)
	}

	r.entries[key] = &entry{
		filter:        filter,
		expectedCount: expectedCount,
		fpRate:        falsePositiveRate,
		valid:         true,
	}
	r.usedMemory += need
	if r.metrics != nil {
		r.metrics.Registrations.Inc()
	}
	r.observeSize()
	level.Debug(r.logger).Log("msg", "filter registered", "table", table, "column", column, "expected_count", expectedCount)
	return nil
}

// FilterHandle is a read/use handle to one registered filter. Every method
// takes the entry's read lock for the duration of the call, so a handle may
// be held across a concurrent rebuild without observing a torn filter.
type FilterHandle struct {
	e *entry
}

// MightContain reports whether value may have been added to the underlying
// filter. If the entry has been invalidated since the handle was obtained,
// it conservatively reports true.
func (h FilterHandle) MightContain(value []byte) bool {
	h.e.mu.RLock()
	defer h.e.mu.RUnlock()
	if !h.e.valid {
		return true
	}
	return h.e.filter.MightContain(value)
}

// Lookup returns a handle to the filter for (table, column) if one is
// registered and currently valid. Absence is not an error: callers must
// treat a missing handle as "no information" and assume membership is
// possible.
func (r *Registry) Lookup(table TableID, column ColumnID) (FilterHandle, bool) {
	e, ok := r.getEntry(Key{Table: table, Column: column})
	if !ok {
		return FilterHandle{}, false
	}
	e.mu.RLock()
	valid := e.valid
	e.mu.RUnlock()
	if !valid {
		return FilterHandle{}, false
	}
	return FilterHandle{e: e}, true
}

// MightContain reports whether value may exist in (table, column). When no
// registered, valid filter covers the key the answer is always true, so a
// downstream verification step stays correct.
func (r *Registry) MightContain(table TableID, column ColumnID, value []byte) bool {
	h, ok := r.Lookup(table, column)
	if !ok {
		r.observeLookup(lookupOutcomeNoFilter)
		return true
	}
	if h.MightContain(value) {
		r.observeLookup(lookupOutcomeMaybe)
		return true
	}
	r.observeLookup(lookupOutcomeNegative)
	return false
}

// Unregister removes the entry for (table, column) and releases its filter.
// It is a no-op if the key is absent.
func (r *Registry) Unregister(table TableID, column ColumnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key{Table: table, Column: column}
	e, ok := r.entries[key]
	if !ok {
		return
	}
	delete(r.entries, key)

	e.mu.Lock()
	r.usedMemory -= e.filter.MemoryUsage()
	e.valid = false
	e.mu.Unlock()

	r.observeSize()
	level.Debug(r.logger).Log("msg", "filter unregistered", "table", table, "column", column)
}

// MarkInvalid flags the entry for (table, column) as stale so lookups skip
// it until the reconciler rebuilds it. It is a no-op if the key is absent.
func (r *Registry) MarkInvalid(table TableID, column ColumnID) {
	e, ok := r.getEntry(Key{Table: table, Column: column})
	if !ok {
		return
	}
	e.mu.Lock()
	e.valid = false
	e.mu.Unlock()
}

// RegistryStats is a point-in-time snapshot of registry occupancy.
type RegistryStats struct {
	Filters      int
	MaxFilters   int
	MemoryUsed   uint64
	MemoryBudget uint64
}

// Stats returns a snapshot of registry occupancy.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RegistryStats{
		Filters:      len(r.entries),
		MaxFilters:   r.cfg.MaxFilters,
		MemoryUsed:   r.usedMemory,
		MemoryBudget: r.cfg.MaxMemory,
	}
}

// getEntry fetches the live entry for key under the structural read lock.
func (r *Registry) getEntry(key Key) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	return e, ok
}

// keys snapshots the current key set so iteration does not hold the
// structural lock.
func (r *Registry) keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Key, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	return out
}

// errStaleEntry reports that a rebuilt filter targets an entry that was
// unregistered or re-registered while the replacement was being built.
var errStaleEntry = errors.New("octobloom: entry replaced during rebuild")

// swapFilter atomically replaces e's filter with fresh, provided e is still
// the registered entry for key and the swap stays within the memory budget.
// On errStaleEntry or ErrCapacityExceeded the entry is left untouched and
// fresh is discarded; the budget bound Register enforces holds for rebuild
// swaps too.
func (r *Registry) swapFilter(key Key, e *entry, fresh *Filter, expectedCount, currentCount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[key] != e {
		return errStaleEntry
	}

	e.mu.Lock()
	old := e.filter.MemoryUsage()
	need := fresh.MemoryUsage()
	if r.usedMemory-old+need > r.cfg.MaxMemory {
		e.mu.Unlock()
		return fmt.Errorf("%w: filter needs %d bytes, budget is %d", ErrCapacityExceeded, need, r.cfg.MaxMemory)
	}
	e.filter = fresh
	e.expectedCount = expectedCount
	e.currentCount = currentCount
	e.valid = true
	e.mu.Unlock()

	r.usedMemory = r.usedMemory - old + need
	r.observeSize()
	return nil
}

// observeSize publishes occupancy gauges. Callers hold the structural lock.
func (r *Registry) observeSize() {
	if r.metrics == nil {
		return
	}
	r.metrics.TrackedFilters.Set(float64(len(r.entries)))
	r.metrics.MemoryUsed.Set(float64(r.usedMemory))
}

func (r *Registry) observeLookup(outcome string) {
	if r.metrics != nil {
		r.metrics.Lookups.WithLabelValues(outcome).Inc()
	}
}
