package octobloom

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Row is one row's column values as delivered by the host's row-change
// mechanism. A nil (or absent) value is SQL NULL and is never added to a
// filter.
type Row map[ColumnID][]byte

// Hooks is the synchronous maintenance path. The host invokes the hooks
// inside the scope of the triggering write, so they must never fail: every
// internal condition is swallowed, at most logged, and the hook returns
// normally.
type Hooks struct {
	reg    *Registry
	logger log.Logger
}

// NewHooks creates the row-change hooks for a registry. logger may be nil.
func NewHooks(reg *Registry, logger log.Logger) *Hooks {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Hooks{reg: reg, logger: logger}
}

// OnRowInserted records every non-null column value of the inserted row in
// that column's filter, in a single pass over the row's columns. Columns
// without a registered, valid filter are ignored.
func (h *Hooks) OnRowInserted(table TableID, row Row) {
	for column, value := range row {
		if value == nil {
			continue
		}
		e, ok := h.reg.getEntry(Key{Table: table, Column: column})
		if !ok {
			continue
		}
		e.mu.Lock()
		if e.valid {
			e.filter.Add(value)
			e.currentCount++
		}
		e.mu.Unlock()
	}
}

// OnRowUpdated applies an update to every column with a registered, valid
// filter: it attempts to remove the old value, then adds the new one. A
// plain filter cannot remove, so the attempt always fails and the error is
// downgraded to a debug log line. The stale positive this leaves behind is
// repaired by the reconciler's next rebuild.
func (h *Hooks) OnRowUpdated(table TableID, oldRow, newRow Row) {
	for column, newValue := range newRow {
		e, ok := h.reg.getEntry(Key{Table: table, Column: column})
		if !ok {
			continue
		}
		oldValue := oldRow[column]

		e.mu.Lock()
		if !e.valid {
			e.mu.Unlock()
			continue
		}
		var removeErr error
		if oldValue != nil {
			removeErr = e.filter.Remove(oldValue)
		}
		if newValue != nil {
			e.filter.Add(newValue)
		}
		e.mu.Unlock()

		if removeErr != nil {
			level.Debug(h.logger).Log("msg", "old value left in filter", "table", table, "column", column, "err", removeErr)
		}
	}
}
