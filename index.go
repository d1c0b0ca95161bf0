package octobloom

import "context"

// ColumnResolver maps a user-facing column name to its stable identifier.
// The host database provides the implementation; it should report a missing
// column by wrapping ErrUnknownColumn.
type ColumnResolver interface {
	ResolveColumn(table TableID, name string) (ColumnID, error)
}

// Verifier runs the authoritative existence check against the backing
// table. It is only consulted when a filter cannot rule the value out.
type Verifier interface {
	Exists(ctx context.Context, table TableID, column ColumnID, value []byte) (bool, error)
}

// Index ties the registry to the host's column resolution and fallback
// verification, mirroring the surface a SQL-callable layer exposes.
type Index struct {
	reg      *Registry
	resolver ColumnResolver
	verifier Verifier
}

// NewIndex creates the query façade over reg.
func NewIndex(reg *Registry, resolver ColumnResolver, verifier Verifier) *Index {
	return &Index{reg: reg, resolver: resolver, verifier: verifier}
}

// RegisterColumn registers a filter for the named column.
func (ix *Index) RegisterColumn(table TableID, columnName string, expectedCount uint64, falsePositiveRate float64) error {
	column, err := ix.resolver.ResolveColumn(table, columnName)
	if err != nil {
		return err
	}
	return ix.reg.Register(table, column, expectedCount, falsePositiveRate)
}

// UnregisterColumn removes the filter for the named column, if any.
func (ix *Index) UnregisterColumn(table TableID, columnName string) error {
	column, err := ix.resolver.ResolveColumn(table, columnName)
	if err != nil {
		return err
	}
	ix.reg.Unregister(table, column)
	return nil
}

// MightContain reports whether value may exist in the named column. A
// missing or invalid filter resolves to true so the verification path stays
// correct; an unknown column is an error, not a membership answer.
func (ix *Index) MightContain(table TableID, columnName string, value []byte) (bool, error) {
	column, err := ix.resolver.ResolveColumn(table, columnName)
	if err != nil {
		return false, err
	}
	return ix.reg.MightContain(table, column, value), nil
}

// Exists answers definitively: a filter that rules the value out short-
// circuits to false, anything else defers to the verifier's query against
// the backing table.
func (ix *Index) Exists(ctx context.Context, table TableID, columnName string, value []byte) (bool, error) {
	column, err := ix.resolver.ResolveColumn(table, columnName)
	if err != nil {
		return false, err
	}
	if !ix.reg.MightContain(table, column, value) {
		return false, nil
	}
	return ix.verifier.Exists(ctx, table, column, value)
}
