package octobloom

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeResolver maps column names to identifiers for one table.
type fakeResolver struct {
	columns map[string]ColumnID
}

func (r *fakeResolver) ResolveColumn(table TableID, name string) (ColumnID, error) {
	col, ok := r.columns[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return col, nil
}

// fakeVerifier answers existence from a canned set and counts queries.
type fakeVerifier struct {
	present map[string]bool
	queries int
}

func (v *fakeVerifier) Exists(ctx context.Context, table TableID, column ColumnID, value []byte) (bool, error) {
	v.queries++
	return v.present[string(value)], nil
}

func testIndex(t *testing.T) (*Index, *Registry, *fakeVerifier) {
	t.Helper()
	reg := testRegistry(t, DefaultRegistryConfig())
	resolver := &fakeResolver{columns: map[string]ColumnID{"username": testColumn}}
	verifier := &fakeVerifier{present: map[string]bool{"alice": true}}
	return NewIndex(reg, resolver, verifier), reg, verifier
}

func TestIndexRegisterUnknownColumn(t *testing.T) {
	ix, _, _ := testIndex(t)

	err := ix.RegisterColumn(testTable, "no_such_column", 1000, 0.01)
	require.ErrorIs(t, err, ErrUnknownColumn)

	_, err = ix.MightContain(testTable, "no_such_column", []byte("x"))
	require.ErrorIs(t, err, ErrUnknownColumn)

	err = ix.UnregisterColumn(testTable, "no_such_column")
	require.ErrorIs(t, err, ErrUnknownColumn)
}

func TestIndexMightContainWithoutFilter(t *testing.T) {
	ix, _, _ := testIndex(t)

	// No filter registered: assume possible membership
	maybe, err := ix.MightContain(testTable, "username", []byte("alice"))
	require.NoError(t, err)
	require.True(t, maybe)
}

func TestIndexExistsShortCircuitsVerification(t *testing.T) {
	ix, reg, verifier := testIndex(t)
	hooks := NewHooks(reg, nil)

	require.NoError(t, ix.RegisterColumn(testTable, "username", 1000, 0.01))
	hooks.OnRowInserted(testTable, Row{testColumn: []byte("alice")})

	// Definitely absent: answered by the filter alone
	exists, err := ix.Exists(context.Background(), testTable, "username", []byte("zeno"))
	require.NoError(t, err)
	require.False(t, exists)
	require.Equal(t, 0, verifier.queries)

	// Possible match: verified against the table
	exists, err = ix.Exists(context.Background(), testTable, "username", []byte("alice"))
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, 1, verifier.queries)
}

func TestIndexExistsVerifiesWhenFilterless(t *testing.T) {
	ix, _, verifier := testIndex(t)

	// Without a filter every probe needs verification
	exists, err := ix.Exists(context.Background(), testTable, "username", []byte("bob"))
	require.NoError(t, err)
	require.False(t, exists)
	require.Equal(t, 1, verifier.queries)
}
