package octobloom

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testTable  TableID  = 16384
	testColumn ColumnID = 1
)

func TestHooksInsertAndQuery(t *testing.T) {
	reg := testRegistry(t, DefaultRegistryConfig())
	hooks := NewHooks(reg, nil)

	require.NoError(t, reg.Register(testTable, testColumn, 1000, 0.01))

	hooks.OnRowInserted(testTable, Row{testColumn: []byte("alice")})

	require.True(t, reg.MightContain(testTable, testColumn, []byte("alice")))
	require.False(t, reg.MightContain(testTable, testColumn, []byte("zeno")))
}

func TestHooksUpdateIsMonotonic(t *testing.T) {
	reg := testRegistry(t, DefaultRegistryConfig())
	hooks := NewHooks(reg, nil)

	require.NoError(t, reg.Register(testTable, testColumn, 1000, 0.01))

	hooks.OnRowInserted(testTable, Row{testColumn: []byte("alice")})
	hooks.OnRowUpdated(testTable,
		Row{testColumn: []byte("alice")},
		Row{testColumn: []byte("bob")})

	// The old value cannot be removed from a plain filter: both answers
	// stay true, and the update never propagated an error.
	require.True(t, reg.MightContain(testTable, testColumn, []byte("alice")))
	require.True(t, reg.MightContain(testTable, testColumn, []byte("bob")))
}

func TestHooksSkipNullValues(t *testing.T) {
	reg := testRegistry(t, DefaultRegistryConfig())
	hooks := NewHooks(reg, nil)

	require.NoError(t, reg.Register(testTable, testColumn, 1000, 0.01))

	hooks.OnRowInserted(testTable, Row{testColumn: nil})
	hooks.OnRowUpdated(testTable, Row{testColumn: nil}, Row{testColumn: nil})

	h, ok := reg.Lookup(testTable, testColumn)
	require.True(t, ok)
	require.False(t, h.MightContain([]byte("")))
}

func TestHooksIgnoreUnregisteredColumns(t *testing.T) {
	reg := testRegistry(t, DefaultRegistryConfig())
	hooks := NewHooks(reg, nil)

	require.NoError(t, reg.Register(testTable, testColumn, 1000, 0.01))

	// Row carries a second column with no filter; the hook ignores it and
	// still indexes the registered one in the same pass.
	hooks.OnRowInserted(testTable, Row{
		testColumn: []byte("alice"),
		2:          []byte("ignored"),
	})

	require.True(t, reg.MightContain(testTable, testColumn, []byte("alice")))
	require.True(t, reg.MightContain(testTable, 2, []byte("anything")))
}

func TestHooksSkipInvalidEntries(t *testing.T) {
	reg := testRegistry(t, DefaultRegistryConfig())
	hooks := NewHooks(reg, nil)

	require.NoError(t, reg.Register(testTable, testColumn, 1000, 0.01))
	reg.MarkInvalid(testTable, testColumn)

	// Writes to a stale filter are pointless; the rebuild repopulates it.
	hooks.OnRowInserted(testTable, Row{testColumn: []byte("alice")})
	hooks.OnRowUpdated(testTable, Row{testColumn: []byte("alice")}, Row{testColumn: []byte("bob")})

	e, ok := reg.getEntry(Key{Table: testTable, Column: testColumn})
	require.True(t, ok)
	require.Equal(t, uint64(0), e.currentCount)
}

func TestHooksWholeRowAgainstUnknownTable(t *testing.T) {
	reg := testRegistry(t, DefaultRegistryConfig())
	hooks := NewHooks(reg, nil)

	// Must be a silent no-op
	hooks.OnRowInserted(99, Row{1: []byte("x"), 2: []byte("y")})
	hooks.OnRowUpdated(99, Row{1: []byte("x")}, Row{1: []byte("z")})
}

func TestHooksConcurrentInsertsNoLostUpdates(t *testing.T) {
	reg := testRegistry(t, RegistryConfig{MaxFilters: 4, MaxMemory: 1 << 22})
	hooks := NewHooks(reg, nil)

	require.NoError(t, reg.Register(testTable, testColumn, 10000, 0.01))

	const workers = 8
	const perWorker = 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				hooks.OnRowInserted(testTable, Row{
					testColumn: fmt.Appendf(nil, "worker-%d-row-%d", w, i),
				})
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		for i := 0; i < perWorker; i++ {
			require.True(t, reg.MightContain(testTable, testColumn,
				fmt.Appendf(nil, "worker-%d-row-%d", w, i)),
				"lost update for worker-%d-row-%d", w, i)
		}
	}

	e, ok := reg.getEntry(Key{Table: testTable, Column: testColumn})
	require.True(t, ok)
	require.Equal(t, uint64(workers*perWorker), e.currentCount)
}
