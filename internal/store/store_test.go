package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetPut(t *testing.T) {
	t.Parallel()

	st := NewMemoryStore()

	assert.Equal(t, MemoryStoreType, st.Type())

	_, err := st.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Put("k", []byte("v1")))
	require.NoError(t, st.Put("k", []byte("v2")))

	got, err := st.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
	assert.Equal(t, 1, st.Len())
}

func TestMemoryStore_DefensiveCopies(t *testing.T) {
	t.Parallel()

	st := NewMemoryStore()

	val := []byte("original")
	require.NoError(t, st.Put("k", val))

	val[0] = 'X'

	got, err := st.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	got[0] = 'Y'

	again, err := st.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestMemoryStore_ConcurrentDistinctKeys(t *testing.T) {
	t.Parallel()

	st := NewMemoryStore()

	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			key := fmt.Sprintf("chunk-%d", i)
			assert.NoError(t, st.Put(key, []byte(key)))
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 32, st.Len())

	for i := 0; i < 32; i++ {
		key := fmt.Sprintf("chunk-%d", i)

		got, err := st.Get(key)
		require.NoError(t, err)
		assert.Equal(t, []byte(key), got)
	}
}

func TestLocalStore_GetPut(t *testing.T) {
	t.Parallel()

	st, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, LocalStoreType, st.Type())

	_, err = st.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Put("rgb_median/0.0.0.0", []byte("payload")))

	got, err := st.Get("rgb_median/0.0.0.0")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestLocalStore_NestedKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	st, err := NewLocalStore(dir)
	require.NoError(t, err)

	require.NoError(t, st.Put("a/b/c", []byte("deep")))

	got, err := st.Get("a/b/c")
	require.NoError(t, err)
	assert.Equal(t, []byte("deep"), got)

	// Keys map onto the file tree.
	assert.FileExists(t, filepath.Join(dir, "a", "b", "c"))
}

func TestLocalStore_Overwrite(t *testing.T) {
	t.Parallel()

	st, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.Put("k", []byte("first")))
	require.NoError(t, st.Put("k", []byte("second")))

	got, err := st.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}
