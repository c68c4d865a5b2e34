package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, mode Mode) *Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "store")
	s, err := Open("test", dir, mode)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetSetHas(t *testing.T) {
	s := openTemp(t, ReadWrite)

	_, found, err := s.Get([]byte("missing"))
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Set([]byte("key"), []byte("value")))

	v, found, err := s.Get([]byte("key"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("value"), v)

	has, err := s.Has([]byte("key"))
	require.NoError(t, err)
	require.True(t, has)
}

func TestDelete(t *testing.T) {
	s := openTemp(t, ReadWrite)
	require.NoError(t, s.Set([]byte("key"), []byte("value")))
	require.NoError(t, s.Delete([]byte("key")))
	has, err := s.Has([]byte("key"))
	require.NoError(t, err)
	require.False(t, has)
}

func TestCountAndKeysWithPrefix(t *testing.T) {
	s := openTemp(t, ReadWrite)
	require.NoError(t, s.Set([]byte("ax1"), []byte("1")))
	require.NoError(t, s.Set([]byte("ax2"), []byte("2")))
	require.NoError(t, s.Set([]byte("bx1"), []byte("3")))

	count, err := s.CountPrefix([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	keys, err := s.KeysWithPrefix([]byte("a"))
	require.NoError(t, err)
	require.Len(t, keys, 2)

	total, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 3, total)
}

func TestFirstAndNextKeyOrder(t *testing.T) {
	s := openTemp(t, ReadWrite)
	require.NoError(t, s.Set([]byte("c"), []byte("3")))
	require.NoError(t, s.Set([]byte("a"), []byte("1")))
	require.NoError(t, s.Set([]byte("b"), []byte("2")))

	first, err := s.FirstKey()
	require.NoError(t, err)
	require.Equal(t, []byte("a"), first)

	next, err := s.NextKey(first)
	require.NoError(t, err)
	require.Equal(t, []byte("b"), next)

	next, err = s.NextKey(next)
	require.NoError(t, err)
	require.Equal(t, []byte("c"), next)

	next, err = s.NextKey(next)
	require.NoError(t, err)
	require.Nil(t, next)
}

func TestNextKeyIsStatelessPerCall(t *testing.T) {
	s := openTemp(t, ReadWrite)
	require.NoError(t, s.Set([]byte("a"), []byte("1")))
	require.NoError(t, s.Set([]byte("b"), []byte("2")))

	// Two independent callers starting from the same cursor must see
	// the same next key, since NextKey carries no shared iterator
	// state between calls.
	n1, err := s.NextKey([]byte("a"))
	require.NoError(t, err)
	n2, err := s.NextKey([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, n1, n2)
}
