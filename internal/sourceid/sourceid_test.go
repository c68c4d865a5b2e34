package sourceid

import (
	"path/filepath"
	"testing"

	"github.com/5l1v3r1/hashdb/internal/store"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sourceid"), store.ReadWrite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetOrCreateAllocatesMonotonicIDs(t *testing.T) {
	s := openTemp(t)

	id1, created, err := s.GetOrCreate([]byte("hash-a"))
	require.NoError(t, err)
	require.True(t, created)

	id2, created, err := s.GetOrCreate([]byte("hash-b"))
	require.NoError(t, err)
	require.True(t, created)
	require.Greater(t, id2, id1)

	again, created, err := s.GetOrCreate([]byte("hash-a"))
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, id1, again)
}

func TestLookupAndHashForID(t *testing.T) {
	s := openTemp(t)
	id, _, err := s.GetOrCreate([]byte("hash-a"))
	require.NoError(t, err)

	got, found, err := s.Lookup([]byte("hash-a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, id, got)

	hash, found, err := s.HashForID(id)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("hash-a"), hash)

	_, found, err = s.Lookup([]byte("never-inserted"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestEnsureIsIdempotent(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Ensure([]byte("hash-a")))
	id1, _, err := s.GetOrCreate([]byte("hash-a"))
	require.NoError(t, err)
	require.NoError(t, s.Ensure([]byte("hash-a")))
	id2, _, err := s.GetOrCreate([]byte("hash-a"))
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestFirstHashAndNextHashAfterInsertionOrder(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Ensure([]byte("hash-a")))
	require.NoError(t, s.Ensure([]byte("hash-b")))
	require.NoError(t, s.Ensure([]byte("hash-c")))

	first, err := s.FirstHash()
	require.NoError(t, err)
	require.Equal(t, []byte("hash-a"), first)

	next, err := s.NextHashAfter(first)
	require.NoError(t, err)
	require.Equal(t, []byte("hash-b"), next)

	next, err = s.NextHashAfter(next)
	require.NoError(t, err)
	require.Equal(t, []byte("hash-c"), next)

	next, err = s.NextHashAfter(next)
	require.NoError(t, err)
	require.Empty(t, next)
}

func TestCount(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Ensure([]byte("hash-a")))
	require.NoError(t, s.Ensure([]byte("hash-b")))
	count, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
