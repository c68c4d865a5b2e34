package hashdata

import (
	"path/filepath"
	"testing"

	"github.com/5l1v3r1/hashdb/internal/records"
	"github.com/5l1v3r1/hashdb/internal/store"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "hashdata"), store.ReadWrite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetOnMissingHashReportsNotFound(t *testing.T) {
	s := openTemp(t)
	_, found, err := s.Get([]byte("hash-a"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestPutThenGetRoundTrips(t *testing.T) {
	s := openTemp(t)
	rec := records.HashData{
		Entropy:    2,
		BlockLabel: "lbl",
		SourceSubCounts: []records.SourceSubCount{
			{SourceID: 1, SubCount: 3},
		},
	}
	require.NoError(t, s.Put([]byte("hash-a"), rec))

	got, found, err := s.Get([]byte("hash-a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rec, got)
}

func TestHas(t *testing.T) {
	s := openTemp(t)
	has, err := s.Has([]byte("hash-a"))
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, s.Put([]byte("hash-a"), records.HashData{}))
	has, err = s.Has([]byte("hash-a"))
	require.NoError(t, err)
	require.True(t, has)
}

func TestFirstHashAndNextHashKeyOrder(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Put([]byte("hash-a"), records.HashData{}))
	require.NoError(t, s.Put([]byte("hash-b"), records.HashData{}))

	first, err := s.FirstHash()
	require.NoError(t, err)
	require.Equal(t, []byte("hash-a"), first)

	next, err := s.NextHash(first)
	require.NoError(t, err)
	require.Equal(t, []byte("hash-b"), next)

	next, err = s.NextHash(next)
	require.NoError(t, err)
	require.Nil(t, next)
}

func TestHashDataIndexOf(t *testing.T) {
	hd := records.HashData{SourceSubCounts: []records.SourceSubCount{
		{SourceID: 5, SubCount: 1},
		{SourceID: 9, SubCount: 2},
	}}
	require.Equal(t, 0, hd.IndexOf(5))
	require.Equal(t, 1, hd.IndexOf(9))
	require.Equal(t, -1, hd.IndexOf(42))
}
