package sourcedata

import (
	"path/filepath"
	"testing"

	"github.com/5l1v3r1/hashdb/internal/records"
	"github.com/5l1v3r1/hashdb/internal/store"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sourcedata"), store.ReadWrite)
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
	rec := records.SourceData{Filesize: 100, FileType: "ft1", ZeroCount: 2, NonprobativeCount: 1}
	require.NoError(t, s.Put([]byte("hash-a"), rec))

	got, found, err := s.Get([]byte("hash-a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rec, got)
}

func TestPutOverwritesPriorRecord(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Put([]byte("hash-a"), records.SourceData{Filesize: 1}))
	require.NoError(t, s.Put([]byte("hash-a"), records.SourceData{Filesize: 2}))

	got, found, err := s.Get([]byte("hash-a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(2), got.Filesize)
}

func TestCount(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Put([]byte("hash-a"), records.SourceData{}))
	require.NoError(t, s.Put([]byte("hash-b"), records.SourceData{}))
	count, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
