package hashstore

import (
	"path/filepath"
	"testing"

	"github.com/5l1v3r1/hashdb/internal/store"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "hashstore"), store.ReadWrite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPrefixAndSuffixBytes(t *testing.T) {
	hb := []byte("blockhsh")
	require.Equal(t, hb[:2], PrefixBytes(hb, 16))
	require.Equal(t, hb[len(hb)-2:], SuffixBytes(hb, 2))
}

func TestInsertRespectsFanOutCap(t *testing.T) {
	s := openTemp(t)
	hb := []byte("blockhsh")

	inserted, err := s.Insert(hb, 1, 0, 16, 2, 2)
	require.NoError(t, err)
	require.True(t, inserted)

	// Repeat insert of the identical pair is idempotent, not a new entry.
	inserted, err = s.Insert(hb, 1, 0, 16, 2, 2)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = s.Insert(hb, 2, 512, 16, 2, 2)
	require.NoError(t, err)
	require.True(t, inserted)

	count, err := s.ExactCount(hb, 16, 2)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// hb now has the maximum 2 pairs; a third distinct pair is discarded.
	inserted, err = s.Insert(hb, 3, 1024, 16, 2, 2)
	require.NoError(t, err)
	require.False(t, inserted)

	count, err = s.ExactCount(hb, 16, 2)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestApproximateCountIsBucketWide(t *testing.T) {
	s := openTemp(t)
	hbA := []byte("aa0000aa") // prefix "aa", suffix "aa"
	hbB := []byte("aa1111bb") // same prefix "aa" as hbA, different suffix "bb"

	_, err := s.Insert(hbA, 1, 0, 16, 2, 10)
	require.NoError(t, err)
	_, err = s.Insert(hbB, 2, 0, 16, 2, 10)
	require.NoError(t, err)

	approx, err := s.ApproximateCount(hbA, 16)
	require.NoError(t, err)
	require.Equal(t, 2, approx)

	exact, err := s.ExactCount(hbA, 16, 2)
	require.NoError(t, err)
	require.Equal(t, 1, exact)
}

func TestOffsetPairsReturnsInsertedEntries(t *testing.T) {
	s := openTemp(t)
	hb := []byte("blockhsh")

	_, err := s.Insert(hb, 1, 0, 16, 2, 10)
	require.NoError(t, err)
	_, err = s.Insert(hb, 2, 512, 16, 2, 10)
	require.NoError(t, err)

	entries, err := s.OffsetPairs(hb, 16, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Contains(t, entries, OffsetEntry{SourceID: 1, Offset: 0})
	require.Contains(t, entries, OffsetEntry{SourceID: 2, Offset: 512})
}
