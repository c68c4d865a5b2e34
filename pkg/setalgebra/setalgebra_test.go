package setalgebra

import (
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/5l1v3r1/hashdb/pkg/hashdb"
	"github.com/stretchr/testify/require"
)

func mustCreate(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, hashdb.Create(path, hashdb.DefaultSettings()))
	return path
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// TestScenario5Intersect is spec.md §8 scenario 5.
func TestScenario5Intersect(t *testing.T) {
	db1Path := mustCreate(t, "json_set_db1")
	db2Path := mustCreate(t, "json_set_db2")
	outPath := mustCreate(t, "out")

	blockHash := mustHex(t, "2222222222222222")
	sourceHash := mustHex(t, "22")

	im1, err := hashdb.OpenImportManager(db1Path)
	require.NoError(t, err)
	require.NoError(t, im1.InsertSourceName(sourceHash, "r1", "f1"))
	require.NoError(t, im1.InsertHash(blockHash, sourceHash, 0, 2, ""))
	// A block only db1 knows about must not survive the intersection.
	require.NoError(t, im1.InsertHash(mustHex(t, "1111111111111111"), sourceHash, 0, 1, ""))
	require.NoError(t, im1.Close())

	im2, err := hashdb.OpenImportManager(db2Path)
	require.NoError(t, err)
	require.NoError(t, im2.InsertSourceName(sourceHash, "r2", "f2"))
	require.NoError(t, im2.InsertHash(blockHash, sourceHash, 0, 7, ""))
	// A block only db2 knows about must not survive either.
	require.NoError(t, im2.InsertHash(mustHex(t, "3333333333333333"), sourceHash, 0, 1, ""))
	require.NoError(t, im2.Close())

	sm1, err := hashdb.OpenScanManager(db1Path)
	require.NoError(t, err)
	defer sm1.Close()
	sm2, err := hashdb.OpenScanManager(db2Path)
	require.NoError(t, err)
	defer sm2.Close()

	outIm, err := hashdb.OpenImportManager(outPath)
	require.NoError(t, err)
	d := New(outIm)
	require.NoError(t, d.Intersect(sm1, sm2))
	require.NoError(t, outIm.Close())

	outSm, err := hashdb.OpenScanManager(outPath)
	require.NoError(t, err)
	defer outSm.Close()

	rec, found, err := outSm.GetBlockRecord(blockHash)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, rec.SourceCounts, 1)
	require.Equal(t, sourceHash, rec.SourceCounts[0].SourceHash)
	require.Equal(t, uint64(2), rec.SourceCounts[0].SubCount) // min(2, 7)

	_, found, err = outSm.GetBlockRecord(mustHex(t, "1111111111111111"))
	require.NoError(t, err)
	require.False(t, found)
	_, found, err = outSm.GetBlockRecord(mustHex(t, "3333333333333333"))
	require.NoError(t, err)
	require.False(t, found)

	srcRec, found, err := outSm.GetSourceRecord(sourceHash)
	require.NoError(t, err)
	require.True(t, found)
	require.ElementsMatch(t, []hashdb.NamePair{{Repository: "r1", Filename: "f1"}, {Repository: "r2", Filename: "f2"}}, srcRec.NamePairs)
}

// TestScenario6AddRange is spec.md §8 scenario 6.
func TestScenario6AddRange(t *testing.T) {
	inPath := mustCreate(t, "json_out1")
	sourceA := []byte("sourcea1")
	sourceB := []byte("sourceb2")
	blockOneCount := []byte("oneoneee")
	blockTwoCount := mustHex(t, "8899aabbccddeeff")

	im, err := hashdb.OpenImportManager(inPath)
	require.NoError(t, err)
	require.NoError(t, im.InsertHash(blockOneCount, sourceA, 0, 1, ""))
	require.NoError(t, im.InsertHash(blockTwoCount, sourceA, 0, 1, ""))
	require.NoError(t, im.InsertHash(blockTwoCount, sourceB, 512, 1, ""))
	require.NoError(t, im.Close())

	in, err := hashdb.OpenScanManager(inPath)
	require.NoError(t, err)
	defer in.Close()

	t.Run("2:", func(t *testing.T) {
		outPath := filepath.Join(t.TempDir(), "range-ge2")
		require.NoError(t, hashdb.Create(outPath, hashdb.DefaultSettings()))
		outIm, err := hashdb.OpenImportManager(outPath)
		require.NoError(t, err)
		lo, hi, err := ParseRange("2:")
		require.NoError(t, err)
		require.Equal(t, 2, lo)
		require.Equal(t, -1, hi)
		require.NoError(t, New(outIm).AddRange(in, lo, hi))
		require.NoError(t, outIm.Close())

		outSm, err := hashdb.OpenScanManager(outPath)
		require.NoError(t, err)
		defer outSm.Close()
		_, found, err := outSm.GetBlockRecord(blockTwoCount)
		require.NoError(t, err)
		require.True(t, found)
		_, found, err = outSm.GetBlockRecord(blockOneCount)
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("1:1", func(t *testing.T) {
		outPath := filepath.Join(t.TempDir(), "range-eq1")
		require.NoError(t, hashdb.Create(outPath, hashdb.DefaultSettings()))
		outIm, err := hashdb.OpenImportManager(outPath)
		require.NoError(t, err)
		lo, hi, err := ParseRange("1:1")
		require.NoError(t, err)
		require.Equal(t, 1, lo)
		require.Equal(t, 1, hi)
		require.NoError(t, New(outIm).AddRange(in, lo, hi))
		require.NoError(t, outIm.Close())

		outSm, err := hashdb.OpenScanManager(outPath)
		require.NoError(t, err)
		defer outSm.Close()
		_, found, err := outSm.GetBlockRecord(blockOneCount)
		require.NoError(t, err)
		require.True(t, found)
		_, found, err = outSm.GetBlockRecord(blockTwoCount)
		require.NoError(t, err)
		require.False(t, found)
	})
}

func TestAddIsIdempotentWhenRunTwice(t *testing.T) {
	inPath := mustCreate(t, "idempotence-in")
	im, err := hashdb.OpenImportManager(inPath)
	require.NoError(t, err)
	require.NoError(t, im.InsertSourceName([]byte("sourcea1"), "r1", "f1"))
	require.NoError(t, im.InsertHash([]byte("block001"), []byte("sourcea1"), 0, 3, "lbl"))
	require.NoError(t, im.Close())

	in, err := hashdb.OpenScanManager(inPath)
	require.NoError(t, err)
	defer in.Close()

	outPath := filepath.Join(t.TempDir(), "idempotence-out")
	require.NoError(t, hashdb.Create(outPath, hashdb.DefaultSettings()))
	outIm, err := hashdb.OpenImportManager(outPath)
	require.NoError(t, err)
	d := New(outIm)
	require.NoError(t, d.Add(in))
	require.NoError(t, d.Add(in))
	require.NoError(t, outIm.Close())

	outSm, err := hashdb.OpenScanManager(outPath)
	require.NoError(t, err)
	defer outSm.Close()
	rec, found, err := outSm.GetBlockRecord([]byte("block001"))
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, rec.SourceCounts, 1)
	require.Equal(t, uint64(3), rec.SourceCounts[0].SubCount)
}
