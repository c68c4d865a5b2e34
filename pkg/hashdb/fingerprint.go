package hashdb

import (
	"bytes"
	"hash/crc32"
	"sort"
)

// SourceListID computes the stable 32-bit fingerprint of a set of
// source hashes: the raw bytes of the distinct hashes, sorted
// ascending, fed in order through a running CRC-32 (IEEE polynomial)
// accumulator. It is a pure function of the set — order of insertion
// and duplicates never affect the result.
func SourceListID(sourceHashes [][]byte) uint32 {
	distinct := make(map[string][]byte, len(sourceHashes))
	for _, h := range sourceHashes {
		distinct[string(h)] = h
	}

	sorted := make([][]byte, 0, len(distinct))
	for _, h := range distinct {
		sorted = append(sorted, h)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})

	var crc uint32
	for _, h := range sorted {
		crc = crc32.Update(crc, crc32.IEEETable, h)
	}
	return crc
}
