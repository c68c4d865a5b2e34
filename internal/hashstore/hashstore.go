// Package hashstore implements the auxiliary Hash store described in
// spec §4.5: a multimap from a truncated hash prefix to (source_id,
// offset) pairs, bucketed for cheap approximate counts and filtered
// by a trailing suffix for the exact count and offset-pair listing.
package hashstore

import (
	"encoding/binary"

	"github.com/5l1v3r1/hashdb/internal/store"
)

type Store struct {
	s *store.Store
}

func Open(dir string, mode store.Mode) (*Store, error) {
	s, err := store.Open("hashstore", dir, mode)
	if err != nil {
		return nil, err
	}
	return &Store{s: s}, nil
}

func (st *Store) Close() error { return st.s.Close() }

// PrefixBytes returns the leading prefixBits bits of hb, rounded down
// to a whole byte count: a prefixBits that is not a multiple of 8 uses
// only its whole bytes.
func PrefixBytes(hb []byte, prefixBits uint32) []byte {
	n := int(prefixBits / 8)
	if n > len(hb) {
		n = len(hb)
	}
	return hb[:n]
}

// SuffixBytes returns the trailing suffixLen bytes of hb.
func SuffixBytes(hb []byte, suffixLen uint32) []byte {
	n := int(suffixLen)
	if n > len(hb) {
		n = len(hb)
	}
	return hb[len(hb)-n:]
}

func bucketKey(hb []byte, prefixBits, suffixLen uint32, sourceID, offset uint64) []byte {
	key := make([]byte, 0, len(hb)+16)
	key = append(key, PrefixBytes(hb, prefixBits)...)
	key = append(key, SuffixBytes(hb, suffixLen)...)
	idb := make([]byte, 8)
	binary.BigEndian.PutUint64(idb, sourceID)
	offb := make([]byte, 8)
	binary.BigEndian.PutUint64(offb, offset)
	key = append(key, idb...)
	key = append(key, offb...)
	return key
}

func bucketPrefix(hb []byte, prefixBits uint32) []byte {
	return PrefixBytes(hb, prefixBits)
}

func exactPrefix(hb []byte, prefixBits, suffixLen uint32) []byte {
	return append(append([]byte{}, PrefixBytes(hb, prefixBits)...), SuffixBytes(hb, suffixLen)...)
}

// OffsetEntry is one (source_id, offset) pair recorded for a block
// hash.
type OffsetEntry struct {
	SourceID uint64
	Offset   uint64
}

// ExactCount returns the number of (source_id, offset) pairs actually
// retained for hb — the value find_hash_count reports.
func (st *Store) ExactCount(hb []byte, prefixBits, suffixLen uint32) (int, error) {
	return st.s.CountPrefix(exactPrefix(hb, prefixBits, suffixLen))
}

// ApproximateCount returns the size of hb's whole prefix bucket,
// without suffix filtering — a cheap upper bound on ExactCount.
func (st *Store) ApproximateCount(hb []byte, prefixBits uint32) (int, error) {
	return st.s.CountPrefix(bucketPrefix(hb, prefixBits))
}

// Insert adds (sourceID, offset) for hb, subject to the fan-out cap.
// Returns inserted=false when hb already has maxPairs pairs recorded
// (its exact count, not the whole prefix bucket); the entry is
// silently discarded (the caller is still responsible for
// bumping HashData's sub_count per §4.2's truncation rule).
func (st *Store) Insert(hb []byte, sourceID, offset uint64, prefixBits, suffixLen uint32, maxPairs uint32) (inserted bool, err error) {
	key := bucketKey(hb, prefixBits, suffixLen, sourceID, offset)
	has, err := st.s.Has(key)
	if err != nil {
		return false, err
	}
	if has {
		// identical (id, offset) pair already recorded; idempotent.
		return true, nil
	}

	count, err := st.ExactCount(hb, prefixBits, suffixLen)
	if err != nil {
		return false, err
	}
	if uint32(count) >= maxPairs {
		return false, nil
	}

	if err := st.s.Set(key, []byte{1}); err != nil {
		return false, err
	}
	return true, nil
}

// OffsetPairs returns every (source_id, offset) pair retained for hb,
// in on-disk key order.
func (st *Store) OffsetPairs(hb []byte, prefixBits, suffixLen uint32) ([]OffsetEntry, error) {
	prefix := exactPrefix(hb, prefixBits, suffixLen)
	keys, err := st.s.KeysWithPrefix(prefix)
	if err != nil {
		return nil, err
	}
	entries := make([]OffsetEntry, 0, len(keys))
	for _, k := range keys {
		tail := k[len(prefix):]
		if len(tail) != 16 {
			continue
		}
		entries = append(entries, OffsetEntry{
			SourceID: binary.BigEndian.Uint64(tail[:8]),
			Offset:   binary.BigEndian.Uint64(tail[8:]),
		})
	}
	return entries, nil
}
