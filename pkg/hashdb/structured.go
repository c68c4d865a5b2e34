package hashdb

import (
	"fmt"

	"github.com/5l1v3r1/hashdb/internal/records"
)

// NamePair is a (repository, filename) provenance entry.
type NamePair = records.NamePair

// SourceCount is one (source hash, sub_count) entry of a block record,
// the structured counterpart of the JSON source_sub_counts array.
type SourceCount struct {
	SourceHash []byte
	SubCount   uint64
}

// BlockRecord is the structured, non-JSON form of a HashData entry,
// used by the set-algebra driver to move records between databases
// without round-tripping through JSON.
type BlockRecord struct {
	BlockHash    []byte
	Entropy      uint64
	BlockLabel   string
	SourceCounts []SourceCount
}

// SourceRecord is the structured form combining SourceData and
// SourceName for one source hash.
type SourceRecord struct {
	SourceHash        []byte
	Filesize          uint64
	FileType          string
	ZeroCount         uint64
	NonprobativeCount uint64
	NamePairs         []NamePair
}

// GetBlockRecord returns the structured block record for blockHash.
func (sm *ScanManager) GetBlockRecord(blockHash []byte) (BlockRecord, bool, error) {
	hd, found, err := sm.db.hashData.Get(blockHash)
	if err != nil || !found {
		return BlockRecord{}, found, err
	}
	counts := make([]SourceCount, 0, len(hd.SourceSubCounts))
	for _, sc := range hd.SourceSubCounts {
		hash, found, err := sm.db.sourceID.HashForID(sc.SourceID)
		if err != nil {
			return BlockRecord{}, false, err
		}
		if !found {
			return BlockRecord{}, false, fmt.Errorf("dangling source id %d referenced by block %x: %w", sc.SourceID, blockHash, ErrNotFound)
		}
		counts = append(counts, SourceCount{SourceHash: hash, SubCount: sc.SubCount})
	}
	return BlockRecord{
		BlockHash:    append([]byte{}, blockHash...),
		Entropy:      hd.Entropy,
		BlockLabel:   hd.BlockLabel,
		SourceCounts: counts,
	}, true, nil
}

// GetSourceRecord returns the structured source record for
// sourceHash.
func (sm *ScanManager) GetSourceRecord(sourceHash []byte) (SourceRecord, bool, error) {
	sd, found, err := sm.db.sourceData.Get(sourceHash)
	if err != nil {
		return SourceRecord{}, false, err
	}
	pairs, err := sm.db.sourceName.Get(sourceHash)
	if err != nil {
		return SourceRecord{}, false, err
	}
	if !found && len(pairs) == 0 {
		return SourceRecord{}, false, nil
	}
	return SourceRecord{
		SourceHash:        append([]byte{}, sourceHash...),
		Filesize:          sd.Filesize,
		FileType:          sd.FileType,
		ZeroCount:         sd.ZeroCount,
		NonprobativeCount: sd.NonprobativeCount,
		NamePairs:         pairs,
	}, true, nil
}

// PutBlockRecord writes rec directly: it ensures a source id exists
// for every referenced source hash and overwrites blockHash's HashData
// record with rec's entropy, label and sub_counts. Used by the
// set-algebra driver, which builds whole records rather than
// incremental (id, offset) events. Offsets are intentionally not
// reconstructed: the set-algebra table in spec §4.4 is defined purely
// in terms of blocks and sub_counts.
func (im *ImportManager) PutBlockRecord(rec BlockRecord) error {
	counts := make([]records.SourceSubCount, 0, len(rec.SourceCounts))
	for _, sc := range rec.SourceCounts {
		id, _, err := im.db.sourceID.GetOrCreate(sc.SourceHash)
		if err != nil {
			return fmt.Errorf("resolving source id for %x: %w", sc.SourceHash, err)
		}
		counts = append(counts, records.SourceSubCount{SourceID: id, SubCount: sc.SubCount})
	}
	return im.db.hashData.Put(rec.BlockHash, records.HashData{
		Entropy:         rec.Entropy,
		BlockLabel:      rec.BlockLabel,
		SourceSubCounts: counts,
	})
}

// PutSourceRecord writes rec directly: SourceData plus every name
// pair, allocating a source id if one does not already exist.
func (im *ImportManager) PutSourceRecord(rec SourceRecord) error {
	if err := im.db.sourceID.Ensure(rec.SourceHash); err != nil {
		return err
	}
	if err := im.db.sourceData.Put(rec.SourceHash, records.SourceData{
		Filesize:          rec.Filesize,
		FileType:          rec.FileType,
		ZeroCount:         rec.ZeroCount,
		NonprobativeCount: rec.NonprobativeCount,
	}); err != nil {
		return err
	}
	for _, p := range rec.NamePairs {
		if err := im.db.sourceName.Insert(rec.SourceHash, p.Repository, p.Filename); err != nil {
			return err
		}
	}
	return nil
}
