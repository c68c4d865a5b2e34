package hashdb

import (
	"fmt"

	"github.com/5l1v3r1/hashdb/internal/store"
)

// ScanManager is the read façade (§4.3): it opens a database shared
// and exposes point queries, iterators, and the data the binary
// stream scanner needs.
type ScanManager struct {
	db *Database
}

// OpenScanManager opens path read-only. Any number of ScanManagers may
// be open on the same path at once. Opening one fails while an
// ImportManager holds the same database open for write: badger's
// read-only open cannot take its directory lock while the writer
// holds it.
func OpenScanManager(path string) (*ScanManager, error) {
	db, err := Open(path, store.ReadOnly)
	if err != nil {
		return nil, fmt.Errorf("opening %s for scan: %w", path, err)
	}
	return &ScanManager{db: db}, nil
}

func (sm *ScanManager) Close() error {
	return sm.db.Close()
}

func (sm *ScanManager) idToHashHex(id uint64) (string, error) {
	hash, found, err := sm.db.sourceID.HashForID(id)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("dangling source id %d", id)
	}
	return BinToHex(hash), nil
}

// ExportHashJSON returns the canonical (non-expanded) block record for
// blockHash, or "" if absent.
func (sm *ScanManager) ExportHashJSON(blockHash []byte) (string, error) {
	hd, found, err := sm.db.hashData.Get(blockHash)
	if err != nil || !found {
		return "", err
	}
	raw, err := encodeBlockRecord(BinToHex(blockHash), hd, sm.idToHashHex)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ExportSourceJSON returns the canonical source record for sourceHash,
// or "" if the database has no id for it. A source with an id but no
// SourceData row is exported with zero-valued fields, as in
// FindExpandedHashJSON's "sources" array.
func (sm *ScanManager) ExportSourceJSON(sourceHash []byte) (string, error) {
	_, known, err := sm.db.sourceID.Lookup(sourceHash)
	if err != nil || !known {
		return "", err
	}
	sd, _, err := sm.db.sourceData.Get(sourceHash)
	if err != nil {
		return "", err
	}
	pairs, err := sm.db.sourceName.Get(sourceHash)
	if err != nil {
		return "", err
	}
	raw, err := encodeSourceRecord(BinToHex(sourceHash), sd, pairs)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// FindExpandedHashJSON returns the full expansion of blockHash: the
// block record, its source_list_id, the embedded source records for
// every referenced id, and the raw offset-pair list. Per §4.3.1, all
// of these beyond block_hash are omitted together when no sources are
// resolved for the block.
func (sm *ScanManager) FindExpandedHashJSON(blockHash []byte) (string, error) {
	hd, found, err := sm.db.hashData.Get(blockHash)
	if err != nil || !found {
		return "", err
	}

	out := expandedBlockRecordJSON{BlockHash: BinToHex(blockHash)}

	if len(hd.SourceSubCounts) == 0 {
		raw, err := jsonCompact(out)
		return string(raw), err
	}

	// The expanded schema's "entropy" field carries the block's total
	// resolved sub_count across every referenced source, not the
	// HashData k_entropy metadata field (confirmed against the literal
	// scenario-1 test vector: sub_count_delta=2 on a fresh block
	// produces "entropy":2, independent of the HashData entropy value
	// of 0). See DESIGN.md.
	var totalCount uint64
	for _, sc := range hd.SourceSubCounts {
		totalCount += sc.SubCount
	}
	label := hd.BlockLabel
	out.Entropy = &totalCount
	out.BlockLabel = &label

	sourceHashes := make([][]byte, 0, len(hd.SourceSubCounts))
	sources := make([]expandedSourceRecordJSON, 0, len(hd.SourceSubCounts))
	for _, sc := range hd.SourceSubCounts {
		hash, found, err := sm.db.sourceID.HashForID(sc.SourceID)
		if err != nil {
			return "", err
		}
		if !found {
			return "", fmt.Errorf("dangling source id %d referenced by block %x", sc.SourceID, blockHash)
		}
		sourceHashes = append(sourceHashes, hash)

		sd, _, err := sm.db.sourceData.Get(hash)
		if err != nil {
			return "", err
		}
		pairs, err := sm.db.sourceName.Get(hash)
		if err != nil {
			return "", err
		}
		sources = append(sources, expandedSourceRecordJSON{
			FileHash:          BinToHex(hash),
			Filesize:          sd.Filesize,
			FileType:          sd.FileType,
			NonprobativeCount: sd.NonprobativeCount,
			NamePairs:         namePairsJSON(pairs),
		})
	}
	sourceListID := SourceListID(sourceHashes)
	out.SourceListID = &sourceListID
	out.Sources = sources

	offsets, err := sm.db.hashStore.OffsetPairs(blockHash, sm.db.Settings.HashPrefixBits, sm.db.Settings.HashSuffixBytes)
	if err != nil {
		return "", err
	}
	pairs := make([]interface{}, 0, len(offsets)*2)
	for _, o := range offsets {
		hash, found, err := sm.db.sourceID.HashForID(o.SourceID)
		if err != nil {
			return "", err
		}
		if !found {
			continue
		}
		pairs = append(pairs, BinToHex(hash), o.Offset)
	}
	out.SourceOffsetPairs = pairs

	raw, err := jsonCompact(out)
	return string(raw), err
}

// FindHashCount returns the exact number of offset entries recorded
// for blockHash, bounded by the fan-out cap.
func (sm *ScanManager) FindHashCount(blockHash []byte) (int, error) {
	return sm.db.hashStore.ExactCount(blockHash, sm.db.Settings.HashPrefixBits, sm.db.Settings.HashSuffixBytes)
}

// FindApproximateHashCount returns the cheap prefix-bucket estimate,
// an upper bound on FindHashCount, without touching HashData.
func (sm *ScanManager) FindApproximateHashCount(blockHash []byte) (int, error) {
	return sm.db.hashStore.ApproximateCount(blockHash, sm.db.Settings.HashPrefixBits)
}

// FindSourceData returns the SourceData row for sourceHash.
func (sm *ScanManager) FindSourceData(sourceHash []byte) (present bool, filesize uint64, fileType string, nonprobativeCount uint64, err error) {
	sd, found, err := sm.db.sourceData.Get(sourceHash)
	if err != nil || !found {
		return found, 0, "", 0, err
	}
	return true, sd.Filesize, sd.FileType, sd.NonprobativeCount, nil
}

// FirstHash returns the smallest block hash in on-disk order, or an
// empty slice if the database has no blocks.
func (sm *ScanManager) FirstHash() ([]byte, error) {
	return emptyIfNil(sm.db.hashData.FirstHash())
}

// NextHash returns the block hash immediately after prev in on-disk
// order, or an empty slice at the end.
func (sm *ScanManager) NextHash(prev []byte) ([]byte, error) {
	return emptyIfNil(sm.db.hashData.NextHash(prev))
}

// FirstSource returns the source hash with the smallest id (the first
// one inserted), or an empty slice if the database has no sources.
func (sm *ScanManager) FirstSource() ([]byte, error) {
	return emptyIfNil(sm.db.sourceID.FirstHash())
}

// NextSource returns the source hash immediately after prev in
// insertion order, or an empty slice at the end.
func (sm *ScanManager) NextSource(prev []byte) ([]byte, error) {
	return emptyIfNil(sm.db.sourceID.NextHashAfter(prev))
}

func emptyIfNil(b []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	if b == nil {
		return []byte{}, nil
	}
	return b, nil
}

// Size returns the same counts as ImportManager.Size: SourceName,
// SourceData, SourceId and HashData. The Hash store is not counted.
func (sm *ScanManager) Size() (string, error) {
	return sizeJSON(sm.db)
}

// SizeHashes returns the number of distinct block hashes known.
func (sm *ScanManager) SizeHashes() (int, error) {
	return sm.db.hashData.Count()
}

// SizeSources returns the number of distinct source hashes known.
func (sm *ScanManager) SizeSources() (int, error) {
	return sm.db.sourceID.Count()
}

// History returns every command line recorded against this database.
func (sm *ScanManager) History() ([]string, error) {
	return sm.db.History()
}
