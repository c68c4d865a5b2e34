package hashdb

import (
	"encoding/json"
	"fmt"

	"github.com/5l1v3r1/hashdb/internal/records"
	"github.com/5l1v3r1/hashdb/internal/store"
	"github.com/sirupsen/logrus"
)

// ImportManager is the write façade (§4.2): it opens a database for
// exclusive modification and exposes the insert operations. Nothing it
// writes is ever deleted in place.
type ImportManager struct {
	db *Database
}

// OpenImportManager opens path for exclusive write. A second concurrent
// OpenImportManager on the same path fails: badger's own lock file is
// the directory-level advisory exclusion §5 specifies.
func OpenImportManager(path string) (*ImportManager, error) {
	db, err := Open(path, store.ReadWrite)
	if err != nil {
		return nil, fmt.Errorf("opening %s for import: %w", path, err)
	}
	return &ImportManager{db: db}, nil
}

func (im *ImportManager) Close() error {
	return im.db.Close()
}

// AppendHistory records one command line in the database's history
// log.
func (im *ImportManager) AppendHistory(commandLine string) error {
	return im.db.AppendHistory(commandLine)
}

// InsertSourceName appends (repo, name) for sourceHash if not already
// present; idempotent per pair.
func (im *ImportManager) InsertSourceName(sourceHash []byte, repo, name string) error {
	if err := im.db.sourceID.Ensure(sourceHash); err != nil {
		return err
	}
	return im.db.sourceName.Insert(sourceHash, repo, name)
}

// InsertSourceData writes or overwrites the SourceData row for
// sourceHash, allocating an id for it if one does not yet exist.
func (im *ImportManager) InsertSourceData(sourceHash []byte, filesize uint64, fileType string, nonprobativeCount uint64) error {
	if err := im.db.sourceID.Ensure(sourceHash); err != nil {
		return err
	}
	existing, found, _ := im.db.sourceData.Get(sourceHash)
	zeroCount := uint64(0)
	if found {
		zeroCount = existing.ZeroCount
	}
	return im.db.sourceData.Put(sourceHash, records.SourceData{
		Filesize:          filesize,
		FileType:          fileType,
		ZeroCount:         zeroCount,
		NonprobativeCount: nonprobativeCount,
	})
}

// InsertHash is the central write (§4.2): resolves or allocates an id
// for sourceHash, creates or updates blockHash's HashData record,
// appends (id, offset) to the Hash store subject to the fan-out cap,
// and updates the id's sub_count.
//
// subCountDelta resolves the §9 open question: zero means "auto
// increment sub_count by one per call"; non-zero is an explicit delta
// applied instead, with auto-increment disabled for that call.
func (im *ImportManager) InsertHash(blockHash, sourceHash []byte, offset uint64, subCountDelta int64, blockLabel string) error {
	if !im.db.Settings.AlignOffset(offset) {
		return fmt.Errorf("offset %d is not a multiple of byte_alignment %d", offset, im.db.Settings.ByteAlignment)
	}

	id, _, err := im.db.sourceID.GetOrCreate(sourceHash)
	if err != nil {
		return fmt.Errorf("resolving source id: %w", err)
	}

	hd, found, err := im.db.hashData.Get(blockHash)
	if err != nil {
		return fmt.Errorf("reading block %x: %w", blockHash, err)
	}
	if !found {
		hd = records.HashData{Entropy: 0, BlockLabel: blockLabel}
	}

	delta := subCountDelta
	if delta == 0 {
		delta = 1
	}
	idx := hd.IndexOf(id)
	if idx == -1 {
		hd.SourceSubCounts = append(hd.SourceSubCounts, records.SourceSubCount{SourceID: id, SubCount: uint64(delta)})
	} else {
		hd.SourceSubCounts[idx].SubCount = uint64(int64(hd.SourceSubCounts[idx].SubCount) + delta)
	}

	inserted, err := im.db.hashStore.Insert(blockHash, id, offset,
		im.db.Settings.HashPrefixBits, im.db.Settings.HashSuffixBytes, im.db.Settings.MaxSourceOffsetPairs)
	if err != nil {
		return fmt.Errorf("recording offset: %w", err)
	}
	if !inserted {
		im.db.log.WithFields(logrus.Fields{
			"block_hash": BinToHex(blockHash),
			"cap":        im.db.Settings.MaxSourceOffsetPairs,
		}).Warn("hashdb: fan-out cap reached, offset discarded")
	}

	if err := im.db.hashData.Put(blockHash, hd); err != nil {
		return fmt.Errorf("writing block %x: %w", blockHash, err)
	}
	return nil
}

// ImportJSON parses one JSON import-file record. It returns an empty
// string on success; a non-empty string describes a validation
// failure without aborting the surrounding import session.
func (im *ImportManager) ImportJSON(line string) string {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &probe); err != nil {
		return fmt.Sprintf("malformed JSON: %v", err)
	}

	if _, ok := probe["block_hash"]; ok {
		return im.importBlockRecord(line)
	}
	if _, ok := probe["file_hash"]; ok {
		return im.importSourceRecord(line)
	}
	return "record has neither block_hash nor file_hash"
}

func (im *ImportManager) importBlockRecord(line string) string {
	var rec importedBlockRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return fmt.Sprintf("malformed block record: %v", err)
	}
	blockHash := HexToBin(rec.BlockHash)
	if len(blockHash) == 0 && rec.BlockHash != "" {
		return fmt.Sprintf("invalid block_hash %q", rec.BlockHash)
	}

	hd, found, err := im.db.hashData.Get(blockHash)
	if err != nil {
		return err.Error()
	}
	if !found {
		hd = records.HashData{}
	}
	hd.Entropy = rec.KEntropy
	hd.BlockLabel = rec.BlockLabel

	subCounts, err := parseHeterogeneousArray(rec.SourceSubCounts)
	if err != nil {
		return fmt.Sprintf("malformed source_sub_counts: %v", err)
	}
	for i := 0; i+1 < len(subCounts); i += 2 {
		sourceHash := HexToBin(subCounts[i])
		if len(sourceHash) == 0 {
			return fmt.Sprintf("invalid source hash %q in source_sub_counts", subCounts[i])
		}
		var subCount uint64
		if _, err := fmt.Sscanf(subCounts[i+1], "%d", &subCount); err != nil {
			return fmt.Sprintf("invalid sub_count %q", subCounts[i+1])
		}
		id, _, err := im.db.sourceID.GetOrCreate(sourceHash)
		if err != nil {
			return err.Error()
		}
		idx := hd.IndexOf(id)
		if idx == -1 {
			hd.SourceSubCounts = append(hd.SourceSubCounts, records.SourceSubCount{SourceID: id, SubCount: subCount})
		} else {
			hd.SourceSubCounts[idx].SubCount = subCount
		}
	}

	if err := im.db.hashData.Put(blockHash, hd); err != nil {
		return err.Error()
	}

	offsetPairs, err := parseHeterogeneousArray(rec.SourceOffsetPairs)
	if err != nil {
		return fmt.Sprintf("malformed source_offset_pairs: %v", err)
	}
	for i := 0; i+1 < len(offsetPairs); i += 2 {
		sourceHash := HexToBin(offsetPairs[i])
		if len(sourceHash) == 0 {
			return fmt.Sprintf("invalid source hash %q in source_offset_pairs", offsetPairs[i])
		}
		var off uint64
		if _, err := fmt.Sscanf(offsetPairs[i+1], "%d", &off); err != nil {
			return fmt.Sprintf("invalid offset %q", offsetPairs[i+1])
		}
		if !im.db.Settings.AlignOffset(off) {
			return fmt.Sprintf("offset %d is not aligned to %d", off, im.db.Settings.ByteAlignment)
		}
		id, _, err := im.db.sourceID.GetOrCreate(sourceHash)
		if err != nil {
			return err.Error()
		}
		if _, err := im.db.hashStore.Insert(blockHash, id, off,
			im.db.Settings.HashPrefixBits, im.db.Settings.HashSuffixBytes, im.db.Settings.MaxSourceOffsetPairs); err != nil {
			return err.Error()
		}
	}

	return ""
}

func (im *ImportManager) importSourceRecord(line string) string {
	var rec importedSourceRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return fmt.Sprintf("malformed source record: %v", err)
	}
	fileHash := HexToBin(rec.FileHash)
	if len(fileHash) == 0 && rec.FileHash != "" {
		return fmt.Sprintf("invalid file_hash %q", rec.FileHash)
	}

	if err := im.db.sourceID.Ensure(fileHash); err != nil {
		return err.Error()
	}

	if err := im.db.sourceData.Put(fileHash, records.SourceData{
		Filesize:          rec.Filesize,
		FileType:          rec.FileType,
		ZeroCount:         rec.ZeroCount,
		NonprobativeCount: rec.NonprobativeCount,
	}); err != nil {
		return err.Error()
	}

	namePairs, err := parseHeterogeneousArray(rec.NamePairs)
	if err != nil {
		return fmt.Sprintf("malformed name_pairs: %v", err)
	}
	for i := 0; i+1 < len(namePairs); i += 2 {
		if err := im.db.sourceName.Insert(fileHash, namePairs[i], namePairs[i+1]); err != nil {
			return err.Error()
		}
	}

	return ""
}

// Size returns a JSON object with the key counts of four of the five
// stores: SourceName, SourceData, SourceId and HashData. The Hash store
// (the (id, offset) index) is not counted.
func (im *ImportManager) Size() (string, error) {
	return sizeJSON(im.db)
}

func sizeJSON(db *Database) (string, error) {
	sourceNames, err := db.sourceName.Count()
	if err != nil {
		return "", err
	}
	sourceData, err := db.sourceData.Count()
	if err != nil {
		return "", err
	}
	sourceIDs, err := db.sourceID.Count()
	if err != nil {
		return "", err
	}
	hashes, err := db.hashData.Count()
	if err != nil {
		return "", err
	}

	out := struct {
		SourceNames int `json:"source_names"`
		SourceData  int `json:"source_data"`
		SourceIDs   int `json:"source_ids"`
		Hashes      int `json:"hashes"`
	}{sourceNames, sourceData, sourceIDs, hashes}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
