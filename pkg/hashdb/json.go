package hashdb

import (
	"encoding/json"
	"fmt"

	"github.com/5l1v3r1/hashdb/internal/records"
)

// blockRecordJSON is the canonical, non-expanded block schema (§6):
// {"block_hash":H,"k_entropy":E,"block_label":L,"source_sub_counts":[H_s_hex,count,...]}
type blockRecordJSON struct {
	BlockHash       string        `json:"block_hash"`
	KEntropy        uint64        `json:"k_entropy"`
	BlockLabel      string        `json:"block_label"`
	SourceSubCounts []interface{} `json:"source_sub_counts"`
}

// sourceRecordJSON is the canonical source schema (§6).
type sourceRecordJSON struct {
	FileHash          string        `json:"file_hash"`
	Filesize          uint64        `json:"filesize"`
	FileType          string        `json:"file_type"`
	ZeroCount         uint64        `json:"zero_count"`
	NonprobativeCount uint64        `json:"nonprobative_count"`
	NamePairs         []interface{} `json:"name_pairs"`
}

// expandedSourceRecordJSON is the reduced schema used inside a block
// expansion's "sources" array: no zero_count, confirmed against the
// literal §8 scenario-1 test vector.
type expandedSourceRecordJSON struct {
	FileHash          string        `json:"file_hash"`
	Filesize          uint64        `json:"filesize"`
	FileType          string        `json:"file_type"`
	NonprobativeCount uint64        `json:"nonprobative_count"`
	NamePairs         []interface{} `json:"name_pairs"`
}

// expandedBlockRecordJSON is the find_expanded_hash_json schema.
// Entropy/BlockLabel/SourceListID/Sources/SourceOffsetPairs are all
// omitted together when the block has no resolved sources, matching
// "without the scan-id fields when no sources are resolved" (§4.3.1)
// and the §8 scenario-2 literal ({"block_hash":"..."} only).
type expandedBlockRecordJSON struct {
	BlockHash         string                      `json:"block_hash"`
	Entropy           *uint64                     `json:"entropy,omitempty"`
	BlockLabel        *string                     `json:"block_label,omitempty"`
	SourceListID      *uint32                     `json:"source_list_id,omitempty"`
	Sources           []expandedSourceRecordJSON  `json:"sources,omitempty"`
	SourceOffsetPairs []interface{}               `json:"source_offset_pairs,omitempty"`
}

func jsonCompact(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func namePairsJSON(pairs []records.NamePair) []interface{} {
	out := make([]interface{}, 0, len(pairs)*2)
	for _, p := range pairs {
		out = append(out, p.Repository, p.Filename)
	}
	return out
}

func subCountsJSON(idToHash func(id uint64) (string, error), subs []records.SourceSubCount) ([]interface{}, error) {
	out := make([]interface{}, 0, len(subs)*2)
	for _, sc := range subs {
		hex, err := idToHash(sc.SourceID)
		if err != nil {
			return nil, err
		}
		out = append(out, hex, sc.SubCount)
	}
	return out, nil
}

// encodeBlockRecord renders the canonical (non-expanded) block JSON
// for export_hash_json / import_json round trips.
func encodeBlockRecord(blockHashHex string, hd records.HashData, idToHash func(uint64) (string, error)) ([]byte, error) {
	subs, err := subCountsJSON(idToHash, hd.SourceSubCounts)
	if err != nil {
		return nil, err
	}
	rec := blockRecordJSON{
		BlockHash:       blockHashHex,
		KEntropy:        hd.Entropy,
		BlockLabel:      hd.BlockLabel,
		SourceSubCounts: subs,
	}
	return json.Marshal(rec)
}

// encodeSourceRecord renders the canonical source JSON for
// export_source_json.
func encodeSourceRecord(fileHashHex string, sd records.SourceData, pairs []records.NamePair) ([]byte, error) {
	rec := sourceRecordJSON{
		FileHash:          fileHashHex,
		Filesize:          sd.Filesize,
		FileType:          sd.FileType,
		ZeroCount:         sd.ZeroCount,
		NonprobativeCount: sd.NonprobativeCount,
		NamePairs:         namePairsJSON(pairs),
	}
	return json.Marshal(rec)
}

type importedBlockRecord struct {
	BlockHash         string          `json:"block_hash"`
	KEntropy          uint64          `json:"k_entropy"`
	BlockLabel        string          `json:"block_label"`
	SourceSubCounts   json.RawMessage `json:"source_sub_counts"`
	SourceOffsetPairs json.RawMessage `json:"source_offset_pairs"`
}

type importedSourceRecord struct {
	FileHash          string          `json:"file_hash"`
	Filesize          uint64          `json:"filesize"`
	FileType          string          `json:"file_type"`
	ZeroCount         uint64          `json:"zero_count"`
	NonprobativeCount uint64          `json:"nonprobative_count"`
	NamePairs         json.RawMessage `json:"name_pairs"`
}

// parseHeterogeneousArray turns a JSON array alternating strings and
// numbers (as used by source_sub_counts / source_offset_pairs /
// name_pairs) into a []string, numbers rendered in decimal.
func parseHeterogeneousArray(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decoding array: %w", err)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n uint64
		if err := json.Unmarshal(item, &n); err != nil {
			return nil, fmt.Errorf("array element %s is neither string nor number", item)
		}
		out = append(out, fmt.Sprintf("%d", n))
	}
	return out, nil
}
