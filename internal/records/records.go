// Package records defines the in-process representations persisted by
// the five hashdb stores, independent of their on-disk encoding or of
// the external JSON wire schema (pkg/hashdb owns that translation).
package records

// NamePair is one (repository, filename) provenance entry for a
// source hash.
type NamePair struct {
	Repository string `json:"repository"`
	Filename   string `json:"filename"`
}

// SourceData is the SourceData entity: filesize, type tag and the two
// block-accounting counters.
type SourceData struct {
	Filesize           uint64 `json:"filesize"`
	FileType           string `json:"file_type"`
	ZeroCount          uint64 `json:"zero_count"`
	NonprobativeCount  uint64 `json:"nonprobative_count"`
}

// SourceSubCount is one (source id, sub_count) entry inside a block's
// HashData record, in insertion order.
type SourceSubCount struct {
	SourceID uint64 `json:"source_id"`
	SubCount uint64 `json:"sub_count"`
}

// HashData is the HashData entity: block metadata plus the ordered
// per-source sub_count list.
type HashData struct {
	Entropy         uint64           `json:"entropy"`
	BlockLabel      string           `json:"block_label"`
	SourceSubCounts []SourceSubCount `json:"source_sub_counts"`
}

// IndexOf returns the position of id within hd.SourceSubCounts, or -1.
func (hd *HashData) IndexOf(id uint64) int {
	for i, sc := range hd.SourceSubCounts {
		if sc.SourceID == id {
			return i
		}
	}
	return -1
}
