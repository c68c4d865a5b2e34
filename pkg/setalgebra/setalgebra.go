// Package setalgebra implements the nine combination operations that
// build a fresh output database out of one or two input databases:
// add, add_multiple, add_repository, add_range, intersect,
// intersect_hash, subtract, subtract_hash and subtract_repository.
//
// Every operation streams block records out of its input
// ScanManager(s) and writes the result through a single output
// ImportManager, copying along the SourceData/SourceName records of
// every source id it keeps. Inputs are never mutated.
package setalgebra

import (
	"fmt"
	"math"

	"github.com/5l1v3r1/hashdb/pkg/hashdb"
)

// Driver applies set-algebra operations against a single output
// database. It is single-threaded: operations are meant to be called
// one at a time, matching the synchronous scheduling model the rest
// of the package follows.
type Driver struct {
	Out *hashdb.ImportManager
}

// New returns a Driver that writes into out.
func New(out *hashdb.ImportManager) *Driver {
	return &Driver{Out: out}
}

// listBlocks materializes every block hash known to sm, in on-disk
// order.
func listBlocks(sm *hashdb.ScanManager) ([][]byte, error) {
	var out [][]byte
	h, err := sm.FirstHash()
	if err != nil {
		return nil, err
	}
	for len(h) > 0 {
		out = append(out, h)
		h, err = sm.NextHash(h)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// mergedSourceRecord resolves sourceHash against every manager in
// order, merging their SourceData (first hit wins) and the union of
// their name pairs. This is what lets intersect combine provenance
// recorded independently in two databases for the same source.
func mergedSourceRecord(managers []*hashdb.ScanManager, sourceHash []byte) (hashdb.SourceRecord, bool, error) {
	merged := hashdb.SourceRecord{SourceHash: sourceHash}
	found := false
	seen := map[string]bool{}
	for _, m := range managers {
		if m == nil {
			continue
		}
		rec, ok, err := m.GetSourceRecord(sourceHash)
		if err != nil {
			return hashdb.SourceRecord{}, false, err
		}
		if !ok {
			continue
		}
		if !found {
			merged.Filesize = rec.Filesize
			merged.FileType = rec.FileType
			merged.ZeroCount = rec.ZeroCount
			merged.NonprobativeCount = rec.NonprobativeCount
			found = true
		}
		for _, p := range rec.NamePairs {
			key := p.Repository + "\x00" + p.Filename
			if !seen[key] {
				seen[key] = true
				merged.NamePairs = append(merged.NamePairs, p)
			}
		}
	}
	return merged, found, nil
}

func filterNamePairs(pairs []hashdb.NamePair, repo string, include bool) []hashdb.NamePair {
	var out []hashdb.NamePair
	for _, p := range pairs {
		if (p.Repository == repo) == include {
			out = append(out, p)
		}
	}
	return out
}

// repoFilter restricts the name pairs copied for every source in an
// emitted block to those matching (include=true) or not matching
// (include=false) a single repository.
type repoFilter struct {
	repo    string
	include bool
}

// emitBlock writes rec and, for every source it still references,
// a merged SourceData/SourceName record pulled from sourceManagers.
func (d *Driver) emitBlock(rec hashdb.BlockRecord, sourceManagers []*hashdb.ScanManager, filter *repoFilter) error {
	if err := d.Out.PutBlockRecord(rec); err != nil {
		return fmt.Errorf("writing block %x: %w", rec.BlockHash, err)
	}
	for _, sc := range rec.SourceCounts {
		merged, found, err := mergedSourceRecord(sourceManagers, sc.SourceHash)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if filter != nil {
			merged.NamePairs = filterNamePairs(merged.NamePairs, filter.repo, filter.include)
		}
		if err := d.Out.PutSourceRecord(merged); err != nil {
			return fmt.Errorf("writing source %x: %w", sc.SourceHash, err)
		}
	}
	return nil
}

// accumulate sums sub_counts for repeated source hashes across recs,
// preserving each source's first-seen order. Used by add_multiple
// (sum across every contributing input) and intersect_hash (union of
// the two inputs' sub_counts, which for matching ids means a sum).
func accumulate(recs []hashdb.BlockRecord) hashdb.BlockRecord {
	var out hashdb.BlockRecord
	idx := map[string]int{}
	for _, r := range recs {
		if out.BlockHash == nil {
			out.BlockHash = r.BlockHash
		}
		if out.BlockLabel == "" {
			out.BlockLabel = r.BlockLabel
		}
		for _, sc := range r.SourceCounts {
			key := string(sc.SourceHash)
			if i, ok := idx[key]; ok {
				out.SourceCounts[i].SubCount += sc.SubCount
			} else {
				idx[key] = len(out.SourceCounts)
				out.SourceCounts = append(out.SourceCounts, sc)
			}
		}
	}
	return out
}

// sourceSet builds a lookup set of the source hashes referenced by a
// block record.
func sourceSet(rec hashdb.BlockRecord) map[string]uint64 {
	set := make(map[string]uint64, len(rec.SourceCounts))
	for _, sc := range rec.SourceCounts {
		set[string(sc.SourceHash)] = sc.SubCount
	}
	return set
}

// Add implements the "add" operation: every block of a, sub_counts
// unchanged.
func (d *Driver) Add(a *hashdb.ScanManager) error {
	blocks, err := listBlocks(a)
	if err != nil {
		return err
	}
	for _, hb := range blocks {
		rec, found, err := a.GetBlockRecord(hb)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := d.emitBlock(rec, []*hashdb.ScanManager{a}, nil); err != nil {
			return err
		}
	}
	return nil
}

// AddMultiple implements "add_multiple": every block present in any
// input, sub_counts summed per source across every input that carries
// it.
func (d *Driver) AddMultiple(inputs []*hashdb.ScanManager) error {
	seen := map[string]bool{}
	var order [][]byte
	for _, sm := range inputs {
		blocks, err := listBlocks(sm)
		if err != nil {
			return err
		}
		for _, hb := range blocks {
			key := string(hb)
			if !seen[key] {
				seen[key] = true
				order = append(order, hb)
			}
		}
	}
	for _, hb := range order {
		var parts []hashdb.BlockRecord
		for _, sm := range inputs {
			rec, found, err := sm.GetBlockRecord(hb)
			if err != nil {
				return err
			}
			if found {
				parts = append(parts, rec)
			}
		}
		if len(parts) == 0 {
			continue
		}
		merged := accumulate(parts)
		if err := d.emitBlock(merged, inputs, nil); err != nil {
			return err
		}
	}
	return nil
}

// sourceHasRepo reports whether sourceHash has a recorded name pair
// whose repository equals repo, per sm.
func sourceHasRepo(sm *hashdb.ScanManager, sourceHash []byte, repo string) (bool, error) {
	rec, found, err := sm.GetSourceRecord(sourceHash)
	if err != nil || !found {
		return false, err
	}
	for _, p := range rec.NamePairs {
		if p.Repository == repo {
			return true, nil
		}
	}
	return false, nil
}

// addOrSubtractRepository is the shared body of add_repository and
// subtract_repository: they differ only in whether a qualifying
// source is one that DOES or does NOT carry the named repository.
func (d *Driver) addOrSubtractRepository(a *hashdb.ScanManager, repo string, include bool) error {
	blocks, err := listBlocks(a)
	if err != nil {
		return err
	}
	for _, hb := range blocks {
		rec, found, err := a.GetBlockRecord(hb)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		var kept []hashdb.SourceCount
		for _, sc := range rec.SourceCounts {
			has, err := sourceHasRepo(a, sc.SourceHash, repo)
			if err != nil {
				return err
			}
			if has == include {
				kept = append(kept, sc)
			}
		}
		if len(kept) == 0 {
			continue
		}
		rec.SourceCounts = kept
		if err := d.emitBlock(rec, []*hashdb.ScanManager{a}, &repoFilter{repo: repo, include: include}); err != nil {
			return err
		}
	}
	return nil
}

// AddRepository implements "add_repository(repo)".
func (d *Driver) AddRepository(a *hashdb.ScanManager, repo string) error {
	return d.addOrSubtractRepository(a, repo, true)
}

// SubtractRepository implements "subtract_repository(repo)".
func (d *Driver) SubtractRepository(a *hashdb.ScanManager, repo string) error {
	return d.addOrSubtractRepository(a, repo, false)
}

// AddRange implements "add_range(lo:hi)": every block of a whose
// exact hash count falls within [lo,hi]. hi < 0 means unbounded.
func (d *Driver) AddRange(a *hashdb.ScanManager, lo, hi int) error {
	blocks, err := listBlocks(a)
	if err != nil {
		return err
	}
	if hi < 0 {
		hi = math.MaxInt32
	}
	for _, hb := range blocks {
		count, err := a.FindHashCount(hb)
		if err != nil {
			return err
		}
		if count < lo || count > hi {
			continue
		}
		rec, found, err := a.GetBlockRecord(hb)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := d.emitBlock(rec, []*hashdb.ScanManager{a}, nil); err != nil {
			return err
		}
	}
	return nil
}

// Intersect implements "intersect": blocks present in both a and b
// that share at least one source id; sub_count per shared id is
// min(A,B).
func (d *Driver) Intersect(a, b *hashdb.ScanManager) error {
	blocks, err := listBlocks(a)
	if err != nil {
		return err
	}
	for _, hb := range blocks {
		recA, found, err := a.GetBlockRecord(hb)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		recB, found, err := b.GetBlockRecord(hb)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		setB := sourceSet(recB)
		var shared []hashdb.SourceCount
		for _, sc := range recA.SourceCounts {
			bCount, ok := setB[string(sc.SourceHash)]
			if !ok {
				continue
			}
			min := sc.SubCount
			if bCount < min {
				min = bCount
			}
			shared = append(shared, hashdb.SourceCount{SourceHash: sc.SourceHash, SubCount: min})
		}
		if len(shared) == 0 {
			continue
		}
		out := hashdb.BlockRecord{BlockHash: hb, Entropy: recA.Entropy, BlockLabel: recA.BlockLabel, SourceCounts: shared}
		if err := d.emitBlock(out, []*hashdb.ScanManager{a, b}, nil); err != nil {
			return err
		}
	}
	return nil
}

// IntersectHash implements "intersect_hash": every block whose hash
// is present in both a and b, regardless of source overlap, with
// sub_counts unioned (summed on overlap) across the two inputs.
func (d *Driver) IntersectHash(a, b *hashdb.ScanManager) error {
	blocks, err := listBlocks(a)
	if err != nil {
		return err
	}
	for _, hb := range blocks {
		recA, found, err := a.GetBlockRecord(hb)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		recB, found, err := b.GetBlockRecord(hb)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		merged := accumulate([]hashdb.BlockRecord{recA, recB})
		if err := d.emitBlock(merged, []*hashdb.ScanManager{a, b}, nil); err != nil {
			return err
		}
	}
	return nil
}

// Subtract implements "subtract": blocks of a that either aren't in b
// at all, or have source ids b doesn't have for that block; output
// sub_counts are a's, restricted to ids absent from b's list.
func (d *Driver) Subtract(a, b *hashdb.ScanManager) error {
	blocks, err := listBlocks(a)
	if err != nil {
		return err
	}
	for _, hb := range blocks {
		recA, found, err := a.GetBlockRecord(hb)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		recB, foundB, err := b.GetBlockRecord(hb)
		if err != nil {
			return err
		}
		kept := recA.SourceCounts
		if foundB {
			setB := sourceSet(recB)
			kept = nil
			for _, sc := range recA.SourceCounts {
				if _, ok := setB[string(sc.SourceHash)]; !ok {
					kept = append(kept, sc)
				}
			}
			if len(kept) == 0 {
				continue
			}
		}
		out := hashdb.BlockRecord{BlockHash: hb, Entropy: recA.Entropy, BlockLabel: recA.BlockLabel, SourceCounts: kept}
		if err := d.emitBlock(out, []*hashdb.ScanManager{a}, nil); err != nil {
			return err
		}
	}
	return nil
}

// SubtractHash implements "subtract_hash": blocks in a whose hash is
// not present in b at all, sub_counts unchanged.
func (d *Driver) SubtractHash(a, b *hashdb.ScanManager) error {
	blocks, err := listBlocks(a)
	if err != nil {
		return err
	}
	for _, hb := range blocks {
		_, foundB, err := b.GetBlockRecord(hb)
		if err != nil {
			return err
		}
		if foundB {
			continue
		}
		recA, found, err := a.GetBlockRecord(hb)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := d.emitBlock(recA, []*hashdb.ScanManager{a}, nil); err != nil {
			return err
		}
	}
	return nil
}
