// Package sourcename implements the SourceName store: a multimap from
// a source hash to zero or more (repository_name, file_name) pairs.
package sourcename

import (
	"encoding/json"
	"fmt"

	"github.com/5l1v3r1/hashdb/internal/records"
	"github.com/5l1v3r1/hashdb/internal/store"
)

type Store struct {
	s *store.Store
}

func Open(dir string, mode store.Mode) (*Store, error) {
	s, err := store.Open("sourcename", dir, mode)
	if err != nil {
		return nil, err
	}
	return &Store{s: s}, nil
}

func (st *Store) Close() error { return st.s.Close() }

// Get returns the name pairs recorded for hash, in insertion order.
func (st *Store) Get(hash []byte) ([]records.NamePair, error) {
	v, found, err := st.s.Get(hash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	var pairs []records.NamePair
	if err := json.Unmarshal(v, &pairs); err != nil {
		return nil, fmt.Errorf("sourcename: decoding %x: %w", hash, err)
	}
	return pairs, nil
}

// Insert appends (repo, name) to hash's pair list if not already
// present; idempotent per pair.
func (st *Store) Insert(hash []byte, repo, name string) error {
	pairs, err := st.Get(hash)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if p.Repository == repo && p.Filename == name {
			return nil
		}
	}
	pairs = append(pairs, records.NamePair{Repository: repo, Filename: name})
	v, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("sourcename: encoding %x: %w", hash, err)
	}
	return st.s.Set(hash, v)
}

// Count returns the number of distinct source hashes with at least
// one name pair.
func (st *Store) Count() (int, error) {
	return st.s.Count()
}
