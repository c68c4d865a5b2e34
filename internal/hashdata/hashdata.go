// Package hashdata implements the HashData store: a map from a block
// hash to its block metadata plus the ordered, bounded list of
// (source_id, sub_count) pairs.
package hashdata

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
	s, err := store.Open("hashdata", dir, mode)
	if err != nil {
		return nil, err
	}
	return &Store{s: s}, nil
}

func (st *Store) Close() error { return st.s.Close() }

// Get returns the HashData record for hash, if any.
func (st *Store) Get(hash []byte) (rec records.HashData, found bool, err error) {
	v, found, err := st.s.Get(hash)
	if err != nil || !found {
		return records.HashData{}, found, err
	}
	if err := json.Unmarshal(v, &rec); err != nil {
		return records.HashData{}, false, fmt.Errorf("hashdata: decoding %x: %w", hash, err)
	}
	return rec, true, nil
}

// Put writes or overwrites the record for hash.
func (st *Store) Put(hash []byte, rec records.HashData) error {
	v, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("hashdata: encoding %x: %w", hash, err)
	}
	return st.s.Set(hash, v)
}

func (st *Store) Has(hash []byte) (bool, error) {
	return st.s.Has(hash)
}

func (st *Store) Count() (int, error) {
	return st.s.Count()
}

func (st *Store) FirstHash() ([]byte, error) {
	return st.s.FirstKey()
}

func (st *Store) NextHash(prev []byte) ([]byte, error) {
	return st.s.NextKey(prev)
}
