// Package sourcedata implements the SourceData store: a map from a
// source hash to its file metadata record.
package sourcedata

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
	s, err := store.Open("sourcedata", dir, mode)
	if err != nil {
		return nil, err
	}
	return &Store{s: s}, nil
}

func (st *Store) Close() error { return st.s.Close() }

// Get returns the source data record for hash, if any.
func (st *Store) Get(hash []byte) (rec records.SourceData, found bool, err error) {
	v, found, err := st.s.Get(hash)
	if err != nil || !found {
		return records.SourceData{}, found, err
	}
	if err := json.Unmarshal(v, &rec); err != nil {
		return records.SourceData{}, false, fmt.Errorf("sourcedata: decoding %x: %w", hash, err)
	}
	return rec, true, nil
}

// Put writes or overwrites the record for hash.
func (st *Store) Put(hash []byte, rec records.SourceData) error {
	v, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sourcedata: encoding %x: %w", hash, err)
	}
	return st.s.Set(hash, v)
}

func (st *Store) Count() (int, error) {
	return st.s.Count()
}
