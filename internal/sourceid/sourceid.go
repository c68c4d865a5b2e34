// Package sourceid implements the SourceId store: the bijection
// between a source hash and a compact monotonically-assigned integer
// id, with iteration in insertion (= id) order.
package sourceid

import (
	"encoding/binary"
	"fmt"

	"github.com/5l1v3r1/hashdb/internal/store"
)

var (
	hashToIDPrefix = []byte{'h'}
	idToHashPrefix = []byte{'i'}
	counterKey     = []byte{'c'}
)

// Store is the SourceId store.
type Store struct {
	s *store.Store
}

func Open(dir string, mode store.Mode) (*Store, error) {
	s, err := store.Open("sourceid", dir, mode)
	if err != nil {
		return nil, err
	}
	return &Store{s: s}, nil
}

func (st *Store) Close() error { return st.s.Close() }

func encodeID(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

func decodeID(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func hashKey(hash []byte) []byte {
	return append(append([]byte{}, hashToIDPrefix...), hash...)
}

func idKey(id uint64) []byte {
	return append(append([]byte{}, idToHashPrefix...), encodeID(id)...)
}

// Lookup returns the id assigned to hash, if any.
func (st *Store) Lookup(hash []byte) (id uint64, found bool, err error) {
	v, found, err := st.s.Get(hashKey(hash))
	if err != nil || !found {
		return 0, found, err
	}
	return decodeID(v), true, nil
}

// HashForID returns the source hash assigned to id, if any.
func (st *Store) HashForID(id uint64) (hash []byte, found bool, err error) {
	return st.s.Get(idKey(id))
}

// GetOrCreate returns the id bound to hash, allocating the next
// monotonic id (1, 2, 3, ...) if this is the first time hash is seen.
func (st *Store) GetOrCreate(hash []byte) (id uint64, created bool, err error) {
	id, found, err := st.Lookup(hash)
	if err != nil {
		return 0, false, err
	}
	if found {
		return id, false, nil
	}

	next, err := st.nextCounter()
	if err != nil {
		return 0, false, err
	}

	if err := st.s.Set(hashKey(hash), encodeID(next)); err != nil {
		return 0, false, fmt.Errorf("sourceid: binding hash to id %d: %w", next, err)
	}
	if err := st.s.Set(idKey(next), hash); err != nil {
		return 0, false, fmt.Errorf("sourceid: binding id %d to hash: %w", next, err)
	}
	return next, true, nil
}

func (st *Store) nextCounter() (uint64, error) {
	v, found, err := st.s.Get(counterKey)
	if err != nil {
		return 0, err
	}
	cur := uint64(0)
	if found {
		cur = decodeID(v)
	}
	next := cur + 1
	if err := st.s.Set(counterKey, encodeID(next)); err != nil {
		return 0, fmt.Errorf("sourceid: advancing counter: %w", err)
	}
	return next, nil
}

// Ensure allocates an id for hash if one does not already exist,
// discarding the id itself; used by callers that only need the
// bijection to contain hash (e.g. insert_source_name/insert_source_data).
func (st *Store) Ensure(hash []byte) error {
	_, _, err := st.GetOrCreate(hash)
	return err
}

// Count returns the number of bound source hashes.
func (st *Store) Count() (int, error) {
	return st.s.CountPrefix(idToHashPrefix)
}

// FirstHash returns the source hash with the smallest assigned id, or
// nil if the store is empty.
func (st *Store) FirstHash() ([]byte, error) {
	keys, err := st.s.KeysWithPrefix(idToHashPrefix)
	if err != nil || len(keys) == 0 {
		return nil, err
	}
	v, _, err := st.s.Get(keys[0])
	return v, err
}

// NextHashAfter returns the source hash whose id is the smallest id
// greater than the id assigned to prevHash, or nil at the end.
func (st *Store) NextHashAfter(prevHash []byte) ([]byte, error) {
	id, found, err := st.Lookup(prevHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	nextKey, err := st.s.NextKey(idKey(id))
	if err != nil {
		return nil, err
	}
	if nextKey == nil {
		return nil, nil
	}
	v, found, err := st.s.Get(nextKey)
	if err != nil || !found {
		return nil, err
	}
	return v, nil
}
