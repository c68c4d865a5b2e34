// Package store wraps a single badger key-value instance the way the
// teacher's internal/keyValStore wraps badger for ouroboros-db: one
// *badger.DB per logical store, opened read-write or read-only,
// exposing the handful of primitives the hashdb stores are built from.
package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger()

// SetLogger lets the owning package (pkg/hashdb) redirect logging to a
// caller-supplied logrus.Logger.
func SetLogger(l *logrus.Logger) {
	log = l
}

// Mode selects whether a Store is opened for exclusive writing or
// shared reading.
type Mode int

const (
	ReadWrite Mode = iota
	ReadOnly
)

// Store is a thin badger.DB wrapper scoped to one on-disk directory.
type Store struct {
	name string
	db   *badger.DB
}

// Open opens (creating if necessary) the badger instance rooted at
// dir. A ReadWrite open takes badger's own directory lock, which is
// the advisory single-writer exclusion the database directory as a
// whole relies on (§5): a second ReadWrite open of the same dir fails
// here with a lock-held error.
func Open(name, dir string, mode Mode) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	opts.ValueLogFileSize = 1 << 26 // 64MB, records here are tiny
	opts.SyncWrites = mode == ReadWrite

	if mode == ReadOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening %s store at %s: %w", name, dir, err)
	}

	return &Store{name: name, db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the value for key, or (nil, false, nil) if absent.
func (s *Store) Get(key []byte) (value []byte, found bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(key)
		if getErr == badger.ErrKeyNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		found = true
		value, getErr = item.ValueCopy(nil)
		return getErr
	})
	if err != nil {
		return nil, false, fmt.Errorf("%s: get %x: %w", s.name, key, err)
	}
	return value, found, nil
}

// Set writes key=value, overwriting any prior value.
func (s *Store) Set(key, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("%s: set %x: %w", s.name, key, err)
	}
	return nil
}

// Has reports whether key is present.
func (s *Store) Has(key []byte) (bool, error) {
	_, found, err := s.Get(key)
	return found, err
}

// CountPrefix counts the number of keys carrying the given prefix.
func (s *Store) CountPrefix(prefix []byte) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: count prefix %x: %w", s.name, prefix, err)
	}
	return count, nil
}

// KeysWithPrefix returns copies of every key carrying the given
// prefix, in on-disk (sorted) order.
func (s *Store) KeysWithPrefix(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: keys prefix %x: %w", s.name, prefix, err)
	}
	return keys, nil
}

// FirstKey returns the lexicographically smallest key, or nil if the
// store is empty.
func (s *Store) FirstKey() ([]byte, error) {
	var first []byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		it.Rewind()
		if it.Valid() {
			first = it.Item().KeyCopy(nil)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: first key: %w", s.name, err)
	}
	return first, nil
}

// NextKey returns the smallest key strictly greater than prev, or nil
// at end of the store. Stateless: each call re-seeks, satisfying the
// "iterator state must not be shared" concurrency rule because there
// is no iterator object to share.
func (s *Store) NextKey(prev []byte) ([]byte, error) {
	var next []byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prev); it.Valid(); it.Next() {
			k := it.Item().Key()
			if bytesGreater(k, prev) {
				next = append([]byte{}, k...)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: next key: %w", s.name, err)
	}
	return next, nil
}

func bytesGreater(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return len(a) > len(b)
}

// Count returns the total number of keys in the store.
func (s *Store) Count() (int, error) {
	return s.CountPrefix(nil)
}

// Delete removes key. None of the hashdb stores call it: they never
// delete application data.
func (s *Store) Delete(key []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("%s: delete %x: %w", s.name, key, err)
	}
	return nil
}
