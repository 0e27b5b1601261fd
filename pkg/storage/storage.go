// Package storage holds derived results between requests. Nothing here
// outlives the process: the key/value backend runs in memory only.
package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Store is the key/value backend behind the result cache
type Store interface {
	// Put writes val under key; it expires after ttl when ttl > 0
	Put(key, val []byte, ttl time.Duration) error

	// Get returns the value under key and whether it was present
	Get(key []byte) ([]byte, bool, error)

	// Delete removes key
	Delete(key []byte) error

	// DropAll removes every key
	DropAll() error

	// Close closes the store
	Close() error
}

// badgerStore implements Store on an in-memory BadgerDB
type badgerStore struct {
	db *badger.DB
}

// NewMemoryStore opens an in-memory store
func NewMemoryStore() (Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &badgerStore{db: db}, nil
}

// Put implements Store.Put
func (s *badgerStore) Put(key, val []byte, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, val)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Get implements Store.Get
func (s *badgerStore) Get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Delete implements Store.Delete
func (s *badgerStore) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// DropAll implements Store.DropAll
func (s *badgerStore) DropAll() error {
	return s.db.DropAll()
}

// Close implements Store.Close
func (s *badgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
