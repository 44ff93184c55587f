package kvstore

import (
	"sync"

	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// MemStore is an in-memory store, backed by a goleveldb skiplist.
type MemStore struct {
	db     *memdb.DB
	mu     sync.RWMutex
	closed bool
}

// NewMemStore creates a new, empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{db: memdb.New(comparer.DefaultComparer, 0)}
}

// Len returns the number of stored keys.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.db.Len()
}

// Get implements Reader.
func (s *MemStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed
	}

	val, err := s.db.Get(key)
	if err == memdb.ErrNotFound {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return clone(val), nil
}

// Iterate implements Reader.
func (s *MemStore) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errClosed
	}

	var slice *util.Range
	if len(prefix) != 0 {
		slice = util.BytesPrefix(prefix)
	}

	iter := s.db.NewIterator(slice)
	defer iter.Release()

	for iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Put implements Writer.
func (s *MemStore) Put(key, value []byte) error {
	if err := CheckKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed
	}
	return s.db.Put(key, value)
}

// Delete implements Writer.
func (s *MemStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed
	}
	if err := s.db.Delete(key); err != nil && err != memdb.ErrNotFound {
		return err
	}
	return nil
}

// Write implements Store.
func (s *MemStore) Write(b *Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed
	}
	return b.Replay(memReplay{s.db})
}

// Close implements Store.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed
	}
	s.closed = true
	s.db.Reset()
	return nil
}

type memReplay struct{ db *memdb.DB }

func (r memReplay) Put(key, value []byte) { _ = r.db.Put(key, value) }
func (r memReplay) Delete(key []byte)     { _ = r.db.Delete(key) }
