package kvstore

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelStore is a store backed by a goleveldb database.
type LevelStore struct {
	db *leveldb.DB
	wo *opt.WriteOptions
}

// OpenLevelStore opens (or creates) a goleveldb database at path.
func OpenLevelStore(path string, o *opt.Options) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, o)
	if err != nil {
		return nil, errors.Wrapf(err, "kvstore: open leveldb at %s", path)
	}
	return NewLevelStore(db), nil
}

// OpenLevelMemStore opens a goleveldb database with in-memory storage.
func OpenLevelMemStore() (*LevelStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "kvstore: open leveldb in memory")
	}
	return NewLevelStore(db), nil
}

// NewLevelStore wraps an open database. Writes are synced.
func NewLevelStore(db *leveldb.DB) *LevelStore {
	return &LevelStore{db: db, wo: &opt.WriteOptions{Sync: true}}
}

// Get implements Reader.
func (s *LevelStore) Get(key []byte) ([]byte, error) {
	val, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "kvstore: leveldb get")
	}
	return val, nil
}

// Iterate implements Reader.
func (s *LevelStore) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	var slice *util.Range
	if len(prefix) != 0 {
		slice = util.BytesPrefix(prefix)
	}

	iter := s.db.NewIterator(slice, nil)
	defer iter.Release()

	for iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return errors.Wrap(iter.Error(), "kvstore: leveldb iterate")
}

// Put implements Writer.
func (s *LevelStore) Put(key, value []byte) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	return errors.Wrap(s.db.Put(key, value, s.wo), "kvstore: leveldb put")
}

// Delete implements Writer.
func (s *LevelStore) Delete(key []byte) error {
	return errors.Wrap(s.db.Delete(key, s.wo), "kvstore: leveldb delete")
}

// Write implements Store.
func (s *LevelStore) Write(b *Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return errors.Wrap(s.db.Write(&b.Batch, s.wo), "kvstore: leveldb write")
}

// Close implements Store.
func (s *LevelStore) Close() error {
	return s.db.Close()
}
