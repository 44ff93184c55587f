package kvstore

import (
	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
)

// BadgerStore is a store backed by a badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a badger database in dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "kvstore: open badger at %s", dir)
	}
	return NewBadgerStore(db), nil
}

// NewBadgerStore wraps an open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Get implements Reader.
func (s *BadgerStore) Get(key []byte) (val []byte, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	return val, errors.Wrap(err, "kvstore: badger get")
}

// Iterate implements Reader.
func (s *BadgerStore) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	var cbErr error
	err := s.db.View(func(txn *badger.Txn) error {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			item := iter.Item()
			val, err := item.Value()
			if err != nil {
				return err
			}
			if cbErr = fn(item.Key(), val); cbErr != nil {
				return cbErr
			}
		}
		return nil
	})
	if cbErr != nil {
		return cbErr
	}
	return errors.Wrap(err, "kvstore: badger iterate")
}

// Put implements Writer.
func (s *BadgerStore) Put(key, value []byte) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	return errors.Wrap(s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}), "kvstore: badger put")
}

// Delete implements Writer.
func (s *BadgerStore) Delete(key []byte) error {
	return errors.Wrap(s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}), "kvstore: badger delete")
}

// Write implements Store. The batch is applied in a single badger transaction.
func (s *BadgerStore) Write(b *Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}

	return errors.Wrap(s.db.Update(func(txn *badger.Txn) error {
		r := &badgerReplay{txn: txn}
		if err := b.Replay(r); err != nil {
			return err
		}
		return r.err
	}), "kvstore: badger write")
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type badgerReplay struct {
	txn *badger.Txn
	err error
}

func (r *badgerReplay) Put(key, value []byte) {
	if r.err == nil {
		// badger retains the slices until commit
		r.err = r.txn.Set(clone(key), clone(value))
	}
}

func (r *badgerReplay) Delete(key []byte) {
	if r.err == nil {
		r.err = r.txn.Delete(clone(key))
	}
}
