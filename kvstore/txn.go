package kvstore

import (
	"bytes"

	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/memdb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	txnTombstone = 0
	txnValue     = 1
)

// Txn buffers writes on top of a Reader. Reads observe buffered writes.
// Nothing reaches the underlying store until Commit.
type Txn struct {
	base Reader
	buf  *memdb.DB
}

// NewTxn starts a transaction over base.
func NewTxn(base Reader) *Txn {
	return &Txn{base: base, buf: memdb.New(comparer.DefaultComparer, 0)}
}

// Len returns the number of buffered operations.
func (t *Txn) Len() int { return t.buf.Len() }

// Get implements Reader.
func (t *Txn) Get(key []byte) ([]byte, error) {
	if val, err := t.buf.Get(key); err == nil {
		if val[0] == txnTombstone {
			return nil, ErrNotFound
		}
		return clone(val[1:]), nil
	}
	return t.base.Get(key)
}

// Put implements Writer.
func (t *Txn) Put(key, value []byte) error {
	if err := CheckKey(key); err != nil {
		return err
	}

	rec := make([]byte, 0, 1+len(value))
	rec = append(rec, txnValue)
	rec = append(rec, value...)
	return t.buf.Put(key, rec)
}

// Delete implements Writer.
func (t *Txn) Delete(key []byte) error {
	return t.buf.Put(key, []byte{txnTombstone})
}

// Iterate implements Reader by merging buffered writes into the
// base iteration.
func (t *Txn) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	var slice *util.Range
	if len(prefix) != 0 {
		slice = util.BytesPrefix(prefix)
	}

	iter := t.buf.NewIterator(slice)
	defer iter.Release()

	ok := iter.Next()
	emit := func(it iterator.Iterator) error {
		if rec := it.Value(); rec[0] == txnValue {
			return fn(it.Key(), rec[1:])
		}
		return nil
	}

	if err := t.base.Iterate(prefix, func(key, value []byte) error {
		for ; ok; ok = iter.Next() {
			n := bytes.Compare(iter.Key(), key)
			if n > 0 {
				break
			}
			if err := emit(iter); err != nil {
				return err
			}
			if n == 0 {
				ok = iter.Next()
				return nil
			}
		}
		return fn(key, value)
	}); err != nil {
		return err
	}

	for ; ok; ok = iter.Next() {
		if err := emit(iter); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Batch returns the buffered operations as a batch.
func (t *Txn) Batch() *Batch {
	batch := new(Batch)

	iter := t.buf.NewIterator(nil)
	defer iter.Release()

	for iter.Next() {
		if rec := iter.Value(); rec[0] == txnValue {
			batch.Put(iter.Key(), rec[1:])
		} else {
			batch.Delete(iter.Key())
		}
	}
	return batch
}

// Commit writes all buffered operations to s atomically and resets the
// transaction.
func (t *Txn) Commit(s Store) error {
	if t.buf.Len() == 0 {
		return nil
	}
	if err := s.Write(t.Batch()); err != nil {
		return err
	}
	t.buf.Reset()
	return nil
}

// Discard drops all buffered operations.
func (t *Txn) Discard() { t.buf.Reset() }
