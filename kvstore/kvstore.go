package kvstore

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// MaxKeySize is the maximum size of a key in bytes.
const MaxKeySize = 64

// ErrNotFound is returned by Get when a key cannot be found.
var ErrNotFound = errors.New("kvstore: not found")

// ErrKeyTooLong is returned when a key exceeds MaxKeySize.
var ErrKeyTooLong = errors.New("kvstore: key too long")

var (
	errClosed         = errors.New("kvstore: is closed")
	errBadMagic       = errors.New("kvstore: bad magic byte sequence")
	errBadCompression = errors.New("kvstore: bad compression codec")
	errReleased       = errors.New("kvstore: iterator was released")
)

// Reader is the read side of a store.
type Reader interface {
	// Get returns the value stored at key. It may return ErrNotFound.
	Get(key []byte) ([]byte, error)
	// Iterate calls fn for every key with the given prefix, in ascending key
	// order. Keys and values passed to fn must be copied if retained.
	// Iteration stops at the first error returned by fn.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
}

// Writer is the write side of a store.
type Writer interface {
	// Put stores value at key.
	Put(key, value []byte) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key []byte) error
}

// ReadWriter combines Reader and Writer.
type ReadWriter interface {
	Reader
	Writer
}

// Store is an ordered key-value store with atomic batch writes.
type Store interface {
	ReadWriter

	// Write applies all operations of a batch atomically.
	Write(b *Batch) error
	// Close closes the store.
	Close() error
}

// Batch is a sequence of Put and Delete operations.
type Batch struct {
	leveldb.Batch
}

// CheckKey returns an error if key exceeds MaxKeySize.
func CheckKey(key []byte) error {
	if len(key) > MaxKeySize {
		return fmt.Errorf("%w, %d bytes (max %d)", ErrKeyTooLong, len(key), MaxKeySize)
	}
	return nil
}

// Validate returns an error if any of the batch keys exceed MaxKeySize.
func (b *Batch) Validate() error {
	c := new(batchChecker)
	if err := b.Replay(c); err != nil {
		return err
	}
	return c.err
}

type batchChecker struct{ err error }

func (c *batchChecker) Put(key, _ []byte) { c.check(key) }
func (c *batchChecker) Delete(key []byte) { c.check(key) }
func (c *batchChecker) check(key []byte) {
	if c.err == nil {
		c.err = CheckKey(key)
	}
}

// --------------------------------------------------------------------

// Copy copies every key of src into dst, in batches.
func Copy(dst Store, src Reader) error {
	const maxBatchLen = 4096

	batch := new(Batch)
	if err := src.Iterate(nil, func(key, value []byte) error {
		batch.Put(key, value)
		if batch.Len() < maxBatchLen {
			return nil
		}

		err := dst.Write(batch)
		batch.Reset()
		return err
	}); err != nil {
		return err
	}

	if batch.Len() == 0 {
		return nil
	}
	return dst.Write(batch)
}

func hasPrefix(key, prefix []byte) bool {
	return len(prefix) == 0 || bytes.HasPrefix(key, prefix)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
