package reltable

import (
	"io"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/bsm/reltable/kvstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Engine is a relational table engine on top of a key-value store. All
// methods are safe for concurrent use; calls are executed one at a time.
type Engine struct {
	store kvstore.Store
	opt   *Options
	log   zerolog.Logger

	mu      sync.Mutex
	tables  map[string]*Table   // active, by name
	dropped map[string][]*Table // dropped, by name, in drop order
	filters map[uint32]map[int]*bloom.BloomFilter
}

// Open opens an engine on store and loads the catalog.
func Open(store kvstore.Store, o *Options) (*Engine, error) {
	opt := o.norm()
	e := &Engine{
		store:   store,
		opt:     opt,
		log:     opt.Logger.With().Str("component", "reltable").Logger(),
		tables:  make(map[string]*Table),
		dropped: make(map[string][]*Table),
		filters: make(map[uint32]map[int]*bloom.BloomFilter),
	}
	if err := e.load(); err != nil {
		return nil, err
	}

	e.log.Debug().Int("tables", len(e.tables)).Int("dropped", len(e.dropped)).Msg("opened")
	return e, nil
}

// Close closes the underlying store.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.Close()
}

// Snapshot writes a point-in-time copy of the whole store to w.
func (e *Engine) Snapshot(w io.Writer) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return kvstore.Dump(e.store, w, nil)
}

func (e *Engine) load() error {
	if err := e.store.Iterate([]byte{prefixTable}, func(_, value []byte) error {
		t, err := unmarshalTable(value)
		if err != nil {
			return err
		}
		e.tables[t.Name] = t
		return nil
	}); err != nil {
		return errors.Wrap(err, "reltable: load tables")
	}

	if err := e.store.Iterate([]byte{prefixDropped}, func(_, value []byte) error {
		t, err := unmarshalTable(value)
		if err != nil {
			return err
		}
		e.dropped[t.Name] = append(e.dropped[t.Name], t)
		return nil
	}); err != nil {
		return errors.Wrap(err, "reltable: load dropped tables")
	}

	for _, t := range e.tables {
		filters := e.newFilters(t)
		for col, f := range filters {
			pfx := indexNodePrefix(t.ID, col)
			if err := e.store.Iterate(pfx, func(key, _ []byte) error {
				f.Add(key[len(pfx):])
				return nil
			}); err != nil {
				return errors.Wrapf(err, "reltable: load index %q/%d", t.Name, col)
			}
		}
		e.filters[t.ID] = filters
	}
	return nil
}

func (e *Engine) newFilters(t *Table) map[int]*bloom.BloomFilter {
	filters := make(map[int]*bloom.BloomFilter, len(t.Indexed))
	for _, col := range t.Indexed {
		filters[col] = bloom.NewWithEstimates(e.opt.BloomCapacity, e.opt.BloomFalsePositiveRate)
	}
	return filters
}

// update runs fn in a transaction and commits it atomically. Nothing is
// written if fn fails.
func (e *Engine) update(fn func(*kvstore.Txn) error) error {
	tx := kvstore.NewTxn(e.store)
	if err := fn(tx); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(e.store); err != nil {
		tx.Discard()
		return errors.Wrap(err, "reltable: commit")
	}
	return nil
}

// table returns an active table. Must be called while holding the lock.
func (e *Engine) table(name string) (*Table, error) {
	t, ok := e.tables[name]
	if !ok {
		return nil, newError(ErrNoTable, "%q", name)
	}
	return t, nil
}
