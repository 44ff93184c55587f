package reltable

import (
	g "github.com/anacrolix/generics"
	"github.com/bsm/reltable/kvstore"
	"github.com/bsm/reltable/splay"
)

// FindPrimaryKeyFromValue returns the keys of all rows whose column holds
// value. The matching index node is splayed to the root.
func (e *Engine) FindPrimaryKeyFromValue(table string, column int, value interface{}) ([]interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(table)
	if err != nil {
		return nil, err
	}
	if err := t.checkIndexed(column); err != nil {
		return nil, err
	}

	enc, err := t.Columns[column].Encode(value)
	if err != nil {
		return nil, wrapCodec(err, "%q column %d", table, column)
	}
	if f := e.filters[t.ID][column]; f != nil && !f.Test(enc) {
		return nil, nil
	}

	var pks [][]byte
	if err := e.update(func(tx *kvstore.Txn) error {
		pks, err = t.tree(tx, column).Find(enc)
		return err
	}); err != nil {
		return nil, err
	}
	return t.decodeKeys(pks)
}

// FindPrimaryKeysInRange returns the keys of all rows whose column value
// is within the inclusive range [lo, hi], ordered by value. Unset bounds
// are open.
func (e *Engine) FindPrimaryKeysInRange(table string, column int, lo, hi g.Option[interface{}]) ([]interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(table)
	if err != nil {
		return nil, err
	}
	if err := t.checkIndexed(column); err != nil {
		return nil, err
	}

	ct := t.Columns[column]
	from, err := t.encodeOpt(column, lo)
	if err != nil {
		return nil, err
	}
	to, err := t.encodeOpt(column, hi)
	if err != nil {
		return nil, err
	}

	var pks [][]byte
	if err := t.tree(e.store, column).Ascend(from, func(value []byte, keys [][]byte) bool {
		if to.Ok && ct.Compare(value, to.Value) > 0 {
			return false
		}
		pks = append(pks, keys...)
		return true
	}); err != nil {
		return nil, err
	}
	return t.decodeKeys(pks)
}

// SplaySize returns the number of value/key associations in a column index.
func (e *Engine) SplaySize(table string, column int) (uint64, error) {
	var size uint64
	err := e.viewTree(table, column, func(_ *Table, tree *splay.Tree) (err error) {
		size, err = tree.Size()
		return
	})
	return size, err
}

// SplayRoot returns the root value of a column index.
func (e *Engine) SplayRoot(table string, column int) (g.Option[interface{}], error) {
	return e.splayQuery(table, column, (*splay.Tree).Root)
}

// SplayMin returns the smallest value of a column index.
func (e *Engine) SplayMin(table string, column int) (g.Option[interface{}], error) {
	return e.splayQuery(table, column, (*splay.Tree).Min)
}

// SplayMax returns the largest value of a column index.
func (e *Engine) SplayMax(table string, column int) (g.Option[interface{}], error) {
	return e.splayQuery(table, column, (*splay.Tree).Max)
}

// SplayParent returns the parent of the node holding value.
func (e *Engine) SplayParent(table string, column int, value interface{}) (g.Option[interface{}], error) {
	return e.splayLink(table, column, value, (*splay.Tree).Parent)
}

// SplayLeft returns the left child of the node holding value.
func (e *Engine) SplayLeft(table string, column int, value interface{}) (g.Option[interface{}], error) {
	return e.splayLink(table, column, value, (*splay.Tree).Left)
}

// SplayRight returns the right child of the node holding value.
func (e *Engine) SplayRight(table string, column int, value interface{}) (g.Option[interface{}], error) {
	return e.splayLink(table, column, value, (*splay.Tree).Right)
}

// SplayPredecessor returns the largest indexed value below value. The
// value itself need not be indexed.
func (e *Engine) SplayPredecessor(table string, column int, value interface{}) (g.Option[interface{}], error) {
	return e.splayLink(table, column, value, (*splay.Tree).Predecessor)
}

// SplaySuccessor returns the smallest indexed value above value.
func (e *Engine) SplaySuccessor(table string, column int, value interface{}) (g.Option[interface{}], error) {
	return e.splayLink(table, column, value, (*splay.Tree).Successor)
}

// SplayDebugPut force-sets the links of the node holding value, creating
// it if needed. Only the node itself is updated.
func (e *Engine) SplayDebugPut(table string, column int, value interface{}, parent, left, right g.Option[interface{}]) error {
	return e.updateTree(table, column, func(t *Table, tree *splay.Tree) error {
		v, err := t.encodeValue(column, value)
		if err != nil {
			return err
		}

		links := make([]g.Option[[]byte], 0, 3)
		for _, o := range []g.Option[interface{}]{parent, left, right} {
			enc, err := t.encodeOpt(column, o)
			if err != nil {
				return err
			}
			links = append(links, enc)
		}
		return tree.DebugPut(v, links[0], links[1], links[2])
	})
}

// SplayDebugRotateRight rotates the left child holding value above its
// parent.
func (e *Engine) SplayDebugRotateRight(table string, column int, value interface{}) error {
	return e.splayRotate(table, column, value, (*splay.Tree).RotateRight)
}

// SplayDebugRotateLeft rotates the right child holding value above its
// parent.
func (e *Engine) SplayDebugRotateLeft(table string, column int, value interface{}) error {
	return e.splayRotate(table, column, value, (*splay.Tree).RotateLeft)
}

// SplayDebugSplay splays value until its parent is target, or to the root
// if target is unset.
func (e *Engine) SplayDebugSplay(table string, column int, value interface{}, target g.Option[interface{}]) error {
	return e.updateTree(table, column, func(t *Table, tree *splay.Tree) error {
		v, err := t.encodeValue(column, value)
		if err != nil {
			return err
		}
		p, err := t.encodeOpt(column, target)
		if err != nil {
			return err
		}
		return tree.Splay(v, p)
	})
}

// --------------------------------------------------------------------

func (e *Engine) indexRow(tx *kvstore.Txn, t *Table, pk []byte, encs [][]byte) error {
	for _, col := range t.Indexed {
		if err := t.tree(tx, col).Insert(encs[col], pk); err != nil {
			return err
		}
		if f := e.filters[t.ID][col]; f != nil {
			f.Add(encs[col])
		}
	}
	return nil
}

func (e *Engine) unindexRow(tx *kvstore.Txn, t *Table, pk []byte, encs [][]byte) error {
	for _, col := range t.Indexed {
		if err := t.tree(tx, col).Remove(encs[col], pk); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) viewTree(table string, column int, fn func(*Table, *splay.Tree) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(table)
	if err != nil {
		return err
	}
	if err := t.checkIndexed(column); err != nil {
		return err
	}
	return fn(t, t.tree(e.store, column))
}

func (e *Engine) updateTree(table string, column int, fn func(*Table, *splay.Tree) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(table)
	if err != nil {
		return err
	}
	if err := t.checkIndexed(column); err != nil {
		return err
	}
	return e.update(func(tx *kvstore.Txn) error {
		return fn(t, t.tree(tx, column))
	})
}

func (e *Engine) splayQuery(table string, column int, fn func(*splay.Tree) (g.Option[[]byte], error)) (g.Option[interface{}], error) {
	res := g.None[interface{}]()
	err := e.viewTree(table, column, func(t *Table, tree *splay.Tree) error {
		o, err := fn(tree)
		if err != nil {
			return err
		}
		res, err = t.decodeOpt(column, o)
		return err
	})
	return res, err
}

func (e *Engine) splayLink(table string, column int, value interface{}, fn func(*splay.Tree, []byte) (g.Option[[]byte], error)) (g.Option[interface{}], error) {
	res := g.None[interface{}]()
	err := e.viewTree(table, column, func(t *Table, tree *splay.Tree) error {
		v, err := t.encodeValue(column, value)
		if err != nil {
			return err
		}
		o, err := fn(tree, v)
		if err != nil {
			return err
		}
		res, err = t.decodeOpt(column, o)
		return err
	})
	return res, err
}

func (e *Engine) splayRotate(table string, column int, value interface{}, fn func(*splay.Tree, []byte) error) error {
	return e.updateTree(table, column, func(t *Table, tree *splay.Tree) error {
		v, err := t.encodeValue(column, value)
		if err != nil {
			return err
		}
		return fn(tree, v)
	})
}

// --------------------------------------------------------------------

func (t *Table) checkIndexed(column int) error {
	if column < 0 || column >= len(t.Columns) {
		return newError(ErrNoColumn, "%q has no column %d", t.Name, column)
	}
	if !t.IsIndexed(column) {
		return newError(ErrNotIndexed, "%q column %d", t.Name, column)
	}
	return nil
}

func (t *Table) tree(rw kvstore.ReadWriter, column int) *splay.Tree {
	return splay.New(rw, indexNamespace(t.ID, column), t.Columns[column].Compare)
}

func (t *Table) encodeValue(column int, value interface{}) ([]byte, error) {
	enc, err := t.Columns[column].Encode(value)
	if err != nil {
		return nil, wrapCodec(err, "%q column %d", t.Name, column)
	}
	return enc, nil
}

func (t *Table) encodeOpt(column int, o g.Option[interface{}]) (g.Option[[]byte], error) {
	if !o.Ok {
		return g.None[[]byte](), nil
	}
	enc, err := t.encodeValue(column, o.Value)
	if err != nil {
		return g.None[[]byte](), err
	}
	return g.Some(enc), nil
}

func (t *Table) decodeOpt(column int, o g.Option[[]byte]) (g.Option[interface{}], error) {
	if !o.Ok {
		return g.None[interface{}](), nil
	}
	v, _, err := t.Columns[column].Decode(o.Value)
	if err != nil {
		return g.None[interface{}](), err
	}
	return g.Some(v), nil
}

func (t *Table) decodeKeys(pks [][]byte) ([]interface{}, error) {
	keys := make([]interface{}, 0, len(pks))
	for _, pk := range pks {
		key, err := t.decodeKey(pk)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
