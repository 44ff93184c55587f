// Package splay implements a self-adjusting binary search tree which lives
// entirely inside a key-value store. Each node is addressed by its value and
// references its parent and children by value, so trees can be inspected and
// manipulated one key at a time.
package splay

import (
	"bytes"
	"errors"
	"fmt"

	g "github.com/anacrolix/generics"
	"github.com/bsm/reltable/kvstore"
)

// Key prefixes used by the tree.
const (
	MetaPrefix = 0xe0
	NodePrefix = 0xf0
)

// ErrNoValue is returned when a value is not part of the tree.
var ErrNoValue = errors.New("splay: no such value")

var errBadRotation = errors.New("splay: bad rotation")

// Tree is a splay tree, persisted in a key-value store.
type Tree struct {
	rw      kvstore.ReadWriter
	metaKey []byte
	nodePfx []byte
	cmp     func(a, b []byte) int
}

// New returns a tree stored under namespace ns in rw. Values are ordered by
// cmp, which defaults to bytes.Compare.
func New(rw kvstore.ReadWriter, ns []byte, cmp func(a, b []byte) int) *Tree {
	if cmp == nil {
		cmp = bytes.Compare
	}
	return &Tree{
		rw:      rw,
		metaKey: append([]byte{MetaPrefix}, ns...),
		nodePfx: append([]byte{NodePrefix}, ns...),
		cmp:     cmp,
	}
}

// Size returns the number of (value, key) associations in the tree.
func (t *Tree) Size() (uint64, error) {
	m, err := t.loadMeta()
	if err != nil {
		return 0, err
	}
	return m.size, nil
}

// Root returns the value of the root node.
func (t *Tree) Root() (g.Option[[]byte], error) {
	m, err := t.loadMeta()
	if err != nil {
		return g.None[[]byte](), err
	}
	return m.root, nil
}

// Parent returns the parent of the node holding v.
func (t *Tree) Parent(v []byte) (g.Option[[]byte], error) {
	return t.link(v, func(n *node) g.Option[[]byte] { return n.parent })
}

// Left returns the left child of the node holding v.
func (t *Tree) Left(v []byte) (g.Option[[]byte], error) {
	return t.link(v, func(n *node) g.Option[[]byte] { return n.left })
}

// Right returns the right child of the node holding v.
func (t *Tree) Right(v []byte) (g.Option[[]byte], error) {
	return t.link(v, func(n *node) g.Option[[]byte] { return n.right })
}

func (t *Tree) link(v []byte, fn func(*node) g.Option[[]byte]) (g.Option[[]byte], error) {
	n, err := t.load(v)
	if err != nil || n == nil {
		return g.None[[]byte](), err
	}
	return fn(n), nil
}

// Keys returns the keys associated with v without restructuring the tree.
func (t *Tree) Keys(v []byte) ([][]byte, error) {
	n, err := t.load(v)
	if err != nil || n == nil {
		return nil, err
	}
	return n.keys, nil
}

// Find returns the keys associated with v and splays its node to the root.
func (t *Tree) Find(v []byte) ([][]byte, error) {
	n, err := t.load(v)
	if err != nil || n == nil {
		return nil, err
	}
	if err := t.Splay(v, g.None[[]byte]()); err != nil {
		return nil, err
	}
	return n.keys, nil
}

// Insert associates key with v and splays the node to the root.
func (t *Tree) Insert(v, key []byte) error {
	m, err := t.loadMeta()
	if err != nil {
		return err
	}

	n, err := t.load(v)
	if err != nil {
		return err
	}
	if n != nil {
		if n.addKey(key) {
			m.size++
			if err := t.save(n); err != nil {
				return err
			}
			if err := t.saveMeta(m); err != nil {
				return err
			}
		}
		return t.Splay(v, g.None[[]byte]())
	}

	n = &node{value: append([]byte(nil), v...)}
	n.addKey(key)
	m.size++

	if !m.root.Ok {
		m.root = g.Some(n.value)
		if err := t.save(n); err != nil {
			return err
		}
		return t.saveMeta(m)
	}

	for u := m.root.Value; ; {
		un, err := t.mustLoad(u)
		if err != nil {
			return err
		}

		if t.cmp(v, u) < 0 {
			if un.left.Ok {
				u = un.left.Value
				continue
			}
			un.left = g.Some(n.value)
		} else {
			if un.right.Ok {
				u = un.right.Value
				continue
			}
			un.right = g.Some(n.value)
		}

		n.parent = g.Some(u)
		if err := t.save(un); err != nil {
			return err
		}
		break
	}

	if err := t.save(n); err != nil {
		return err
	}
	if err := t.saveMeta(m); err != nil {
		return err
	}
	return t.Splay(v, g.None[[]byte]())
}

// Remove dissociates key from v. The node is removed once no keys remain,
// its subtrees are joined under the maximum of the left subtree.
// Removing an unknown association is a no-op.
func (t *Tree) Remove(v, key []byte) error {
	n, err := t.load(v)
	if err != nil || n == nil {
		return err
	}
	if !n.removeKey(key) {
		return nil
	}

	m, err := t.loadMeta()
	if err != nil {
		return err
	}
	m.size--
	if err := t.saveMeta(m); err != nil {
		return err
	}
	if err := t.save(n); err != nil {
		return err
	}
	if err := t.Splay(v, g.None[[]byte]()); err != nil {
		return err
	}
	if len(n.keys) != 0 {
		return nil
	}

	if n, err = t.mustLoad(v); err != nil {
		return err
	}

	if !n.left.Ok {
		if n.right.Ok {
			if err := t.setParent(n.right.Value, g.None[[]byte]()); err != nil {
				return err
			}
		}
		if err := t.setRoot(n.right); err != nil {
			return err
		}
		return t.rw.Delete(t.nodeKey(v))
	}

	max, err := t.maxFrom(n.left.Value)
	if err != nil {
		return err
	}
	if err := t.Splay(max, g.Some(n.value)); err != nil {
		return err
	}

	// max is now the left child of v and has no right child
	if n, err = t.mustLoad(v); err != nil {
		return err
	}
	l, err := t.mustLoad(max)
	if err != nil {
		return err
	}
	l.parent = g.None[[]byte]()
	l.right = n.right
	if err := t.save(l); err != nil {
		return err
	}
	if n.right.Ok {
		if err := t.setParent(n.right.Value, g.Some(l.value)); err != nil {
			return err
		}
	}
	if err := t.setRoot(g.Some(l.value)); err != nil {
		return err
	}
	return t.rw.Delete(t.nodeKey(v))
}

// Min returns the smallest value in the tree.
func (t *Tree) Min() (g.Option[[]byte], error) {
	m, err := t.loadMeta()
	if err != nil || !m.root.Ok {
		return g.None[[]byte](), err
	}
	v, err := t.minFrom(m.root.Value)
	if err != nil {
		return g.None[[]byte](), err
	}
	return g.Some(v), nil
}

// Max returns the largest value in the tree.
func (t *Tree) Max() (g.Option[[]byte], error) {
	m, err := t.loadMeta()
	if err != nil || !m.root.Ok {
		return g.None[[]byte](), err
	}
	v, err := t.maxFrom(m.root.Value)
	if err != nil {
		return g.None[[]byte](), err
	}
	return g.Some(v), nil
}

// Predecessor returns the largest value strictly less than v. The value
// v itself need not be part of the tree.
func (t *Tree) Predecessor(v []byte) (g.Option[[]byte], error) {
	return t.descend(func(p []byte) bool { return t.cmp(p, v) < 0 }, false)
}

// Successor returns the smallest value strictly greater than v. The value
// v itself need not be part of the tree.
func (t *Tree) Successor(v []byte) (g.Option[[]byte], error) {
	return t.descend(func(p []byte) bool { return t.cmp(p, v) > 0 }, true)
}

// Ceil returns the smallest value greater than or equal to v.
func (t *Tree) Ceil(v []byte) (g.Option[[]byte], error) {
	return t.descend(func(p []byte) bool { return t.cmp(p, v) >= 0 }, true)
}

// descend walks from the root, recording the last node matching the
// predicate. For upper bounds matching nodes continue left, otherwise right.
func (t *Tree) descend(match func([]byte) bool, upper bool) (g.Option[[]byte], error) {
	ans := g.None[[]byte]()

	m, err := t.loadMeta()
	if err != nil {
		return ans, err
	}

	for p := m.root; p.Ok; {
		n, err := t.mustLoad(p.Value)
		if err != nil {
			return ans, err
		}

		ok := match(n.value)
		if ok {
			ans = g.Some(n.value)
		}
		if ok == upper {
			p = n.left
		} else {
			p = n.right
		}
	}
	return ans, nil
}

// Ascend calls fn for each node in ascending value order, starting at the
// first value >= from (or the minimum if from is None), until fn returns
// false.
func (t *Tree) Ascend(from g.Option[[]byte], fn func(value []byte, keys [][]byte) bool) error {
	var cur g.Option[[]byte]
	var err error
	if from.Ok {
		cur, err = t.Ceil(from.Value)
	} else {
		cur, err = t.Min()
	}
	if err != nil {
		return err
	}

	for cur.Ok {
		n, err := t.mustLoad(cur.Value)
		if err != nil {
			return err
		}
		if !fn(n.value, n.keys) {
			return nil
		}
		if cur, err = t.next(n); err != nil {
			return err
		}
	}
	return nil
}

// next returns the in-order successor of n by following links.
func (t *Tree) next(n *node) (g.Option[[]byte], error) {
	if n.right.Ok {
		v, err := t.minFrom(n.right.Value)
		if err != nil {
			return g.None[[]byte](), err
		}
		return g.Some(v), nil
	}

	for c := n; c.parent.Ok; {
		p, err := t.mustLoad(c.parent.Value)
		if err != nil {
			return g.None[[]byte](), err
		}
		if is(p.left, c.value) {
			return g.Some(p.value), nil
		}
		c = p
	}
	return g.None[[]byte](), nil
}

// Drop removes the whole tree.
func (t *Tree) Drop() error {
	var keys [][]byte
	if err := t.rw.Iterate(t.nodePfx, func(key, _ []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	}); err != nil {
		return err
	}

	for _, key := range keys {
		if err := t.rw.Delete(key); err != nil {
			return err
		}
	}
	return t.rw.Delete(t.metaKey)
}

// --------------------------------------------------------------------

// DebugPut force-sets the links of the node holding v, creating it if
// necessary. A node without a parent becomes the root. No other node is
// updated.
func (t *Tree) DebugPut(v []byte, parent, left, right g.Option[[]byte]) error {
	n, err := t.load(v)
	if err != nil {
		return err
	}
	if n == nil {
		n = &node{value: append([]byte(nil), v...)}
	}

	n.parent, n.left, n.right = parent, left, right
	if err := t.save(n); err != nil {
		return err
	}
	if !parent.Ok {
		return t.setRoot(g.Some(n.value))
	}
	return nil
}

// RotateRight performs a single zig step: the node holding v, which must be
// the left child of its parent, takes the parent's place.
func (t *Tree) RotateRight(v []byte) error {
	x, p, err := t.loadPair(v)
	if err != nil {
		return err
	}
	if !is(p.left, x.value) {
		return fmt.Errorf("%w, %x is not a left child", errBadRotation, v)
	}

	p.left = x.right
	if x.right.Ok {
		if err := t.setParent(x.right.Value, g.Some(p.value)); err != nil {
			return err
		}
	}
	x.right = g.Some(p.value)
	return t.lift(x, p)
}

// RotateLeft performs a single zag step: the node holding v, which must be
// the right child of its parent, takes the parent's place.
func (t *Tree) RotateLeft(v []byte) error {
	x, p, err := t.loadPair(v)
	if err != nil {
		return err
	}
	if !is(p.right, x.value) {
		return fmt.Errorf("%w, %x is not a right child", errBadRotation, v)
	}

	p.right = x.left
	if x.left.Ok {
		if err := t.setParent(x.left.Value, g.Some(p.value)); err != nil {
			return err
		}
	}
	x.left = g.Some(p.value)
	return t.lift(x, p)
}

// Splay rotates the node holding v upwards until its parent is target.
// A None target splays v to the root of the tree.
func (t *Tree) Splay(v []byte, target g.Option[[]byte]) error {
	for {
		x, err := t.mustLoad(v)
		if err != nil {
			return err
		}
		if !x.parent.Ok || is(target, x.parent.Value) {
			return nil
		}

		p, err := t.mustLoad(x.parent.Value)
		if err != nil {
			return err
		}
		xLeft := is(p.left, x.value)

		// zig
		if !p.parent.Ok || is(target, p.parent.Value) {
			if xLeft {
				return t.RotateRight(v)
			}
			return t.RotateLeft(v)
		}

		gp, err := t.mustLoad(p.parent.Value)
		if err != nil {
			return err
		}
		pLeft := is(gp.left, p.value)

		switch {
		case xLeft && pLeft: // zig-zig
			err = t.rotate2(t.RotateRight, p.value, t.RotateRight, v)
		case !xLeft && !pLeft: // zag-zag
			err = t.rotate2(t.RotateLeft, p.value, t.RotateLeft, v)
		case xLeft: // zig-zag
			err = t.rotate2(t.RotateRight, v, t.RotateLeft, v)
		default: // zag-zig
			err = t.rotate2(t.RotateLeft, v, t.RotateRight, v)
		}
		if err != nil {
			return err
		}
	}
}

func (t *Tree) rotate2(r1 func([]byte) error, v1 []byte, r2 func([]byte) error, v2 []byte) error {
	if err := r1(v1); err != nil {
		return err
	}
	return r2(v2)
}

// lift completes a rotation, moving x into the former position of its
// parent p.
func (t *Tree) lift(x, p *node) error {
	gp := p.parent
	x.parent = gp
	p.parent = g.Some(x.value)

	if err := t.save(p); err != nil {
		return err
	}
	if err := t.save(x); err != nil {
		return err
	}

	if !gp.Ok {
		return t.setRoot(g.Some(x.value))
	}

	gn, err := t.mustLoad(gp.Value)
	if err != nil {
		return err
	}
	if is(gn.left, p.value) {
		gn.left = g.Some(x.value)
	} else {
		gn.right = g.Some(x.value)
	}
	return t.save(gn)
}

// --------------------------------------------------------------------

func (t *Tree) nodeKey(v []byte) []byte {
	key := make([]byte, 0, len(t.nodePfx)+len(v))
	key = append(key, t.nodePfx...)
	return append(key, v...)
}

func (t *Tree) load(v []byte) (*node, error) {
	b, err := t.rw.Get(t.nodeKey(v))
	if err == kvstore.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	n := &node{value: append([]byte(nil), v...)}
	if err := n.unmarshal(b); err != nil {
		return nil, fmt.Errorf("splay: corrupt node %x: %w", v, err)
	}
	return n, nil
}

func (t *Tree) mustLoad(v []byte) (*node, error) {
	n, err := t.load(v)
	if err == nil && n == nil {
		err = fmt.Errorf("%w: %x", ErrNoValue, v)
	}
	return n, err
}

func (t *Tree) loadPair(v []byte) (*node, *node, error) {
	x, err := t.mustLoad(v)
	if err != nil {
		return nil, nil, err
	}
	if !x.parent.Ok {
		return nil, nil, fmt.Errorf("%w, %x is the root", errBadRotation, v)
	}
	p, err := t.mustLoad(x.parent.Value)
	if err != nil {
		return nil, nil, err
	}
	return x, p, nil
}

func (t *Tree) save(n *node) error {
	return t.rw.Put(t.nodeKey(n.value), n.marshal())
}

func (t *Tree) setParent(v []byte, parent g.Option[[]byte]) error {
	n, err := t.mustLoad(v)
	if err != nil {
		return err
	}
	n.parent = parent
	return t.save(n)
}

func (t *Tree) minFrom(v []byte) ([]byte, error) {
	for {
		n, err := t.mustLoad(v)
		if err != nil {
			return nil, err
		}
		if !n.left.Ok {
			return v, nil
		}
		v = n.left.Value
	}
}

func (t *Tree) maxFrom(v []byte) ([]byte, error) {
	for {
		n, err := t.mustLoad(v)
		if err != nil {
			return nil, err
		}
		if !n.right.Ok {
			return v, nil
		}
		v = n.right.Value
	}
}

func (t *Tree) loadMeta() (*meta, error) {
	m := new(meta)
	b, err := t.rw.Get(t.metaKey)
	if err == kvstore.ErrNotFound {
		return m, nil
	} else if err != nil {
		return nil, err
	}
	if err := m.unmarshal(b); err != nil {
		return nil, fmt.Errorf("splay: corrupt meta: %w", err)
	}
	return m, nil
}

func (t *Tree) saveMeta(m *meta) error {
	if m.size == 0 && !m.root.Ok {
		return t.rw.Delete(t.metaKey)
	}
	return t.rw.Put(t.metaKey, m.marshal())
}

func (t *Tree) setRoot(root g.Option[[]byte]) error {
	m, err := t.loadMeta()
	if err != nil {
		return err
	}
	m.root = root
	return t.saveMeta(m)
}

func is(o g.Option[[]byte], v []byte) bool {
	return o.Ok && bytes.Equal(o.Value, v)
}
