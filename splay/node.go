package splay

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	g "github.com/anacrolix/generics"
)

const (
	hasParent = 1 << iota
	hasLeft
	hasRight
)

// node is a tree node, persisted as:
//
//	+-------------+---------------+---------------+---------------+------------------+------------+
//	| flags (1)   | parent (opt.) | left (opt.)   | right (opt.)  | key count (uvar) | keys       |
//	+-------------+---------------+---------------+---------------+------------------+------------+
//
// Optional links and keys are stored as uvarint length followed by bytes.
type node struct {
	value               []byte
	parent, left, right g.Option[[]byte]
	keys                [][]byte // sorted primary keys
}

func (n *node) hasKey(key []byte) (int, bool) {
	i := sort.Search(len(n.keys), func(i int) bool {
		return bytes.Compare(n.keys[i], key) >= 0
	})
	return i, i < len(n.keys) && bytes.Equal(n.keys[i], key)
}

func (n *node) addKey(key []byte) bool {
	i, ok := n.hasKey(key)
	if ok {
		return false
	}
	n.keys = append(n.keys, nil)
	copy(n.keys[i+1:], n.keys[i:])
	n.keys[i] = append([]byte(nil), key...)
	return true
}

func (n *node) removeKey(key []byte) bool {
	i, ok := n.hasKey(key)
	if !ok {
		return false
	}
	n.keys = append(n.keys[:i], n.keys[i+1:]...)
	return true
}

func (n *node) marshal() []byte {
	var flags byte
	if n.parent.Ok {
		flags |= hasParent
	}
	if n.left.Ok {
		flags |= hasLeft
	}
	if n.right.Ok {
		flags |= hasRight
	}

	buf := []byte{flags}
	for _, o := range []g.Option[[]byte]{n.parent, n.left, n.right} {
		if o.Ok {
			buf = appendBytes(buf, o.Value)
		}
	}
	buf = binary.AppendUvarint(buf, uint64(len(n.keys)))
	for _, k := range n.keys {
		buf = appendBytes(buf, k)
	}
	return buf
}

func (n *node) unmarshal(b []byte) error {
	if len(b) == 0 {
		return io.ErrUnexpectedEOF
	}
	flags := b[0]
	b = b[1:]

	var err error
	for i, o := range []*g.Option[[]byte]{&n.parent, &n.left, &n.right} {
		*o = g.None[[]byte]()
		if flags&(1<<uint(i)) == 0 {
			continue
		}
		var v []byte
		if v, b, err = readBytes(b); err != nil {
			return err
		}
		*o = g.Some(v)
	}

	cnt, sz := binary.Uvarint(b)
	if sz <= 0 {
		return io.ErrUnexpectedEOF
	}
	b = b[sz:]

	n.keys = make([][]byte, 0, int(cnt))
	for i := uint64(0); i < cnt; i++ {
		var k []byte
		if k, b, err = readBytes(b); err != nil {
			return err
		}
		n.keys = append(n.keys, k)
	}
	return nil
}

// meta holds the tree size and root, persisted as size (uvarint) followed
// by an optional root.
type meta struct {
	size uint64
	root g.Option[[]byte]
}

func (m *meta) marshal() []byte {
	buf := binary.AppendUvarint(nil, m.size)
	if m.root.Ok {
		buf = appendBytes(buf, m.root.Value)
	}
	return buf
}

func (m *meta) unmarshal(b []byte) error {
	size, n := binary.Uvarint(b)
	if n <= 0 {
		return io.ErrUnexpectedEOF
	}
	m.size = size
	m.root = g.None[[]byte]()

	if b = b[n:]; len(b) != 0 {
		root, _, err := readBytes(b)
		if err != nil {
			return err
		}
		m.root = g.Some(root)
	}
	return nil
}

func appendBytes(dst, p []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(p)))
	return append(dst, p...)
}

func readBytes(b []byte) ([]byte, []byte, error) {
	n, sz := binary.Uvarint(b)
	if sz <= 0 || uint64(len(b)-sz) < n {
		return nil, b, io.ErrUnexpectedEOF
	}
	b = b[sz:]
	return append([]byte(nil), b[:n]...), b[n:], nil
}
