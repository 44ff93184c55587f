package kvstore

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"
	"sync"

	"github.com/golang/snappy"
)

// SnapshotReader instances can seek and iterate across data in snapshots.
type SnapshotReader struct {
	r io.ReaderAt

	index     []blockInfo
	maxOffset int64
}

// NewSnapshotReader opens a reader.
func NewSnapshotReader(r io.ReaderAt, size int64) (*SnapshotReader, error) {
	if size < 16 {
		return nil, errBadMagic
	}

	// read footer
	footer := make([]byte, 16)
	footerOffset := size - 16
	if _, err := r.ReadAt(footer, footerOffset); err != nil {
		return nil, err
	}

	// parse footer
	if !bytes.Equal(footer[8:16], magic) {
		return nil, errBadMagic
	}
	indexOffset := int64(binary.LittleEndian.Uint64(footer[:8]))
	if indexOffset < 0 || indexOffset > footerOffset {
		return nil, errBadMagic
	}

	// read index
	raw := make([]byte, footerOffset-indexOffset)
	if _, err := r.ReadAt(raw, indexOffset); err != nil {
		return nil, err
	}

	var index []blockInfo
	var offset int64
	for len(raw) != 0 {
		kln, n := binary.Uvarint(raw)
		if n <= 0 || uint64(len(raw)-n) < kln {
			return nil, io.ErrUnexpectedEOF
		}
		raw = raw[n:]
		key := raw[:kln:kln]
		raw = raw[kln:]

		delta, n := binary.Uvarint(raw)
		if n <= 0 {
			return nil, io.ErrUnexpectedEOF
		}
		raw = raw[n:]

		offset += int64(delta)
		index = append(index, blockInfo{LastKey: key, Offset: offset})
	}

	return &SnapshotReader{
		r: r,

		index:     index,
		maxOffset: indexOffset,
	}, nil
}

// NumBlocks returns the number of stored blocks.
func (r *SnapshotReader) NumBlocks() int {
	return len(r.index)
}

// Append retrieves a single value for a key and appends it to dst.
// It may return an ErrNotFound error.
func (r *SnapshotReader) Append(dst, key []byte) ([]byte, error) {
	iter, err := r.Seek(key)
	if err != nil {
		return dst, err
	}
	defer iter.Release()

	if !iter.Next() {
		if err := iter.Err(); err != nil {
			return dst, err
		}
		return dst, ErrNotFound
	}
	if !bytes.Equal(iter.Key(), key) {
		return dst, ErrNotFound
	}
	return append(dst, iter.Value()...), nil
}

// Get is a shortcut for Append(nil, key).
// It may return an ErrNotFound error.
func (r *SnapshotReader) Get(key []byte) ([]byte, error) {
	return r.Append(nil, key)
}

// Seek returns an iterator starting at the position >= key.
func (r *SnapshotReader) Seek(key []byte) (*SnapshotIterator, error) {
	bpos := sort.Search(len(r.index), func(i int) bool {
		return bytes.Compare(r.index[i].LastKey, key) >= 0
	})

	b, err := r.getBlock(bpos)
	if err != nil {
		return nil, err
	}

	s := b.seekSection(key)
	s.seek(key)
	return &SnapshotIterator{r: r, b: b, s: s}, nil
}

// Iterate implements Reader.
func (r *SnapshotReader) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := r.Seek(prefix)
	if err != nil {
		return err
	}
	defer iter.Release()

	for iter.Next() {
		if !hasPrefix(iter.Key(), prefix) {
			break
		}
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (r *SnapshotReader) getBlock(bpos int) (*blockReader, error) {
	if bpos >= len(r.index) {
		return &blockReader{bpos: len(r.index)}, nil
	}

	min := r.index[bpos].Offset
	max := r.maxOffset
	if next := bpos + 1; next < len(r.index) {
		max = r.index[next].Offset
	}
	if max-min < 5 {
		return nil, io.ErrUnexpectedEOF
	}

	raw := fetchBuffer(int(max - min))
	if _, err := r.r.ReadAt(raw, min); err != nil {
		releaseBuffer(raw)
		return nil, err
	}

	var block []byte
	switch cBitPos := len(raw) - 1; raw[cBitPos] {
	case blockNoCompression:
		block = raw[:cBitPos]
	case blockSnappyCompression:
		defer releaseBuffer(raw)

		sz, err := snappy.DecodedLen(raw[:cBitPos])
		if err != nil {
			return nil, err
		}

		plain := fetchBuffer(sz)
		if block, err = snappy.Decode(plain, raw[:cBitPos]); err != nil {
			releaseBuffer(plain)
			return nil, err
		}
	default:
		releaseBuffer(raw)
		return nil, errBadCompression
	}

	return &blockReader{
		block:   block,
		bpos:    bpos,
		scnt:    int(binary.LittleEndian.Uint32(block[len(block)-4:])),
		lastKey: r.index[bpos].LastKey,
	}, nil
}

// --------------------------------------------------------------------

type blockReader struct {
	block   []byte
	bpos    int // the current block position
	scnt    int // the section count
	lastKey []byte
}

func (r *blockReader) getSection(spos int) *sectionReader {
	if spos < 0 {
		spos = 0
	}
	if spos >= r.scnt {
		return &sectionReader{spos: r.scnt}
	}

	min := r.sectionOffset(spos)
	max := r.sectionOffset(spos + 1)
	return &sectionReader{section: r.block[min:max], spos: spos}
}

func (r *blockReader) seekSection(key []byte) *sectionReader {
	if bytes.Compare(key, r.lastKey) > 0 {
		return r.getSection(r.scnt)
	}

	spos := sort.Search(r.scnt, func(i int) bool {
		return bytes.Compare(r.firstKey(i), key) > 0
	}) - 1
	return r.getSection(spos)
}

// The first key of a section is never prefix compressed.
func (r *blockReader) firstKey(spos int) []byte {
	p := r.block[r.sectionOffset(spos):]
	_, n := binary.Uvarint(p) // shared, always 0
	p = p[n:]
	kln, n := binary.Uvarint(p)
	return p[n : n+int(kln)]
}

func (r *blockReader) release() {
	if r.block != nil {
		releaseBuffer(r.block)
		r.block = nil
	}
}

// The starting offset of the section within the block.
func (r *blockReader) sectionOffset(spos int) int {
	if spos < 1 {
		return 0
	} else if spos >= r.scnt {
		return len(r.block) - r.scnt*4
	} else {
		nn := len(r.block) - r.scnt*4 + (spos-1)*4
		return int(binary.LittleEndian.Uint32(r.block[nn:]))
	}
}

type sectionReader struct {
	section []byte

	spos    int  // the section
	read    int  // bytes read
	pending bool // current entry was peeked by seek

	key []byte // current key
	val []byte // current value
}

func (r *sectionReader) more() bool { return r.pending || r.read < len(r.section) }

// seek advances until the current entry is >= key. The next call to next
// will return that entry.
func (r *sectionReader) seek(key []byte) bool {
	for r.next() {
		if bytes.Compare(r.key, key) >= 0 {
			r.pending = true
			return true
		}
	}
	return false
}

func (r *sectionReader) next() bool {
	if r.pending {
		r.pending = false
		return true
	}
	if r.read >= len(r.section) {
		return false
	}

	shared, n := binary.Uvarint(r.section[r.read:])
	r.read += n
	sln, n := binary.Uvarint(r.section[r.read:])
	r.read += n
	r.key = append(r.key[:shared], r.section[r.read:r.read+int(sln)]...)
	r.read += int(sln)

	vln, n := binary.Uvarint(r.section[r.read:])
	r.read += n
	r.val = r.section[r.read : r.read+int(vln)]
	r.read += int(vln)
	return true
}

// --------------------------------------------------------------------

// SnapshotIterator can (forward-) iterate over keys across block and
// section boundaries.
type SnapshotIterator struct {
	r *SnapshotReader
	b *blockReader
	s *sectionReader

	err error
}

// Key returns the key of the current entry. Please note that keys
// are temporary buffers and must be copied if used beyond the next cursor move.
func (i *SnapshotIterator) Key() []byte { return i.s.key }

// Value returns the value of the current entry. Please note that values
// are temporary buffers and must be copied if used beyond the next cursor move.
func (i *SnapshotIterator) Value() []byte { return i.s.val }

// Next advances the cursor to the next entry and returns true if successful.
func (i *SnapshotIterator) Next() bool {
	for i.err == nil {
		// more entries in the section
		if i.s.more() {
			return i.s.next()
		}

		// more sections in the block
		if n := i.s.spos + 1; n < i.b.scnt {
			i.s = i.b.getSection(n)
			continue
		}

		// more blocks
		n := i.b.bpos + 1
		if n >= i.r.NumBlocks() {
			return false
		}

		i.b.release()
		if i.b, i.err = i.r.getBlock(n); i.err != nil {
			return false
		}
		i.s = i.b.getSection(0)
	}
	return false
}

// Err exposes iterator errors, if any.
func (i *SnapshotIterator) Err() error {
	if i.err == errReleased {
		return nil
	}
	return i.err
}

// Release releases the iterator and frees up resources. The iterator must not be used
// after this method is called.
func (i *SnapshotIterator) Release() {
	if i.b != nil {
		i.b.release()
	}
	i.err = errReleased
}

// --------------------------------------------------------------------

var bufPool sync.Pool

func fetchBuffer(sz int) []byte {
	if v := bufPool.Get(); v != nil {
		if p := v.([]byte); sz <= cap(p) {
			return p[:sz]
		}
	}
	return make([]byte, sz)
}

func releaseBuffer(p []byte) {
	if cap(p) != 0 {
		bufPool.Put(p)
	}
}
