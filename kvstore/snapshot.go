package kvstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"
)

var magic = []byte{82, 84, 66, 76, 0xa7, 0x3e, 0x19, 0xc2}

const (
	blockNoCompression     = 0
	blockSnappyCompression = 1
)

type blockInfo struct {
	LastKey []byte // last key in the block
	Offset  int64  // block offset position
}

// --------------------------------------------------------------------

// Compression is the compression codec
type Compression byte

func (c Compression) isValid() bool {
	return c >= SnappyCompression && c < unknownCompression
}

// Supported compression codecs
const (
	SnappyCompression Compression = iota
	NoCompression
	unknownCompression
)

// SnapshotOptions define snapshot writer specific options.
type SnapshotOptions struct {
	// BlockSize is the minimum uncompressed size in bytes of each block.
	// Default: 4KiB.
	BlockSize int

	// BlockRestartInterval is the number of keys between restart points
	// for prefix compression of keys.
	//
	// Default: 16.
	BlockRestartInterval int

	// The compression codec to use.
	// Default: SnappyCompression.
	Compression Compression
}

func (o *SnapshotOptions) norm() *SnapshotOptions {
	var oo SnapshotOptions
	if o != nil {
		oo = *o
	}

	if oo.BlockSize < 1 {
		oo.BlockSize = 1 << 12
	}
	if oo.BlockRestartInterval < 1 {
		oo.BlockRestartInterval = 16
	}
	if !oo.Compression.isValid() {
		oo.Compression = SnappyCompression
	}

	return &oo
}

// SnapshotWriter instances can write a snapshot.
type SnapshotWriter struct {
	w io.Writer
	o *SnapshotOptions

	blen    int    // the number of entries in the current block
	soffs   []int  // section offsets in the current block
	lastKey []byte // the last appended key
	offset  int64  // bytes written

	buf []byte // plain buffer
	snp []byte // snappy  buffer
	tmp []byte // scratch buffer

	index []blockInfo
}

// NewSnapshotWriter wraps a writer and returns a SnapshotWriter.
func NewSnapshotWriter(w io.Writer, o *SnapshotOptions) *SnapshotWriter {
	return &SnapshotWriter{
		w:   w,
		o:   o.norm(),
		tmp: make([]byte, 3*binary.MaxVarintLen64),
	}
}

// Append appends a key/value pair. Keys must be appended in strictly
// increasing order.
func (w *SnapshotWriter) Append(key, value []byte) error {
	if w.tmp == nil {
		return errClosed
	}

	if (w.blen != 0 || len(w.index) != 0) && bytes.Compare(key, w.lastKey) <= 0 {
		return fmt.Errorf("kvstore: attempted an out-of-order append, %q must be > %q", key, w.lastKey)
	}

	if len(w.buf) != 0 && len(w.buf)+len(key)+len(value)+3*binary.MaxVarintLen64 > w.o.BlockSize {
		if err := w.flush(); err != nil {
			return err
		}
	}

	shared := 0
	if w.blen%w.o.BlockRestartInterval == 0 { // new section?
		w.soffs = append(w.soffs, len(w.buf))
	} else {
		shared = sharedPrefixLen(w.lastKey, key)
	}

	n := binary.PutUvarint(w.tmp[0:], uint64(shared))
	n += binary.PutUvarint(w.tmp[n:], uint64(len(key)-shared))
	w.buf = append(w.buf, w.tmp[:n]...)
	w.buf = append(w.buf, key[shared:]...)

	n = binary.PutUvarint(w.tmp[0:], uint64(len(value)))
	w.buf = append(w.buf, w.tmp[:n]...)
	w.buf = append(w.buf, value...)

	w.blen++
	w.lastKey = append(w.lastKey[:0], key...)

	return nil
}

// Close flushes pending data and writes the index and footer.
// It does not close the underlying writer.
func (w *SnapshotWriter) Close() error {
	if w.tmp == nil {
		return errClosed
	}
	if err := w.flush(); err != nil {
		return err
	}

	indexOffset := w.offset
	if err := w.writeIndex(); err != nil {
		return err
	}

	if err := w.writeFooter(indexOffset); err != nil {
		return err
	}
	w.tmp = nil
	return nil
}

func (w *SnapshotWriter) writeIndex() error {
	var prev int64

	for _, ent := range w.index {
		n := binary.PutUvarint(w.tmp[0:], uint64(len(ent.LastKey)))
		if err := w.writeRaw(w.tmp[:n]); err != nil {
			return err
		}
		if err := w.writeRaw(ent.LastKey); err != nil {
			return err
		}

		n = binary.PutUvarint(w.tmp[0:], uint64(ent.Offset-prev))
		if err := w.writeRaw(w.tmp[:n]); err != nil {
			return err
		}
		prev = ent.Offset
	}
	return nil
}

func (w *SnapshotWriter) writeFooter(indexOffset int64) error {
	binary.LittleEndian.PutUint64(w.tmp[0:], uint64(indexOffset))
	if err := w.writeRaw(w.tmp[:8]); err != nil {
		return err
	}
	return w.writeRaw(magic)
}

func (w *SnapshotWriter) writeRaw(p []byte) error {
	n, err := w.w.Write(p)
	w.offset += int64(n)
	return err
}

func (w *SnapshotWriter) flush() error {
	if len(w.buf) == 0 {
		return nil
	}

	for _, o := range w.soffs {
		if o > 0 {
			binary.LittleEndian.PutUint32(w.tmp, uint32(o))
			w.buf = append(w.buf, w.tmp[:4]...)
		}
	}
	binary.LittleEndian.PutUint32(w.tmp, uint32(len(w.soffs)))
	w.buf = append(w.buf, w.tmp[:4]...)

	var block []byte
	switch w.o.Compression {
	case SnappyCompression:
		w.snp = snappy.Encode(w.snp[:cap(w.snp)], w.buf)
		if len(w.snp) < len(w.buf)-len(w.buf)/4 {
			block = append(w.snp, blockSnappyCompression)
		} else {
			block = append(w.buf, blockNoCompression)
		}
	default:
		block = append(w.buf, blockNoCompression)
	}

	w.index = append(w.index, blockInfo{
		LastKey: clone(w.lastKey),
		Offset:  w.offset,
	})
	w.buf = w.buf[:0]
	w.soffs = w.soffs[:0]
	w.blen = 0

	return w.writeRaw(block)
}

func sharedPrefixLen(a, b []byte) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
