package reltable

import (
	"encoding/binary"

	"github.com/bsm/reltable/kvstore"
	"github.com/bsm/reltable/splay"
)

// Key prefixes.
const (
	prefixTable   = 0x01
	prefixDropped = 0x02
	prefixNextID  = 0x03
	prefixCounter = 0x04
	prefixRow     = 0x10
)

// Separator terminates table names inside dropped-table keys.
const Separator = 0x00

// Key budgets.
const (
	// MaxNameSize is the longest table name, bounded by the dropped-table key.
	MaxNameSize = kvstore.MaxKeySize - 6

	// MaxPrimaryKeySize is the longest encoded leading-column key.
	MaxPrimaryKeySize = kvstore.MaxKeySize - 5

	// MaxIndexedValueSize is the longest encoded value of an indexed column.
	MaxIndexedValueSize = kvstore.MaxKeySize - 6

	// MaxIndexedColumns bounds the column number of indexed columns.
	MaxIndexedColumns = 256
)

func tableKey(name string) []byte {
	return append([]byte{prefixTable}, name...)
}

func droppedKey(name string, id uint32) []byte {
	key := make([]byte, 0, len(name)+6)
	key = append(key, prefixDropped)
	key = append(key, name...)
	key = append(key, Separator)
	return binary.BigEndian.AppendUint32(key, id)
}

var nextIDKey = []byte{prefixNextID}

func counterKey(id uint32) []byte {
	return binary.BigEndian.AppendUint32([]byte{prefixCounter}, id)
}

func rowPrefix(id uint32) []byte {
	return binary.BigEndian.AppendUint32([]byte{prefixRow}, id)
}

func rowKey(id uint32, pk []byte) []byte {
	return append(rowPrefix(id), pk...)
}

func indexNamespace(id uint32, col int) []byte {
	return append(binary.BigEndian.AppendUint32(nil, id), byte(col))
}

func indexNodePrefix(id uint32, col int) []byte {
	return append([]byte{splay.NodePrefix}, indexNamespace(id, col)...)
}

func encodeRowID(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

func decodeUint(b []byte) uint64 {
	switch len(b) {
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	case 8:
		return binary.BigEndian.Uint64(b)
	}
	return 0
}
