package codec

import (
	"bytes"
	"fmt"
	"math/big"
)

// Kind is the column type tag.
type Kind byte

// Supported column kinds.
const (
	KindBoolean            Kind = 0x20
	KindIntVarLen          Kind = 0x21
	KindIntFixedLen        Kind = 0x22
	KindByteStringVarLen   Kind = 0x28
	KindByteStringFixedLen Kind = 0x29
	KindFixedBytes160      Kind = 0x2a
	KindFixedBytes256      Kind = 0x2b
)

func (k Kind) isValid() bool {
	switch k {
	case KindBoolean, KindIntVarLen, KindIntFixedLen, KindByteStringVarLen,
		KindByteStringFixedLen, KindFixedBytes160, KindFixedBytes256:
		return true
	}
	return false
}

// hasWidth is true for the parametrised kinds.
func (k Kind) hasWidth() bool {
	return k == KindIntFixedLen || k == KindByteStringFixedLen
}

// ColumnType is a closed tagged variant describing a column's wire encoding.
// Width is only meaningful for IntFixedLen and ByteStringFixedLen.
type ColumnType struct {
	Kind  Kind
	Width int
}

// Non-parametrised column types.
var (
	Boolean          = ColumnType{Kind: KindBoolean}
	IntVarLen        = ColumnType{Kind: KindIntVarLen}
	ByteStringVarLen = ColumnType{Kind: KindByteStringVarLen}
	FixedBytes160    = ColumnType{Kind: KindFixedBytes160, Width: 20}
	FixedBytes256    = ColumnType{Kind: KindFixedBytes256, Width: 32}
)

// IntFixedLen returns a fixed-width integer column type.
func IntFixedLen(width int) ColumnType { return ColumnType{Kind: KindIntFixedLen, Width: width} }

// ByteStringFixedLen returns a fixed-width byte string column type.
func ByteStringFixedLen(width int) ColumnType {
	return ColumnType{Kind: KindByteStringFixedLen, Width: width}
}

// Validate checks the tag and width.
func (t ColumnType) Validate() error {
	switch t.Kind {
	case KindIntFixedLen:
		if t.Width < 1 || t.Width > MaxIntegerSize {
			return errorf(ErrInvalidType, "integer width %d", t.Width)
		}
	case KindByteStringFixedLen:
		if t.Width < 1 || t.Width > 255 {
			return errorf(ErrInvalidType, "byte string width %d", t.Width)
		}
	case KindFixedBytes160:
		if t.Width != 20 {
			return errorf(ErrInvalidType, "fixed bytes 160 width %d", t.Width)
		}
	case KindFixedBytes256:
		if t.Width != 32 {
			return errorf(ErrInvalidType, "fixed bytes 256 width %d", t.Width)
		}
	case KindBoolean, KindIntVarLen, KindByteStringVarLen:
	default:
		return errorf(ErrInvalidType, "unknown column tag 0x%02x", byte(t.Kind))
	}
	return nil
}

// IsInteger is true for integer kinds.
func (t ColumnType) IsInteger() bool {
	return t.Kind == KindIntVarLen || t.Kind == KindIntFixedLen
}

// MaxEncodedLen returns the maximum size of an encoded value.
func (t ColumnType) MaxEncodedLen() int {
	switch t.Kind {
	case KindBoolean:
		return 1
	case KindIntVarLen:
		return LengthOfLength + MaxIntegerSize
	case KindByteStringVarLen:
		return 2 + MaxByteStringSize
	}
	return t.Width
}

func (t ColumnType) String() string {
	switch t.Kind {
	case KindBoolean:
		return "Boolean"
	case KindIntVarLen:
		return "IntVarLen"
	case KindIntFixedLen:
		return fmt.Sprintf("IntFixedLen(%d)", t.Width)
	case KindByteStringVarLen:
		return "ByteStringVarLen"
	case KindByteStringFixedLen:
		return fmt.Sprintf("ByteStringFixedLen(%d)", t.Width)
	case KindFixedBytes160:
		return "FixedBytes160"
	case KindFixedBytes256:
		return "FixedBytes256"
	}
	return fmt.Sprintf("Unknown(0x%02x)", byte(t.Kind))
}

// Encode validates v against the column type and returns its encoding.
func (t ColumnType) Encode(v interface{}) ([]byte, error) {
	return t.Append(nil, v)
}

// Append appends the encoding of v to dst.
func (t ColumnType) Append(dst []byte, v interface{}) ([]byte, error) {
	switch t.Kind {
	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return dst, errorf(ErrInvalidType, "%T is not a boolean", v)
		}
		return append(dst, EncodeBoolean(b)...), nil

	case KindIntVarLen, KindIntFixedLen:
		n, err := ToBigInt(v)
		if err != nil {
			return dst, err
		}
		if t.Kind == KindIntVarLen {
			if sz := len(twosComplement(n)); sz > MaxIntegerSize {
				return dst, errorf(ErrValueTooLarge, "integer magnitude of %d bytes (max %d)", sz, MaxIntegerSize)
			}
			return AppendInteger(dst, n), nil
		}
		return AppendIntegerFixedLength(dst, n, t.Width)

	case KindByteStringVarLen:
		s, err := ToBytes(v)
		if err != nil {
			return dst, err
		}
		return AppendByteString(dst, s)

	case KindByteStringFixedLen:
		s, err := ToBytes(v)
		if err != nil {
			return dst, err
		}
		return AppendByteStringFixedLength(dst, s, t.Width)

	case KindFixedBytes160, KindFixedBytes256:
		s, err := ToBytes(v)
		if err != nil {
			return dst, err
		}
		if len(s) > t.Width {
			return dst, errorf(ErrValueTooLong, "%d bytes exceed %s", len(s), t)
		} else if len(s) < t.Width {
			return dst, errorf(ErrInvalidType, "%d bytes do not fill %s", len(s), t)
		}
		return append(dst, s...), nil
	}
	return dst, errorf(ErrInvalidType, "unknown column tag 0x%02x", byte(t.Kind))
}

// Decode decodes a single value and returns the remainder. Booleans decode
// to bool, integers to *big.Int and byte strings to []byte.
func (t ColumnType) Decode(b []byte) (interface{}, []byte, error) {
	switch t.Kind {
	case KindBoolean:
		v, rest, err := DecodeBoolean(b)
		if err != nil {
			return nil, b, err
		}
		return v, rest, nil
	case KindIntVarLen, KindIntFixedLen:
		var (
			v    *big.Int
			rest []byte
			err  error
		)
		if t.Kind == KindIntVarLen {
			v, rest, err = DecodeInteger(b)
		} else {
			v, rest, err = DecodeIntegerFixedLength(b, t.Width)
		}
		if err != nil {
			return nil, b, err
		}
		return v, rest, nil
	case KindByteStringVarLen:
		v, rest, err := DecodeByteString(b)
		if err != nil {
			return nil, b, err
		}
		return v, rest, nil
	case KindByteStringFixedLen, KindFixedBytes160, KindFixedBytes256:
		v, rest, err := DecodeByteStringFixedLength(b, t.Width)
		if err != nil {
			return nil, b, err
		}
		return v, rest, nil
	}
	return nil, b, errorf(ErrInvalidType, "unknown column tag 0x%02x", byte(t.Kind))
}

// Compare orders two canonical encodings by the column's semantic ordering:
// signed for integers, lexicographic for everything else.
func (t ColumnType) Compare(a, b []byte) int {
	if t.IsInteger() {
		x, _, errX := t.Decode(a)
		y, _, errY := t.Decode(b)
		if errX == nil && errY == nil {
			return x.(*big.Int).Cmp(y.(*big.Int))
		}
	} else if t.Kind == KindByteStringVarLen {
		x, _, errX := DecodeByteString(a)
		y, _, errY := DecodeByteString(b)
		if errX == nil && errY == nil {
			return bytes.Compare(x, y)
		}
	}
	return bytes.Compare(a, b)
}

// --------------------------------------------------------------------

// ToBigInt converts native Go integers to *big.Int.
func ToBigInt(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			break
		}
		return n, nil
	case int:
		return big.NewInt(int64(n)), nil
	case int8:
		return big.NewInt(int64(n)), nil
	case int16:
		return big.NewInt(int64(n)), nil
	case int32:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint8:
		return big.NewInt(int64(n)), nil
	case uint16:
		return big.NewInt(int64(n)), nil
	case uint32:
		return big.NewInt(int64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	}
	return nil, errorf(ErrInvalidType, "%T is not an integer", v)
}

// ToBytes converts strings and byte slices to []byte.
func ToBytes(v interface{}) ([]byte, error) {
	switch s := v.(type) {
	case []byte:
		return s, nil
	case string:
		return []byte(s), nil
	}
	return nil, errorf(ErrInvalidType, "%T is not a byte string", v)
}

// --------------------------------------------------------------------

// EncodeColumnTypes returns the descriptor bytes for a list of column types:
// one tag byte per column, followed by a width byte for fixed-length kinds.
func EncodeColumnTypes(types []ColumnType) []byte {
	buf := make([]byte, 0, 2*len(types))
	for _, t := range types {
		buf = append(buf, byte(t.Kind))
		if t.Kind.hasWidth() {
			buf = append(buf, byte(t.Width))
		}
	}
	return buf
}

// ParseColumnTypes parses descriptor bytes, as produced by EncodeColumnTypes.
func ParseColumnTypes(spec []byte) ([]ColumnType, error) {
	types := make([]ColumnType, 0, len(spec))
	for i := 0; i < len(spec); i++ {
		k := Kind(spec[i])
		if !k.isValid() {
			return nil, errorf(ErrInvalidType, "unknown column tag 0x%02x at %d", spec[i], i)
		}

		t := ColumnType{Kind: k}
		switch k {
		case KindIntFixedLen, KindByteStringFixedLen:
			if i+1 >= len(spec) {
				return nil, errorf(ErrInvalidType, "missing width for %s at %d", t, i)
			}
			i++
			t.Width = int(spec[i])
		case KindFixedBytes160:
			t = FixedBytes160
		case KindFixedBytes256:
			t = FixedBytes256
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}
