/*
Package codec implements the self-describing scalar encodings used by reltable
for both storage keys and row payloads.

Encodings

    Boolean:
    +------------------+
    | 0x00|0x01 (byte) |
    +------------------+

    Variable-length integer:
    +-------------------------+------------------------------------------+
    | length (8 bytes, LE)    | two's complement, little-endian, minimal |
    +-------------------------+------------------------------------------+

    Fixed-length integer (width w):
    +--------------------------------------------+
    | two's complement, little-endian (w bytes)  |
    +--------------------------------------------+

    Variable-length byte string:
    +---------------------+-----------------+
    | length (2 bytes,LE) | raw bytes       |
    +---------------------+-----------------+

    Fixed-length byte string (width w), FixedBytes160, FixedBytes256:
    +-----------------------------------------+
    | raw bytes, zero padded to w / 20 / 32   |
    +-----------------------------------------+
*/
package codec

import (
	"errors"
	"fmt"
)

const (
	// LengthOfLength is the size of the variable-length integer length prefix.
	LengthOfLength = 8

	// MaxIntegerSize is the maximum magnitude in bytes of a decoded
	// variable-length integer.
	MaxIntegerSize = 32

	// MaxByteStringSize is the maximum length of a variable-length byte string.
	MaxByteStringSize = 1<<16 - 1
)

var (
	// ErrInvalidType is returned for unknown column tags and for values that
	// do not match their column type.
	ErrInvalidType = errors.New("invalid type")
	// ErrValueTooLong is returned when a byte string exceeds its column width.
	ErrValueTooLong = errors.New("value too long")
	// ErrValueTooLarge is returned when an integer is out of range for its width.
	ErrValueTooLarge = errors.New("value too large")
	// ErrSizeExceeded is returned when a decoded integer magnitude exceeds MaxIntegerSize.
	ErrSizeExceeded = errors.New("size exceeded")
)

// SizeExceededError carries the actual magnitude of an oversized integer.
type SizeExceededError struct {
	Size uint64
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("codec: %s, integer magnitude of %d bytes (max %d)", ErrSizeExceeded, e.Size, MaxIntegerSize)
}

// Is reports whether target is ErrSizeExceeded.
func (e *SizeExceededError) Is(target error) bool { return target == ErrSizeExceeded }

func errorf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("codec: %w, "+format, append([]interface{}{kind}, args...)...)
}
