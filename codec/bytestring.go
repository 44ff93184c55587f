package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// EncodeBoolean encodes a boolean as a single byte.
func EncodeBoolean(v bool) []byte {
	if v {
		return []byte{0x01}
	}
	return []byte{0x00}
}

// DecodeBoolean decodes a single-byte boolean and returns the remainder.
func DecodeBoolean(b []byte) (bool, []byte, error) {
	if len(b) < 1 {
		return false, b, fmt.Errorf("codec: boolean: %w", io.ErrUnexpectedEOF)
	}
	switch b[0] {
	case 0x00:
		return false, b[1:], nil
	case 0x01:
		return true, b[1:], nil
	}
	return false, b, errorf(ErrInvalidType, "boolean byte 0x%02x", b[0])
}

// EncodeByteString encodes s with a 2-byte little-endian length prefix.
func EncodeByteString(s []byte) ([]byte, error) {
	return AppendByteString(nil, s)
}

// AppendByteString appends the variable-length encoding of s to dst.
func AppendByteString(dst, s []byte) ([]byte, error) {
	if len(s) > MaxByteStringSize {
		return dst, errorf(ErrValueTooLong, "%d bytes (max %d)", len(s), MaxByteStringSize)
	}

	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], uint16(len(s)))
	dst = append(dst, tmp[:]...)
	return append(dst, s...), nil
}

// DecodeByteString decodes a variable-length byte string and returns the remainder.
func DecodeByteString(b []byte) ([]byte, []byte, error) {
	if len(b) < 2 {
		return nil, b, fmt.Errorf("codec: byte string length prefix: %w", io.ErrUnexpectedEOF)
	}

	n := int(binary.LittleEndian.Uint16(b))
	b = b[2:]
	if len(b) < n {
		return nil, b, fmt.Errorf("codec: byte string of %d bytes: %w", n, io.ErrUnexpectedEOF)
	}
	return b[:n:n], b[n:], nil
}

// EncodeByteStringFixedLength zero-pads s to exactly width bytes.
func EncodeByteStringFixedLength(s []byte, width int) ([]byte, error) {
	return AppendByteStringFixedLength(nil, s, width)
}

// AppendByteStringFixedLength appends s, zero-padded to width, to dst.
func AppendByteStringFixedLength(dst, s []byte, width int) ([]byte, error) {
	if len(s) > width {
		return dst, errorf(ErrValueTooLong, "%d bytes exceed width %d", len(s), width)
	}

	dst = append(dst, s...)
	for i := len(s); i < width; i++ {
		dst = append(dst, 0)
	}
	return dst, nil
}

// DecodeByteStringFixedLength returns the first width bytes of b, padding
// included, and the remainder.
func DecodeByteStringFixedLength(b []byte, width int) ([]byte, []byte, error) {
	if len(b) < width {
		return nil, b, fmt.Errorf("codec: fixed byte string of %d bytes: %w", width, io.ErrUnexpectedEOF)
	}
	return b[:width:width], b[width:], nil
}
