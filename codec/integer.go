package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
)

var bigOne = big.NewInt(1)

// EncodeInteger encodes v as a length-prefixed variable-length integer.
func EncodeInteger(v *big.Int) []byte {
	return AppendInteger(nil, v)
}

// AppendInteger appends the variable-length encoding of v to dst.
func AppendInteger(dst []byte, v *big.Int) []byte {
	mag := twosComplement(v)

	var tmp [LengthOfLength]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(len(mag)))
	dst = append(dst, tmp[:]...)
	return append(dst, mag...)
}

// DecodeInteger decodes a variable-length integer and returns the remainder.
func DecodeInteger(b []byte) (*big.Int, []byte, error) {
	if len(b) < LengthOfLength {
		return nil, b, fmt.Errorf("codec: integer length prefix: %w", io.ErrUnexpectedEOF)
	}

	sz := binary.LittleEndian.Uint64(b)
	if sz > MaxIntegerSize {
		return nil, b, &SizeExceededError{Size: sz}
	}

	b = b[LengthOfLength:]
	if uint64(len(b)) < sz {
		return nil, b, fmt.Errorf("codec: integer of %d bytes: %w", sz, io.ErrUnexpectedEOF)
	}
	return fromTwosComplement(b[:sz]), b[sz:], nil
}

// EncodeIntegerFixedLength encodes v in exactly width bytes.
func EncodeIntegerFixedLength(v *big.Int, width int) ([]byte, error) {
	return AppendIntegerFixedLength(nil, v, width)
}

// AppendIntegerFixedLength appends the fixed-length encoding of v to dst.
func AppendIntegerFixedLength(dst []byte, v *big.Int, width int) ([]byte, error) {
	if width < 1 || width > MaxIntegerSize {
		return dst, errorf(ErrInvalidType, "integer width %d", width)
	}

	bits := uint(8*width - 1)
	max := new(big.Int).Lsh(bigOne, bits) // 2^(8w-1)
	min := new(big.Int).Neg(max)
	if v.Cmp(min) < 0 || v.Cmp(max) >= 0 {
		return dst, errorf(ErrValueTooLarge, "%s does not fit in %d bytes", v, width)
	}

	mag := twosComplement(v)
	pad := byte(0x00)
	if v.Sign() < 0 {
		pad = 0xff
	}
	dst = append(dst, mag...)
	for i := len(mag); i < width; i++ {
		dst = append(dst, pad)
	}
	return dst, nil
}

// DecodeIntegerFixedLength decodes a width-byte integer and returns the remainder.
func DecodeIntegerFixedLength(b []byte, width int) (*big.Int, []byte, error) {
	if width < 1 || width > MaxIntegerSize {
		return nil, b, errorf(ErrInvalidType, "integer width %d", width)
	}
	if len(b) < width {
		return nil, b, fmt.Errorf("codec: fixed integer of %d bytes: %w", width, io.ErrUnexpectedEOF)
	}
	return fromTwosComplement(b[:width]), b[width:], nil
}

// --------------------------------------------------------------------

// twosComplement returns the minimal little-endian two's complement
// representation of v, at least one byte long.
func twosComplement(v *big.Int) []byte {
	var be []byte
	if v.Sign() >= 0 {
		be = v.Bytes()
		if len(be) == 0 || be[0]&0x80 != 0 {
			be = append([]byte{0}, be...)
		}
	} else {
		n := new(big.Int).Neg(v)
		n.Sub(n, bigOne)
		be = n.Bytes()
		if len(be) == 0 || be[0]&0x80 != 0 {
			be = append([]byte{0}, be...)
		}
		for i := range be {
			be[i] ^= 0xff
		}
	}
	reverse(be)
	return be
}

func fromTwosComplement(le []byte) *big.Int {
	if len(le) == 0 {
		return new(big.Int)
	}

	be := make([]byte, len(le))
	copy(be, le)
	reverse(be)

	if be[0]&0x80 == 0 {
		return new(big.Int).SetBytes(be)
	}
	for i := range be {
		be[i] ^= 0xff
	}
	n := new(big.Int).SetBytes(be)
	n.Add(n, bigOne)
	return n.Neg(n)
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
