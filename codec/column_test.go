package codec_test

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/bsm/reltable/codec"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ByteString", func() {
	It("should encode variable length", func() {
		Expect(codec.EncodeByteString([]byte("abc"))).To(Equal([]byte{3, 0, 'a', 'b', 'c'}))

		s, rest, err := codec.DecodeByteString([]byte{3, 0, 'a', 'b', 'c', 'd'})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(s)).To(Equal("abc"))
		Expect(string(rest)).To(Equal("d"))

		_, err = codec.EncodeByteString(make([]byte, 65535))
		Expect(err).NotTo(HaveOccurred())
		_, err = codec.EncodeByteString(make([]byte, 65536))
		Expect(errors.Is(err, codec.ErrValueTooLong)).To(BeTrue())
	})

	It("should pad fixed length", func() {
		Expect(codec.EncodeByteStringFixedLength([]byte("ab"), 4)).To(Equal([]byte{'a', 'b', 0, 0}))

		_, err := codec.EncodeByteStringFixedLength([]byte("abcde"), 4)
		Expect(errors.Is(err, codec.ErrValueTooLong)).To(BeTrue())
	})

	It("should encode booleans", func() {
		Expect(codec.EncodeBoolean(true)).To(Equal([]byte{1}))
		Expect(codec.EncodeBoolean(false)).To(Equal([]byte{0}))

		_, _, err := codec.DecodeBoolean([]byte{2})
		Expect(errors.Is(err, codec.ErrInvalidType)).To(BeTrue())
	})
})

var _ = Describe("ColumnType", func() {
	all := []codec.ColumnType{
		codec.Boolean,
		codec.IntVarLen,
		codec.ByteStringVarLen,
		codec.IntFixedLen(4),
		codec.ByteStringFixedLen(20),
		codec.FixedBytes160,
		codec.FixedBytes256,
	}

	It("should parse descriptors", func() {
		spec := codec.EncodeColumnTypes(all)
		Expect(spec).To(Equal([]byte{0x20, 0x21, 0x28, 0x22, 4, 0x29, 20, 0x2a, 0x2b}))

		types, err := codec.ParseColumnTypes(spec)
		Expect(err).NotTo(HaveOccurred())
		Expect(types).To(Equal(all))
	})

	It("should reject invalid descriptors", func() {
		_, err := codec.ParseColumnTypes([]byte{0x20, 0x99})
		Expect(errors.Is(err, codec.ErrInvalidType)).To(BeTrue())
		Expect(err).To(MatchError(`codec: invalid type, unknown column tag 0x99 at 1`))

		_, err = codec.ParseColumnTypes([]byte{0x22})
		Expect(errors.Is(err, codec.ErrInvalidType)).To(BeTrue())

		_, err = codec.ParseColumnTypes([]byte{0x22, 33})
		Expect(errors.Is(err, codec.ErrInvalidType)).To(BeTrue())

		Expect(errors.Is(codec.ColumnType{Kind: 0x01}.Validate(), codec.ErrInvalidType)).To(BeTrue())
	})

	It("should encode and decode values", func() {
		values := []interface{}{
			true,
			big.NewInt(-77),
			[]byte("hello"),
			big.NewInt(1 << 20),
			[]byte("padded"),
			bytes.Repeat([]byte{0xaa}, 20),
			bytes.Repeat([]byte{0xbb}, 32),
		}

		var buf []byte
		for i, t := range all {
			var err error
			buf, err = t.Append(buf, values[i])
			Expect(err).NotTo(HaveOccurred(), "for %s", t)
		}

		rest := buf
		for i, t := range all {
			var v interface{}
			var err error
			v, rest, err = t.Decode(rest)
			Expect(err).NotTo(HaveOccurred(), "for %s", t)

			switch x := v.(type) {
			case *big.Int:
				Expect(x.Cmp(values[i].(*big.Int))).To(Equal(0))
			case []byte:
				Expect(bytes.TrimRight(x, "\x00")).To(Equal(values[i]))
			default:
				Expect(x).To(Equal(values[i]))
			}
		}
		Expect(rest).To(BeEmpty())
	})

	It("should accept native integers and strings", func() {
		enc, err := codec.IntFixedLen(2).Encode(int16(-300))
		Expect(err).NotTo(HaveOccurred())
		Expect(enc).To(Equal([]byte{0xd4, 0xfe}))

		enc, err = codec.ByteStringVarLen.Encode("hi")
		Expect(err).NotTo(HaveOccurred())
		Expect(enc).To(Equal([]byte{2, 0, 'h', 'i'}))
	})

	It("should reject mismatching values", func() {
		_, err := codec.Boolean.Encode(1)
		Expect(errors.Is(err, codec.ErrInvalidType)).To(BeTrue())
		_, err = codec.IntVarLen.Encode("1")
		Expect(errors.Is(err, codec.ErrInvalidType)).To(BeTrue())
		_, err = codec.IntVarLen.Encode(bigPow2(256))
		Expect(errors.Is(err, codec.ErrValueTooLarge)).To(BeTrue())
		_, err = codec.IntFixedLen(1).Encode(128)
		Expect(errors.Is(err, codec.ErrValueTooLarge)).To(BeTrue())
		_, err = codec.FixedBytes160.Encode(make([]byte, 21))
		Expect(errors.Is(err, codec.ErrValueTooLong)).To(BeTrue())
		_, err = codec.FixedBytes160.Encode(make([]byte, 19))
		Expect(errors.Is(err, codec.ErrInvalidType)).To(BeTrue())
		_, err = codec.ByteStringFixedLen(2).Encode("abc")
		Expect(errors.Is(err, codec.ErrValueTooLong)).To(BeTrue())
	})

	It("should compare semantically", func() {
		enc := func(t codec.ColumnType, v interface{}) []byte {
			b, err := t.Encode(v)
			Expect(err).NotTo(HaveOccurred())
			return b
		}

		for _, t := range []codec.ColumnType{codec.IntVarLen, codec.IntFixedLen(4)} {
			Expect(t.Compare(enc(t, -1), enc(t, 1))).To(Equal(-1), "for %s", t)
			Expect(t.Compare(enc(t, 256), enc(t, 255))).To(Equal(1), "for %s", t)
			Expect(t.Compare(enc(t, 7), enc(t, 7))).To(Equal(0), "for %s", t)
		}

		t := codec.ByteStringVarLen
		Expect(t.Compare(enc(t, "b"), enc(t, "ab"))).To(Equal(1))
		t = codec.ByteStringFixedLen(1)
		Expect(t.Compare(enc(t, "g"), enc(t, "p"))).To(Equal(-1))
	})

	It("should report max encoded lengths", func() {
		Expect(codec.Boolean.MaxEncodedLen()).To(Equal(1))
		Expect(codec.IntVarLen.MaxEncodedLen()).To(Equal(40))
		Expect(codec.IntFixedLen(8).MaxEncodedLen()).To(Equal(8))
		Expect(codec.FixedBytes256.MaxEncodedLen()).To(Equal(32))
		Expect(codec.ByteStringVarLen.MaxEncodedLen()).To(Equal(65537))
	})
})
