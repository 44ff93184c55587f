package codec_test

import (
	"errors"
	"io"
	"math/big"
	"math/rand"

	"github.com/bsm/reltable/codec"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Integer", func() {
	It("should encode", func() {
		Expect(codec.EncodeInteger(big.NewInt(0))).To(Equal([]byte{1, 0, 0, 0, 0, 0, 0, 0, 0x00}))
		Expect(codec.EncodeInteger(big.NewInt(-1))).To(Equal([]byte{1, 0, 0, 0, 0, 0, 0, 0, 0xff}))
		Expect(codec.EncodeInteger(big.NewInt(128))).To(Equal([]byte{2, 0, 0, 0, 0, 0, 0, 0, 0x80, 0x00}))
		Expect(codec.EncodeInteger(big.NewInt(-129))).To(Equal([]byte{2, 0, 0, 0, 0, 0, 0, 0, 0x7f, 0xff}))
		Expect(codec.EncodeInteger(big.NewInt(12345678))).To(Equal([]byte{4, 0, 0, 0, 0, 0, 0, 0, 0x4e, 0x61, 0xbc, 0x00}))
	})

	table.DescribeTable("should round-trip",
		func(v *big.Int) {
			n, rest, err := codec.DecodeInteger(codec.EncodeInteger(v))
			Expect(err).NotTo(HaveOccurred())
			Expect(rest).To(BeEmpty())
			Expect(n.Cmp(v)).To(Equal(0), "for %s, got %s", v, n)
		},
		table.Entry("zero", big.NewInt(0)),
		table.Entry("one", big.NewInt(1)),
		table.Entry("minus one", big.NewInt(-1)),
		table.Entry("127", big.NewInt(127)),
		table.Entry("-128", big.NewInt(-128)),
		table.Entry("12345678", big.NewInt(12345678)),
		table.Entry("-12345678", big.NewInt(-12345678)),
		table.Entry("max 32 bytes", new(big.Int).Sub(bigPow2(255), big.NewInt(1))),
		table.Entry("min 32 bytes", new(big.Int).Neg(bigPow2(255))),
	)

	It("should round-trip random values", func() {
		rnd := rand.New(rand.NewSource(1))
		for i := 0; i < 1000; i++ {
			v := new(big.Int).Rand(rnd, bigPow2(uint(rnd.Intn(255)+1)))
			if rnd.Intn(2) == 0 {
				v.Neg(v)
			}
			n, rest, err := codec.DecodeInteger(codec.EncodeInteger(v))
			Expect(err).NotTo(HaveOccurred())
			Expect(rest).To(BeEmpty())
			Expect(n.Cmp(v)).To(Equal(0), "for %s", v)
		}
	})

	It("should return remainder", func() {
		enc := append(codec.EncodeInteger(big.NewInt(42)), "tail"...)
		n, rest, err := codec.DecodeInteger(enc)
		Expect(err).NotTo(HaveOccurred())
		Expect(n.Int64()).To(Equal(int64(42)))
		Expect(string(rest)).To(Equal("tail"))
	})

	It("should reject oversized magnitudes", func() {
		enc := codec.EncodeInteger(bigPow2(260))
		_, _, err := codec.DecodeInteger(enc)
		Expect(errors.Is(err, codec.ErrSizeExceeded)).To(BeTrue())

		var sErr *codec.SizeExceededError
		Expect(errors.As(err, &sErr)).To(BeTrue())
		Expect(sErr.Size).To(Equal(uint64(33)))
	})

	It("should reject truncated input", func() {
		_, _, err := codec.DecodeInteger([]byte{1, 0, 0})
		Expect(errors.Is(err, io.ErrUnexpectedEOF)).To(BeTrue())

		_, _, err = codec.DecodeInteger([]byte{2, 0, 0, 0, 0, 0, 0, 0, 0x01})
		Expect(errors.Is(err, io.ErrUnexpectedEOF)).To(BeTrue())
	})

	Describe("fixed length", func() {
		widths := []int{1, 2, 4, 8}

		It("should accept boundaries", func() {
			for _, w := range widths {
				max := new(big.Int).Sub(bigPow2(uint(8*w-1)), big.NewInt(1))
				min := new(big.Int).Neg(bigPow2(uint(8*w - 1)))

				for _, v := range []*big.Int{max, min, big.NewInt(0), big.NewInt(-1)} {
					enc, err := codec.EncodeIntegerFixedLength(v, w)
					Expect(err).NotTo(HaveOccurred(), "for %s/%d", v, w)
					Expect(enc).To(HaveLen(w))

					n, rest, err := codec.DecodeIntegerFixedLength(enc, w)
					Expect(err).NotTo(HaveOccurred())
					Expect(rest).To(BeEmpty())
					Expect(n.Cmp(v)).To(Equal(0), "for %s/%d", v, w)
				}
			}
		})

		It("should reject values out of range", func() {
			for _, w := range widths {
				over := bigPow2(uint(8*w - 1))
				under := new(big.Int).Sub(new(big.Int).Neg(over), big.NewInt(1))

				_, err := codec.EncodeIntegerFixedLength(over, w)
				Expect(errors.Is(err, codec.ErrValueTooLarge)).To(BeTrue(), "for %s/%d", over, w)
				_, err = codec.EncodeIntegerFixedLength(under, w)
				Expect(errors.Is(err, codec.ErrValueTooLarge)).To(BeTrue(), "for %s/%d", under, w)
			}
		})

		It("should sign-extend", func() {
			Expect(codec.EncodeIntegerFixedLength(big.NewInt(-2), 4)).To(Equal([]byte{0xfe, 0xff, 0xff, 0xff}))
			Expect(codec.EncodeIntegerFixedLength(big.NewInt(258), 4)).To(Equal([]byte{0x02, 0x01, 0x00, 0x00}))
		})

		It("should return remainder", func() {
			n, rest, err := codec.DecodeIntegerFixedLength([]byte{0x01, 0x00, 0xaa}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(n.Int64()).To(Equal(int64(1)))
			Expect(rest).To(Equal([]byte{0xaa}))
		})
	})
})
