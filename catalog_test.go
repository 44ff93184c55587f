package reltable_test

import (
	"strings"

	"github.com/bsm/reltable"
	"github.com/bsm/reltable/codec"
	"github.com/bsm/reltable/kvstore"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Catalog", func() {
	var store *kvstore.MemStore
	var subject *reltable.Engine

	people := []codec.ColumnType{codec.IntFixedLen(8), codec.ByteStringVarLen, codec.ByteStringFixedLen(16)}

	BeforeEach(func() {
		var err error
		store = kvstore.NewMemStore()
		subject, err = reltable.Open(store, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(subject.Close()).To(Succeed())
	})

	table.DescribeTable("should validate schemas",
		func(name string, cols []codec.ColumnType, autoIncrement bool, indexed []int, kind error) {
			_, err := subject.CreateTable(owner, name, cols, autoIncrement, indexed...)
			if kind == nil {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(err).To(beKind(kind))
				Expect(subject.ListAllTables()).To(BeEmpty())
			}
		},
		table.Entry("plain", "t", people, true, nil, nil),
		table.Entry("separator", "a\x00b", people, true, nil, reltable.ErrSeparatorInName),
		table.Entry("empty name", "", people, true, nil, reltable.ErrInvalidName),
		table.Entry("longest name", strings.Repeat("n", reltable.MaxNameSize), people, true, nil, nil),
		table.Entry("name too long", strings.Repeat("n", reltable.MaxNameSize+1), people, true, nil, reltable.ErrKeyTooLong),
		table.Entry("no columns", "t", nil, true, nil, reltable.ErrColumnCount),
		table.Entry("bad width", "t", []codec.ColumnType{codec.IntFixedLen(33)}, true, nil, reltable.ErrInvalidType),
		table.Entry("bad kind", "t", []codec.ColumnType{{Kind: 0x30}}, true, nil, reltable.ErrInvalidType),
		table.Entry("var-len leading key", "t", []codec.ColumnType{codec.ByteStringVarLen}, false, nil, reltable.ErrKeyTooLong),
		table.Entry("var-len int leading key", "t", []codec.ColumnType{codec.IntVarLen}, false, nil, nil),
		table.Entry("wide leading key", "t", []codec.ColumnType{codec.ByteStringFixedLen(60)}, false, nil, reltable.ErrKeyTooLong),
		table.Entry("widest leading key", "t", []codec.ColumnType{codec.ByteStringFixedLen(59)}, false, nil, nil),
		table.Entry("indexed", "t", people, true, []int{0, 2}, nil),
		table.Entry("indexed var-len", "t", people, true, []int{1}, reltable.ErrKeyTooLong),
		table.Entry("indexed too wide", "t", []codec.ColumnType{codec.Boolean, codec.ByteStringFixedLen(59)}, true, []int{1}, reltable.ErrKeyTooLong),
		table.Entry("indexed widest", "t", []codec.ColumnType{codec.Boolean, codec.ByteStringFixedLen(58)}, true, []int{1}, nil),
		table.Entry("indexed out of range", "t", people, true, []int{3}, reltable.ErrInvalidType),
		table.Entry("indexed negative", "t", people, true, []int{-1}, reltable.ErrInvalidType),
	)

	It("should create from descriptors", func() {
		Expect(subject.CreateTableSpec(owner, "t", []byte{0x20, 0x21, 0x28, 0x22, 4, 0x29, 20}, true)).To(Equal(5))
		spec, ok := subject.EncodedColumnTypes("t")
		Expect(ok).To(BeTrue())
		Expect(spec).To(Equal([]byte{0x20, 0x21, 0x28, 0x22, 4, 0x29, 20}))
		Expect(columnTypes(subject, "t")).To(Equal([]codec.ColumnType{
			codec.Boolean,
			codec.IntVarLen,
			codec.ByteStringVarLen,
			codec.IntFixedLen(4),
			codec.ByteStringFixedLen(20),
		}))

		_, err := subject.CreateTableSpec(owner, "u", []byte{0x20, 0x99}, true)
		Expect(err).To(beKind(reltable.ErrInvalidType))
		Expect(err).To(MatchError(`reltable: invalid type, table "u": codec: invalid type, unknown column tag 0x99 at 1`))
	})

	It("should reject duplicates", func() {
		_, err := subject.CreateTable(owner, "t", people, true)
		Expect(err).NotTo(HaveOccurred())

		_, err = subject.CreateTable(other, "t", people, false)
		Expect(err).To(beKind(reltable.ErrTableExists))
		Expect(err).To(MatchError(`reltable: table exists, "t"`))
	})

	Describe("listings", func() {
		BeforeEach(func() {
			for _, name := range []string{"t2", "t1", "s1"} {
				_, err := subject.CreateTable(owner, name, people, true)
				Expect(err).NotTo(HaveOccurred())
			}
			_, err := subject.CreateTable(other, "t3", people, true)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should list tables", func() {
			Expect(subject.ListAllTables()).To(Equal([]string{"s1", "t1", "t2", "t3"}))
			Expect(subject.ListTables(owner, "")).To(Equal([]string{"s1", "t1", "t2"}))
			Expect(subject.ListTables(owner, "t")).To(Equal([]string{"t1", "t2"}))
			Expect(subject.ListTables(other, "t")).To(Equal([]string{"t3"}))
			Expect(subject.ListTables(other, "s")).To(BeEmpty())
			Expect(subject.ListAllDroppedTables()).To(BeEmpty())
		})

		It("should drop tables", func() {
			Expect(subject.DropTable(owner, "t1")).To(Succeed())
			Expect(subject.DropTable(other, "t3")).To(Succeed())

			Expect(subject.ListAllTables()).To(Equal([]string{"s1", "t2"}))
			Expect(subject.ListTables(owner, "t")).To(Equal([]string{"t2"}))
			Expect(subject.ListAllDroppedTables()).To(Equal([]string{"t1", "t3"}))
			Expect(subject.ListDroppedTables(owner, "")).To(Equal([]string{"t1"}))
			Expect(subject.ListDroppedTables(owner, "s")).To(BeEmpty())
			Expect(subject.ListDroppedTables(other, "t")).To(Equal([]string{"t3"}))

			Expect(droppedColumnTypes(subject, "t1")).To(Equal(people))
			_, ok := subject.ColumnTypes("t1")
			Expect(ok).To(BeFalse())
			_, ok = subject.ColumnTypesDropped("t2")
			Expect(ok).To(BeFalse())

			_, err := subject.GetRow("t1", 1)
			Expect(err).To(beKind(reltable.ErrNoTable))
			Expect(subject.DropTable(owner, "t1")).To(beKind(reltable.ErrNoTable))
		})

		It("should re-create dropped tables", func() {
			Expect(subject.AddRow(owner, "t1", []interface{}{1, "x", "y"})).To(Equal(int64(1)))
			Expect(subject.DropTable(owner, "t1")).To(Succeed())

			_, err := subject.CreateTable(other, "t1", []codec.ColumnType{codec.Boolean}, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(columnTypes(subject, "t1")).To(Equal([]codec.ColumnType{codec.Boolean}))
			Expect(droppedColumnTypes(subject, "t1")).To(Equal(people))
			Expect(subject.ListRows("t1")).To(BeEmpty())
			Expect(subject.RowID("t1")).To(Equal(int64(1)))

			Expect(subject.DropTable(other, "t1")).To(Succeed())
			Expect(droppedColumnTypes(subject, "t1")).To(Equal([]codec.ColumnType{codec.Boolean}))
			Expect(subject.ListAllDroppedTables()).To(Equal([]string{"t1"}))
			Expect(subject.ListDroppedTables(owner, "")).To(BeEmpty())
			Expect(subject.ListDroppedTables(other, "")).To(Equal([]string{"t1"}))
		})

		It("should reclaim storage of dropped tables", func() {
			_, err := subject.CreateTable(owner, "idx", people, true, 0, 2)
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i < 20; i++ {
				_, err := subject.AddRow(owner, "idx", []interface{}{i, "name", "city"})
				Expect(err).NotTo(HaveOccurred())
			}

			before := store.Len()
			Expect(subject.DropTable(owner, "idx")).To(Succeed())
			Expect(store.Len()).To(BeNumerically("<", before))

			for _, pfx := range []byte{0x04, 0x10, 0xe0, 0xf0} {
				Expect(countPrefix(store, []byte{pfx})).To(Equal(0), "for prefix 0x%02x", pfx)
			}
		})
	})

	Describe("columns", func() {
		BeforeEach(func() {
			_, err := subject.CreateTable(owner, "people", people, true)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return column types", func() {
			Expect(subject.ColumnType("people", 1)).To(Equal(codec.ByteStringVarLen))

			_, err := subject.ColumnType("people", 3)
			Expect(err).To(beKind(reltable.ErrNoColumn))
			_, err = subject.ColumnType("nobody", 0)
			Expect(err).To(beKind(reltable.ErrNoTable))

			_, ok := subject.EncodedColumnTypes("nobody")
			Expect(ok).To(BeFalse())
		})

		It("should name columns", func() {
			err := subject.SetColumnNames(owner, "people", []string{"id", "first_name"})
			Expect(err).To(beKind(reltable.ErrColumnCount))
			Expect(err).To(MatchError(`reltable: column count mismatch, "people" has 3 columns, got 2 names`))

			Expect(subject.SetColumnNames(owner, "people", []string{"id", "first_name", "last_name"})).To(Succeed())
			Expect(subject.ColumnTypeByName("people", "last_name")).To(Equal(codec.ByteStringFixedLen(16)))
			_, err = subject.ColumnTypeByName("people", "age")
			Expect(err).To(beKind(reltable.ErrNoColumn))

			Expect(subject.FindColumnNames("people", "name")).To(Equal([]string{"first_name", "last_name"}))
			Expect(subject.FindColumnNames("people", "")).To(Equal([]string{"id", "first_name", "last_name"}))
			Expect(subject.FindColumnNames("people", "Name")).To(BeEmpty())

			reopened, err := reltable.Open(store, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(reopened.FindColumnNames("people", "first")).To(Equal([]string{"first_name"}))
		})
	})
})

var _ = Describe("Principal", func() {
	It("should parse", func() {
		p, err := reltable.ParsePrincipal("0x0102")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(reltable.Principal{1, 2}))
		Expect(p.String()).To(Equal("0102000000000000000000000000000000000000"))

		_, err = reltable.ParsePrincipal("zz")
		Expect(err).To(beKind(reltable.ErrInvalidType))
		_, err = reltable.ParsePrincipal(strings.Repeat("ab", 21))
		Expect(err).To(beKind(reltable.ErrValueTooLong))
	})
})

func countPrefix(r kvstore.Reader, prefix []byte) int {
	n := 0
	Expect(r.Iterate(prefix, func(_, _ []byte) error {
		n++
		return nil
	})).To(Succeed())
	return n
}
