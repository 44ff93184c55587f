package reltable_test

import (
	"errors"
	"fmt"
	"math/rand"

	g "github.com/anacrolix/generics"
	"github.com/bsm/reltable"
	"github.com/bsm/reltable/codec"
	"github.com/bsm/reltable/kvstore"
	"github.com/bsm/reltable/splay"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Index", func() {
	var subject *reltable.Engine

	BeforeEach(func() {
		var err error
		subject, err = reltable.Open(kvstore.NewMemStore(), nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = subject.CreateTable(owner, "scores", []codec.ColumnType{codec.IntVarLen, codec.ByteStringVarLen}, true, 0)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(subject.Close()).To(Succeed())
	})

	// str formats an optional value, "-" for None.
	str := func(o g.Option[interface{}], err error) string {
		Expect(err).NotTo(HaveOccurred())
		if !o.Ok {
			return "-"
		}
		return fmt.Sprint(o.Value)
	}

	Describe("with data", func() {
		values := []int{50, 20, 70, 10, 30, 60, 80, 25, 35, 65}

		BeforeEach(func() {
			for _, v := range values {
				_, err := subject.AddRow(owner, "scores", []interface{}{v, "player"})
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("should maintain the index", func() {
			Expect(subject.SplaySize("scores", 0)).To(Equal(uint64(10)))
			Expect(str(subject.SplayRoot("scores", 0))).To(Equal("65"))
			Expect(str(subject.SplayMin("scores", 0))).To(Equal("10"))
			Expect(str(subject.SplayMax("scores", 0))).To(Equal("80"))
		})

		It("should find keys by value", func() {
			Expect(subject.FindPrimaryKeyFromValue("scores", 0, 25)).To(Equal([]interface{}{int64(8)}))
			Expect(str(subject.SplayRoot("scores", 0))).To(Equal("25"))

			Expect(subject.AddRow(owner, "scores", []interface{}{25, "another"})).To(Equal(int64(11)))
			Expect(subject.FindPrimaryKeyFromValue("scores", 0, 25)).To(Equal([]interface{}{int64(8), int64(11)}))
			Expect(subject.SplaySize("scores", 0)).To(Equal(uint64(11)))

			Expect(subject.FindPrimaryKeyFromValue("scores", 0, 26)).To(BeEmpty())
		})

		It("should order by semantic value", func() {
			for _, v := range []int{-5, -300, 1000} {
				_, err := subject.AddRow(owner, "scores", []interface{}{v, "player"})
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(str(subject.SplayMin("scores", 0))).To(Equal("-300"))
			Expect(str(subject.SplayMax("scores", 0))).To(Equal("1000"))
			Expect(str(subject.SplaySuccessor("scores", 0, -300))).To(Equal("-5"))
			Expect(str(subject.SplaySuccessor("scores", 0, -5))).To(Equal("10"))
		})

		It("should navigate", func() {
			Expect(str(subject.SplayPredecessor("scores", 0, 30))).To(Equal("25"))
			Expect(str(subject.SplayPredecessor("scores", 0, 31))).To(Equal("30"))
			Expect(str(subject.SplaySuccessor("scores", 0, 36))).To(Equal("50"))

			max, err := subject.SplayMax("scores", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(str(subject.SplaySuccessor("scores", 0, max.Value))).To(Equal("-"))

			min, err := subject.SplayMin("scores", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(str(subject.SplayPredecessor("scores", 0, min.Value))).To(Equal("-"))

			root, err := subject.SplayRoot("scores", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(str(subject.SplayParent("scores", 0, root.Value))).To(Equal("-"))
			Expect(str(subject.SplayParent("scores", 0, 999))).To(Equal("-"))
		})

		It("should find keys in range", func() {
			Expect(subject.FindPrimaryKeysInRange("scores", 0, g.Some[interface{}](25), g.Some[interface{}](50))).
				To(Equal([]interface{}{int64(8), int64(5), int64(9), int64(1)}))
			Expect(subject.FindPrimaryKeysInRange("scores", 0, g.None[interface{}](), g.Some[interface{}](20))).
				To(Equal([]interface{}{int64(4), int64(2)}))
			Expect(subject.FindPrimaryKeysInRange("scores", 0, g.Some[interface{}](66), g.None[interface{}]())).
				To(Equal([]interface{}{int64(3), int64(7)}))
			Expect(subject.FindPrimaryKeysInRange("scores", 0, g.Some[interface{}](51), g.Some[interface{}](59))).
				To(BeEmpty())
			Expect(subject.FindPrimaryKeysInRange("scores", 0, g.None[interface{}](), g.None[interface{}]())).
				To(HaveLen(10))
		})

		It("should remove deleted rows", func() {
			Expect(subject.DeleteRow(owner, "scores", 1)).To(Succeed())
			Expect(subject.SplaySize("scores", 0)).To(Equal(uint64(9)))
			Expect(subject.FindPrimaryKeyFromValue("scores", 0, 50)).To(BeEmpty())
			Expect(str(subject.SplaySuccessor("scores", 0, 35))).To(Equal("60"))
		})

		It("should reject bad columns", func() {
			_, err := subject.FindPrimaryKeyFromValue("scores", 1, "player")
			Expect(err).To(beKind(reltable.ErrNotIndexed))
			_, err = subject.SplaySize("scores", 7)
			Expect(err).To(beKind(reltable.ErrNoColumn))
			_, err = subject.SplayRoot("nope", 0)
			Expect(err).To(beKind(reltable.ErrNoTable))
			_, err = subject.FindPrimaryKeyFromValue("scores", 0, "player")
			Expect(err).To(beKind(reltable.ErrInvalidType))
		})
	})

	It("should stay ordered under random writes", func() {
		rnd := rand.New(rand.NewSource(5))
		live := make(map[int64]int)

		for i := 0; i < 400; i++ {
			if len(live) != 0 && rnd.Intn(3) == 0 {
				for key := range live {
					Expect(subject.DeleteRow(owner, "scores", key)).To(Succeed())
					delete(live, key)
					break
				}
				continue
			}

			v := rnd.Intn(200) - 100
			key, err := subject.AddRow(owner, "scores", []interface{}{v, "x"})
			Expect(err).NotTo(HaveOccurred())
			live[key] = v
		}

		Expect(subject.SplaySize("scores", 0)).To(Equal(uint64(len(live))))

		var prev g.Option[interface{}]
		for cur, err := subject.SplayMin("scores", 0); cur.Ok; cur, err = subject.SplaySuccessor("scores", 0, cur.Value) {
			Expect(err).NotTo(HaveOccurred())
			if prev.Ok {
				Expect(codec.IntVarLen.Compare(mustEncode(prev.Value), mustEncode(cur.Value))).To(Equal(-1))
			}
			prev = cur
		}
	})

	Describe("debug", func() {
		BeforeEach(func() {
			_, err := subject.CreateTable(owner, "tree", []codec.ColumnType{codec.IntFixedLen(1)}, true, 0)
			Expect(err).NotTo(HaveOccurred())
		})

		opt := func(n int) g.Option[interface{}] {
			if n == 0 {
				return g.None[interface{}]()
			}
			return g.Some[interface{}](n)
		}

		put := func(v, p, l, r int) {
			Expect(subject.SplayDebugPut("tree", 0, v, opt(p), opt(l), opt(r))).To(Succeed())
		}

		links := func(v int) string {
			return str(subject.SplayParent("tree", 0, v)) + " " +
				str(subject.SplayLeft("tree", 0, v)) + " " +
				str(subject.SplayRight("tree", 0, v))
		}

		BeforeEach(func() {
			//      4
			//     / \
			//    2   6
			//   / \
			//  1   3
			put(4, 0, 2, 6)
			put(2, 4, 1, 3)
			put(6, 4, 0, 0)
			put(1, 2, 0, 0)
			put(3, 2, 0, 0)
		})

		It("should rotate", func() {
			Expect(subject.SplayDebugRotateRight("tree", 0, 2)).To(Succeed())
			Expect(str(subject.SplayRoot("tree", 0))).To(Equal("2"))
			Expect(links(2)).To(Equal("- 1 4"))
			Expect(links(4)).To(Equal("2 3 6"))
			Expect(links(3)).To(Equal("4 - -"))

			Expect(subject.SplayDebugRotateLeft("tree", 0, 4)).To(Succeed())
			Expect(str(subject.SplayRoot("tree", 0))).To(Equal("4"))
			Expect(links(4)).To(Equal("- 2 6"))
			Expect(links(2)).To(Equal("4 1 3"))
			Expect(links(3)).To(Equal("2 - -"))
		})

		It("should splay", func() {
			Expect(subject.SplayDebugSplay("tree", 0, 1, g.None[interface{}]())).To(Succeed())
			Expect(str(subject.SplayRoot("tree", 0))).To(Equal("1"))
			Expect(links(1)).To(Equal("- - 2"))
			Expect(links(2)).To(Equal("1 - 4"))
			Expect(links(4)).To(Equal("2 3 6"))
			Expect(links(3)).To(Equal("4 - -"))
			Expect(links(6)).To(Equal("4 - -"))
		})

		It("should splay below a target", func() {
			Expect(subject.SplayDebugSplay("tree", 0, 3, opt(4))).To(Succeed())
			Expect(str(subject.SplayRoot("tree", 0))).To(Equal("4"))
			Expect(links(4)).To(Equal("- 3 6"))
			Expect(links(3)).To(Equal("4 2 -"))
			Expect(links(2)).To(Equal("3 1 -"))
		})

		It("should reject invalid rotations", func() {
			err := subject.SplayDebugRotateRight("tree", 0, 9)
			Expect(errors.Is(err, splay.ErrNoValue)).To(BeTrue())
			Expect(subject.SplayDebugRotateLeft("tree", 0, 2)).To(MatchError(`splay: bad rotation, 02 is not a right child`))
			Expect(subject.SplayDebugRotateRight("tree", 0, 200)).To(beKind(reltable.ErrValueTooLarge))
		})
	})
})

func mustEncode(v interface{}) []byte {
	enc, err := codec.IntVarLen.Encode(v)
	Expect(err).NotTo(HaveOccurred())
	return enc
}
