package exchange_test

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aistore-labs/ridx/exchange"
	"github.com/aistore-labs/ridx/idxlist"
	"github.com/aistore-labs/ridx/rerr"
	"github.com/aistore-labs/ridx/rmap"
	"github.com/aistore-labs/ridx/transport/local"
)

func encodeInt32s(vals []int32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func decodeInt32s(buf []byte) []int32 {
	vals := make([]int32, len(buf)/4)
	for i := range vals {
		vals[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vals
}

var _ = Describe("Exchanger", func() {
	It("moves values from one rank's send leg to the other's recv leg", func() {
		world := local.NewWorld(2)

		srcs := [][]int64{{0, 1, 2, 3}, nil}
		dsts := [][]int64{nil, {0, 1, 2, 3}}

		maps := make([]*rmap.Map, 2)
		var wg sync.WaitGroup
		for r := 0; r < 2; r++ {
			wg.Add(1)
			go func(r int) {
				defer wg.Done()
				src := idxlist.New(srcs[r])
				dst := idxlist.New(dsts[r])
				m, err := rmap.New(context.Background(), src, dst, -1, world.Rank(r))
				Expect(err).NotTo(HaveOccurred())
				maps[r] = m
			}(r)
		}
		wg.Wait()

		exs := make([]*exchange.Exchanger, 2)
		for r := 0; r < 2; r++ {
			e, err := exchange.New(maps[r], exchange.Int32Type(), exchange.Host)
			Expect(err).NotTo(HaveOccurred())
			exs[r] = e
		}

		var got []int32
		wg.Add(2)
		go func() {
			defer wg.Done()
			src := encodeInt32s([]int32{10, 20, 30, 40})
			Expect(exs[0].Go(context.Background(), src, nil)).To(Succeed())
		}()
		go func() {
			defer wg.Done()
			dst := make([]byte, 16)
			Expect(exs[1].Go(context.Background(), nil, dst)).To(Succeed())
			got = decodeInt32s(dst)
		}()
		wg.Wait()

		Expect(got).To(Equal([]int32{10, 20, 30, 40}))
	})

	It("gives identical results for an aliased buffer and a copied buffer (P5)", func() {
		world := local.NewWorld(1)
		src := idxlist.New([]int64{0, 1, 2, 3})
		dst := idxlist.New([]int64{3, 2, 1, 0})
		m, err := rmap.New(context.Background(), src, dst, -1, world.Rank(0))
		Expect(err).NotTo(HaveOccurred())

		e1, err := exchange.New(m, exchange.Int32Type(), exchange.Host)
		Expect(err).NotTo(HaveOccurred())
		aliased := encodeInt32s([]int32{10, 20, 30, 40})
		Expect(e1.Go(context.Background(), aliased, aliased)).To(Succeed())

		m2, err := rmap.New(context.Background(), src, dst, -1, world.Rank(0))
		Expect(err).NotTo(HaveOccurred())
		e2, err := exchange.New(m2, exchange.Int32Type(), exchange.Host)
		Expect(err).NotTo(HaveOccurred())
		original := encodeInt32s([]int32{10, 20, 30, 40})
		separateDst := make([]byte, 16)
		Expect(e2.Go(context.Background(), original, separateDst)).To(Succeed())

		Expect(decodeInt32s(aliased)).To(Equal(decodeInt32s(separateDst)))
		Expect(decodeInt32s(aliased)).To(Equal([]int32{40, 30, 20, 10}))
	})

	It("produces identical output from the host and device stagers", func() {
		world := local.NewWorld(1)
		src := idxlist.New([]int64{0, 1, 2, 3})
		dst := idxlist.New([]int64{3, 2, 1, 0})

		run := func(hw exchange.HWHint) []int32 {
			m, err := rmap.New(context.Background(), src, dst, -1, world.Rank(0))
			Expect(err).NotTo(HaveOccurred())
			e, err := exchange.New(m, exchange.Int32Type(), hw)
			Expect(err).NotTo(HaveOccurred())
			in := encodeInt32s([]int32{10, 20, 30, 40})
			out := make([]byte, 16)
			Expect(e.Go(context.Background(), in, out)).To(Succeed())
			return decodeInt32s(out)
		}

		Expect(run(exchange.Host)).To(Equal(run(exchange.Device)))
	})

	It("rejects undersized src and dst buffers with ShapeMismatch", func() {
		world := local.NewWorld(1)
		src := idxlist.New([]int64{0, 1, 2, 3})
		dst := idxlist.New([]int64{3, 2, 1, 0})
		m, err := rmap.New(context.Background(), src, dst, -1, world.Rank(0))
		Expect(err).NotTo(HaveOccurred())
		e, err := exchange.New(m, exchange.Int32Type(), exchange.Host)
		Expect(err).NotTo(HaveOccurred())

		fullSrc := encodeInt32s([]int32{10, 20, 30, 40})
		fullDst := make([]byte, 16)

		err = e.Go(context.Background(), fullSrc[:8], fullDst)
		Expect(err).To(HaveOccurred())
		var shapeErr *rerr.ShapeMismatch
		Expect(errors.As(err, &shapeErr)).To(BeTrue())
		Expect(shapeErr.Buffer).To(Equal("src"))

		err = e.Go(context.Background(), fullSrc, fullDst[:8])
		Expect(err).To(HaveOccurred())
		Expect(errors.As(err, &shapeErr)).To(BeTrue())
		Expect(shapeErr.Buffer).To(Equal("dst"))
	})
})
