package rmap_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aistore-labs/ridx/exchange"
	"github.com/aistore-labs/ridx/idxlist"
	"github.com/aistore-labs/ridx/rmap"
	"github.com/aistore-labs/ridx/transport/local"
)

func offsetBy(vals []int64, delta int64) []int64 {
	out := make([]int64, len(vals))
	for i, v := range vals {
		out[i] = v + delta
	}
	return out
}

// Lifting a base map by k levels and exchanging a k-level payload in one
// call must produce the same per-level output as k independent
// exchanges on the base map against the corresponding slices. Checked
// directly against two independent base-map exchanges rather than a
// hand-derived numeric fixture.
var _ = Describe("LevelLift + Exchanger", func() {
	It("matches two independent base-map exchanges, one per level (P4)", func() {
		size := 4
		srcs := [][]int64{everyOther(2, 0, 16), everyOther(2, 1, 16), nil, nil}
		dsts := [][]int64{nil, nil, indicesInRange(0, 7), indicesInRange(8, 15)}
		world := local.NewWorld(size)

		type rankOutcome struct {
			expect0, expect1 []int64
			got0, got1       []int64
			err              error
		}
		outcomes := make([]rankOutcome, size)

		var wg sync.WaitGroup
		for r := 0; r < size; r++ {
			wg.Add(1)
			go func(r int) {
				defer wg.Done()
				ctx := context.Background()
				grp := world.Rank(r)
				sendLen, recvLen := len(srcs[r]), len(dsts[r])

				base, err := rmap.New(ctx, idxlist.New(srcs[r]), idxlist.New(dsts[r]), -1, grp)
				if err != nil {
					outcomes[r] = rankOutcome{err: err}
					return
				}
				exBase, err := exchange.New(base, exchange.Int64Type(), exchange.Host)
				if err != nil {
					outcomes[r] = rankOutcome{err: err}
					return
				}

				level0 := encodeInt64s(srcs[r])
				level1 := encodeInt64s(offsetBy(srcs[r], 1000))

				out0 := make([]byte, recvLen*8)
				if err := exBase.Go(ctx, level0, out0); err != nil {
					outcomes[r] = rankOutcome{err: err}
					return
				}
				out1 := make([]byte, recvLen*8)
				if err := exBase.Go(ctx, level1, out1); err != nil {
					outcomes[r] = rankOutcome{err: err}
					return
				}

				lifted, err := rmap.Lift(base, 2)
				if err != nil {
					outcomes[r] = rankOutcome{err: err}
					return
				}
				exLifted, err := exchange.New(lifted, exchange.Int64Type(), exchange.Host)
				if err != nil {
					outcomes[r] = rankOutcome{err: err}
					return
				}

				combinedSrc := make([]byte, 0, sendLen*16)
				combinedSrc = append(combinedSrc, level0...)
				combinedSrc = append(combinedSrc, level1...)
				combinedDst := make([]byte, recvLen*16)
				if err := exLifted.Go(ctx, combinedSrc, combinedDst); err != nil {
					outcomes[r] = rankOutcome{err: err}
					return
				}

				outcomes[r] = rankOutcome{
					expect0: decodeInt64s(out0),
					expect1: decodeInt64s(out1),
					got0:    decodeInt64s(combinedDst[:recvLen*8]),
					got1:    decodeInt64s(combinedDst[recvLen*8:]),
				}
			}(r)
		}
		wg.Wait()

		for _, o := range outcomes {
			Expect(o.err).NotTo(HaveOccurred())
			Expect(o.got0).To(Equal(o.expect0))
			Expect(o.got1).To(Equal(o.expect1))
		}
	})
})
