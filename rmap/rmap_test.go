package rmap_test

import (
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aistore-labs/ridx/rerr"
	"github.com/aistore-labs/ridx/rmap"
)

// legSizes returns a peer_rank -> leg_size map for easy comparison.
func legSizes(sched *rmap.ExchangeSchedule) map[int]int {
	out := make(map[int]int, len(sched.Peers))
	for _, p := range sched.Peers {
		out[p.PeerRank] = p.LegSize
	}
	return out
}

func peerRanksAscending(sched *rmap.ExchangeSchedule) []int {
	ranks := make([]int, len(sched.Peers))
	for i, p := range sched.Peers {
		ranks[i] = p.PeerRank
	}
	return ranks
}

var _ = Describe("Map construction", func() {
	Describe("row-to-block decomposition (scenario 1)", func() {
		srcs := [][]int64{
			{0, 1, 4, 5, 8, 9, 12, 13},
			{2, 3, 6, 7, 10, 11, 14, 15},
			nil,
			nil,
		}
		dsts := [][]int64{
			nil,
			nil,
			indicesInRange(0, 8),
			indicesInRange(9, 15),
		}

		It("leaves sender recv schedules empty and peers ascending on both sides", func() {
			maps, errs := negotiateAll(srcs, dsts, -1)
			for _, err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(maps[0].Recv().Peers).To(BeEmpty())
			Expect(maps[1].Recv().Peers).To(BeEmpty())
			Expect(peerRanksAscending(maps[0].Send())).To(Equal(sortedCopy(peerRanksAscending(maps[0].Send()))))
			Expect(peerRanksAscending(maps[1].Send())).To(Equal(sortedCopy(peerRanksAscending(maps[1].Send()))))

			// Every index a sender owns that a receiver wants is
			// accounted for exactly once in that sender's send schedule.
			Expect(maps[0].Send().BufferSize + maps[1].Send().BufferSize).To(Equal(maps[2].Recv().BufferSize + maps[3].Recv().BufferSize))

			Expect(maps[2].Send().Peers).To(BeEmpty())
			Expect(maps[3].Send().Peers).To(BeEmpty())
		})

		It("reproduces the destination's own index order on the receive side", func() {
			maps, errs := negotiateAll(srcs, dsts, -1)
			for _, err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}
			// rank 2's recv buffer_indices, when used to scatter into its
			// dst list, must exactly reproduce dst[2] (0..8 in order).
			recv := maps[2].Recv()
			got := make([]int64, recv.BufferSize)
			for k, slot := range recv.BufferIndices {
				got[k] = dsts[2][slot]
			}
			sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
			Expect(got).To(Equal(dsts[2]))
		})
	})

	Describe("interleaved sources (scenario 2)", func() {
		srcs := [][]int64{
			everyOther(2, 0, 16),
			everyOther(2, 1, 16),
			nil,
			nil,
		}
		dsts := [][]int64{
			nil,
			nil,
			indicesInRange(0, 7),
			indicesInRange(8, 15),
		}

		It("gives every send leg size 4 to both destination peers", func() {
			maps, errs := negotiateAll(srcs, dsts, -1)
			for _, err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(legSizes(maps[0].Send())).To(Equal(map[int]int{2: 4, 3: 4}))
			Expect(legSizes(maps[1].Send())).To(Equal(map[int]int{2: 4, 3: 4}))
			Expect(peerRanksAscending(maps[0].Send())).To(Equal([]int{2, 3}))
		})
	})

	Describe("empty-role ranks (scenario 3)", func() {
		srcs := [][]int64{
			{0, 1, 4, 5, 8, 9, 12, 13},
			{2, 3, 6, 7, 10, 11, 14, 15},
			nil,
			nil,
		}
		dsts := [][]int64{
			nil,
			nil,
			nil,
			nil,
		}

		It("produces a fully empty map when no rank wants anything", func() {
			maps, errs := negotiateAll(srcs, dsts, -1)
			for _, err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}
			for _, m := range maps {
				Expect(m.Send().Peers).To(BeEmpty())
				Expect(m.Recv().Peers).To(BeEmpty())
			}
		})
	})

	Describe("unmatched index (scenario 5)", func() {
		srcs := [][]int64{
			{0, 1, 4, 5, 8, 9, 12, 13}, // never held 7, so nothing to drop
			{2, 3, 6, 10, 11, 14, 15}, // dropped 7 explicitly
			nil,
			nil,
		}
		dsts := [][]int64{
			nil,
			nil,
			indicesInRange(0, 8), // wants 7, which no rank owns
			indicesInRange(9, 15),
		}

		It("returns UnmatchedIndex for 7 on every participating rank", func() {
			_, errs := negotiateAll(srcs, dsts, -1)
			for _, err := range errs {
				Expect(err).To(HaveOccurred())
				var unmatched *rerr.UnmatchedIndex
				Expect(err).To(BeAssignableToTypeOf(unmatched))
				Expect(err.(*rerr.UnmatchedIndex).Index).To(Equal(int64(7)))
			}
		})
	})

	Describe("determinism (P3)", func() {
		It("produces byte-identical schedules across two independent runs", func() {
			srcs := [][]int64{{0, 2, 4, 6}, {1, 3, 5, 7}}
			dsts := [][]int64{{0, 1, 2, 3}, {4, 5, 6, 7}}

			m1, e1 := negotiateAll(srcs, dsts, -1)
			m2, e2 := negotiateAll(srcs, dsts, -1)
			for _, err := range append(e1, e2...) {
				Expect(err).NotTo(HaveOccurred())
			}
			for r := range m1 {
				Expect(m1[r].Send().Peers).To(Equal(m2[r].Send().Peers))
				Expect(m1[r].Send().BufferIndices).To(Equal(m2[r].Send().BufferIndices))
				Expect(m1[r].Send().BufferOffsets).To(Equal(m2[r].Send().BufferOffsets))
				Expect(m1[r].Recv().Peers).To(Equal(m2[r].Recv().Peers))
				Expect(m1[r].Recv().BufferIndices).To(Equal(m2[r].Recv().BufferIndices))
			}
		})
	})

	Describe("symmetry (P2)", func() {
		It("agrees on leg size between every sender and its receiver", func() {
			srcs := [][]int64{{0, 1, 2, 3, 4, 5, 6, 7}, nil, nil}
			dsts := [][]int64{nil, {0, 2, 4, 6}, {1, 3, 5, 7}}
			maps, errs := negotiateAll(srcs, dsts, -1)
			for _, err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(legSizes(maps[0].Send())).To(Equal(map[int]int{1: 4, 2: 4}))
			Expect(legSizes(maps[1].Recv())).To(Equal(map[int]int{0: 4}))
			Expect(legSizes(maps[2].Recv())).To(Equal(map[int]int{0: 4}))
		})
	})
})

func sortedCopy(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	return out
}
