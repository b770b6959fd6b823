package rmap_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aistore-labs/ridx/rmap"
)

var _ = Describe("LevelLift", func() {
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

	It("doubles every leg size and replicates the permutation per level", func() {
		maps, errs := negotiateAll(srcs, dsts, -1)
		for _, err := range errs {
			Expect(err).NotTo(HaveOccurred())
		}

		base := maps[0]
		stride := len(srcs[0])

		lifted, err := rmap.Lift(base, 2)
		Expect(err).NotTo(HaveOccurred())
		defer lifted.Close()

		Expect(len(lifted.Send().Peers)).To(Equal(len(base.Send().Peers)))
		for i, leg := range base.Send().Peers {
			Expect(lifted.Send().Peers[i].LegSize).To(Equal(leg.LegSize * 2))
			Expect(lifted.Send().Peers[i].PeerRank).To(Equal(leg.PeerRank))
		}
		Expect(lifted.Send().BufferSize).To(Equal(base.Send().BufferSize * 2))

		baseStart, baseEnd := base.Send().BufferOffsets[0], base.Send().BufferOffsets[1]
		baseSlots := base.Send().BufferIndices[baseStart:baseEnd]
		liftedStart, liftedEnd := lifted.Send().BufferOffsets[0], lifted.Send().BufferOffsets[1]
		liftedSlots := lifted.Send().BufferIndices[liftedStart:liftedEnd]

		Expect(liftedSlots[:len(baseSlots)]).To(Equal(baseSlots))
		for k, slot := range baseSlots {
			Expect(liftedSlots[len(baseSlots)+k]).To(Equal(slot + stride))
		}
	})

	It("rejects nlevels < 1", func() {
		maps, errs := negotiateAll(srcs, dsts, -1)
		for _, err := range errs {
			Expect(err).NotTo(HaveOccurred())
		}
		_, err := rmap.Lift(maps[0], 0)
		Expect(err).To(HaveOccurred())
	})
})
