package rmap

import "github.com/aistore-labs/ridx/rerr"

// Lift derives a Map over base x {0..nlevels-1} without any transport
// traffic: it is a pure, local expansion of each leg's permutation. The
// per-level stride is whatever the local element count of the
// corresponding IndexList was when base was negotiated; Map retains
// that count so callers don't have to re-supply it. The result holds
// no reference to base — its lifetime is independent of it — so base
// can be Closed by its own holder at any time without affecting the
// lifted map.
func Lift(base *Map, nlevels int) (*Map, error) {
	if nlevels < 1 {
		return nil, rerr.NewInvalidArgument("LevelLift requires nlevels >= 1")
	}
	send := liftSchedule(base.Send(), nlevels, base.sendStride)
	recv := liftSchedule(base.Recv(), nlevels, base.recvStride)
	return newMap(send, recv, base.group, base.sendStride*nlevels, base.recvStride*nlevels), nil
}

// liftSchedule expands every leg's slot list: for each original slot s,
// the lifted leg contains s + L*stride for L = 0..nlevels-1, keeping the
// relative ordering of the original permutation within each level.
func liftSchedule(base *ExchangeSchedule, nlevels, stride int) *ExchangeSchedule {
	sched := &ExchangeSchedule{
		Peers:         make([]PeerLeg, len(base.Peers)),
		BufferOffsets: make([]int, len(base.Peers)+1),
	}
	offset := 0
	for i, leg := range base.Peers {
		lifted := leg.LegSize * nlevels
		sched.Peers[i] = PeerLeg{PeerRank: leg.PeerRank, LegSize: lifted}
		sched.BufferOffsets[i] = offset

		start := base.BufferOffsets[i]
		end := base.BufferOffsets[i+1]
		for level := 0; level < nlevels; level++ {
			for _, slot := range base.BufferIndices[start:end] {
				sched.BufferIndices = append(sched.BufferIndices, slot+level*stride)
			}
		}
		offset += lifted
	}
	sched.BufferOffsets[len(base.Peers)] = offset
	sched.BufferSize = offset
	return sched
}
