package rmap

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/aistore-labs/ridx/idxlist"
	"github.com/aistore-labs/ridx/rerr"
	"github.com/aistore-labs/ridx/rlog"
	"github.com/aistore-labs/ridx/rstats"
	"github.com/aistore-labs/ridx/transport"
)

// statsCollector is package-level and optional, the same registration
// idiom glog uses for its global logger: most callers never touch it
// and every call site degrades to a no-op when it's nil.
var statsCollector *rstats.Collector

// SetStats installs the collector map construction reports matched,
// unmatched, and duplicate-owner counts plus construction latency to.
func SetStats(c *rstats.Collector) { statsCollector = c }

// strictDuplicateOwner mirrors rcfg.MapConf.StrictDuplicateOwner; off by
// default. It is a package-level setter, the same registration idiom as
// SetStats, since New's fixed signature has no room for a config
// parameter.
var strictDuplicateOwner atomic.Bool

// SetStrictDuplicateOwner controls whether a duplicate source claim for
// the same global index is surfaced as a fatal rerr.DuplicateOwner from
// New, instead of only a logged warning.
func SetStrictDuplicateOwner(strict bool) { strictDuplicateOwner.Store(strict) }

// New negotiates a Map between src and dst over group. It is collective:
// every rank in group must call New, passing an empty IndexList for
// whichever role it doesn't participate in.
//
// strideHint is accepted for API compatibility with the reference
// optimization hook described in the caller-facing contract; this
// implementation does not yet act on it, and a negative value (the
// canonical "disabled") behaves identically to any other value, by
// construction.
func New(ctx context.Context, src, dst *idxlist.IndexList, strideHint int, group transport.Group) (*Map, error) {
	_ = strideHint
	started := time.Now()
	defer func() { statsCollector.ObserveMapConstruct(time.Since(started).Seconds()) }()

	r := group.Rank()
	size := group.Size()
	if size < 1 {
		return nil, rerr.NewGroupTooSmall(size, 1)
	}

	ownerRecs, err := exchangeIndexRecords(ctx, group, src.Slice(), int32(r))
	if err != nil {
		return nil, rerr.Wrap(err, "phase 1: source records")
	}
	wanterRecs, err := exchangeIndexRecords(ctx, group, dst.Slice(), int32(r))
	if err != nil {
		return nil, rerr.Wrap(err, "phase 1: destination records")
	}

	owners, unmatched, dupes := matchAtBroker(ownerRecs, wanterRecs)
	statsCollector.AddMatched(len(owners))
	statsCollector.AddUnmatched(len(unmatched))
	for range dupes {
		statsCollector.AddDuplicateOwner()
	}

	if err := reconcileDiagnostics(ctx, group, unmatched, dupes); err != nil {
		return nil, err
	}

	sendTuples, recvTuples, err := disseminate(ctx, group, owners)
	if err != nil {
		return nil, rerr.Wrap(err, "phase 3: dissemination")
	}

	send := buildSchedule(sendTuples, func(t matchTuple) (peer, dstSlot, owner, srcSlot int) {
		return int(t.Wanter), int(t.DstSlot), int(t.Owner), int(t.SrcSlot)
	}, func(t matchTuple) int { return int(t.SrcSlot) })

	recv := buildSchedule(recvTuples, func(t matchTuple) (peer, dstSlot, owner, srcSlot int) {
		return int(t.Owner), int(t.DstSlot), int(t.Owner), int(t.SrcSlot)
	}, func(t matchTuple) int { return int(t.DstSlot) })

	return newMap(send, recv, group, src.Len(), dst.Len()), nil
}

// exchangeIndexRecords runs the Phase 1 bucketing round for one role
// (source or destination): every index is routed to broker
// bucket(index), carrying this rank's local slot for it.
func exchangeIndexRecords(ctx context.Context, group transport.Group, indices []int64, rank int32) ([]indexRecord, error) {
	size := group.Size()

	byBucket := make([][]indexRecord, size)
	for slot, idx := range indices {
		b := bucket(idx, size)
		byBucket[b] = append(byBucket[b], indexRecord{Index: idx, Rank: rank, Slot: int32(slot)})
	}

	sendCounts := make([]int, size)
	for p, recs := range byBucket {
		sendCounts[p] = len(recs) * indexRecordSize
	}
	sendOffs := transport.Offsets(sendCounts)
	sendBuf := make([]byte, sendOffs[size])
	for p, recs := range byBucket {
		copy(sendBuf[sendOffs[p]:], encodeIndexRecords(recs))
	}

	recvCounts, err := group.AllToAll(ctx, sendCounts)
	if err != nil {
		return nil, err
	}
	recvOffs := transport.Offsets(recvCounts)
	recvBuf, err := group.AllToAllV(ctx, sendBuf, sendCounts, sendOffs[:size], recvCounts, recvOffs)
	if err != nil {
		return nil, err
	}
	return decodeIndexRecords(recvBuf), nil
}

// matchAtBroker is the local Phase 2 step: for every index this rank
// brokers, resolve the winning owner (lowest rank wins duplicates) and
// pair it against every destination record requesting that index.
func matchAtBroker(ownerRecs, wanterRecs []indexRecord) (owners []matchTuple, unmatched, dupes []diagRecord) {
	type ownerSlot struct {
		owner, slot int32
	}
	byIndex := make(map[int64]ownerSlot, len(ownerRecs))

	// Process in a fixed order (ascending owner rank, then slot) so the
	// dedup result — and the diagnostics it emits — are a deterministic
	// function of the record set, independent of network arrival order.
	sorted := append([]indexRecord(nil), ownerRecs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Index != sorted[j].Index {
			return sorted[i].Index < sorted[j].Index
		}
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank < sorted[j].Rank
		}
		return sorted[i].Slot < sorted[j].Slot
	})
	for _, rec := range sorted {
		cur, ok := byIndex[rec.Index]
		if !ok {
			byIndex[rec.Index] = ownerSlot{owner: rec.Rank, slot: rec.Slot}
			continue
		}
		if rec.Rank < cur.owner {
			dupes = append(dupes, diagRecord{Kind: diagDuplicateOwnerFatal, Index: rec.Index, A: rec.Rank, B: cur.owner})
			byIndex[rec.Index] = ownerSlot{owner: rec.Rank, slot: rec.Slot}
		} else if rec.Rank > cur.owner {
			dupes = append(dupes, diagRecord{Kind: diagDuplicateOwnerFatal, Index: rec.Index, A: cur.owner, B: rec.Rank})
		}
	}

	for _, rec := range wanterRecs {
		owned, ok := byIndex[rec.Index]
		if !ok {
			unmatched = append(unmatched, diagRecord{Kind: diagUnmatched, Index: rec.Index, A: rec.Rank})
			continue
		}
		owners = append(owners, matchTuple{Owner: owned.owner, SrcSlot: owned.slot, Wanter: rec.Rank, DstSlot: rec.Slot})
	}
	return owners, unmatched, dupes
}

// reconcileDiagnostics runs one all-gather round so every rank learns
// about every broker's unmatched/duplicate findings, then returns a
// uniform decision on every rank: either every rank proceeds to Phase 3
// or every rank returns the same class of error, surfaced identically
// at every rank that participated.
func reconcileDiagnostics(ctx context.Context, group transport.Group, unmatched, dupes []diagRecord) error {
	mine := append(append([]diagRecord(nil), unmatched...), dupes...)
	payload := encodeDiagRecords(mine)

	gathered, err := transport.AllGather(ctx, group, payload)
	if err != nil {
		return rerr.Wrap(err, "diagnostics all-gather")
	}

	var firstUnmatched, firstDuplicate *diagRecord
	for _, buf := range gathered {
		for _, rec := range decodeDiagRecords(buf) {
			switch rec.Kind {
			case diagUnmatched:
				if firstUnmatched == nil {
					r := rec
					firstUnmatched = &r
				}
			case diagDuplicateOwnerFatal:
				// Non-strict default: logged as a warning, map
				// construction proceeds with the lower rank as owner.
				// SetStrictDuplicateOwner promotes this class to fatal,
				// below.
				rlog.Warningf("rmap: index %d claimed as source by ranks %d and %d, rank %d wins",
					rec.Index, rec.A, rec.B, rec.A)
				if firstDuplicate == nil {
					r := rec
					firstDuplicate = &r
				}
			}
		}
	}

	if firstUnmatched != nil {
		return rerr.NewUnmatchedIndex(firstUnmatched.Index, int(firstUnmatched.A))
	}
	if strictDuplicateOwner.Load() && firstDuplicate != nil {
		return rerr.NewDuplicateOwner(firstDuplicate.Index, int(firstDuplicate.A), int(firstDuplicate.B), true)
	}
	return nil
}

// disseminate is Phase 3: every match tuple this rank brokered is sent
// once to its owner and once to its wanter (collapsing to a single send
// when they're the same rank — a self-leg).
func disseminate(ctx context.Context, group transport.Group, owners []matchTuple) (sendTuples, recvTuples []matchTuple, err error) {
	size := group.Size()
	byDest := make([][]matchTuple, size)
	for _, t := range owners {
		byDest[t.Owner] = append(byDest[t.Owner], t)
		if t.Wanter != t.Owner {
			byDest[t.Wanter] = append(byDest[t.Wanter], t)
		}
	}

	sendCounts := make([]int, size)
	for p, ts := range byDest {
		sendCounts[p] = len(ts) * matchTupleSize
	}
	sendOffs := transport.Offsets(sendCounts)
	sendBuf := make([]byte, sendOffs[size])
	for p, ts := range byDest {
		copy(sendBuf[sendOffs[p]:], encodeMatchTuples(ts))
	}

	recvCounts, err := group.AllToAll(ctx, sendCounts)
	if err != nil {
		return nil, nil, err
	}
	recvOffs := transport.Offsets(recvCounts)
	recvBuf, err := group.AllToAllV(ctx, sendBuf, sendCounts, sendOffs[:size], recvCounts, recvOffs)
	if err != nil {
		return nil, nil, err
	}

	r := int32(group.Rank())
	for _, t := range decodeMatchTuples(recvBuf) {
		if t.Owner == r {
			sendTuples = append(sendTuples, t)
		}
		if t.Wanter == r {
			recvTuples = append(recvTuples, t)
		}
	}
	return sendTuples, recvTuples, nil
}

// buildSchedule groups tuples by peer (as selected by keyOf), sorts each
// group by dst_slot ascending with the owner/src_slot tie-break, and
// assembles the resulting ExchangeSchedule. slotOf picks which slot
// (src_slot for the send side, dst_slot for the recv side) feeds
// BufferIndices.
func buildSchedule(tuples []matchTuple, keyOf func(matchTuple) (peer, dstSlot, owner, srcSlot int), slotOf func(matchTuple) int) *ExchangeSchedule {
	byPeer := make(map[int][]matchTuple)
	for _, t := range tuples {
		peer, _, _, _ := keyOf(t)
		byPeer[peer] = append(byPeer[peer], t)
	}

	peers := make([]int, 0, len(byPeer))
	for p := range byPeer {
		peers = append(peers, p)
	}
	sort.Ints(peers)

	sched := &ExchangeSchedule{}
	offset := 0
	for _, p := range peers {
		group := byPeer[p]
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			_, dsI, ownI, srcI := keyOf(group[i])
			_, dsJ, ownJ, srcJ := keyOf(group[j])
			if dsI != dsJ {
				return dsI < dsJ
			}
			if ownI != ownJ {
				return ownI < ownJ
			}
			return srcI < srcJ
		})
		sched.Peers = append(sched.Peers, PeerLeg{PeerRank: p, LegSize: len(group)})
		sched.BufferOffsets = append(sched.BufferOffsets, offset)
		for _, t := range group {
			sched.BufferIndices = append(sched.BufferIndices, slotOf(t))
		}
		offset += len(group)
	}
	sched.BufferOffsets = append(sched.BufferOffsets, offset)
	sched.BufferSize = offset
	return sched
}
