package exchange

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aistore-labs/ridx/rerr"
	"github.com/aistore-labs/ridx/rmap"
	"github.com/aistore-labs/ridx/rstats"
	"github.com/aistore-labs/ridx/transport"
)

// statsCollector is optional, installed once via SetStats; see rmap's
// identical registration idiom.
var statsCollector *rstats.Collector

// SetStats installs the collector Exchanger.Go reports its wall-clock
// latency to.
func SetStats(c *rstats.Collector) { statsCollector = c }

type state int32

const (
	stateIdle state = iota
	statePosting
	stateWaiting
	stateUnpacking
)

// exchangerTags hands out a private positive tag to every Exchanger so
// that several Exchangers sharing one Map (and therefore one transport
// group) never have their Go calls' point-to-point traffic cross-wired,
// even when those calls are posted concurrently from different
// Exchangers. Tags are counted per transport group, so Exchangers
// created in the same order on every rank of a group get matching tags.
// Tags start well clear of transport's reserved negative collective tags.
var (
	exchangerTagsMu sync.Mutex
	exchangerTags   = make(map[transport.Group]int)
)

func nextExchangerTag(g transport.Group) int {
	exchangerTagsMu.Lock()
	defer exchangerTagsMu.Unlock()
	exchangerTags[g]++
	return exchangerTags[g]
}

// Exchanger is the typed executor bound to one Map and one element
// type. It is not safe for concurrent Go calls on the same instance;
// the state field enforces that with a hard fault rather than silent
// corruption.
type Exchanger struct {
	m    *rmap.Map
	elem ElementType
	hw   HWHint
	tag  int

	stager stager

	sendStaging []byte
	recvStaging []byte

	maxSendSlot int
	maxRecvSlot int

	state atomic.Int32
}

// New allocates staging buffers sized send.BufferSize*elem.Size and
// recv.BufferSize*elem.Size and binds them to m's schedule.
func New(m *rmap.Map, elem ElementType, hw HWHint) (*Exchanger, error) {
	if err := elem.validate(); err != nil {
		return nil, err
	}
	st := stagerFor(hw)

	e := &Exchanger{
		m:      m,
		elem:   elem,
		hw:     hw,
		tag:    nextExchangerTag(m.Group()),
		stager: st,
	}
	send, recv := m.Send(), m.Recv()
	e.sendStaging = st.alloc(send.BufferSize * elem.Size)
	e.recvStaging = st.alloc(recv.BufferSize * elem.Size)
	e.maxSendSlot = maxSlot(send.BufferIndices)
	e.maxRecvSlot = maxSlot(recv.BufferIndices)
	return e, nil
}

func maxSlot(indices []int) int {
	max := -1
	for _, i := range indices {
		if i > max {
			max = i
		}
	}
	return max
}

// Go executes one exchange: pack, post, wait, unpack. src and dst may
// alias the same underlying array — pack takes a full snapshot into the
// send staging buffer before any byte of dst is touched, so aliasing is
// safe by construction.
func (e *Exchanger) Go(ctx context.Context, src, dst []byte) error {
	if !e.state.CompareAndSwap(int32(stateIdle), int32(statePosting)) {
		return rerr.NewGroupInconsistent("exchanger.Go is not re-entrant")
	}
	started := time.Now()
	defer func() {
		e.state.Store(int32(stateIdle))
		statsCollector.ObserveExchange(time.Since(started).Seconds())
	}()

	if err := e.checkShape(src, dst); err != nil {
		return err
	}

	send, recv := e.m.Send(), e.m.Recv()
	e.stager.pack(e.sendStaging, src, send.BufferIndices, e.elem.Size)

	if err := e.postAndWait(ctx, send, recv); err != nil {
		return err
	}

	e.state.Store(int32(stateUnpacking))
	e.stager.unpack(dst, e.recvStaging, recv.BufferIndices, e.elem.Size)
	return nil
}

func (e *Exchanger) checkShape(src, dst []byte) error {
	needSrc := (e.maxSendSlot + 1) * e.elem.Size
	if len(src) < needSrc {
		return rerr.NewShapeMismatch("src", needSrc, len(src))
	}
	needDst := (e.maxRecvSlot + 1) * e.elem.Size
	if len(dst) < needDst {
		return rerr.NewShapeMismatch("dst", needDst, len(dst))
	}
	return nil
}

func (e *Exchanger) postAndWait(ctx context.Context, send, recv *rmap.ExchangeSchedule) error {
	group := e.m.Group()
	eg, ctx := errgroup.WithContext(ctx)

	for i, leg := range send.Peers {
		i := i
		leg := leg
		eg.Go(func() error {
			start := send.BufferOffsets[i] * e.elem.Size
			end := send.BufferOffsets[i+1] * e.elem.Size
			req, err := group.ISend(ctx, leg.PeerRank, e.tag, e.sendStaging[start:end])
			if err != nil {
				return rerr.Wrap(err, "post send leg")
			}
			e.state.Store(int32(stateWaiting))
			return req.Wait(ctx)
		})
	}
	for i, leg := range recv.Peers {
		i := i
		leg := leg
		eg.Go(func() error {
			start := recv.BufferOffsets[i] * e.elem.Size
			end := recv.BufferOffsets[i+1] * e.elem.Size
			req, err := group.IRecv(ctx, leg.PeerRank, e.tag, e.recvStaging[start:end])
			if err != nil {
				return rerr.Wrap(err, "post recv leg")
			}
			e.state.Store(int32(stateWaiting))
			return req.Wait(ctx)
		})
	}
	if err := eg.Wait(); err != nil {
		return rerr.NewTransportFailure("exchange", err)
	}
	return nil
}

// Close releases the Exchanger's own staging buffers. The Map is
// borrowed, not owned; callers remain responsible for closing the Map
// themselves once every Exchanger bound to it has been closed.
func (e *Exchanger) Close() error {
	e.sendStaging = nil
	e.recvStaging = nil
	return nil
}
