package tcp

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/teris-io/shortid"

	"github.com/aistore-labs/ridx/rerr"
	"github.com/aistore-labs/ridx/rlog"
	"github.com/aistore-labs/ridx/transport"
)

// Config describes one rank's view of a static TCP group: every rank
// knows every other rank's dial address up front, the way an MPI
// hostfile or aistore's Smap gives every node the whole membership.
type Config struct {
	Rank        int
	Addrs       []string // Addrs[r] is the listen address of rank r
	DialTimeout time.Duration
}

// Group is the out-of-process transport.Group: one persistent TCP
// connection per peer, established once at construction and reused for
// every subsequent ISend/IRecv and collective call.
type Group struct {
	rank  int
	addrs []string

	ln net.Listener

	mu    sync.Mutex
	conns map[int]*peerConn

	self   *selfLoop
	gen    *shortid.Shortid
}

type selfLoop struct {
	mu    sync.Mutex
	inbox map[int]chan []byte
}

func newSelfLoop() *selfLoop { return &selfLoop{inbox: make(map[int]chan []byte)} }

func (s *selfLoop) mailbox(tag int) chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.inbox[tag]
	if !ok {
		ch = make(chan []byte, 1)
		s.inbox[tag] = ch
	}
	return ch
}

// NewGroup dials every peer of lower rank and accepts connections from
// every peer of higher rank, blocking until the full mesh is up. This is
// the only collective, blocking step outside of rmap/exchange itself.
func NewGroup(ctx context.Context, cfg Config) (*Group, error) {
	if cfg.Rank < 0 || cfg.Rank >= len(cfg.Addrs) {
		return nil, rerr.NewGroupInconsistent("rank out of range for Addrs")
	}
	gen, err := shortid.New(1, shortid.DefaultABC, uint64(time.Now().UnixNano()))
	if err != nil {
		return nil, rerr.NewAllocationFailure("shortid generator", err)
	}
	g := &Group{
		rank:  cfg.Rank,
		addrs: cfg.Addrs,
		conns: make(map[int]*peerConn),
		self:  newSelfLoop(),
		gen:   gen,
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(ctx, "tcp", cfg.Addrs[cfg.Rank])
	if err != nil {
		return nil, rerr.NewTransportFailure("listen", err)
	}
	g.ln = ln

	size := len(cfg.Addrs)
	higher := 0
	for p := cfg.Rank + 1; p < size; p++ {
		higher++
	}
	accepted := make(chan error, higher)
	go g.acceptLoop(higher, accepted)

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	for p := 0; p < cfg.Rank; p++ {
		if err := g.dial(p, dialTimeout); err != nil {
			return nil, err
		}
	}
	for i := 0; i < higher; i++ {
		select {
		case err := <-accepted:
			if err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, rerr.NewTransportFailure("accept", ctx.Err())
		}
	}
	return g, nil
}

func (g *Group) acceptLoop(want int, done chan<- error) {
	for i := 0; i < want; i++ {
		nc, err := g.ln.Accept()
		if err != nil {
			done <- rerr.NewTransportFailure("accept", err)
			continue
		}
		hdr := make([]byte, 4)
		if _, err := io.ReadFull(nc, hdr); err != nil {
			done <- rerr.NewTransportFailure("handshake", err)
			continue
		}
		peerRank := int(binary.BigEndian.Uint32(hdr))
		sessID, err := g.gen.Generate()
		if err != nil {
			sessID = fmt.Sprintf("rank%d-peer%d", g.rank, peerRank)
		}
		rlog.Infof("rank %d: accepted peer %d, session %s", g.rank, peerRank, sessID)
		g.mu.Lock()
		g.conns[peerRank] = newPeerConn(nc, sessID)
		g.mu.Unlock()
		done <- nil
	}
}

func (g *Group) dial(peer int, timeout time.Duration) error {
	nc, err := net.DialTimeout("tcp", g.addrs[peer], timeout)
	if err != nil {
		return rerr.NewTransportFailure(fmt.Sprintf("dial rank %d", peer), err)
	}
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint32(hdr, uint32(g.rank))
	if _, err := nc.Write(hdr); err != nil {
		return rerr.NewTransportFailure("handshake", err)
	}
	sessID, err := g.gen.Generate()
	if err != nil {
		sessID = fmt.Sprintf("rank%d-peer%d", g.rank, peer)
	}
	rlog.Infof("rank %d: dialed peer %d, session %s", g.rank, peer, sessID)
	g.mu.Lock()
	g.conns[peer] = newPeerConn(nc, sessID)
	g.mu.Unlock()
	return nil
}

func (g *Group) Rank() int { return g.rank }
func (g *Group) Size() int { return len(g.addrs) }

func (g *Group) AllToAll(ctx context.Context, sendCounts []int) ([]int, error) {
	return transport.AllToAllViaP2P(ctx, g, sendCounts)
}

func (g *Group) AllToAllV(ctx context.Context, sendBuf []byte, sendCounts, sendOffs []int,
	recvCounts, recvOffs []int,
) ([]byte, error) {
	return transport.AllToAllVViaP2P(ctx, g, sendBuf, sendCounts, sendOffs, recvCounts, recvOffs)
}

func (g *Group) ISend(ctx context.Context, peer, tag int, buf []byte) (transport.Request, error) {
	cp := append([]byte(nil), buf...)
	done := make(chan error, 1)
	if peer == g.rank {
		go func() {
			select {
			case g.self.mailbox(tag) <- cp:
				done <- nil
			case <-ctx.Done():
				done <- ctx.Err()
			}
		}()
		return &request{done: done}, nil
	}
	g.mu.Lock()
	c, ok := g.conns[peer]
	g.mu.Unlock()
	if !ok {
		return nil, rerr.NewGroupInconsistent(fmt.Sprintf("no connection to rank %d", peer))
	}
	go func() { done <- c.send(tag, cp) }()
	return &request{done: done}, nil
}

func (g *Group) IRecv(ctx context.Context, peer, tag int, buf []byte) (transport.Request, error) {
	done := make(chan error, 1)
	var mailbox chan []byte
	if peer == g.rank {
		mailbox = g.self.mailbox(tag)
	} else {
		g.mu.Lock()
		c, ok := g.conns[peer]
		g.mu.Unlock()
		if !ok {
			return nil, rerr.NewGroupInconsistent(fmt.Sprintf("no connection to rank %d", peer))
		}
		mailbox = c.mailbox(tag)
	}
	go func() {
		select {
		case msg := <-mailbox:
			if len(msg) != len(buf) {
				done <- rerr.NewShapeMismatch("recv", len(buf), len(msg))
				return
			}
			copy(buf, msg)
			done <- nil
		case <-ctx.Done():
			done <- ctx.Err()
		}
	}()
	return &request{done: done}, nil
}

func (g *Group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var firstErr error
	for _, c := range g.conns {
		if err := c.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := g.ln.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

type request struct{ done chan error }

func (r *request) Wait(ctx context.Context) error {
	select {
	case err := <-r.done:
		if err != nil {
			return rerr.NewTransportFailure("wait", err)
		}
		return nil
	case <-ctx.Done():
		return rerr.NewTransportFailure("wait", ctx.Err())
	}
}
