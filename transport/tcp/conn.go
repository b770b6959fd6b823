package tcp

import (
	"net"
	"sync"

	"github.com/aistore-labs/ridx/rlog"
)

// peerConn multiplexes many (tag, payload) exchanges over one persistent
// TCP connection to a single peer: a single reader goroutine
// demultiplexes inbound frames by tag into per-tag mailboxes so IRecv
// can post before or after the matching frame arrives.
type peerConn struct {
	nc       net.Conn
	sessID   string
	writeMu  sync.Mutex
	mu       sync.Mutex
	inbox    map[int]chan []byte
	closeErr chan error // closed once; carries the terminal read error, if any
}

func newPeerConn(nc net.Conn, sessID string) *peerConn {
	c := &peerConn{
		nc:       nc,
		sessID:   sessID,
		inbox:    make(map[int]chan []byte),
		closeErr: make(chan error, 1),
	}
	go c.readLoop()
	return c
}

func (c *peerConn) mailbox(tag int) chan []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.inbox[tag]
	if !ok {
		ch = make(chan []byte, 1)
		c.inbox[tag] = ch
	}
	return ch
}

func (c *peerConn) readLoop() {
	for {
		tag, payload, err := readFrame(c.nc)
		if err != nil {
			rlog.Warningf("session %s: read loop stopped: %v", c.sessID, err)
			c.closeErr <- err
			close(c.closeErr)
			return
		}
		c.mailbox(tag) <- payload
	}
}

func (c *peerConn) send(tag int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(c.nc, tag, payload)
}

func (c *peerConn) close() error { return c.nc.Close() }
