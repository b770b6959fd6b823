package local

import "sync"

// peerMesh is the point-to-point half of a World: one buffered channel
// per (src, dst, tag) triple, created lazily. It gives ISend/IRecv the
// same addressed, typed delivery a Group provides over a real socket,
// without needing one inside a single process.
type peerMesh struct {
	size int

	mu    sync.Mutex
	chans map[meshKey]chan []byte
}

type meshKey struct {
	src, dst, tag int
}

func newPeerMesh(size int) *peerMesh {
	return &peerMesh{size: size, chans: make(map[meshKey]chan []byte)}
}

func (m *peerMesh) chanFor(src, dst, tag int) chan []byte {
	k := meshKey{src, dst, tag}
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.chans[k]
	if !ok {
		ch = make(chan []byte, 1)
		m.chans[k] = ch
	}
	return ch
}
