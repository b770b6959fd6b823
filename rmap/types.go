// Package rmap implements Map: the negotiated redistribution plan between
// a source IndexList and a destination IndexList over a transport group.
// Map construction is the heart of this repository — a three-phase
// all-to-all negotiation (bucket each index to a broker rank, resolve
// ownership and match requesters at the broker, disseminate the result)
// over an arbitrary index universe.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package rmap

import (
	"sync/atomic"

	"github.com/aistore-labs/ridx/transport"
)

// PeerLeg is the exchange with one specific peer in one direction.
type PeerLeg struct {
	PeerRank int
	LegSize  int
}

// ExchangeSchedule is the ordered set of legs for one direction on one
// rank, plus the gather/scatter permutation into the caller's buffer.
// Peers with LegSize == 0 are never materialized — a rank with nothing
// to exchange with a given peer carries no leg for it at all.
type ExchangeSchedule struct {
	Peers         []PeerLeg
	BufferSize    int
	BufferIndices []int
	// BufferOffsets has len(Peers)+1 entries; BufferOffsets[i] is the
	// start of Peers[i]'s segment and BufferOffsets[len(Peers)] equals
	// BufferSize. This is the explicit-terminator rendering of the
	// same information the C idiom leaves implicit.
	BufferOffsets []int
}

// Map is the negotiated plan: read-only after New returns, shareable by
// multiple Exchangers bound to it (an Exchanger only ever borrows a Map,
// never closes it itself). Lift derives an entirely independent Map
// with its own lifetime, so there is no multi-holder case for Close to
// arbitrate here; refs exists only to make a double Close a detectable
// no-op rather than undefined behavior.
type Map struct {
	send  *ExchangeSchedule
	recv  *ExchangeSchedule
	group transport.Group

	// sendStride/recvStride are the local element counts of the src/dst
	// IndexLists this map was negotiated from — retained only so Lift
	// can compute its per-level offset without the caller re-supplying
	// them.
	sendStride, recvStride int

	refs *int32
}

func newMap(send, recv *ExchangeSchedule, group transport.Group, sendStride, recvStride int) *Map {
	refs := int32(1)
	return &Map{send: send, recv: recv, group: group, sendStride: sendStride, recvStride: recvStride, refs: &refs}
}

// Send returns this rank's outgoing schedule.
func (m *Map) Send() *ExchangeSchedule { return m.send }

// Recv returns this rank's incoming schedule.
func (m *Map) Recv() *ExchangeSchedule { return m.recv }

// Group returns the transport group this map is bound to.
func (m *Map) Group() transport.Group { return m.group }

// Close releases the map's schedules. Safe to call more than once; only
// the first call has any effect.
func (m *Map) Close() error {
	if atomic.AddInt32(m.refs, -1) == 0 {
		m.send = nil
		m.recv = nil
	}
	return nil
}
