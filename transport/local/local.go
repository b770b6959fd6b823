// Package local is an in-process Group: every rank is a goroutine inside
// the same process, and point-to-point traffic moves over shared-memory
// channels rather than a socket. It is the default transport used by
// the test suites.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package local

import (
	"github.com/aistore-labs/ridx/transport"
)

// World is the shared rendezvous point for one group of local ranks. All
// World.Rank(r) groups must be constructed before any of them is used,
// and every rank must issue the same sequence of collective calls
// (AllToAll/AllToAllV) in the same order.
type World struct {
	size int
	p2p  *peerMesh
}

// NewWorld creates a World of the given size. Call World.Rank(r) once for
// every r in [0, size) to obtain that rank's Group.
func NewWorld(size int) *World {
	if size <= 0 {
		size = 1
	}
	return &World{size: size, p2p: newPeerMesh(size)}
}

// Rank returns the Group view of this World for rank r.
func (w *World) Rank(r int) transport.Group {
	return &localGroup{world: w, rank: r}
}
