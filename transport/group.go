// Package transport defines the group-communication contract that rmap
// and exchange are built on: a reliable, in-order, typed point-to-point
// layer over a named communicator, plus the two collective primitives map
// construction needs (an all-to-all of counts, and a vector all-to-all of
// payloads). Concrete Groups live in the local and tcp subpackages.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"context"
	"encoding/binary"

	"golang.org/x/sync/errgroup"
)

// Reserved tags for the two collective primitives, carved out of a
// negative namespace so callers (rmap, exchange) are free to use any
// non-negative tag for their own point-to-point legs without collision.
const (
	tagCollectiveCounts = -1
	tagCollectiveData   = -2
)

// Request is a handle to a posted, non-blocking send or receive.
type Request interface {
	// Wait blocks until the operation completes or ctx is done.
	Wait(ctx context.Context) error
}

// Group is the transport contract required from the environment. Every
// method is collective unless documented otherwise; ISend/IRecv are
// per-peer point-to-point and only block inside Wait.
type Group interface {
	// Rank returns this process's identity within the group.
	Rank() int
	// Size returns the number of ranks in the group.
	Size() int

	// AllToAll exchanges one small integer per peer: sendCounts[p] goes
	// to peer p, and the returned recvCounts[p] is what peer p sent this
	// rank. len(sendCounts) must equal Size().
	AllToAll(ctx context.Context, sendCounts []int) (recvCounts []int, err error)

	// AllToAllV exchanges variable-length byte payloads: the bytes at
	// sendBuf[sendOffs[p] : sendOffs[p]+sendCounts[p]] go to peer p. The
	// returned recvBuf is the concatenation of what every peer sent,
	// with recvOffs[p]/recvCounts[p] describing peer p's segment.
	AllToAllV(ctx context.Context, sendBuf []byte, sendCounts, sendOffs []int,
		recvCounts, recvOffs []int) (recvBuf []byte, err error)

	// ISend posts a non-blocking send of buf to peer, tagged tag.
	ISend(ctx context.Context, peer, tag int, buf []byte) (Request, error)
	// IRecv posts a non-blocking receive of len(buf) bytes from peer,
	// tagged tag, filling buf in place.
	IRecv(ctx context.Context, peer, tag int, buf []byte) (Request, error)

	// Close releases any resources the group holds. Safe to call once
	// all ranks have stopped using the group.
	Close() error
}

// AllToAllViaP2P implements Group.AllToAll in terms of ISend/IRecv alone,
// so that concrete Groups only need to supply the point-to-point half of
// the contract. Every rank posts one send and one receive per peer
// (including itself) and waits for all of them concurrently via errgroup.
func AllToAllViaP2P(ctx context.Context, g Group, sendCounts []int) ([]int, error) {
	size := g.Size()
	recvCounts := make([]int, size)
	eg, ctx := errgroup.WithContext(ctx)
	for p := 0; p < size; p++ {
		p := p
		eg.Go(func() error {
			out := make([]byte, 8)
			binary.LittleEndian.PutUint64(out, uint64(sendCounts[p]))
			req, err := g.ISend(ctx, p, tagCollectiveCounts, out)
			if err != nil {
				return err
			}
			return req.Wait(ctx)
		})
		eg.Go(func() error {
			in := make([]byte, 8)
			req, err := g.IRecv(ctx, p, tagCollectiveCounts, in)
			if err != nil {
				return err
			}
			if err := req.Wait(ctx); err != nil {
				return err
			}
			recvCounts[p] = int(binary.LittleEndian.Uint64(in))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return recvCounts, nil
}

// AllToAllVViaP2P implements Group.AllToAllV in terms of ISend/IRecv
// alone. The caller already knows recvCounts/recvOffs (typically from a
// prior AllToAllViaP2P of counts), so no negotiation round is needed here.
func AllToAllVViaP2P(ctx context.Context, g Group, sendBuf []byte, sendCounts, sendOffs []int,
	recvCounts, recvOffs []int,
) ([]byte, error) {
	size := g.Size()
	total := 0
	for _, c := range recvCounts {
		total += c
	}
	recvBuf := make([]byte, total)
	eg, ctx := errgroup.WithContext(ctx)
	for p := 0; p < size; p++ {
		p := p
		if sendCounts[p] > 0 {
			seg := sendBuf[sendOffs[p] : sendOffs[p]+sendCounts[p]]
			eg.Go(func() error {
				req, err := g.ISend(ctx, p, tagCollectiveData, seg)
				if err != nil {
					return err
				}
				return req.Wait(ctx)
			})
		}
		if recvCounts[p] > 0 {
			seg := recvBuf[recvOffs[p] : recvOffs[p]+recvCounts[p]]
			eg.Go(func() error {
				req, err := g.IRecv(ctx, p, tagCollectiveData, seg)
				if err != nil {
					return err
				}
				return req.Wait(ctx)
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return recvBuf, nil
}

// AllGather sends the same payload to every peer (including itself)
// and returns what every peer sent back, indexed by rank. It is built
// out of the same two collective primitives as AllToAllV — an AllToAll
// of lengths, then an AllToAllV where every per-destination segment of
// the send buffer happens to hold an identical copy of payload — so it
// needs no extra transport support beyond what Group already exposes.
func AllGather(ctx context.Context, g Group, payload []byte) ([][]byte, error) {
	size := g.Size()
	sendCounts := make([]int, size)
	sendOffs := make([]int, size+1)
	for p := range sendCounts {
		sendCounts[p] = len(payload)
		sendOffs[p+1] = sendOffs[p] + len(payload)
	}
	sendBuf := make([]byte, 0, len(payload)*size)
	for p := 0; p < size; p++ {
		sendBuf = append(sendBuf, payload...)
	}
	recvCounts, err := g.AllToAll(ctx, sendCounts)
	if err != nil {
		return nil, err
	}
	recvOffs := Offsets(recvCounts)
	recvBuf, err := g.AllToAllV(ctx, sendBuf, sendCounts, sendOffs[:size], recvCounts, recvOffs)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, size)
	for p := 0; p < size; p++ {
		out[p] = recvBuf[recvOffs[p]:recvOffs[p+1]]
	}
	return out, nil
}

// Offsets computes the cumulative prefix-sum offsets for a slice of
// per-peer counts, the shape every AllToAllV caller needs for both the
// send and receive side. len(result) == len(counts)+1, with the last
// element equal to the total.
func Offsets(counts []int) []int {
	offs := make([]int, len(counts)+1)
	for i, c := range counts {
		offs[i+1] = offs[i] + c
	}
	return offs
}
