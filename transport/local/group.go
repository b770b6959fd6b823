package local

import (
	"context"

	"github.com/aistore-labs/ridx/rerr"
	"github.com/aistore-labs/ridx/transport"
)

type localGroup struct {
	world *World
	rank  int
}

func (g *localGroup) Rank() int { return g.rank }
func (g *localGroup) Size() int { return g.world.size }

func (g *localGroup) AllToAll(ctx context.Context, sendCounts []int) ([]int, error) {
	if len(sendCounts) != g.world.size {
		return nil, rerr.NewGroupInconsistent("AllToAll: sendCounts length != group size")
	}
	return transport.AllToAllViaP2P(ctx, g, sendCounts)
}

func (g *localGroup) AllToAllV(ctx context.Context, sendBuf []byte, sendCounts, sendOffs []int,
	recvCounts, recvOffs []int,
) ([]byte, error) {
	if len(sendCounts) != g.world.size {
		return nil, rerr.NewGroupInconsistent("AllToAllV: sendCounts length != group size")
	}
	return transport.AllToAllVViaP2P(ctx, g, sendBuf, sendCounts, sendOffs, recvCounts, recvOffs)
}

func (g *localGroup) ISend(ctx context.Context, peer, tag int, buf []byte) (transport.Request, error) {
	ch := g.world.p2p.chanFor(g.rank, peer, tag)
	cp := append([]byte(nil), buf...)
	done := make(chan error, 1)
	go func() {
		select {
		case ch <- cp:
			done <- nil
		case <-ctx.Done():
			done <- ctx.Err()
		}
	}()
	return &localRequest{done: done}, nil
}

func (g *localGroup) IRecv(ctx context.Context, peer, tag int, buf []byte) (transport.Request, error) {
	ch := g.world.p2p.chanFor(peer, g.rank, tag)
	done := make(chan error, 1)
	go func() {
		select {
		case msg := <-ch:
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
	return &localRequest{done: done}, nil
}

func (g *localGroup) Close() error { return nil }

type localRequest struct {
	done chan error
}

func (r *localRequest) Wait(ctx context.Context) error {
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
