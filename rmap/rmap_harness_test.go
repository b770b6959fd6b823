package rmap_test

import (
	"context"
	"sync"

	"github.com/aistore-labs/ridx/idxlist"
	"github.com/aistore-labs/ridx/rmap"
	"github.com/aistore-labs/ridx/transport/local"
)

// negotiateAll runs rmap.New concurrently on every rank of a fresh
// in-process World, the way every real caller of a collective
// constructor must: one goroutine per rank, all calling New at once.
func negotiateAll(srcs, dsts [][]int64, strideHint int) ([]*rmap.Map, []error) {
	size := len(srcs)
	world := local.NewWorld(size)
	maps := make([]*rmap.Map, size)
	errs := make([]error, size)

	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			src := idxlist.New(srcs[r])
			dst := idxlist.New(dsts[r])
			m, err := rmap.New(context.Background(), src, dst, strideHint, world.Rank(r))
			maps[r] = m
			errs[r] = err
		}(r)
	}
	wg.Wait()
	return maps, errs
}

func indicesInRange(lo, hi int64) []int64 {
	out := make([]int64, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

func everyOther(mod, rem int64, n int) []int64 {
	out := make([]int64, 0, n/2)
	for i := int64(0); i < int64(n); i++ {
		if i%mod == rem {
			out = append(out, i)
		}
	}
	return out
}
