package local_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aistore-labs/ridx/transport/local"
)

var _ = Describe("World", func() {
	It("round-trips an AllToAll of counts", func() {
		const n = 4
		w := local.NewWorld(n)
		results := make([][]int, n)
		var wg sync.WaitGroup
		for r := 0; r < n; r++ {
			wg.Add(1)
			go func(r int) {
				defer wg.Done()
				g := w.Rank(r)
				send := make([]int, n)
				for p := range send {
					send[p] = r*10 + p
				}
				recv, err := g.AllToAll(context.Background(), send)
				Expect(err).NotTo(HaveOccurred())
				results[r] = recv
			}(r)
		}
		wg.Wait()
		for r := 0; r < n; r++ {
			for p := 0; p < n; p++ {
				Expect(results[r][p]).To(Equal(p*10 + r))
			}
		}
	})

	It("delivers point-to-point sends to the matching receiver", func() {
		w := local.NewWorld(2)
		var wg sync.WaitGroup
		wg.Add(2)
		var got []byte
		go func() {
			defer wg.Done()
			g := w.Rank(0)
			req, err := g.ISend(context.Background(), 1, 7, []byte("hello"))
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Wait(context.Background())).To(Succeed())
		}()
		go func() {
			defer wg.Done()
			g := w.Rank(1)
			buf := make([]byte, 5)
			req, err := g.IRecv(context.Background(), 0, 7, buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Wait(context.Background())).To(Succeed())
			got = buf
		}()
		wg.Wait()
		Expect(string(got)).To(Equal("hello"))
	})
})
