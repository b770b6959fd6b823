// Command rmapctl is a scenario test driver for map construction: it
// builds a transport.Group per rank (an in-process transport/local.World
// by default, or a loopback transport/tcp mesh with -transport=tcp),
// negotiates a Map over one of the built-in fixtures, and dumps the
// resulting schedules as JSON — a way to exercise the negotiation
// algorithm from the command line without writing a Go test.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/aistore-labs/ridx/3rdparty/glog"
	"github.com/aistore-labs/ridx/idxlist"
	"github.com/aistore-labs/ridx/rcfg"
	"github.com/aistore-labs/ridx/rlog"
	"github.com/aistore-labs/ridx/rmap"
	"github.com/aistore-labs/ridx/transport"
	"github.com/aistore-labs/ridx/transport/local"
	"github.com/aistore-labs/ridx/transport/tcp"
)

var (
	scenario      string
	configPath    string
	transportMode string
	tcpBasePort   int
)

func init() {
	flag.StringVar(&scenario, "scenario", "row-to-block",
		"built-in fixture to run: row-to-block | interleaved | empty-roles | unmatched")
	flag.StringVar(&configPath, "config", "", "optional YAML config file (see rcfg.Config)")
	flag.StringVar(&transportMode, "transport", "local",
		"transport.Group implementation to negotiate over: local | tcp")
	flag.IntVar(&tcpBasePort, "tcp-base-port", 18080,
		"first loopback port used when -transport=tcp (rank r binds base+r)")
	glog.InitFlags(flag.CommandLine)
}

type fixture struct {
	srcs, dsts [][]int64
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

func fixtures() map[string]fixture {
	return map[string]fixture{
		"row-to-block": {
			srcs: [][]int64{{0, 1, 4, 5, 8, 9, 12, 13}, {2, 3, 6, 7, 10, 11, 14, 15}, nil, nil},
			dsts: [][]int64{nil, nil, indicesInRange(0, 8), indicesInRange(9, 15)},
		},
		"interleaved": {
			srcs: [][]int64{everyOther(2, 0, 16), everyOther(2, 1, 16), nil, nil},
			dsts: [][]int64{nil, nil, indicesInRange(0, 7), indicesInRange(8, 15)},
		},
		"empty-roles": {
			srcs: [][]int64{{0, 1, 4, 5, 8, 9, 12, 13}, {2, 3, 6, 7, 10, 11, 14, 15}, nil, nil},
			dsts: [][]int64{nil, nil, nil, nil},
		},
		"unmatched": {
			srcs: [][]int64{{0, 1, 4, 5, 8, 9, 12, 13}, {2, 3, 6, 10, 11, 14, 15}, nil, nil},
			dsts: [][]int64{nil, nil, indicesInRange(0, 8), indicesInRange(9, 15)},
		},
	}
}

// buildGroups constructs one transport.Group per rank for the requested
// mode. For "tcp" every rank dials every lower rank and accepts from
// every higher rank on a loopback port, so the whole mesh is built
// concurrently before negotiate starts.
func buildGroups(mode string, size int, cfg *rcfg.Config, basePort int) ([]transport.Group, error) {
	switch mode {
	case "", "local":
		world := local.NewWorld(size)
		groups := make([]transport.Group, size)
		for r := 0; r < size; r++ {
			groups[r] = world.Rank(r)
		}
		return groups, nil
	case "tcp":
		addrs := make([]string, size)
		for r := 0; r < size; r++ {
			addrs[r] = fmt.Sprintf("127.0.0.1:%d", basePort+r)
		}
		groups := make([]transport.Group, size)
		errs := make([]error, size)
		var wg sync.WaitGroup
		for r := 0; r < size; r++ {
			wg.Add(1)
			go func(r int) {
				defer wg.Done()
				g, err := tcp.NewGroup(context.Background(), tcp.Config{
					Rank:        r,
					Addrs:       addrs,
					DialTimeout: cfg.TransportConf.DialTimeout,
				})
				groups[r], errs[r] = g, err
			}(r)
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
		return groups, nil
	default:
		return nil, fmt.Errorf("unknown -transport %q, want local or tcp", mode)
	}
}

func closeGroups(groups []transport.Group) {
	for _, g := range groups {
		if g != nil {
			g.Close()
		}
	}
}

type rankResult struct {
	Rank      int    `json:"rank"`
	SendPeers []leg  `json:"send_peers"`
	RecvPeers []leg  `json:"recv_peers"`
	Error     string `json:"error,omitempty"`
}

type leg struct {
	PeerRank int `json:"peer_rank"`
	LegSize  int `json:"leg_size"`
}

func negotiate(fx fixture, groups []transport.Group, cfg *rcfg.Config) []rankResult {
	size := len(fx.srcs)
	results := make([]rankResult, size)

	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			src := idxlist.New(fx.srcs[r])
			dst := idxlist.New(fx.dsts[r])
			m, err := rmap.New(context.Background(), src, dst, cfg.MapConf.StrideHint, groups[r])
			res := rankResult{Rank: r}
			if err != nil {
				res.Error = err.Error()
				results[r] = res
				return
			}
			for _, p := range m.Send().Peers {
				res.SendPeers = append(res.SendPeers, leg{PeerRank: p.PeerRank, LegSize: p.LegSize})
			}
			for _, p := range m.Recv().Peers {
				res.RecvPeers = append(res.RecvPeers, leg{PeerRank: p.PeerRank, LegSize: p.LegSize})
			}
			results[r] = res
		}(r)
	}
	wg.Wait()
	return results
}

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg := rcfg.Default()
	if configPath != "" {
		loaded, err := rcfg.Load(configPath)
		if err != nil {
			rlog.Errorf("load config %s: %v", configPath, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	fx, ok := fixtures()[scenario]
	if !ok {
		rlog.Errorf("unknown scenario %q", scenario)
		os.Exit(1)
	}

	rmap.SetStrictDuplicateOwner(cfg.MapConf.StrictDuplicateOwner)

	groups, err := buildGroups(transportMode, len(fx.srcs), cfg, tcpBasePort)
	if err != nil {
		rlog.Errorf("build transport groups: %v", err)
		os.Exit(1)
	}
	defer closeGroups(groups)

	results := negotiate(fx, groups, cfg)
	out, err := jsoniter.MarshalIndent(results, "", "  ")
	if err != nil {
		rlog.Errorf("marshal results: %v", err)
		os.Exit(1)
	}
	os.Stdout.Write(out)
	os.Stdout.Write([]byte("\n"))
}
