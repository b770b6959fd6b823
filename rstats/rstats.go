// Package rstats exposes Prometheus counters and histograms for map
// construction and exchange, trimmed down to the handful of series this
// library actually emits.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package rstats

import "github.com/prometheus/client_golang/prometheus"

// Collector bundles every metric this library records. Construct one
// per process and pass it down to rmap/exchange call sites that want
// instrumentation; nil is a valid Collector (every method becomes a
// no-op), so instrumentation stays entirely optional.
type Collector struct {
	matchedIndices   prometheus.Counter
	unmatchedIndices prometheus.Counter
	duplicateOwners  prometheus.Counter

	mapConstructLatency prometheus.Histogram
	exchangeLatency     prometheus.Histogram
}

// NewCollector creates and registers the library's metrics against reg.
// Pass prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions across runs.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		matchedIndices: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ridx", Subsystem: "map", Name: "matched_indices_total",
			Help: "Global indices successfully matched between a src and dst decomposition.",
		}),
		unmatchedIndices: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ridx", Subsystem: "map", Name: "unmatched_indices_total",
			Help: "Destination indices with no owning rank in src.",
		}),
		duplicateOwners: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ridx", Subsystem: "map", Name: "duplicate_owners_total",
			Help: "Global indices claimed as source by more than one rank.",
		}),
		mapConstructLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ridx", Subsystem: "map", Name: "construct_seconds",
			Help:    "Wall-clock time of one collective Map construction.",
			Buckets: prometheus.DefBuckets,
		}),
		exchangeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ridx", Subsystem: "exchange", Name: "go_seconds",
			Help:    "Wall-clock time of one Exchanger.Go call.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	for _, coll := range []prometheus.Collector{
		c.matchedIndices, c.unmatchedIndices, c.duplicateOwners,
		c.mapConstructLatency, c.exchangeLatency,
	} {
		if err := reg.Register(coll); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) AddMatched(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.matchedIndices.Add(float64(n))
}

func (c *Collector) AddUnmatched(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.unmatchedIndices.Add(float64(n))
}

func (c *Collector) AddDuplicateOwner() {
	if c == nil {
		return
	}
	c.duplicateOwners.Inc()
}

func (c *Collector) ObserveMapConstruct(seconds float64) {
	if c == nil {
		return
	}
	c.mapConstructLatency.Observe(seconds)
}

func (c *Collector) ObserveExchange(seconds float64) {
	if c == nil {
		return
	}
	c.exchangeLatency.Observe(seconds)
}
