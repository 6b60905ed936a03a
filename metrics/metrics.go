// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "dataworker"

// Metrics instruments the Dataworker's cycles. All collectors register on
// the injected registerer so tests can isolate them.
type Metrics struct {
	CyclesTotal       *prometheus.CounterVec
	ProposalsTotal    prometheus.Counter
	DisputesTotal     prometheus.Counter
	InvalidFillsTotal prometheus.Counter
	RootBuildSeconds  prometheus.Histogram
}

// New builds and registers the Dataworker metric set.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed cycles by role and result.",
		}, []string{"role", "result"}),
		ProposalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_total",
			Help:      "Root bundle proposals enqueued.",
		}),
		DisputesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disputes_total",
			Help:      "Root bundle disputes enqueued.",
		}),
		InvalidFillsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_fills_total",
			Help:      "In-range fills that matched no deposit.",
		}),
		RootBuildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "root_build_seconds",
			Help:      "Wall time spent building the three roots.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	reg.MustRegister(m.CyclesTotal, m.ProposalsTotal, m.DisputesTotal, m.InvalidFillsTotal, m.RootBuildSeconds)
	return m
}
