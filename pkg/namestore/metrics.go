// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package namestore

import (
	"github.com/prometheus/client_golang/prometheus"
	m "github.com/tabcat/zzzync/pkg/metrics"
)

type metrics struct {
	Published         prometheus.Counter
	Republished       prometheus.Counter
	RepublishFailures prometheus.Counter
	CacheHits         prometheus.Counter
}

func newMetrics() metrics {
	subsystem := "namestore"

	return metrics{
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "published_count",
			Help:      "Number of records stored locally.",
		}),
		Republished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "republished_count",
			Help:      "Number of records put to routers.",
		}),
		RepublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "republish_failure_count",
			Help:      "Number of failed router puts.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "cache_hit_count",
			Help:      "Number of records resolved from memory.",
		}),
	}
}

func (s *Store) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(s.metrics)
}
