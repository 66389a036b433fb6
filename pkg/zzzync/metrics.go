// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zzzync

import (
	"github.com/prometheus/client_golang/prometheus"
	m "github.com/tabcat/zzzync/pkg/metrics"
)

type metrics struct {
	// all metrics fields must be exported
	// to be able to return them by Metrics()
	// using reflection
	HandledCount      prometheus.Counter
	AbortedCount      *prometheus.CounterVec
	OutcomeCount      *prometheus.CounterVec
	ImportedBlocks    prometheus.Counter
	ImportedBytes     prometheus.Counter
	RepublishFailures prometheus.Counter
	AdvertiseFailures prometheus.Counter
	PushCount         prometheus.Counter
	PushFailedCount   prometheus.Counter
}

func newMetrics() metrics {
	subsystem := "zzzync"

	return metrics{
		HandledCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "handled_count",
			Help:      "Number of push streams handled.",
		}),
		AbortedCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "aborted_count",
			Help:      "Number of aborted push streams by state.",
		}, []string{"state"}),
		OutcomeCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "reconcile_outcome_count",
			Help:      "Number of reconciled records by outcome.",
		}, []string{"outcome"}),
		ImportedBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "imported_block_count",
			Help:      "Number of blocks imported from pushes.",
		}),
		ImportedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "imported_bytes",
			Help:      "Block data imported from pushes.",
		}),
		RepublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "republish_failure_count",
			Help:      "Number of accepted records not propagated to every router.",
		}),
		AdvertiseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "advertise_failure_count",
			Help:      "Number of accepted names not advertised.",
		}),
		PushCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "push_count",
			Help:      "Number of pushes started.",
		}),
		PushFailedCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "push_failed_count",
			Help:      "Number of failed pushes.",
		}),
	}
}

func (s *Service) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(s.metrics)
}
