// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tabcat/zzzync/pkg/fetch/pb"
	m "github.com/tabcat/zzzync/pkg/metrics"
)

type metrics struct {
	// all metrics fields must be exported
	// to be able to return them by Metrics()
	// using reflection
	RequestsSent     prometheus.Counter
	RequestsReceived prometheus.Counter
	SharedRequests   prometheus.Counter
	ResponsesSent    *prometheus.CounterVec
}

func newMetrics() metrics {
	subsystem := "fetch"

	return metrics{
		RequestsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "request_sent_count",
			Help:      "Number of fetch requests sent.",
		}),
		RequestsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "request_received_count",
			Help:      "Number of fetch requests received.",
		}),
		SharedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "request_shared_count",
			Help:      "Number of fetch calls answered by an in-flight request.",
		}),
		ResponsesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "response_sent_count",
			Help:      "Number of fetch responses sent by status.",
		}, []string{"status"}),
	}
}

func (m metrics) responses(s pb.FetchResponse_StatusCode) prometheus.Counter {
	return m.ResponsesSent.WithLabelValues(s.String())
}

func (s *Service) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(s.metrics)
}
