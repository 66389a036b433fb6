// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tabcat/zzzync"
	"github.com/tabcat/zzzync/pkg/metrics"
)

func newMetricsRegistry() *prometheus.Registry {
	return metrics.NewRegistry(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   metrics.Namespace,
		Name:        "info",
		Help:        "Version of the running daemon.",
		ConstLabels: prometheus.Labels{"version": zzzync.Version},
	}, func() float64 { return 1 }))
}

// MustRegisterMetrics registers the collectors of the daemon services.
func (s *Service) MustRegisterMetrics(services ...metrics.Collector) {
	metrics.MustRegister(s.metricsRegistry, services...)
}
