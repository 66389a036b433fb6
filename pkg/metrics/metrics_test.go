// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tabcat/zzzync/pkg/metrics"
)

type testMetrics struct {
	Count    prometheus.Counter
	Gauge    prometheus.Gauge
	unexport prometheus.Counter
	Name     string
}

type service struct {
	m testMetrics
}

func newService() *service {
	return &service{m: testMetrics{
		Count:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: metrics.Namespace, Name: "test_count"}),
		Gauge:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: metrics.Namespace, Name: "test_gauge"}),
		unexport: prometheus.NewCounter(prometheus.CounterOpts{Name: "hidden"}),
		Name:     "test",
	}}
}

func (s *service) Metrics() []prometheus.Collector {
	return metrics.PrometheusCollectorsFromFields(s.m)
}

func TestPrometheusCollectorsFromFields(t *testing.T) {
	s := newService()
	if got := len(s.Metrics()); got != 2 {
		t.Fatalf("got %d collectors, want 2", got)
	}
}

func TestHandler(t *testing.T) {
	s := newService()
	s.m.Count.Inc()

	r := metrics.NewRegistry()
	metrics.MustRegister(r, s)

	rec := httptest.NewRecorder()
	metrics.Handler(r).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{"zzzync_test_count 1", "zzzync_test_gauge 0", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("metric %q not exported", want)
		}
	}
	if strings.Contains(body, "hidden") {
		t.Error("unexported field registered")
	}
}
