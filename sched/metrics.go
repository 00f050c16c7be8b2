// File: sched/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	submitted prometheus.Counter
	completed prometheus.Counter
	failed    prometheus.Counter
	cancelled prometheus.Counter
	inflight  prometheus.Gauge
}

// newMetrics builds the scheduler metric set. With a nil registerer the
// collectors stay unregistered but remain usable, so instrumentation
// costs nothing to callers that never scrape.
func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &metrics{
		submitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "curlmux",
			Subsystem: "sched",
			Name:      "transfers_submitted_total",
			Help:      "Transfers accepted for multiplexed execution.",
		}),
		completed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "curlmux",
			Subsystem: "sched",
			Name:      "transfers_completed_total",
			Help:      "Transfers finished with the engine success status.",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "curlmux",
			Subsystem: "sched",
			Name:      "transfers_failed_total",
			Help:      "Transfers finished with a non-success engine status.",
		}),
		cancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "curlmux",
			Subsystem: "sched",
			Name:      "transfers_cancelled_total",
			Help:      "Transfers cancelled before completion.",
		}),
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "curlmux",
			Subsystem: "sched",
			Name:      "transfers_inflight",
			Help:      "Transfers currently multiplexed.",
		}),
	}
}
