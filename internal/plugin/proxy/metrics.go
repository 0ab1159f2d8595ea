// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package proxy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status values of the invocation counter.
const (
	StatusSuccess           = "success"
	StatusCapabilityFailure = "capability_failure"
	StatusError             = "error"
	StatusPanic             = "panic"
)

// contractLabel is the capability label of plugin contract methods.
const contractLabel = "contract"

// Invocations counts proxied calls into plugin realms.
// Use RegisterMetrics to register this with a Prometheus registry.
var Invocations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tollgate_plugin_invocations_total",
		Help: "Total number of calls into plugin realms",
	},
	[]string{"plugin", "capability", "method", "status"},
)

// InvocationDuration observes the duration of proxied calls.
// Use RegisterMetrics to register this with a Prometheus registry.
var InvocationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "tollgate_plugin_invocation_duration_seconds",
		Help:    "Duration of calls into plugin realms in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"plugin", "capability", "method"},
)

// RegisterMetrics registers proxy metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Invocations)
	reg.MustRegister(InvocationDuration)
}

func record(pluginID, capability, method, status string, d time.Duration) {
	Invocations.WithLabelValues(pluginID, capability, method, status).Inc()
	InvocationDuration.WithLabelValues(pluginID, capability, method).Observe(d.Seconds())
}
