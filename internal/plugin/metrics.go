// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package plugin

import "github.com/prometheus/client_golang/prometheus"

// Load failure reasons.
const (
	ReasonManifest     = "manifest"
	ReasonRealm        = "realm"
	ReasonEntry        = "entry"
	ReasonRegistration = "registration"
	ReasonID           = "id"
	ReasonConflict     = "conflict"
)

// LoadFailures counts bundles that failed to load, by reason.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoadFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tollgate_plugin_load_failures_total",
		Help: "Total number of plugin bundles that failed to load",
	},
	[]string{"reason"},
)

// PluginsLoaded is the number of plugins in the registry.
// Use RegisterMetrics to register this with a Prometheus registry.
var PluginsLoaded = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "tollgate_plugins_loaded",
		Help: "Number of plugins loaded into the registry",
	},
)

// RegisterMetrics registers plugin package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoadFailures)
	reg.MustRegister(PluginsLoaded)
}
