// Package metrics exposes the bridge's Prometheus instrumentation.
//
// New() builds a Metrics bound to its own prometheus.Registry, so tests and
// multiple hubs never collide on the global default registry. Handler()
// serves the registry in the text exposition format at /metrics.
//
// Metric names are prefixed with "bridge_".
package metrics
