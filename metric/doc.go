// Package metric manages Prometheus metric registration for the bridge.
//
// A single MetricsRegistry owns a private prometheus.Registry (plus the Go
// runtime and process collectors) and namespaces registrations per
// component so duplicate registration is caught with a useful error instead
// of a prometheus panic. Components follow the nil-registry = nil-metrics
// pattern: when no registry is supplied, instrumentation is skipped
// entirely.
package metric
