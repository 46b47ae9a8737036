// Package vm provides a VictoriaMetrics-based implementation of the MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// Prometheus-compatible metrics collection.
//
// # Basic Usage
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//	router, _ := regionlb.New(cfg, regionlb.WithMetrics(collector))
//
//	http.HandleFunc("/metrics", collector.Handler)
//
// # Metrics Provided
//
// Query plans:
//   - {prefix}_plan_total{kind} - Counter of plans built ("read" or "write")
//   - {prefix}_empty_plan_total{kind} - Counter of plans with no endpoint
//
// DNS:
//   - {prefix}_dns_refresh_total - Counter of successful global endpoint lookups
//   - {prefix}_dns_refresh_errors_total - Counter of failed lookups
//   - {prefix}_dns_stale_served_total - Counter of stale resolutions kept after a failure
//
// Topology:
//   - {prefix}_bucket_size{bucket} - Gauge of endpoints per classification bucket
//   - {prefix}_topology_events_total{event} - Counter of add/remove/up/down events
//
// Retry:
//   - {prefix}_retry_decisions_total{decision} - Counter of retry, retry_next and rethrow
package vm
