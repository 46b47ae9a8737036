// Package metrics provides internal metrics utilities for regionlb.
package metrics

import "github.com/arloliu/regionlb/types"

// NopMetrics is a no-op metrics collector that discards all metrics.
//
// This is used as the default metrics collector when no collector is configured,
// avoiding nil checks throughout the codebase.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements types.MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A collector that discards all metrics
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// ----------------------
// Query Plans
// ----------------------

// IncPlanTotal discards the metric.
func (m *NopMetrics) IncPlanTotal(_ string) {}

// IncEmptyPlan discards the metric.
func (m *NopMetrics) IncEmptyPlan(_ string) {}

// ----------------------
// DNS
// ----------------------

// IncDNSRefresh discards the metric.
func (m *NopMetrics) IncDNSRefresh() {}

// IncDNSRefreshError discards the metric.
func (m *NopMetrics) IncDNSRefreshError() {}

// IncDNSStaleServed discards the metric.
func (m *NopMetrics) IncDNSStaleServed() {}

// ----------------------
// Topology
// ----------------------

// SetBucketSize discards the metric.
func (m *NopMetrics) SetBucketSize(_ string, _ int) {}

// IncTopologyEvent discards the metric.
func (m *NopMetrics) IncTopologyEvent(_ string) {}

// ----------------------
// Retry
// ----------------------

// IncRetryDecision discards the metric.
func (m *NopMetrics) IncRetryDecision(_ string) {}
