package testutil

import (
	"sync"

	"github.com/arloliu/regionlb/types"
)

// TestMetricsCollector is a test implementation of types.MetricsCollector
// that records every call for assertions.
type TestMetricsCollector struct {
	mu sync.RWMutex

	PlanTotal  map[string]int64 // key: request kind
	EmptyPlans map[string]int64

	DNSRefresh      int64
	DNSRefreshError int64
	DNSStaleServed  int64

	BucketSizes    map[string]int
	TopologyEvents map[string]int64
	RetryDecisions map[string]int64
}

// Compile-time assertion that TestMetricsCollector implements types.MetricsCollector.
var _ types.MetricsCollector = (*TestMetricsCollector)(nil)

// NewTestMetricsCollector creates a new test metrics collector.
func NewTestMetricsCollector() *TestMetricsCollector {
	m := &TestMetricsCollector{}
	m.Reset()

	return m
}

func (m *TestMetricsCollector) IncPlanTotal(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlanTotal[kind]++
}

func (m *TestMetricsCollector) IncEmptyPlan(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmptyPlans[kind]++
}

func (m *TestMetricsCollector) IncDNSRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DNSRefresh++
}

func (m *TestMetricsCollector) IncDNSRefreshError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DNSRefreshError++
}

func (m *TestMetricsCollector) IncDNSStaleServed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DNSStaleServed++
}

func (m *TestMetricsCollector) SetBucketSize(bucket string, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BucketSizes[bucket] = size
}

func (m *TestMetricsCollector) IncTopologyEvent(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TopologyEvents[event]++
}

func (m *TestMetricsCollector) IncRetryDecision(decision string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RetryDecisions[decision]++
}

// GetPlanTotal returns the number of plans built for a request kind.
func (m *TestMetricsCollector) GetPlanTotal(kind string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.PlanTotal[kind]
}

// GetEmptyPlans returns the number of empty plans for a request kind.
func (m *TestMetricsCollector) GetEmptyPlans(kind string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.EmptyPlans[kind]
}

// GetBucketSize returns the last reported size of a bucket.
func (m *TestMetricsCollector) GetBucketSize(bucket string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.BucketSizes[bucket]
}

// GetTopologyEvents returns the number of recorded events of a type.
func (m *TestMetricsCollector) GetTopologyEvents(event string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.TopologyEvents[event]
}

// GetRetryDecisions returns the number of recorded retry decisions of a kind.
func (m *TestMetricsCollector) GetRetryDecisions(decision string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.RetryDecisions[decision]
}

// GetDNS returns the refresh, error and stale-served counters.
func (m *TestMetricsCollector) GetDNS() (refresh, refreshErrors, staleServed int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.DNSRefresh, m.DNSRefreshError, m.DNSStaleServed
}

// Reset clears all recorded metrics.
func (m *TestMetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PlanTotal = make(map[string]int64)
	m.EmptyPlans = make(map[string]int64)
	m.DNSRefresh, m.DNSRefreshError, m.DNSStaleServed = 0, 0, 0
	m.BucketSizes = make(map[string]int)
	m.TopologyEvents = make(map[string]int64)
	m.RetryDecisions = make(map[string]int64)
}
