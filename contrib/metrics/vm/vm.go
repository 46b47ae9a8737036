package vm

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"

	"github.com/arloliu/regionlb/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "regionlb"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector will register metrics with this set instead of
// creating a new one. The caller is responsible for exposing this set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// Metrics for the known label values are pre-created at initialization.
// Unknown label values fall back to GetOrCreate lookups.
// Thread-safe for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string

	planTotal  map[string]*metrics.Counter
	emptyPlans map[string]*metrics.Counter

	dnsRefresh      *metrics.Counter
	dnsRefreshError *metrics.Counter
	dnsStaleServed  *metrics.Counter

	topologyEvents map[string]*metrics.Counter
	retryDecisions map[string]*metrics.Counter
	bucketSizesMu  sync.Mutex
	bucketSizes    map[string]*atomic.Int64
}

var _ types.MetricsCollector = (*Collector)(nil)

var (
	requestKinds  = []string{"read", "write"}
	topologyKinds = []string{"add", "remove", "up", "down"}
	retryKinds    = []string{"retry", "retry_next", "rethrow"}
	knownBuckets  = []string{types.BucketReadLocal, types.BucketWriteLocal, types.BucketRemote}
)

// New creates a new VictoriaMetrics-based metrics collector.
//
// The collector creates its own metrics.Set and registers it globally
// unless WithMetricsSet is given.
//
// Parameters:
//   - opts: Configuration options (e.g., WithPrefix)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//	router, _ := regionlb.New(cfg, regionlb.WithMetrics(collector))
func New(opts ...Option) *Collector {
	c := &Collector{
		prefix:         "regionlb",
		planTotal:      make(map[string]*metrics.Counter),
		emptyPlans:     make(map[string]*metrics.Counter),
		topologyEvents: make(map[string]*metrics.Counter),
		retryDecisions: make(map[string]*metrics.Counter),
		bucketSizes:    make(map[string]*atomic.Int64),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	c.initMetrics()

	return c
}

func (c *Collector) initMetrics() {
	p := c.prefix

	for _, kind := range requestKinds {
		c.planTotal[kind] = c.set.NewCounter(c.planName(kind))
		c.emptyPlans[kind] = c.set.NewCounter(c.emptyPlanName(kind))
	}

	c.dnsRefresh = c.set.NewCounter(p + "_dns_refresh_total")
	c.dnsRefreshError = c.set.NewCounter(p + "_dns_refresh_errors_total")
	c.dnsStaleServed = c.set.NewCounter(p + "_dns_stale_served_total")

	for _, ev := range topologyKinds {
		c.topologyEvents[ev] = c.set.NewCounter(c.topologyName(ev))
	}
	for _, d := range retryKinds {
		c.retryDecisions[d] = c.set.NewCounter(c.retryName(d))
	}
	for _, b := range knownBuckets {
		c.bucketGauge(b)
	}
}

func (c *Collector) planName(kind string) string {
	return fmt.Sprintf(`%s_plan_total{kind=%q}`, c.prefix, kind)
}

func (c *Collector) emptyPlanName(kind string) string {
	return fmt.Sprintf(`%s_empty_plan_total{kind=%q}`, c.prefix, kind)
}

func (c *Collector) topologyName(event string) string {
	return fmt.Sprintf(`%s_topology_events_total{event=%q}`, c.prefix, event)
}

func (c *Collector) retryName(decision string) string {
	return fmt.Sprintf(`%s_retry_decisions_total{decision=%q}`, c.prefix, decision)
}

// counter returns the pre-created counter for label, or looks one up by name.
func (c *Collector) counter(known map[string]*metrics.Counter, label string, name func(string) string) *metrics.Counter {
	if ctr, ok := known[label]; ok {
		return ctr
	}

	return c.set.GetOrCreateCounter(name(label))
}

// bucketGauge returns the value backing the size gauge of a bucket,
// registering the gauge on first use.
func (c *Collector) bucketGauge(bucket string) *atomic.Int64 {
	c.bucketSizesMu.Lock()
	defer c.bucketSizesMu.Unlock()

	if v, ok := c.bucketSizes[bucket]; ok {
		return v
	}

	v := new(atomic.Int64)
	c.bucketSizes[bucket] = v
	c.set.GetOrCreateGauge(fmt.Sprintf(`%s_bucket_size{bucket=%q}`, c.prefix, bucket), func() float64 {
		return float64(v.Load())
	})

	return v
}

// Set returns the underlying metrics set.
func (c *Collector) Set() *metrics.Set {
	return c.set
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
//
// Example:
//
//	http.HandleFunc("/metrics", collector.Handler)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}

// WritePrometheus writes all metrics in Prometheus format to the given writer.
//
// Parameters:
//   - w: The writer to write metrics to
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

// ----------------------
// Query Plans
// ----------------------

// IncPlanTotal increments the plan counter for a request kind.
func (c *Collector) IncPlanTotal(kind string) {
	c.counter(c.planTotal, kind, c.planName).Inc()
}

// IncEmptyPlan increments the counter of plans with no candidate endpoint.
func (c *Collector) IncEmptyPlan(kind string) {
	c.counter(c.emptyPlans, kind, c.emptyPlanName).Inc()
}

// ----------------------
// DNS
// ----------------------

// IncDNSRefresh increments the successful lookup counter.
func (c *Collector) IncDNSRefresh() {
	c.dnsRefresh.Inc()
}

// IncDNSRefreshError increments the failed lookup counter.
func (c *Collector) IncDNSRefreshError() {
	c.dnsRefreshError.Inc()
}

// IncDNSStaleServed increments the stale resolution counter.
func (c *Collector) IncDNSStaleServed() {
	c.dnsStaleServed.Inc()
}

// ----------------------
// Topology
// ----------------------

// SetBucketSize sets the member count gauge of a classification bucket.
func (c *Collector) SetBucketSize(bucket string, size int) {
	c.bucketGauge(bucket).Store(int64(size))
}

// IncTopologyEvent increments the counter for a topology event.
func (c *Collector) IncTopologyEvent(event string) {
	c.counter(c.topologyEvents, event, c.topologyName).Inc()
}

// ----------------------
// Retry
// ----------------------

// IncRetryDecision increments the counter for a retry decision.
func (c *Collector) IncRetryDecision(decision string) {
	c.counter(c.retryDecisions, decision, c.retryName).Inc()
}
