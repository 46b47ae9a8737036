package types

// Bucket names used as metric labels.
const (
	BucketReadLocal  = "read_local"
	BucketWriteLocal = "write_local"
	BucketRemote     = "remote"
	BucketPreferred  = "preferred"
	BucketUnranked   = "unranked"
)

// MetricsCollector defines methods for collecting operational metrics.
//
// Implementations should be thread-safe as methods may be called concurrently
// from every in-flight request.
//
// Example usage with VictoriaMetrics (via contrib/metrics/vm):
//
//	import vmmetrics "github.com/arloliu/regionlb/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	router, _ := regionlb.New(cfg, regionlb.WithMetrics(collector))
//
//	// Expose metrics via HTTP
//	http.HandleFunc("/metrics", collector.Handler)
type MetricsCollector interface {
	// ----------------------
	// Query Plans
	// ----------------------

	// IncPlanTotal increments the plan counter for a request kind ("read" or "write").
	IncPlanTotal(kind string)

	// IncEmptyPlan increments the counter of plans with no candidate endpoint.
	IncEmptyPlan(kind string)

	// ----------------------
	// DNS
	// ----------------------

	// IncDNSRefresh increments the counter of successful global endpoint lookups.
	IncDNSRefresh()

	// IncDNSRefreshError increments the counter of failed global endpoint lookups.
	IncDNSRefreshError()

	// IncDNSStaleServed increments the counter of stale resolutions served after a failure.
	IncDNSStaleServed()

	// ----------------------
	// Topology
	// ----------------------

	// SetBucketSize sets the member count gauge of a classification bucket.
	SetBucketSize(bucket string, size int)

	// IncTopologyEvent increments the counter for a topology event ("add", "remove", "up", "down").
	IncTopologyEvent(event string)

	// ----------------------
	// Retry
	// ----------------------

	// IncRetryDecision increments the counter for a retry decision
	// ("retry", "retry_next", "rethrow").
	IncRetryDecision(decision string)
}
