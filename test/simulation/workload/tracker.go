package workload

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/arloliu/regionlb/types"
)

// Stats is a point-in-time copy of the tracker counters.
type Stats struct {
	Requests int64
	Failures int64
	Attempts int64
	// Served counts successful requests per request kind and region.
	Served map[string]map[string]int64
}

// FailureRatio returns Failures/Requests.
func (s Stats) FailureRatio() float64 {
	if s.Requests == 0 {
		return 0
	}

	return float64(s.Failures) / float64(s.Requests)
}

// ServedShare returns the share of successful requests of a kind that were
// served by region.
func (s Stats) ServedShare(kind, region string) float64 {
	var total int64
	for _, n := range s.Served[kind] {
		total += n
	}
	if total == 0 {
		return 0
	}

	return float64(s.Served[kind][region]) / float64(total)
}

// String renders the stats for console output.
func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "requests=%d failures=%d attempts=%d", s.Requests, s.Failures, s.Attempts)

	kinds := make([]string, 0, len(s.Served))
	for kind := range s.Served {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		regions := make([]string, 0, len(s.Served[kind]))
		for region := range s.Served[kind] {
			regions = append(regions, region)
		}
		sort.Strings(regions)
		for _, region := range regions {
			fmt.Fprintf(&b, " %s@%s=%d", kind, region, s.Served[kind][region])
		}
	}

	return b.String()
}

// Tracker counts routed requests and where they were served.
type Tracker struct {
	mu    sync.Mutex
	stats Stats
}

// NewTracker creates a new tracker.
func NewTracker() *Tracker {
	return &Tracker{stats: Stats{Served: make(map[string]map[string]int64)}}
}

// TrackAttempt records one attempt against an endpoint.
func (t *Tracker) TrackAttempt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Attempts++
}

// TrackResult records the outcome of a routed request. served is the
// endpoint of the successful attempt and is ignored on failure.
func (t *Tracker) TrackResult(req types.Request, served types.Endpoint, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Requests++
	if err != nil {
		t.stats.Failures++

		return
	}

	kind := req.Kind()
	if t.stats.Served[kind] == nil {
		t.stats.Served[kind] = make(map[string]int64)
	}
	t.stats.Served[kind][served.Region]++
}

// Snapshot returns a copy of the counters.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.stats
	out.Served = make(map[string]map[string]int64, len(t.stats.Served))
	for kind, regions := range t.stats.Served {
		out.Served[kind] = make(map[string]int64, len(regions))
		for region, n := range regions {
			out.Served[kind][region] = n
		}
	}

	return out
}

// Reset clears the counters.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = Stats{Served: make(map[string]map[string]int64)}
}
