package policy

import (
	"github.com/arloliu/regionlb/types"
)

// Bucket is a named group of endpoints in a Snapshot.
type Bucket struct {
	// Name is one of the types.Bucket* labels.
	Name string

	// Region is set for preferred-region tiers.
	Region string

	// Endpoints are the bucket members in plan order before rotation.
	Endpoints []types.Endpoint
}

// Snapshot is an immutable view of the routing buckets.
//
// A Snapshot is built on every topology or DNS change and swapped in
// atomically, so plan generation never takes a lock. Callers must not modify
// slices obtained from it.
type Snapshot struct {
	buckets   []Bucket
	reads     [][]types.Endpoint
	writes    [][]types.Endpoint
	distances map[string]types.Distance
}

// EmptySnapshot returns a snapshot with no endpoints. Every plan is empty.
func EmptySnapshot() *Snapshot {
	return &Snapshot{distances: map[string]types.Distance{}}
}

// Plan returns the ordered candidate endpoints for a request.
//
// Each tier is rotated to start at cursor mod len(tier) and contributes every
// member exactly once. Empty tiers contribute nothing, so the result may be
// empty.
//
// Parameters:
//   - read: Whether the request is read-only
//   - cursor: Rotation offset taken from a Cursor
//
// Returns:
//   - []types.Endpoint: A freshly allocated plan
func (s *Snapshot) Plan(read bool, cursor int) []types.Endpoint {
	tiers := s.writes
	if read {
		tiers = s.reads
	}

	n := 0
	for _, tier := range tiers {
		n += len(tier)
	}
	if n == 0 {
		return nil
	}

	plan := make([]types.Endpoint, 0, n)
	for _, tier := range tiers {
		plan = appendRotated(plan, tier, cursor)
	}

	return plan
}

// Distance returns the advisory distance of the endpoint with the given
// address, or types.DistanceIgnored if it is not in any bucket.
func (s *Snapshot) Distance(address string) types.Distance {
	if d, ok := s.distances[address]; ok {
		return d
	}

	return types.DistanceIgnored
}

// Buckets returns the buckets of this snapshot for diagnostics.
func (s *Snapshot) Buckets() []Bucket {
	return s.buckets
}

// Sizes returns the member count per bucket name.
func (s *Snapshot) Sizes() map[string]int {
	sizes := make(map[string]int, len(s.buckets))
	for _, b := range s.buckets {
		sizes[b.Name] += len(b.Endpoints)
	}

	return sizes
}

// Len returns the number of distinct endpoints in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.distances)
}

func appendRotated(dst, tier []types.Endpoint, cursor int) []types.Endpoint {
	size := len(tier)
	if size == 0 {
		return dst
	}

	start := cursor % size
	dst = append(dst, tier[start:]...)

	return append(dst, tier[:start]...)
}
