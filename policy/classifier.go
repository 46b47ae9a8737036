package policy

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/arloliu/regionlb/types"
)

// MembershipFunc reports whether a canonical host currently serves the
// primary write region. resolver.Cache.Contains satisfies it.
type MembershipFunc func(host string) bool

// RegionPair classifies endpoints against a read region and a write region.
//
// The write region is either named statically (WriteRegion) or discovered
// through the addresses the global endpoint resolves to (InWriteRegion).
// Exactly one of the two is expected to be set.
type RegionPair struct {
	// ReadRegion receives read-only requests first.
	ReadRegion string

	// WriteRegion is the static write region, if any.
	WriteRegion string

	// InWriteRegion reports resolved write-region membership by host, if any.
	InWriteRegion MembershipFunc
}

// Classification is the result of classifying endpoints with a RegionPair.
//
// WriteLocal and Remote are disjoint. ReadLocal may overlap WriteLocal.
type Classification struct {
	ReadLocal  []types.Endpoint
	WriteLocal []types.Endpoint
	Remote     []types.Endpoint
}

// Classify assigns every endpoint to its buckets, preserving input order.
//
// Parameters:
//   - endpoints: The known endpoints
//
// Returns:
//   - Classification: The read-local, write-local and remote buckets
func (p RegionPair) Classify(endpoints []types.Endpoint) Classification {
	var c Classification
	for _, ep := range endpoints {
		if p.ReadRegion != "" && ep.Region == p.ReadRegion {
			c.ReadLocal = append(c.ReadLocal, ep)
		}

		if p.isWriteLocal(ep) {
			c.WriteLocal = append(c.WriteLocal, ep)
		} else {
			c.Remote = append(c.Remote, ep)
		}
	}

	return c
}

func (p RegionPair) isWriteLocal(ep types.Endpoint) bool {
	if p.WriteRegion != "" {
		return ep.Region == p.WriteRegion
	}
	if p.InWriteRegion != nil {
		return p.InWriteRegion(ep.Host())
	}

	return false
}

// Snapshot builds the plan tiers for this classification.
//
// Reads walk read-local, then write-local, then remote, skipping endpoints
// already emitted as read-local. Writes walk write-local, then remote.
//
// Returns:
//   - *Snapshot: An immutable snapshot
func (c Classification) Snapshot() *Snapshot {
	readSet := mapset.NewThreadUnsafeSetWithSize[string](len(c.ReadLocal))
	for _, ep := range c.ReadLocal {
		readSet.Add(ep.Address)
	}

	notRead := func(in []types.Endpoint) []types.Endpoint {
		out := make([]types.Endpoint, 0, len(in))
		for _, ep := range in {
			if !readSet.Contains(ep.Address) {
				out = append(out, ep)
			}
		}

		return out
	}

	distances := make(map[string]types.Distance, len(c.WriteLocal)+len(c.Remote))
	for _, ep := range c.Remote {
		distances[ep.Address] = types.DistanceRemote
	}
	for _, ep := range c.WriteLocal {
		distances[ep.Address] = types.DistanceLocal
	}
	for _, ep := range c.ReadLocal {
		distances[ep.Address] = types.DistanceLocal
	}

	return &Snapshot{
		buckets: []Bucket{
			{Name: types.BucketReadLocal, Endpoints: c.ReadLocal},
			{Name: types.BucketWriteLocal, Endpoints: c.WriteLocal},
			{Name: types.BucketRemote, Endpoints: c.Remote},
		},
		reads:     [][]types.Endpoint{c.ReadLocal, notRead(c.WriteLocal), notRead(c.Remote)},
		writes:    [][]types.Endpoint{c.WriteLocal, c.Remote},
		distances: distances,
	}
}
