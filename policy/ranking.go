package policy

import (
	"bytes"
	"slices"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/btree"

	"github.com/arloliu/regionlb/types"
)

// btreeDegree is the B-tree node degree. Clusters are small, so a low degree
// keeps nodes compact.
const btreeDegree = 8

// PreferredRegions ranks endpoints by an ordered list of preferred regions.
//
// The primary region always ranks 0, wherever it appears in the list. The
// remaining listed regions follow in list order. Regions missing from the
// list are unranked and sort after every ranked region; within that tier
// contact points sort first.
//
// Endpoints are kept in a B-tree ordered by Compare. Removal is keyed by
// address, so an endpoint whose region changed (or was unknown when it was
// added) is still removed correctly.
//
// PreferredRegions is safe for concurrent use.
type PreferredRegions struct {
	ranks             map[string]int
	order             []string
	contactPoints     mapset.Set[string]
	multiRegionWrites bool

	mu     sync.Mutex
	tree   *btree.BTreeG[types.Endpoint]
	byAddr map[string]types.Endpoint
}

// RankingOption configures PreferredRegions.
type RankingOption func(*PreferredRegions)

// WithContactPoints marks addresses (host or host:port) as contact points.
//
// Parameters:
//   - addrs: The contact point addresses
//
// Returns:
//   - RankingOption: Configuration option
func WithContactPoints(addrs ...string) RankingOption {
	return func(p *PreferredRegions) {
		for _, addr := range addrs {
			p.contactPoints.Add(addr)
			p.contactPoints.Add(types.Endpoint{Address: addr}.Host())
		}
	}
}

// WithMultiRegionWrites lets writes use every tier instead of only the
// highest ranked region that has endpoints.
//
// Parameters:
//   - enabled: Whether writes may span regions
//
// Returns:
//   - RankingOption: Configuration option
func WithMultiRegionWrites(enabled bool) RankingOption {
	return func(p *PreferredRegions) {
		p.multiRegionWrites = enabled
	}
}

// NewPreferredRegions creates a ranking.
//
// If primary is empty the first listed region is the primary. Duplicate
// regions keep their first position.
//
// Parameters:
//   - regions: Preferred regions, most preferred first
//   - primary: The primary region, forced to rank 0
//   - opts: Optional configuration options
//
// Returns:
//   - *PreferredRegions: A new, empty ranking
func NewPreferredRegions(regions []string, primary string, opts ...RankingOption) *PreferredRegions {
	if primary == "" && len(regions) > 0 {
		primary = regions[0]
	}

	order := make([]string, 0, len(regions)+1)
	if primary != "" {
		order = append(order, primary)
	}
	for _, r := range regions {
		if r != "" && !slices.Contains(order, r) {
			order = append(order, r)
		}
	}

	ranks := make(map[string]int, len(order))
	for i, r := range order {
		ranks[r] = i
	}

	p := &PreferredRegions{
		ranks:         ranks,
		order:         order,
		contactPoints: mapset.NewSet[string](),
		byAddr:        make(map[string]types.Endpoint),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.tree = btree.NewG(btreeDegree, func(a, b types.Endpoint) bool {
		return p.Compare(a, b) < 0
	})

	return p
}

// Regions returns the ranked regions, primary first.
func (p *PreferredRegions) Regions() []string {
	return slices.Clone(p.order)
}

// Primary returns the region ranked 0, or "" if no region is ranked.
func (p *PreferredRegions) Primary() string {
	if len(p.order) == 0 {
		return ""
	}

	return p.order[0]
}

// Rank returns the rank of a region and whether it is ranked at all.
func (p *PreferredRegions) Rank(region string) (int, bool) {
	r, ok := p.ranks[region]

	return r, ok
}

// rankOf returns the rank of a region, with unranked regions sharing the
// rank just below the lowest listed one.
func (p *PreferredRegions) rankOf(region string) int {
	if r, ok := p.ranks[region]; ok {
		return r
	}

	return len(p.order)
}

// IsContactPoint reports whether the endpoint was one of the initial
// contact points.
func (p *PreferredRegions) IsContactPoint(ep types.Endpoint) bool {
	return p.contactPoints.Contains(ep.Address) || p.contactPoints.Contains(ep.Host())
}

// Compare orders two endpoints for failover.
//
// The order is:
//  1. equal addresses compare equal
//  2. lower region rank first (unranked regions last)
//  3. among unranked regions, contact points first
//  4. region name
//  5. host ID, then address, for a total order
//
// Parameters:
//   - x: First endpoint
//   - y: Second endpoint
//
// Returns:
//   - int: Negative if x sorts first, positive if y does, 0 if same endpoint
func (p *PreferredRegions) Compare(x, y types.Endpoint) int {
	if x.Address == y.Address {
		return 0
	}

	rx, ry := p.rankOf(x.Region), p.rankOf(y.Region)
	if rx != ry {
		return rx - ry
	}

	if rx == len(p.order) {
		cx, cy := p.IsContactPoint(x), p.IsContactPoint(y)
		if cx != cy {
			if cx {
				return -1
			}

			return 1
		}
	}

	if c := strings.Compare(x.Region, y.Region); c != 0 {
		return c
	}
	if c := bytes.Compare(x.HostID[:], y.HostID[:]); c != 0 {
		return c
	}

	return strings.Compare(x.Address, y.Address)
}

// Add inserts an endpoint. Adding an address that is already present is a
// no-op.
//
// Returns:
//   - bool: true if the endpoint was added
func (p *PreferredRegions) Add(ep types.Endpoint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byAddr[ep.Address]; ok {
		return false
	}

	p.byAddr[ep.Address] = ep
	p.tree.ReplaceOrInsert(ep)

	return true
}

// Remove deletes the endpoint with the same address as ep.
//
// The stored value is used to locate the tree entry, so ep may carry a
// different or empty region.
//
// Returns:
//   - types.Endpoint: The stored endpoint that was removed
//   - bool: true if an endpoint was removed
func (p *PreferredRegions) Remove(ep types.Endpoint) (types.Endpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored, ok := p.byAddr[ep.Address]
	if !ok {
		return types.Endpoint{}, false
	}

	delete(p.byAddr, ep.Address)
	p.tree.Delete(stored)

	return stored, true
}

// Len returns the number of ranked endpoints.
func (p *PreferredRegions) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.tree.Len()
}

// Ordered returns every endpoint in ranking order.
func (p *PreferredRegions) Ordered() []types.Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.orderedLocked()
}

func (p *PreferredRegions) orderedLocked() []types.Endpoint {
	out := make([]types.Endpoint, 0, p.tree.Len())
	p.tree.Ascend(func(ep types.Endpoint) bool {
		out = append(out, ep)

		return true
	})

	return out
}

// Snapshot builds the plan tiers from the current ranking.
//
// Each run of same-region endpoints in ranking order is one tier, rotated
// independently. Reads use every tier. Writes use only the highest ranked
// tier unless multi-region writes are enabled; unranked regions never
// receive single-region writes.
//
// Returns:
//   - *Snapshot: An immutable snapshot
func (p *PreferredRegions) Snapshot() *Snapshot {
	p.mu.Lock()
	ordered := p.orderedLocked()
	p.mu.Unlock()

	var (
		buckets   []Bucket
		tiers     [][]types.Endpoint
		distances = make(map[string]types.Distance, len(ordered))
		primary   = p.Primary()
	)

	for i := 0; i < len(ordered); {
		j := i + 1
		for j < len(ordered) && p.sameTier(ordered[i], ordered[j]) {
			j++
		}

		tier := ordered[i:j:j]
		tiers = append(tiers, tier)

		name := types.BucketPreferred
		if _, ranked := p.ranks[tier[0].Region]; !ranked {
			name = types.BucketUnranked
		}
		buckets = append(buckets, Bucket{Name: name, Region: tier[0].Region, Endpoints: tier})

		for _, ep := range tier {
			if primary != "" && ep.Region == primary {
				distances[ep.Address] = types.DistanceLocal
			} else {
				distances[ep.Address] = types.DistanceRemote
			}
		}

		i = j
	}

	writes := tiers
	if !p.multiRegionWrites {
		writes = nil
		if len(buckets) > 0 && buckets[0].Name == types.BucketPreferred {
			writes = tiers[:1]
		}
	}

	return &Snapshot{
		buckets:   buckets,
		reads:     tiers,
		writes:    writes,
		distances: distances,
	}
}

func (p *PreferredRegions) sameTier(a, b types.Endpoint) bool {
	if a.Region != b.Region {
		return false
	}
	if _, ranked := p.ranks[a.Region]; ranked {
		return true
	}

	return p.IsContactPoint(a) == p.IsContactPoint(b)
}
