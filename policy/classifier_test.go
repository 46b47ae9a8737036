package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/regionlb/types"
)

var (
	epA = types.NewEndpoint("10.0.0.1", "9042", "east")
	epB = types.NewEndpoint("10.0.0.2", "9042", "east")
	epC = types.NewEndpoint("10.0.1.1", "9042", "west")
)

func addrs(eps []types.Endpoint) []string {
	out := make([]string, 0, len(eps))
	for _, ep := range eps {
		out = append(out, ep.Address)
	}

	return out
}

func TestRegionPairStaticWriteRegion(t *testing.T) {
	pair := RegionPair{ReadRegion: "east", WriteRegion: "west"}
	c := pair.Classify([]types.Endpoint{epA, epB, epC})

	assert.Equal(t, []types.Endpoint{epA, epB}, c.ReadLocal)
	assert.Equal(t, []types.Endpoint{epC}, c.WriteLocal)
	assert.Equal(t, []types.Endpoint{epA, epB}, c.Remote)
}

func TestRegionPairReadAndWriteOverlap(t *testing.T) {
	pair := RegionPair{ReadRegion: "east", WriteRegion: "east"}
	c := pair.Classify([]types.Endpoint{epA, epB, epC})

	assert.Equal(t, []types.Endpoint{epA, epB}, c.ReadLocal)
	assert.Equal(t, []types.Endpoint{epA, epB}, c.WriteLocal)
	assert.Equal(t, []types.Endpoint{epC}, c.Remote)

	snap := c.Snapshot()
	assert.Equal(t, addrs([]types.Endpoint{epA, epB, epC}), addrs(snap.Plan(true, 0)))
	assert.Equal(t, addrs([]types.Endpoint{epA, epB, epC}), addrs(snap.Plan(false, 0)))
}

func TestRegionPairResolvedWriteRegion(t *testing.T) {
	global := map[string]bool{"10.0.1.1": true}
	pair := RegionPair{
		ReadRegion:    "east",
		InWriteRegion: func(host string) bool { return global[host] },
	}

	c := pair.Classify([]types.Endpoint{epA, epB, epC})
	assert.Equal(t, []types.Endpoint{epC}, c.WriteLocal)
	assert.Equal(t, []types.Endpoint{epA, epB}, c.Remote)

	// The primary moves east
	global = map[string]bool{"10.0.0.1": true, "10.0.0.2": true}
	c = pair.Classify([]types.Endpoint{epA, epB, epC})
	assert.Equal(t, []types.Endpoint{epA, epB}, c.WriteLocal)
	assert.Equal(t, []types.Endpoint{epC}, c.Remote)
}

func TestRegionPairUnknownRegionIsRemote(t *testing.T) {
	unknown := types.NewEndpoint("10.0.2.1", "9042", "")
	c := RegionPair{ReadRegion: "east", WriteRegion: "west"}.Classify([]types.Endpoint{unknown})

	assert.Empty(t, c.ReadLocal)
	assert.Empty(t, c.WriteLocal)
	assert.Equal(t, []types.Endpoint{unknown}, c.Remote)
}

func TestClassificationScenario(t *testing.T) {
	snap := RegionPair{ReadRegion: "east", WriteRegion: "west"}.
		Classify([]types.Endpoint{epA, epB, epC}).
		Snapshot()

	assert.Equal(t, addrs([]types.Endpoint{epA, epB, epC}), addrs(snap.Plan(true, 0)))
	assert.Equal(t, addrs([]types.Endpoint{epC, epA, epB}), addrs(snap.Plan(false, 0)))

	// Rotation applies inside each bucket
	assert.Equal(t, addrs([]types.Endpoint{epB, epA, epC}), addrs(snap.Plan(true, 1)))
	assert.Equal(t, addrs([]types.Endpoint{epC, epB, epA}), addrs(snap.Plan(false, 1)))
}

func TestClassificationDistances(t *testing.T) {
	snap := RegionPair{ReadRegion: "east", WriteRegion: "west"}.
		Classify([]types.Endpoint{epA, epC}).
		Snapshot()

	assert.Equal(t, types.DistanceLocal, snap.Distance(epA.Address))
	assert.Equal(t, types.DistanceLocal, snap.Distance(epC.Address))
	assert.Equal(t, types.DistanceIgnored, snap.Distance("10.9.9.9:9042"))

	snap = RegionPair{ReadRegion: "north", WriteRegion: "west"}.
		Classify([]types.Endpoint{epA, epC}).
		Snapshot()
	assert.Equal(t, types.DistanceRemote, snap.Distance(epA.Address))
}

func TestClassificationSizes(t *testing.T) {
	snap := RegionPair{ReadRegion: "east", WriteRegion: "west"}.
		Classify([]types.Endpoint{epA, epB, epC}).
		Snapshot()

	assert.Equal(t, map[string]int{
		types.BucketReadLocal:  2,
		types.BucketWriteLocal: 1,
		types.BucketRemote:     2,
	}, snap.Sizes())
	assert.Equal(t, 3, snap.Len())
}

func TestPlanHasNoDuplicates(t *testing.T) {
	eps := []types.Endpoint{
		epA, epB, epC,
		types.NewEndpoint("10.0.0.3", "9042", "east"),
		types.NewEndpoint("10.0.1.2", "9042", "west"),
		types.NewEndpoint("10.0.2.1", "9042", "north"),
	}

	pairs := []RegionPair{
		{ReadRegion: "east", WriteRegion: "west"},
		{ReadRegion: "east", WriteRegion: "east"},
		{ReadRegion: "north", WriteRegion: "west"},
	}

	for _, pair := range pairs {
		snap := pair.Classify(eps).Snapshot()
		for cursor := range 12 {
			for _, read := range []bool{true, false} {
				plan := snap.Plan(read, cursor)
				require.Len(t, plan, len(eps))

				seen := make(map[string]bool)
				for _, ep := range plan {
					require.False(t, seen[ep.Address], "duplicate %s in %v", ep.Address, addrs(plan))
					seen[ep.Address] = true
				}
			}
		}
	}
}

func TestPlanRotationFairness(t *testing.T) {
	eps := []types.Endpoint{
		types.NewEndpoint("10.0.0.1", "9042", "east"),
		types.NewEndpoint("10.0.0.2", "9042", "east"),
		types.NewEndpoint("10.0.0.3", "9042", "east"),
	}
	snap := RegionPair{ReadRegion: "east", WriteRegion: "west"}.Classify(eps).Snapshot()

	var cursor Cursor
	heads := make(map[string]int)
	for range len(eps) {
		plan := snap.Plan(true, cursor.Next())
		heads[plan[0].Address]++
	}

	for _, ep := range eps {
		assert.Equal(t, 1, heads[ep.Address], "head count of %s", ep.Address)
	}
}

func TestPlanReadWriteSeparation(t *testing.T) {
	snap := RegionPair{ReadRegion: "east", WriteRegion: "west"}.
		Classify([]types.Endpoint{epA, epB, epC}).
		Snapshot()

	for cursor := range 6 {
		read := snap.Plan(true, cursor)
		require.Equal(t, "east", read[0].Region)
		require.Equal(t, "east", read[1].Region)

		write := snap.Plan(false, cursor)
		require.Equal(t, epC.Address, write[0].Address)
	}
}

func TestEmptySnapshot(t *testing.T) {
	snap := EmptySnapshot()
	assert.Empty(t, snap.Plan(true, 3))
	assert.Empty(t, snap.Plan(false, 3))
	assert.Equal(t, types.DistanceIgnored, snap.Distance(epA.Address))

	snap = RegionPair{ReadRegion: "east", WriteRegion: "west"}.Classify(nil).Snapshot()
	assert.Empty(t, snap.Plan(false, 0))
}
