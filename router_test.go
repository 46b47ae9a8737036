package regionlb

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arloliu/regionlb/types"
)

type stubLookuper struct {
	mu    sync.Mutex
	addrs []string
	err   error
	calls atomic.Int32
}

func (s *stubLookuper) LookupHost(_ context.Context, _ string) ([]string, error) {
	s.calls.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addrs, s.err
}

func (s *stubLookuper) set(addrs []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addrs = addrs
	s.err = err
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

var (
	nodeA = types.NewEndpoint("10.0.0.1", "9042", "east")
	nodeB = types.NewEndpoint("10.0.0.2", "9042", "east")
	nodeC = types.NewEndpoint("10.0.1.1", "9042", "west")

	readReq  = types.NewStatement("SELECT * FROM ks.users WHERE id = ?")
	writeReq = types.NewStatement("INSERT INTO ks.users (id) VALUES (?)")
)

func addressesOf(eps []types.Endpoint) []string {
	out := make([]string, 0, len(eps))
	for _, ep := range eps {
		out = append(out, ep.Address)
	}

	return out
}

func newPairRouter(t *testing.T, read, write string) *Router {
	t.Helper()

	cfg := DefaultConfig()
	cfg.ReadRegion = read
	cfg.WriteRegion = write

	r, err := New(cfg, WithLogger(zaptest.NewLogger(t).Sugar()))
	require.NoError(t, err)

	return r
}

func newGlobalRouter(t *testing.T, lookuper *stubLookuper, ttl int) (*Router, *manualClock) {
	t.Helper()

	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	cfg := DefaultConfig()
	cfg.ReadRegion = "east"
	cfg.GlobalEndpoint = "db.global.example.com:9042"
	cfg.DNSExpirySeconds = ttl

	r, err := New(cfg,
		WithLookuper(lookuper),
		WithClock(clock.Now),
		WithLogger(zaptest.NewLogger(t).Sugar()),
	)
	require.NoError(t, err)

	return r, clock
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadRegion = "east"

	_, err := New(cfg)
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	var cfgErr *types.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	_, err = New(nil)
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestRouterScenarioReadWritePair(t *testing.T) {
	r := newPairRouter(t, "east", "west")
	require.NoError(t, r.Init(t.Context(), []types.Endpoint{nodeA, nodeB, nodeC}))

	// cursor 0
	assert.Equal(t, addressesOf([]types.Endpoint{nodeA, nodeB, nodeC}), addressesOf(r.PlanFor(t.Context(), readReq)))
	// cursor 1
	assert.Equal(t, addressesOf([]types.Endpoint{nodeC, nodeB, nodeA}), addressesOf(r.PlanFor(t.Context(), writeReq)))
	// cursor 2
	assert.Equal(t, addressesOf([]types.Endpoint{nodeC, nodeA, nodeB}), addressesOf(r.PlanFor(t.Context(), writeReq)))
}

func TestRouterBatchAndOpaqueAreWrites(t *testing.T) {
	r := newPairRouter(t, "east", "west")
	require.NoError(t, r.Init(t.Context(), []types.Endpoint{nodeA, nodeB, nodeC}))

	for _, req := range []types.Request{types.NewBatch(), types.NewOpaque(), types.NewStatement("  select now() ")} {
		plan := r.PlanFor(t.Context(), req)
		require.Len(t, plan, 3)
		if req.IsRead() {
			assert.Equal(t, "east", plan[0].Region)
		} else {
			assert.Equal(t, nodeC.Address, plan[0].Address)
		}
	}
}

func TestRouterInitTwice(t *testing.T) {
	r := newPairRouter(t, "east", "west")
	require.NoError(t, r.Init(t.Context(), nil))
	require.ErrorIs(t, r.Init(t.Context(), nil), types.ErrAlreadyInitialized)
}

func TestRouterPlanBeforeInitIsEmpty(t *testing.T) {
	r := newPairRouter(t, "east", "west")
	r.OnAdd(nodeA)

	assert.Empty(t, r.PlanFor(t.Context(), readReq))
	assert.False(t, r.Initialized())
}

func TestRouterEmptyPlanIsNotError(t *testing.T) {
	r := newPairRouter(t, "east", "west")
	require.NoError(t, r.Init(t.Context(), nil))

	assert.Empty(t, r.PlanFor(t.Context(), readReq))
	assert.Empty(t, r.PlanFor(t.Context(), writeReq))
}

func TestRouterAddRemove(t *testing.T) {
	r := newPairRouter(t, "east", "west")
	require.NoError(t, r.Init(t.Context(), []types.Endpoint{nodeA}))

	r.OnAdd(nodeC)
	r.OnAdd(nodeC)
	assert.Len(t, r.Endpoints(), 2)
	assert.Equal(t, nodeC.Address, r.PlanFor(t.Context(), writeReq)[0].Address)

	// Removal by address with an unresolved region
	r.OnRemove(types.NewEndpoint("10.0.1.1", "9042", ""))
	assert.Equal(t, []string{nodeA.Address}, addressesOf(r.Endpoints()))
	assert.Equal(t, []string{nodeA.Address}, addressesOf(r.PlanFor(t.Context(), writeReq)))
	assert.Equal(t, types.DistanceIgnored, r.Distance(nodeC))
}

func TestRouterUpDownDoNotChangeRouting(t *testing.T) {
	r := newPairRouter(t, "east", "west")
	require.NoError(t, r.Init(t.Context(), []types.Endpoint{nodeA, nodeB, nodeC}))

	before := r.Snapshot()
	r.OnDown(nodeC)
	r.OnUp(nodeA)
	r.Apply(TopologyEvent{Type: EventDown, Endpoint: nodeB})

	assert.Same(t, before, r.Snapshot())
	assert.Len(t, r.PlanFor(t.Context(), writeReq), 3)
}

func TestRouterDistance(t *testing.T) {
	r := newPairRouter(t, "east", "west")
	require.NoError(t, r.Init(t.Context(), []types.Endpoint{nodeA, nodeC}))

	assert.Equal(t, types.DistanceLocal, r.Distance(nodeA))
	assert.Equal(t, types.DistanceLocal, r.Distance(nodeC))

	r2 := newPairRouter(t, "north", "west")
	require.NoError(t, r2.Init(t.Context(), []types.Endpoint{nodeA, nodeC}))
	assert.Equal(t, types.DistanceRemote, r2.Distance(nodeA))
}

func TestRouterNoDuplicates(t *testing.T) {
	r := newPairRouter(t, "east", "east")
	require.NoError(t, r.Init(t.Context(), []types.Endpoint{nodeA, nodeB, nodeC}))

	for range 10 {
		for _, req := range []types.Request{readReq, writeReq} {
			plan := r.PlanFor(t.Context(), req)
			seen := make(map[string]bool)
			for _, ep := range plan {
				require.False(t, seen[ep.Address])
				seen[ep.Address] = true
			}
			require.Len(t, plan, 3)
		}
	}
}

func TestRouterRotationFairness(t *testing.T) {
	eps := []types.Endpoint{
		types.NewEndpoint("10.0.0.1", "9042", "east"),
		types.NewEndpoint("10.0.0.2", "9042", "east"),
		types.NewEndpoint("10.0.0.3", "9042", "east"),
		types.NewEndpoint("10.0.0.4", "9042", "east"),
	}
	r := newPairRouter(t, "east", "west")
	require.NoError(t, r.Init(t.Context(), eps))

	heads := make(map[string]int)
	for range len(eps) {
		heads[r.PlanFor(t.Context(), readReq)[0].Address]++
	}
	for _, ep := range eps {
		assert.Equal(t, 1, heads[ep.Address])
	}
}

func TestRouterGlobalEndpointFirstResolutionFails(t *testing.T) {
	lookuper := &stubLookuper{err: errors.New("no such host")}
	r, _ := newGlobalRouter(t, lookuper, 60)

	err := r.Init(t.Context(), []types.Endpoint{nodeA, nodeC})
	require.ErrorIs(t, err, types.ErrResolution)

	var resErr *types.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "db.global.example.com", resErr.Host)
	assert.False(t, r.Initialized())

	// Recovers once DNS answers
	lookuper.set([]string{"10.0.1.1"}, nil)
	require.NoError(t, r.Init(t.Context(), []types.Endpoint{nodeA, nodeC}))
	assert.Equal(t, nodeC.Address, r.PlanFor(t.Context(), writeReq)[0].Address)
}

func TestRouterGlobalEndpointClassification(t *testing.T) {
	lookuper := &stubLookuper{addrs: []string{"10.0.1.1"}}
	r, _ := newGlobalRouter(t, lookuper, 60)
	require.NoError(t, r.Init(t.Context(), []types.Endpoint{nodeA, nodeB, nodeC}))

	write := r.PlanFor(t.Context(), writeReq)
	assert.Equal(t, nodeC.Address, write[0].Address)

	read := r.PlanFor(t.Context(), readReq)
	assert.Equal(t, "east", read[0].Region)
	assert.Equal(t, "east", read[1].Region)
	assert.Equal(t, nodeC.Address, read[2].Address)
}

func TestRouterDNSTTL(t *testing.T) {
	lookuper := &stubLookuper{addrs: []string{"10.0.1.1"}}
	r, clock := newGlobalRouter(t, lookuper, 30)
	require.NoError(t, r.Init(t.Context(), []types.Endpoint{nodeA, nodeB, nodeC}))
	require.Equal(t, int32(1), lookuper.calls.Load())

	clock.Advance(29 * time.Second)
	r.PlanFor(t.Context(), writeReq)
	require.Equal(t, int32(1), lookuper.calls.Load())

	clock.Advance(2 * time.Second)
	r.PlanFor(t.Context(), writeReq)
	r.PlanFor(t.Context(), readReq)
	require.Equal(t, int32(2), lookuper.calls.Load())
}

func TestRouterFollowsPrimaryRegionMove(t *testing.T) {
	lookuper := &stubLookuper{addrs: []string{"10.0.1.1"}}
	r, clock := newGlobalRouter(t, lookuper, 60)
	require.NoError(t, r.Init(t.Context(), []types.Endpoint{nodeA, nodeB, nodeC}))
	require.Equal(t, nodeC.Address, r.PlanFor(t.Context(), writeReq)[0].Address)

	// Failover: the global name now points east
	lookuper.set([]string{"10.0.0.1", "10.0.0.2"}, nil)
	clock.Advance(61 * time.Second)

	write := r.PlanFor(t.Context(), writeReq)
	assert.Equal(t, "east", write[0].Region)
	assert.Equal(t, "east", write[1].Region)
	assert.Equal(t, nodeC.Address, write[2].Address)
}

func TestRouterStaleDNSKeepsRouting(t *testing.T) {
	lookuper := &stubLookuper{addrs: []string{"10.0.1.1"}}
	r, clock := newGlobalRouter(t, lookuper, 60)
	require.NoError(t, r.Init(t.Context(), []types.Endpoint{nodeA, nodeB, nodeC}))

	lookuper.set(nil, errors.New("SERVFAIL"))
	clock.Advance(120 * time.Second)

	write := r.PlanFor(t.Context(), writeReq)
	require.Len(t, write, 3)
	assert.Equal(t, nodeC.Address, write[0].Address)
}

func TestRouterPreferredRegions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PreferredRegions = []string{"west", "east"}
	cfg.PrimaryRegion = "east"

	r, err := New(cfg)
	require.NoError(t, err)
	require.Equal(t, ModePreferredRegions, r.Mode())

	apac := types.NewEndpoint("10.0.2.1", "9042", "apac")
	require.NoError(t, r.Init(t.Context(), []types.Endpoint{nodeC, apac, nodeA, nodeB}))

	// Primary ranks first even though it is listed second
	read := r.PlanFor(t.Context(), readReq)
	require.Len(t, read, 4)
	assert.Equal(t, []string{"east", "east", "west", "apac"}, []string{
		read[0].Region, read[1].Region, read[2].Region, read[3].Region,
	})

	write := r.PlanFor(t.Context(), writeReq)
	assert.ElementsMatch(t, []string{nodeA.Address, nodeB.Address}, addressesOf(write))

	// Writes fail over only once the primary is gone
	r.OnRemove(types.NewEndpoint("10.0.0.1", "9042", ""))
	r.OnRemove(nodeB)
	assert.Equal(t, []string{nodeC.Address}, addressesOf(r.PlanFor(t.Context(), writeReq)))

	assert.Equal(t, types.DistanceRemote, r.Distance(nodeC))
}

type chanWatcher struct {
	ch chan TopologyEvent
}

func (w *chanWatcher) Watch(_ context.Context) <-chan TopologyEvent {
	return w.ch
}

func TestRouterFollow(t *testing.T) {
	r := newPairRouter(t, "east", "west")
	require.NoError(t, r.Init(t.Context(), nil))

	w := &chanWatcher{ch: make(chan TopologyEvent, 4)}
	w.ch <- TopologyEvent{Type: EventAdded, Endpoint: nodeA}
	w.ch <- TopologyEvent{Type: EventAdded, Endpoint: nodeC}
	w.ch <- TopologyEvent{Type: EventDown, Endpoint: nodeC}
	w.ch <- TopologyEvent{Type: EventRemoved, Endpoint: nodeA}
	close(w.ch)

	r.Follow(t.Context(), w)

	assert.Equal(t, []string{nodeC.Address}, addressesOf(r.Endpoints()))
}

func TestRouterConcurrentPlansAndMutations(t *testing.T) {
	r := newPairRouter(t, "east", "west")
	require.NoError(t, r.Init(t.Context(), []types.Endpoint{nodeA, nodeB, nodeC}))

	extra := types.NewEndpoint("10.0.0.9", "9042", "east")

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 200 {
				plan := r.PlanFor(context.Background(), readReq)
				seen := make(map[string]bool, len(plan))
				for _, ep := range plan {
					if seen[ep.Address] {
						t.Errorf("duplicate endpoint %s", ep.Address)
					}
					seen[ep.Address] = true
				}
			}
		})
	}
	wg.Go(func() {
		for range 200 {
			r.OnAdd(extra)
			r.OnRemove(extra)
		}
	})
	wg.Wait()

	assert.Len(t, r.Endpoints(), 3)
}

func TestRouterDo(t *testing.T) {
	r := newPairRouter(t, "east", "west")
	require.NoError(t, r.Init(t.Context(), []types.Endpoint{nodeA, nodeC}))

	var tried []string
	err := r.Do(t.Context(), writeReq, func(_ context.Context, ep types.Endpoint) error {
		tried = append(tried, ep.Address)
		if ep.Address == nodeC.Address {
			return &unavailableErr{}
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{nodeC.Address, nodeA.Address}, tried)

	empty := newPairRouter(t, "east", "west")
	require.NoError(t, empty.Init(t.Context(), nil))
	require.ErrorIs(t, empty.Do(t.Context(), writeReq, func(context.Context, types.Endpoint) error { return nil }),
		types.ErrNoEndpoint)
}

type unavailableErr struct{}

func (*unavailableErr) Error() string {
	return "not enough replicas"
}

func (*unavailableErr) ErrorClass() types.ErrorClass {
	return types.ErrorUnavailable
}
