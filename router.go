package regionlb

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/regionlb/directory"
	"github.com/arloliu/regionlb/internal/logging"
	"github.com/arloliu/regionlb/internal/metrics"
	"github.com/arloliu/regionlb/policy"
	"github.com/arloliu/regionlb/resolver"
	"github.com/arloliu/regionlb/types"
)

// Router is the region-aware endpoint router.
//
// It keeps the known endpoints, classifies them by region and produces a
// rotated candidate list for every request. Routing state is published as
// an immutable policy.Snapshot swapped atomically, so PlanFor never blocks
// on topology changes. Mutations are serialized by a single mutex.
//
// Lifecycle:
//   - New validates the configuration
//   - Init resolves the global endpoint (if any) and loads the endpoints
//   - OnAdd/OnRemove keep the tables current; OnUp/OnDown are logged only
//   - PlanFor routes requests
type Router struct {
	cfg      Config
	mode     Mode
	logger   types.Logger
	metrics  types.MetricsCollector
	lookuper resolver.Lookuper
	clock    resolver.Clock
	classify policy.ClassifyFunc

	dns     *resolver.Cache
	pair    policy.RegionPair
	ranking *policy.PreferredRegions
	dir     *directory.Directory
	retries *policy.RetryPolicy
	retrier *policy.Retrier

	mu          sync.Mutex
	snapshot    atomic.Pointer[policy.Snapshot]
	cursor      policy.Cursor
	initialized atomic.Bool
}

// Compile-time assertion that Router implements Balancer.
var _ Balancer = (*Router)(nil)

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
//
// *zap.SugaredLogger satisfies types.Logger directly.
//
// Parameters:
//   - logger: The logger
//
// Returns:
//   - Option: Configuration option
func WithLogger(logger types.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics collector.
//
// Parameters:
//   - collector: The metrics collector (e.g., contrib/metrics/vm)
//
// Returns:
//   - Option: Configuration option
func WithMetrics(collector types.MetricsCollector) Option {
	return func(r *Router) {
		r.metrics = collector
	}
}

// WithLookuper sets how the global endpoint is resolved.
//
// Parameters:
//   - lookuper: Address lookup implementation (e.g., resolver.DNSLookuper)
//
// Returns:
//   - Option: Configuration option
func WithLookuper(lookuper resolver.Lookuper) Option {
	return func(r *Router) {
		r.lookuper = lookuper
	}
}

// WithClock sets the time source for DNS expiry.
//
// Parameters:
//   - clock: Function returning the current time
//
// Returns:
//   - Option: Configuration option
func WithClock(clock resolver.Clock) Option {
	return func(r *Router) {
		r.clock = clock
	}
}

// WithErrorClassifier sets how Do classifies attempt errors.
//
// Parameters:
//   - classify: Error classifier
//
// Returns:
//   - Option: Configuration option
func WithErrorClassifier(classify policy.ClassifyFunc) Option {
	return func(r *Router) {
		r.classify = classify
	}
}

// New creates a Router from a configuration.
//
// Parameters:
//   - cfg: Region configuration; nil means DefaultConfig, which selects no
//     region and fails validation
//   - opts: Optional configuration options
//
// Returns:
//   - *Router: A router awaiting Init
//   - error: *types.ConfigurationError if cfg is invalid
func New(cfg *Config, opts ...Option) (*Router, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Router{
		cfg:  *cfg,
		mode: cfg.Mode(),
		dir:  directory.New(),
	}
	for _, opt := range opts {
		opt(r)
	}

	// Ensure logger and metrics are never nil
	if r.logger == nil {
		r.logger = logging.NewNopLogger()
	}
	if r.metrics == nil {
		r.metrics = metrics.NewNopMetrics()
	}

	switch r.mode {
	case ModePreferredRegions:
		r.ranking = policy.NewPreferredRegions(cfg.PreferredRegions, cfg.PrimaryRegion,
			policy.WithContactPoints(cfg.ContactPoints...),
			policy.WithMultiRegionWrites(cfg.MultiRegionWrites),
		)
	default:
		r.pair = policy.RegionPair{ReadRegion: cfg.ReadRegion, WriteRegion: cfg.WriteRegion}
		if cfg.GlobalEndpoint != "" {
			cacheOpts := []resolver.Option{
				resolver.WithTTL(cfg.DNSExpiry()),
				resolver.WithLogger(r.logger),
				resolver.WithMetrics(r.metrics),
			}
			if r.clock != nil {
				cacheOpts = append(cacheOpts, resolver.WithClock(r.clock))
			}
			r.dns = resolver.NewCache(cfg.GlobalEndpoint, r.lookuper, cacheOpts...)
			r.pair.InWriteRegion = r.dns.Contains
		}
	}

	r.retries = policy.NewRetryPolicy(cfg.Retry,
		policy.WithRetryLogger(r.logger),
		policy.WithRetryMetrics(r.metrics),
	)
	r.retrier = policy.NewRetrier(r.retries, r.classify)
	r.snapshot.Store(policy.EmptySnapshot())

	return r, nil
}

// Init bulk-loads the known endpoints.
//
// With a global endpoint configured, the first resolution happens here; a
// failure leaves the router uninitialized and may be retried.
//
// Parameters:
//   - ctx: Context bounding the initial resolution
//   - endpoints: The endpoints known at startup
//
// Returns:
//   - error: *types.ResolutionError on first resolution failure, or
//     types.ErrAlreadyInitialized on a second call
func (r *Router) Init(ctx context.Context, endpoints []types.Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized.Load() {
		return types.ErrAlreadyInitialized
	}

	if r.dns != nil {
		if _, err := r.dns.Resolve(ctx); err != nil {
			r.logger.Errorw("cannot resolve global endpoint",
				"host", r.dns.Host(),
				"error", err,
			)

			return err
		}
	}

	for _, ep := range endpoints {
		r.registerLocked(ep)
	}
	r.rebuildLocked()
	r.initialized.Store(true)

	r.logger.Infow("region router initialized",
		"mode", r.mode.String(),
		"endpoints", r.dir.Len(),
	)

	return nil
}

// OnAdd registers an endpoint and reclassifies. Duplicate addresses are
// ignored.
func (r *Router) OnAdd(ep types.Endpoint) {
	r.metrics.IncTopologyEvent(EventAdded.String())

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.registerLocked(ep) {
		return
	}
	r.rebuildLocked()

	r.logger.Infow("endpoint added", "endpoint", ep.String())
}

// OnRemove unregisters the endpoint with ep's address and reclassifies.
//
// The region carried by ep is ignored, so an endpoint added before its
// region was known is removed correctly.
func (r *Router) OnRemove(ep types.Endpoint) {
	r.metrics.IncTopologyEvent(EventRemoved.String())

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.dir.Unregister(ep)
	if !ok {
		return
	}
	if r.ranking != nil {
		r.ranking.Remove(stored)
	}
	r.rebuildLocked()

	r.logger.Infow("endpoint removed", "endpoint", stored.String())
}

// OnUp logs that an endpoint is reachable. Routing tables are not changed.
func (r *Router) OnUp(ep types.Endpoint) {
	r.metrics.IncTopologyEvent(EventUp.String())
	r.logger.Infow("endpoint up", "endpoint", ep.String())
}

// OnDown logs that an endpoint is unreachable.
//
// The endpoint stays in the routing tables: the database may still be
// reachable through another path. Only OnRemove evicts it.
func (r *Router) OnDown(ep types.Endpoint) {
	r.metrics.IncTopologyEvent(EventDown.String())
	r.logger.Warnw("endpoint down", "endpoint", ep.String())
}

// Apply dispatches a topology event to the matching callback.
func (r *Router) Apply(ev TopologyEvent) {
	switch ev.Type {
	case EventAdded:
		r.OnAdd(ev.Endpoint)
	case EventRemoved:
		r.OnRemove(ev.Endpoint)
	case EventUp:
		r.OnUp(ev.Endpoint)
	case EventDown:
		r.OnDown(ev.Endpoint)
	}
}

// Follow applies events from a watcher until its channel closes.
//
// It blocks; run it in its own goroutine and cancel ctx to stop it.
//
// Parameters:
//   - ctx: Context passed to the watcher
//   - watcher: Source of topology events
func (r *Router) Follow(ctx context.Context, watcher TopologyWatcher) {
	for ev := range watcher.Watch(ctx) {
		r.Apply(ev)
	}
}

// PlanFor returns the ordered candidate endpoints for a request.
//
// In region-pair mode with a global endpoint, an expired resolution is
// refreshed first. Reads walk read-local, write-local then remote
// endpoints; writes skip read-local. Every bucket is rotated by the shared
// cursor. An empty plan means no endpoint is known and is not an error.
//
// Parameters:
//   - ctx: Context bounding a DNS refresh, if one is due
//   - req: The request to route
//
// Returns:
//   - []types.Endpoint: Candidates in order; nil before Init
func (r *Router) PlanFor(ctx context.Context, req types.Request) []types.Endpoint {
	kind := req.Kind()
	r.metrics.IncPlanTotal(kind)

	if !r.initialized.Load() {
		r.metrics.IncEmptyPlan(kind)

		return nil
	}

	if r.dns != nil && r.dns.IsExpired() {
		r.refresh(ctx)
	}

	plan := r.snapshot.Load().Plan(req.IsRead(), r.cursor.Next())
	if len(plan) == 0 {
		r.metrics.IncEmptyPlan(kind)
	}

	return plan
}

// Do routes a request and runs fn against its plan under the retry policy.
//
// Parameters:
//   - ctx: Context bounding the request, including backoff waits
//   - req: The request to route
//   - fn: One attempt against one endpoint
//
// Returns:
//   - error: nil on success, types.ErrNoEndpoint for an empty plan, or the
//     last attempt error
func (r *Router) Do(ctx context.Context, req types.Request, fn policy.AttemptFunc) error {
	return r.retrier.Do(ctx, r.PlanFor(ctx, req), fn)
}

// refresh re-resolves the global endpoint and reclassifies.
//
// Only one caller refreshes at a time; concurrent callers keep routing on
// the current snapshot.
func (r *Router) refresh(ctx context.Context) {
	if !r.mu.TryLock() {
		return
	}
	defer r.mu.Unlock()

	if !r.dns.IsExpired() {
		return
	}

	if _, err := r.dns.Resolve(ctx); err != nil {
		r.logger.Warnw("global endpoint refresh failed", "host", r.dns.Host(), "error", err)

		return
	}
	r.rebuildLocked()
}

func (r *Router) registerLocked(ep types.Endpoint) bool {
	if !r.dir.Register(ep) {
		return false
	}
	if r.ranking != nil {
		r.ranking.Add(ep)
	}

	return true
}

func (r *Router) rebuildLocked() {
	var (
		snap  *policy.Snapshot
		names []string
	)

	switch r.mode {
	case ModePreferredRegions:
		snap = r.ranking.Snapshot()
		names = []string{types.BucketPreferred, types.BucketUnranked}
	default:
		snap = r.pair.Classify(r.dir.All()).Snapshot()
		names = []string{types.BucketReadLocal, types.BucketWriteLocal, types.BucketRemote}
	}
	r.snapshot.Store(snap)

	sizes := snap.Sizes()
	for _, name := range names {
		r.metrics.SetBucketSize(name, sizes[name])
	}

	r.logger.Debugw("endpoints classified",
		"mode", r.mode.String(),
		"buckets", sizes,
	)
}

// Distance returns the advisory distance of an endpoint, matched by address.
func (r *Router) Distance(ep types.Endpoint) types.Distance {
	return r.snapshot.Load().Distance(ep.Address)
}

// Endpoints returns the registered endpoints in registration order.
func (r *Router) Endpoints() []types.Endpoint {
	return r.dir.All()
}

// Snapshot returns the current routing snapshot.
func (r *Router) Snapshot() *policy.Snapshot {
	return r.snapshot.Load()
}

// Mode returns the classification scheme in use.
func (r *Router) Mode() Mode {
	return r.mode
}

// Config returns a copy of the configuration the router was built from.
func (r *Router) Config() Config {
	return r.cfg
}

// RetryPolicy returns the retry policy built from the configuration.
func (r *Router) RetryPolicy() *policy.RetryPolicy {
	return r.retries
}

// Initialized reports whether Init has completed successfully.
func (r *Router) Initialized() bool {
	return r.initialized.Load()
}
