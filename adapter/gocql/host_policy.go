package gocql

import (
	"context"

	"github.com/gocql/gocql"

	"github.com/arloliu/regionlb"
	"github.com/arloliu/regionlb/internal/cqlroute"
	"github.com/arloliu/regionlb/types"
)

// EndpointOf converts a gocql host to a router endpoint.
//
// The address is "connect-ip:port" and the region is the host's datacenter.
// A host ID that is not a valid UUID is left zero.
//
// Parameters:
//   - host: Host metadata from the driver
//
// Returns:
//   - types.Endpoint: The router's view of the host
func EndpointOf(host *gocql.HostInfo) types.Endpoint {
	return cqlroute.EndpointOf(host)
}

// RequestFor converts a driver query to a router request.
//
// Batches are always writes. Anything exposing its statement text is
// classified by that text; everything else is opaque.
//
// Parameters:
//   - q: The query handed to Pick (may be nil)
//
// Returns:
//   - types.Request: The router's view of the query
func RequestFor(q any) types.Request {
	if _, ok := q.(*gocql.Batch); ok {
		return types.NewBatch()
	}

	return cqlroute.StatementRequest(q)
}

// HostPolicyOption configures a HostPolicy.
type HostPolicyOption func(*HostPolicy)

// WithLogger sets the logger for host events the router cannot map.
//
// Parameters:
//   - logger: The logger
//
// Returns:
//   - HostPolicyOption: Configuration option
func WithLogger(logger types.Logger) HostPolicyOption {
	return func(p *HostPolicy) {
		p.hosts.SetLogger(logger)
	}
}

// HostPolicy implements gocql.HostSelectionPolicy on top of a router.
//
// The driver reports hosts through AddHost/RemoveHost/HostUp/HostDown; the
// policy forwards them to the router and remembers each host's driver
// handle. Pick turns the router's plan back into driver hosts.
type HostPolicy struct {
	hosts *cqlroute.Hosts[*gocql.HostInfo]
}

var _ gocql.HostSelectionPolicy = (*HostPolicy)(nil)

// NewHostPolicy creates a host selection policy backed by balancer.
//
// Parameters:
//   - balancer: The router that orders endpoints
//   - opts: Optional configuration options
//
// Returns:
//   - *HostPolicy: The policy to set on gocql.ClusterConfig.PoolConfig.HostSelectionPolicy
//   - error: types.ErrNilRouter if balancer is nil
//
// Example:
//
//	router, _ := regionlb.New(cfg)
//	hostPolicy, _ := gocqladapter.NewHostPolicy(router)
//
//	cluster := gocql.NewCluster("10.0.0.1", "10.0.1.1")
//	cluster.PoolConfig.HostSelectionPolicy = hostPolicy
func NewHostPolicy(balancer regionlb.Balancer, opts ...HostPolicyOption) (*HostPolicy, error) {
	if balancer == nil {
		return nil, types.ErrNilRouter
	}

	p := &HostPolicy{hosts: cqlroute.NewHosts[*gocql.HostInfo](balancer, nil)}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Init is a no-op; the router is initialized by its owner.
func (p *HostPolicy) Init(*gocql.Session) {}

// KeyspaceChanged is a no-op.
func (p *HostPolicy) KeyspaceChanged(gocql.KeyspaceUpdateEvent) {}

// SetPartitioner is a no-op; routing is not token aware.
func (p *HostPolicy) SetPartitioner(string) {}

// IsLocal reports whether the router considers the host local.
func (p *HostPolicy) IsLocal(host *gocql.HostInfo) bool {
	return p.hosts.IsLocal(EndpointOf(host))
}

// AddHost registers the host with the router.
func (p *HostPolicy) AddHost(host *gocql.HostInfo) {
	p.hosts.Add(EndpointOf(host), host)
}

// RemoveHost unregisters the host from the router.
func (p *HostPolicy) RemoveHost(host *gocql.HostInfo) {
	p.hosts.Remove(EndpointOf(host))
}

// HostUp forwards reachability to the router.
//
// gocql may report a host up before adding it, so unknown hosts are added.
func (p *HostPolicy) HostUp(host *gocql.HostInfo) {
	p.hosts.Up(EndpointOf(host), host)
}

// HostDown forwards reachability to the router.
func (p *HostPolicy) HostDown(host *gocql.HostInfo) {
	p.hosts.Down(EndpointOf(host))
}

// Pick returns the hosts to try for a query, in router order.
func (p *HostPolicy) Pick(q gocql.ExecutableQuery) gocql.NextHost {
	ctx := context.Background()
	var query any
	if q != nil {
		query = q
		if qctx := q.Context(); qctx != nil {
			ctx = qctx
		}
	}

	return p.next(ctx, RequestFor(query))
}

// next wraps the router's plan for req as a driver iterator.
func (p *HostPolicy) next(ctx context.Context, req types.Request) gocql.NextHost {
	plan := p.hosts.Plan(ctx, req)

	return func() gocql.SelectedHost {
		host, ok := plan()
		if !ok {
			return nil
		}

		return selectedHost{info: host}
	}
}

var _ gocql.SelectedHost = selectedHost{}

type selectedHost struct {
	info *gocql.HostInfo
}

func (h selectedHost) Info() *gocql.HostInfo {
	return h.info
}

func (h selectedHost) Mark(error) {}
