package v2

import (
	"context"

	gocql "github.com/apache/cassandra-gocql-driver/v2"

	"github.com/arloliu/regionlb"
	"github.com/arloliu/regionlb/internal/cqlroute"
	"github.com/arloliu/regionlb/types"
)

// EndpointOf converts a driver host to a router endpoint.
//
// Parameters:
//   - host: Host metadata from the driver
//
// Returns:
//   - types.Endpoint: "connect-ip:port" labelled with the host's datacenter
func EndpointOf(host *gocql.HostInfo) types.Endpoint {
	return cqlroute.EndpointOf(host)
}

// RequestFor converts a driver statement to a router request.
//
// ExecutableStatements are unwrapped to the statement the caller built.
// Batches are always writes, queries are classified by their text and
// anything else is opaque.
//
// Parameters:
//   - stmt: The statement handed to Pick (may be nil)
//
// Returns:
//   - types.Request: The router's view of the statement
func RequestFor(stmt any) types.Request {
	if es, ok := stmt.(gocql.ExecutableStatement); ok {
		stmt = es.Statement()
	}
	if _, ok := stmt.(*gocql.Batch); ok {
		return types.NewBatch()
	}

	return cqlroute.StatementRequest(stmt)
}

// contextOf returns the context attached to the statement behind stmt.
func contextOf(stmt gocql.ExecutableStatement) context.Context {
	if stmt == nil {
		return context.Background()
	}
	if c, ok := stmt.Statement().(interface{ Context() context.Context }); ok {
		if ctx := c.Context(); ctx != nil {
			return ctx
		}
	}

	return context.Background()
}

// HostPolicyOption configures a HostPolicy.
type HostPolicyOption func(*HostPolicy)

// WithLogger sets the logger for plan entries the driver has no host for.
func WithLogger(logger types.Logger) HostPolicyOption {
	return func(p *HostPolicy) {
		p.hosts.SetLogger(logger)
	}
}

// HostPolicy implements gocql.HostSelectionPolicy on top of a router.
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

func (p *HostPolicy) Init(*gocql.Session) {}

func (p *HostPolicy) KeyspaceChanged(gocql.KeyspaceUpdateEvent) {}

func (p *HostPolicy) SetPartitioner(string) {}

// IsLocal reports whether the router considers the host local.
func (p *HostPolicy) IsLocal(host *gocql.HostInfo) bool {
	return p.hosts.IsLocal(EndpointOf(host))
}

func (p *HostPolicy) AddHost(host *gocql.HostInfo) {
	p.hosts.Add(EndpointOf(host), host)
}

func (p *HostPolicy) RemoveHost(host *gocql.HostInfo) {
	p.hosts.Remove(EndpointOf(host))
}

// HostUp adds unknown hosts before marking them up.
func (p *HostPolicy) HostUp(host *gocql.HostInfo) {
	p.hosts.Up(EndpointOf(host), host)
}

func (p *HostPolicy) HostDown(host *gocql.HostInfo) {
	p.hosts.Down(EndpointOf(host))
}

// Pick returns the hosts to try for a statement, in router order.
func (p *HostPolicy) Pick(stmt gocql.ExecutableStatement) gocql.NextHost {
	var req types.Request
	if stmt == nil {
		req = types.NewOpaque()
	} else {
		req = RequestFor(stmt)
	}

	return p.next(contextOf(stmt), req)
}

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
