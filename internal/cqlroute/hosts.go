package cqlroute

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/arloliu/regionlb"
	"github.com/arloliu/regionlb/internal/logging"
	"github.com/arloliu/regionlb/types"
)

// HostDescriber is the part of a driver's host metadata needed to build an
// endpoint. Both gocql drivers' *HostInfo satisfy it.
type HostDescriber interface {
	ConnectAddress() net.IP
	Port() int
	DataCenter() string
	HostID() string
}

// EndpointOf converts driver host metadata to a router endpoint.
//
// The address is "connect-ip:port" and the region is the datacenter. A host
// ID that is not a valid UUID is left zero.
func EndpointOf(h HostDescriber) types.Endpoint {
	ep := types.NewEndpoint(h.ConnectAddress().String(), strconv.Itoa(h.Port()), h.DataCenter())
	if id, err := uuid.Parse(h.HostID()); err == nil {
		ep.HostID = id
	}

	return ep
}

// StatementRequest classifies q by its statement text, or as opaque when it
// does not expose one.
func StatementRequest(q any) types.Request {
	if s, ok := q.(interface{ Statement() string }); ok {
		return types.NewStatement(s.Statement())
	}

	return types.NewOpaque()
}

// Hosts mirrors the driver's host events into a balancer and remembers the
// driver handle of each endpoint so router plans can be mapped back.
type Hosts[H any] struct {
	balancer regionlb.Balancer
	logger   types.Logger

	mu    sync.RWMutex
	hosts map[string]H
}

// NewHosts creates an empty registry in front of balancer.
//
// Parameters:
//   - balancer: The router receiving host events
//   - logger: Logger for plan entries without a driver host (nil for none)
//
// Returns:
//   - *Hosts[H]: The registry
func NewHosts[H any](balancer regionlb.Balancer, logger types.Logger) *Hosts[H] {
	return &Hosts[H]{
		balancer: balancer,
		logger:   logging.OrNop(logger),
		hosts:    make(map[string]H),
	}
}

// SetLogger replaces the registry's logger.
func (h *Hosts[H]) SetLogger(logger types.Logger) {
	h.logger = logging.OrNop(logger)
}

// Add stores host under ep and registers ep with the balancer the first
// time the address is seen.
func (h *Hosts[H]) Add(ep types.Endpoint, host H) {
	h.mu.Lock()
	_, known := h.hosts[ep.Address]
	h.hosts[ep.Address] = host
	h.mu.Unlock()

	if !known {
		h.balancer.OnAdd(ep)
	}
}

// Remove forgets ep and unregisters it from the balancer.
func (h *Hosts[H]) Remove(ep types.Endpoint) {
	h.mu.Lock()
	delete(h.hosts, ep.Address)
	h.mu.Unlock()

	h.balancer.OnRemove(ep)
}

// Up adds ep if needed and marks it reachable. Drivers may report a host up
// before adding it.
func (h *Hosts[H]) Up(ep types.Endpoint, host H) {
	h.Add(ep, host)
	h.balancer.OnUp(ep)
}

// Down marks ep unreachable.
func (h *Hosts[H]) Down(ep types.Endpoint) {
	h.balancer.OnDown(ep)
}

// IsLocal reports whether the balancer considers ep local.
func (h *Hosts[H]) IsLocal(ep types.Endpoint) bool {
	return h.balancer.Distance(ep) == types.DistanceLocal
}

// Lookup returns the driver host stored for an address.
func (h *Hosts[H]) Lookup(address string) (H, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	host, ok := h.hosts[address]

	return host, ok
}

// Plan returns an iterator over the driver hosts of the balancer's plan for
// req. Endpoints the driver never reported, such as a resolved global
// endpoint without a pool, are skipped. The iterator returns false once the
// plan is exhausted.
func (h *Hosts[H]) Plan(ctx context.Context, req types.Request) func() (H, bool) {
	plan := h.balancer.PlanFor(ctx, req)
	i := 0

	return func() (H, bool) {
		for i < len(plan) {
			ep := plan[i]
			i++

			if host, ok := h.Lookup(ep.Address); ok {
				return host, true
			}
			h.logger.Debugw("skipping endpoint without driver host", "endpoint", ep.String())
		}

		var zero H

		return zero, false
	}
}
