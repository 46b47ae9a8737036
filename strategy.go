package regionlb

import (
	"context"
)

// Balancer is the routing contract a host driver integration talks to.
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
// PlanFor is called once per in-flight request; topology callbacks arrive
// from the driver's control connection.
type Balancer interface {
	// Init bulk-loads the known endpoints. It must be called exactly once
	// before routing.
	//
	// Parameters:
	//   - ctx: Context bounding the initial global endpoint resolution
	//   - endpoints: The endpoints known at startup
	//
	// Returns:
	//   - error: *types.ResolutionError if the global endpoint cannot be resolved
	Init(ctx context.Context, endpoints []Endpoint) error

	// OnAdd registers a new endpoint.
	OnAdd(ep Endpoint)

	// OnRemove unregisters an endpoint, matching by address.
	OnRemove(ep Endpoint)

	// OnUp records that an endpoint is reachable. Routing is unchanged.
	OnUp(ep Endpoint)

	// OnDown records that an endpoint is unreachable. Routing is unchanged.
	OnDown(ep Endpoint)

	// PlanFor returns the ordered candidate endpoints for a request.
	//
	// Parameters:
	//   - ctx: Context bounding a global endpoint refresh, if one is due
	//   - req: The request to route
	//
	// Returns:
	//   - []Endpoint: Candidates in order; may be empty
	PlanFor(ctx context.Context, req Request) []Endpoint

	// Distance returns the advisory distance of an endpoint.
	Distance(ep Endpoint) Distance
}

// TopologyWatcher monitors cluster membership changes.
//
// Implementations include topology.Local (in-memory) and topology.NATS (NATS KV backed).
type TopologyWatcher interface {
	// Watch returns a channel that receives topology events.
	//
	// The channel is closed when ctx is cancelled or the watcher is closed.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//
	// Returns:
	//   - <-chan TopologyEvent: Channel of membership changes
	Watch(ctx context.Context) <-chan TopologyEvent
}

// TopologyOperator publishes membership changes for a TopologyWatcher to
// observe.
//
// This interface is typically used by operations tools and tests.
// Implementations include topology.Local and topology.NATS.
type TopologyOperator interface {
	// Publish announces an endpoint and its reachability.
	//
	// Parameters:
	//   - ctx: Context for cancellation/timeout
	//   - ep: The endpoint to announce
	//   - up: Whether the endpoint is reachable
	//
	// Returns:
	//   - error: nil on success, error if the operation fails
	Publish(ctx context.Context, ep Endpoint, up bool) error

	// Withdraw announces that an endpoint left the cluster.
	//
	// Parameters:
	//   - ctx: Context for cancellation/timeout
	//   - ep: The endpoint to withdraw
	//
	// Returns:
	//   - error: nil on success, error if the operation fails
	Withdraw(ctx context.Context, ep Endpoint) error
}

// EventType is the kind of a TopologyEvent.
type EventType int

const (
	// EventAdded means the endpoint joined the cluster.
	EventAdded EventType = iota
	// EventRemoved means the endpoint left the cluster.
	EventRemoved
	// EventUp means the endpoint became reachable.
	EventUp
	// EventDown means the endpoint became unreachable.
	EventDown
)

// String returns the metric label of the EventType.
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "add"
	case EventRemoved:
		return "remove"
	case EventUp:
		return "up"
	case EventDown:
		return "down"
	default:
		return "unknown"
	}
}

// TopologyEvent represents one membership change.
type TopologyEvent struct {
	// Type of the change.
	Type EventType

	// Endpoint the change applies to.
	Endpoint Endpoint
}
