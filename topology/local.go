package topology

import (
	"context"
	"errors"
	"sync"

	"github.com/arloliu/regionlb"
	"github.com/arloliu/regionlb/types"
)

var (
	// ErrClosed indicates the watcher was closed.
	ErrClosed = errors.New("regionlb/topology: watcher closed")

	// ErrBufferFull indicates an event could not be queued because nobody
	// is draining the watch channel.
	ErrBufferFull = errors.New("regionlb/topology: event buffer full")
)

// Local provides an in-memory topology watcher and operator.
//
// It lets tests and embedded deployments drive the router's topology
// programmatically. It implements both TopologyWatcher (for observing) and
// TopologyOperator (for publishing endpoint changes).
type Local struct {
	mu    sync.Mutex
	state *state

	updates       chan regionlb.TopologyEvent
	done          chan struct{}
	closed        bool
	updatesClosed bool
	watchStarted  bool
}

var (
	_ regionlb.TopologyWatcher  = (*Local)(nil)
	_ regionlb.TopologyOperator = (*Local)(nil)
)

// NewLocal creates a new in-memory topology watcher/operator.
//
// Only WithBufferSize applies to Local.
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - *Local: A new local topology instance
func NewLocal(opts ...WatcherOption) *Local {
	config := DefaultWatcherConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &Local{
		state:   newState(),
		updates: make(chan regionlb.TopologyEvent, config.BufferSize),
		done:    make(chan struct{}),
	}
}

// Watch returns a channel that receives topology events.
//
// Events are emitted when Publish or Withdraw change the known state. The
// channel is closed when Close() is called or the context is cancelled.
//
// Multiple calls to Watch return the same channel; only the first call's
// context controls the watch lifecycle.
//
// Parameters:
//   - ctx: Context for cancellation (only used on first call)
//
// Returns:
//   - <-chan regionlb.TopologyEvent: Channel of membership changes
func (l *Local) Watch(ctx context.Context) <-chan regionlb.TopologyEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.watchStarted {
		l.watchStarted = true
		go l.waitForClose(ctx)
	}

	return l.updates
}

// Publish announces an endpoint and its reachability.
//
// A new address emits an add followed by up or down. A reachability change
// emits up or down. A region change re-adds the endpoint. Publishing the
// same state twice emits nothing.
//
// Parameters:
//   - ctx: Accepted for interface compliance; not used
//   - ep: The endpoint to announce
//   - up: Whether the endpoint is reachable
//
// Returns:
//   - error: ErrClosed after Close, ErrBufferFull if the events do not fit
//     in the buffer; the state is then left unchanged so the same call can
//     be retried after the consumer drains
func (l *Local) Publish(_ context.Context, ep types.Endpoint, up bool) error {
	if ep.Address == "" {
		return ErrInvalidRecord
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.updatesClosed {
		return ErrClosed
	}

	rec := Record{Endpoint: ep, Up: up}
	events := l.state.changes(rec)
	if err := l.reserveLocked(len(events)); err != nil {
		return err
	}
	l.state.put(rec)

	return l.emitLocked(events)
}

// Withdraw announces that the endpoint with ep's address left the cluster.
//
// Parameters:
//   - ctx: Accepted for interface compliance; not used
//   - ep: The endpoint to withdraw (only the address is used)
//
// Returns:
//   - error: ErrClosed after Close, ErrBufferFull if the event does not fit;
//     the endpoint then stays known
func (l *Local) Withdraw(_ context.Context, ep types.Endpoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.updatesClosed {
		return ErrClosed
	}

	if _, known := l.state.lookup(ep.Address); !known {
		return nil
	}
	if err := l.reserveLocked(1); err != nil {
		return err
	}

	return l.emitLocked(l.state.remove(ep.Address))
}

// Lookup returns the last published record for an address.
//
// Returns:
//   - Record: The published state
//   - bool: true if the address is known
func (l *Local) Lookup(address string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state.lookup(address)
}

// Close stops the watcher and releases resources.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	close(l.done)

	// Nobody called Watch, so no goroutine will close the channel
	if !l.watchStarted && !l.updatesClosed {
		l.updatesClosed = true
		close(l.updates)
	}

	return nil
}

// reserveLocked reports ErrBufferFull unless n events fit in the buffer.
// Local is the only sender and holds mu, so the space cannot shrink before
// emitLocked runs.
func (l *Local) reserveLocked(n int) error {
	if cap(l.updates)-len(l.updates) < n {
		return ErrBufferFull
	}

	return nil
}

func (l *Local) emitLocked(events []regionlb.TopologyEvent) error {
	for _, ev := range events {
		select {
		case l.updates <- ev:
		default:
			return ErrBufferFull
		}
	}

	return nil
}

// waitForClose waits for context cancellation or close signal.
func (l *Local) waitForClose(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-l.done:
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.updatesClosed {
		l.updatesClosed = true
		close(l.updates)
	}
}
