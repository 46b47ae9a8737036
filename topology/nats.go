package topology

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/regionlb"
	"github.com/arloliu/regionlb/types"
)

// ErrNilKeyValue indicates NewNATS was called without a KV bucket.
var ErrNilKeyValue = errors.New("regionlb/topology: KeyValue store is nil")

// NATS follows endpoint records stored in a NATS KV bucket.
//
// Every endpoint is one key under the configured prefix holding a
// MessagePack-encoded Record. Puts become add/up/down events and deletes
// become remove events, so any number of routers can share one view of the
// cluster. NATS also implements TopologyOperator so agents can publish
// endpoints through the same type.
//
// Watch() should be called once per instance. Subsequent calls return the
// same channel. The channel is closed when Close() is called or the context
// is cancelled.
type NATS struct {
	kv     jetstream.KeyValue
	config WatcherConfig

	mu    sync.Mutex
	state *state
	keys  map[string]string // KV key -> endpoint address

	// Lifecycle
	updates      chan regionlb.TopologyEvent
	done         chan struct{}
	closed       bool
	watchStarted bool
	closeOnce    sync.Once
}

var (
	_ regionlb.TopologyWatcher  = (*NATS)(nil)
	_ regionlb.TopologyOperator = (*NATS)(nil)
)

// NewNATS creates a new NATS KV topology watcher.
//
// The watcher will begin following the KV bucket when Watch() is called.
//
// Parameters:
//   - kv: A NATS JetStream KeyValue store
//   - opts: Optional configuration options
//
// Returns:
//   - *NATS: A new watcher instance
//   - error: ErrNilKeyValue if kv is nil
//
// Example:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "regionlb")
//
//	watcher, _ := topology.NewNATS(kv,
//	    topology.WithPrefix("prod.endpoints"),
//	    topology.WithPollInterval(10*time.Second),
//	)
func NewNATS(kv jetstream.KeyValue, opts ...WatcherOption) (*NATS, error) {
	if kv == nil {
		return nil, ErrNilKeyValue
	}

	config := DefaultWatcherConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &NATS{
		kv:      kv,
		config:  config,
		state:   newState(),
		keys:    make(map[string]string),
		updates: make(chan regionlb.TopologyEvent, config.BufferSize),
		done:    make(chan struct{}),
	}, nil
}

// Watch returns a channel that receives topology events.
//
// The watcher spawns a background goroutine that follows every key under
// the prefix. Existing records are replayed first, so a router attached
// late still sees the full cluster.
//
// Multiple calls to Watch return the same channel; only the first call's
// context controls the watch lifecycle.
//
// Parameters:
//   - ctx: Context for cancellation (only used on first call)
//
// Returns:
//   - <-chan regionlb.TopologyEvent: Channel of membership changes
func (n *NATS) Watch(ctx context.Context) <-chan regionlb.TopologyEvent {
	n.mu.Lock()
	if n.watchStarted {
		n.mu.Unlock()

		return n.updates
	}
	n.watchStarted = true
	n.mu.Unlock()

	go n.watchLoop(ctx)

	return n.updates
}

// Publish stores the record of ep in the bucket.
//
// Parameters:
//   - ctx: Context for the KV write
//   - ep: The endpoint to announce
//   - up: Whether the endpoint is reachable
//
// Returns:
//   - error: ErrInvalidRecord for an empty address, or the KV error
func (n *NATS) Publish(ctx context.Context, ep types.Endpoint, up bool) error {
	if ep.Address == "" {
		return ErrInvalidRecord
	}

	rec := Record{Endpoint: ep, Up: up}
	data, err := rec.MarshalMsg(nil)
	if err != nil {
		return fmt.Errorf("regionlb/topology: encode %s: %w", ep.Address, err)
	}

	if _, err := n.kv.Put(ctx, KeyFor(n.config.Prefix, ep), data); err != nil {
		return fmt.Errorf("regionlb/topology: publish %s: %w", ep.Address, err)
	}

	return nil
}

// Withdraw deletes the record of ep from the bucket.
//
// Parameters:
//   - ctx: Context for the KV write
//   - ep: The endpoint to withdraw (only the address is used)
//
// Returns:
//   - error: The KV error, if any
func (n *NATS) Withdraw(ctx context.Context, ep types.Endpoint) error {
	if err := n.kv.Delete(ctx, KeyFor(n.config.Prefix, ep)); err != nil {
		return fmt.Errorf("regionlb/topology: withdraw %s: %w", ep.Address, err)
	}

	return nil
}

// Lookup returns the last record seen for an address.
//
// This reflects what the watch loop has processed. It does not perform a
// live KV fetch.
//
// Returns:
//   - Record: The record
//   - bool: true if the address is known
func (n *NATS) Lookup(address string) (Record, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.state.lookup(address)
}

// Close stops the watcher and releases resources.
//
// This method is safe to call multiple times.
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}

	n.closed = true
	close(n.done)

	return nil
}

// Config returns the watcher configuration.
//
// Returns:
//   - WatcherConfig: The current watcher configuration
func (n *NATS) Config() WatcherConfig {
	return n.config
}

func (n *NATS) watchLoop(ctx context.Context) {
	defer n.closeOnce.Do(func() { close(n.updates) })

	watcher, err := n.kv.Watch(ctx, n.config.Prefix+".>")
	if err != nil {
		n.config.Logger.Warnw("topology watch failed, polling instead",
			"prefix", n.config.Prefix, "error", err)
		n.pollLoop(ctx)

		return
	}
	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				n.config.Logger.Warnw("topology watch closed, polling instead", "prefix", n.config.Prefix)
				n.pollLoop(ctx)

				return
			}
			// nil marks the end of the initial replay
			if entry == nil {
				continue
			}
			if !n.emit(ctx, n.processEntry(entry)) {
				return
			}
		}
	}
}

func (n *NATS) pollLoop(ctx context.Context) {
	if !n.emit(ctx, n.poll(ctx)) {
		return
	}

	ticker := time.NewTicker(n.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case <-ticker.C:
			if !n.emit(ctx, n.poll(ctx)) {
				return
			}
		}
	}
}

// poll lists the bucket and reconciles the known state against it. A failed
// listing keeps the previous state.
func (n *NATS) poll(ctx context.Context) []regionlb.TopologyEvent {
	fetchCtx, cancel := context.WithTimeout(ctx, n.config.FetchTimeout)
	defer cancel()

	current, keys, err := n.fetchAll(fetchCtx)
	if err != nil {
		n.config.Logger.Warnw("topology poll failed", "prefix", n.config.Prefix, "error", err)

		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.keys = keys

	return n.state.reconcile(current)
}

func (n *NATS) fetchAll(ctx context.Context) (map[string]Record, map[string]string, error) {
	lister, err := n.kv.ListKeys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return map[string]Record{}, map[string]string{}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = lister.Stop() }()

	prefix := n.config.Prefix + "."
	current := make(map[string]Record)
	keys := make(map[string]string)
	for key := range lister.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		entry, err := n.kv.Get(ctx, key)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		var rec Record
		if _, err := rec.UnmarshalMsg(entry.Value()); err != nil {
			n.config.Logger.Warnw("skipping undecodable endpoint record", "key", key, "error", err)
			continue
		}
		current[rec.Endpoint.Address] = rec
		keys[key] = rec.Endpoint.Address
	}

	return current, keys, ctx.Err()
}

// processEntry applies one KV change and returns the resulting events.
func (n *NATS) processEntry(entry jetstream.KeyValueEntry) []regionlb.TopologyEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch entry.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		addr, ok := n.keys[entry.Key()]
		if !ok {
			return nil
		}
		delete(n.keys, entry.Key())

		return n.state.remove(addr)
	}

	var rec Record
	if _, err := rec.UnmarshalMsg(entry.Value()); err != nil {
		n.config.Logger.Warnw("skipping undecodable endpoint record", "key", entry.Key(), "error", err)

		return nil
	}

	var events []regionlb.TopologyEvent
	// The same key now holds a different address
	if prev, ok := n.keys[entry.Key()]; ok && prev != rec.Endpoint.Address {
		events = n.state.remove(prev)
	}
	n.keys[entry.Key()] = rec.Endpoint.Address

	return append(events, n.state.put(rec)...)
}

// emit delivers events in order. It returns false once the watcher is
// stopping.
func (n *NATS) emit(ctx context.Context, events []regionlb.TopologyEvent) bool {
	for _, ev := range events {
		select {
		case n.updates <- ev:
		case <-ctx.Done():
			return false
		case <-n.done:
			return false
		}
	}

	return true
}
