// Package resolver resolves the symbolic global endpoint to the set of
// addresses that currently serve the primary write region.
package resolver

import (
	"context"
	"net"
	"slices"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/arloliu/regionlb/internal/logging"
	"github.com/arloliu/regionlb/internal/metrics"
	"github.com/arloliu/regionlb/types"
)

// DefaultTTL is the default time-to-live of a resolution.
const DefaultTTL = 60 * time.Second

// Lookuper resolves a host name to its network addresses.
//
// Implementations must be safe for concurrent use. Addresses are returned as
// textual IPs.
type Lookuper interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Clock returns the current time.
type Clock func() time.Time

// Cache resolves one symbolic host on a time-to-live basis.
//
// Expiry is computed on whole seconds: a resolution made at second t0 with a
// TTL of T seconds is served until second t0+T, at which point it expires.
// A failed refresh keeps serving the previous addresses; only a failure with
// no previous resolution is reported as an error.
type Cache struct {
	host     string
	lookuper Lookuper
	ttl      int64
	now      Clock
	logger   types.Logger
	metrics  types.MetricsCollector

	mu       sync.RWMutex
	addrs    mapset.Set[string]
	lastUnix int64
	resolved bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the resolution time-to-live.
//
// Sub-second precision is dropped. Non-positive values keep the default.
//
// Parameters:
//   - ttl: Time-to-live of a successful resolution
//
// Returns:
//   - Option: Configuration option
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if secs := int64(ttl / time.Second); secs > 0 {
			c.ttl = secs
		}
	}
}

// WithClock sets the time source. Tests use it to control expiry.
//
// Parameters:
//   - clock: Function returning the current time
//
// Returns:
//   - Option: Configuration option
func WithClock(clock Clock) Option {
	return func(c *Cache) {
		c.now = clock
	}
}

// WithLogger sets the logger used for refresh failures.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - Option: Configuration option
func WithLogger(l types.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// WithMetrics sets the metrics collector.
//
// Parameters:
//   - m: The metrics collector
//
// Returns:
//   - Option: Configuration option
func WithMetrics(m types.MetricsCollector) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// NewCache creates a Cache for a symbolic host.
//
// The host may carry a port ("global.example.com:10350"); only the host part
// is resolved. If lookuper is nil the system resolver is used.
//
// Parameters:
//   - host: The symbolic host (optionally host:port)
//   - lookuper: Address lookup implementation (nil for the system resolver)
//   - opts: Optional configuration options
//
// Returns:
//   - *Cache: A new, empty cache
func NewCache(host string, lookuper Lookuper, opts ...Option) *Cache {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	c := &Cache{
		host:     host,
		lookuper: lookuper,
		ttl:      int64(DefaultTTL / time.Second),
		now:      time.Now,
		addrs:    mapset.NewSet[string](),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.lookuper == nil {
		c.lookuper = NewSystemLookuper()
	}
	if c.logger == nil {
		c.logger = logging.NewNopLogger()
	}
	if c.metrics == nil {
		c.metrics = metrics.NewNopMetrics()
	}

	return c
}

// Host returns the symbolic host resolved by this cache.
func (c *Cache) Host() string {
	return c.host
}

// IsExpired reports whether the cached resolution has expired.
//
// A cache that has never resolved successfully is always expired.
func (c *Cache) IsExpired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.expiredLocked(c.now().Unix())
}

// Resolve returns the addresses of the symbolic host.
//
// Cached addresses are returned while the TTL has not elapsed. Otherwise a
// fresh lookup is performed: on success the cache is replaced and the
// resolution time reset; on failure the previous addresses are returned if
// there are any, else a *types.ResolutionError is returned.
//
// Parameters:
//   - ctx: Context bounding the lookup
//
// Returns:
//   - []string: Sorted resolved addresses
//   - error: *types.ResolutionError if no resolution has ever succeeded
func (c *Cache) Resolve(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	if !c.expiredLocked(c.now().Unix()) {
		out := sortedSlice(c.addrs)
		c.mu.RUnlock()

		return out, nil
	}
	c.mu.RUnlock()

	return c.refresh(ctx)
}

// Contains reports whether host is among the cached addresses.
//
// It never triggers a lookup.
func (c *Cache) Contains(host string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.addrs.Contains(types.CanonicalHost(host))
}

// LastResolution returns the time of the last successful lookup, truncated
// to whole seconds. The zero time is returned before the first success.
func (c *Cache) LastResolution() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.resolved {
		return time.Time{}
	}

	return time.Unix(c.lastUnix, 0)
}

func (c *Cache) refresh(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock
	if !c.expiredLocked(c.now().Unix()) {
		return sortedSlice(c.addrs), nil
	}

	found, err := c.lookuper.LookupHost(ctx, c.host)
	if err == nil && len(found) == 0 {
		err = types.ErrNoAddresses
	}
	if err != nil {
		c.metrics.IncDNSRefreshError()
		if !c.resolved {
			return nil, &types.ResolutionError{Host: c.host, Cause: err}
		}

		c.metrics.IncDNSStaleServed()
		c.logger.Warnw("global endpoint refresh failed, keeping previous addresses",
			"host", c.host,
			"addresses", c.addrs.Cardinality(),
			"error", err,
		)

		return sortedSlice(c.addrs), nil
	}

	next := mapset.NewSetWithSize[string](len(found))
	for _, addr := range found {
		next.Add(types.CanonicalHost(addr))
	}

	if !next.Equal(c.addrs) {
		c.logger.Infow("global endpoint resolved",
			"host", c.host,
			"addresses", sortedSlice(next),
		)
	}

	c.addrs = next
	c.lastUnix = c.now().Unix()
	c.resolved = true
	c.metrics.IncDNSRefresh()

	return sortedSlice(c.addrs), nil
}

func (c *Cache) expiredLocked(nowUnix int64) bool {
	if !c.resolved {
		return true
	}

	return nowUnix >= c.lastUnix+c.ttl
}

func sortedSlice(s mapset.Set[string]) []string {
	out := s.ToSlice()
	slices.Sort(out)

	return out
}
