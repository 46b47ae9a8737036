package topology

import (
	"time"

	"github.com/arloliu/regionlb/internal/logging"
	"github.com/arloliu/regionlb/types"
)

// WatcherConfig holds configuration for topology watchers.
type WatcherConfig struct {
	// Prefix is the KV key prefix of endpoint records. Each endpoint is
	// stored under "<Prefix>.<address>".
	// Default: "regionlb.endpoints"
	Prefix string

	// PollInterval is the fallback polling interval if watch fails.
	// Default: 5 seconds
	PollInterval time.Duration

	// FetchTimeout bounds one full listing of the bucket while polling.
	// Default: 10 seconds
	FetchTimeout time.Duration

	// BufferSize is the capacity of the event channel.
	// Default: 64
	BufferSize int

	// Logger receives decode failures and watch fallbacks.
	// Default: no-op
	Logger types.Logger
}

// DefaultWatcherConfig returns a WatcherConfig with sensible defaults.
//
// Returns:
//   - WatcherConfig: Default configuration
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Prefix:       "regionlb.endpoints",
		PollInterval: 5 * time.Second,
		FetchTimeout: 10 * time.Second,
		BufferSize:   64,
		Logger:       logging.NewNopLogger(),
	}
}

// WatcherOption configures a topology watcher.
type WatcherOption func(*WatcherConfig)

// WithPrefix sets the KV key prefix of endpoint records.
//
// Parameters:
//   - prefix: The key prefix (e.g., "prod.cassandra.nodes")
//
// Returns:
//   - WatcherOption: Configuration option
func WithPrefix(prefix string) WatcherOption {
	return func(c *WatcherConfig) {
		c.Prefix = prefix
	}
}

// WithPollInterval sets the fallback polling interval.
//
// If the NATS watch fails or disconnects, the watcher falls back to
// polling at this interval.
//
// Parameters:
//   - d: Polling interval duration
//
// Returns:
//   - WatcherOption: Configuration option
func WithPollInterval(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.PollInterval = d
	}
}

// WithFetchTimeout sets the timeout of one polling pass.
//
// Parameters:
//   - d: Timeout duration
//
// Returns:
//   - WatcherOption: Configuration option
func WithFetchTimeout(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.FetchTimeout = d
	}
}

// WithBufferSize sets the capacity of the event channel.
//
// Parameters:
//   - n: Channel capacity; values below 1 are ignored
//
// Returns:
//   - WatcherOption: Configuration option
func WithBufferSize(n int) WatcherOption {
	return func(c *WatcherConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// WithLogger sets the watcher logger.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - WatcherOption: Configuration option
func WithLogger(l types.Logger) WatcherOption {
	return func(c *WatcherConfig) {
		if l != nil {
			c.Logger = l
		}
	}
}
