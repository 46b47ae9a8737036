package gocql

import (
	"errors"
	"time"

	"github.com/gocql/gocql"

	"github.com/arloliu/regionlb/internal/cqlroute"
	"github.com/arloliu/regionlb/policy"
	"github.com/arloliu/regionlb/types"
)

// ClassifyError maps a gocql error to a retry class.
//
// Server errors are classified by protocol error code. Driver-side
// connection failures and net errors are connection errors.
//
// Parameters:
//   - err: The error returned by the driver
//
// Returns:
//   - types.ErrorClass: The retry class
func ClassifyError(err error) types.ErrorClass {
	if class, ok := cqlroute.ClassifyRequestError(err); ok {
		return class
	}

	if errors.Is(err, gocql.ErrNoConnections) ||
		errors.Is(err, gocql.ErrConnectionClosed) ||
		errors.Is(err, gocql.ErrTimeoutNoResponse) {
		return types.ErrorConnection
	}

	return policy.DefaultClassify(err)
}

// RetryOption configures a RetryPolicy.
type RetryOption func(*RetryPolicy)

// WithMaxSleep caps the overload backoff slept inside GetRetryType.
//
// gocql calls GetRetryType without the query context, so the sleep cannot
// be cut short by cancellation. A cap keeps a large RetryAfterMs hint from
// holding the query past its deadline. Zero means no cap.
//
// Parameters:
//   - d: Longest single sleep
//
// Returns:
//   - RetryOption: Configuration option
func WithMaxSleep(d time.Duration) RetryOption {
	return func(r *RetryPolicy) {
		r.retrier.MaxSleep = d
	}
}

// RetryPolicy implements gocql.RetryPolicy with the router's retry rules.
//
// gocql asks Attempt whether another try is allowed and GetRetryType how to
// retry, without passing the attempt count to the latter. The overload
// backoff therefore uses the server's RetryAfterMs hint or the fixed
// backoff; the growing component applies only through Router.Do.
type RetryPolicy struct {
	retrier *cqlroute.Retrier
}

var _ gocql.RetryPolicy = (*RetryPolicy)(nil)

// NewRetryPolicy adapts p to gocql.
//
// Parameters:
//   - p: The retry policy, usually Router.RetryPolicy()
//   - opts: Optional configuration options
//
// Returns:
//   - *RetryPolicy: The policy to set on gocql.ClusterConfig.RetryPolicy
func NewRetryPolicy(p *policy.RetryPolicy, opts ...RetryOption) *RetryPolicy {
	r := &RetryPolicy{retrier: cqlroute.NewRetrier(p)}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Attempt reports whether q may be retried.
func (r *RetryPolicy) Attempt(q gocql.RetryableQuery) bool {
	return r.retrier.Allow(q.Context(), q.Attempts())
}

// GetRetryType decides how gocql retries after err.
//
// Overloaded errors sleep for the backoff, capped by WithMaxSleep, before
// retrying the same host. The sleep blocks the calling driver goroutine.
func (r *RetryPolicy) GetRetryType(err error) gocql.RetryType {
	switch r.retrier.Decide(ClassifyError(err), cqlroute.ErrorMessage(err)) {
	case policy.DecisionRetrySame:
		return gocql.Retry
	case policy.DecisionRetryNext:
		return gocql.RetryNextHost
	default:
		return gocql.Rethrow
	}
}
