package v2

import (
	"errors"
	"time"

	gocql "github.com/apache/cassandra-gocql-driver/v2"

	"github.com/arloliu/regionlb/internal/cqlroute"
	"github.com/arloliu/regionlb/policy"
	"github.com/arloliu/regionlb/types"
)

// ClassifyError maps a driver error to a retry class.
//
// Parameters:
//   - err: The error returned by the driver
//
// Returns:
//   - types.ErrorClass: The class of the protocol error code, ErrorConnection
//     for driver connection failures, otherwise policy.DefaultClassify
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

// WithMaxSleep caps the overload backoff slept inside GetRetryType. Zero
// means no cap.
func WithMaxSleep(d time.Duration) RetryOption {
	return func(r *RetryPolicy) {
		r.retrier.MaxSleep = d
	}
}

// RetryPolicy implements gocql.RetryPolicy with the router's retry rules.
//
// Overloaded errors sleep for the RetryAfterMs hint or the fixed backoff on
// the driver goroutine, which cancellation cannot interrupt; bound it with
// WithMaxSleep.
type RetryPolicy struct {
	retrier *cqlroute.Retrier
}

var _ gocql.RetryPolicy = (*RetryPolicy)(nil)

// NewRetryPolicy adapts p to the driver. A nil p uses the default policy.
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

// GetRetryType decides how the driver retries after err.
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
