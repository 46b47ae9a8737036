package cqlroute

import (
	"context"
	"errors"
	"time"

	"github.com/arloliu/regionlb/policy"
	"github.com/arloliu/regionlb/types"
)

// Native protocol error codes shared by every CQL driver.
const (
	codeUnavailable   = 0x1000
	codeOverloaded    = 0x1001
	codeBootstrapping = 0x1002
	codeWriteTimeout  = 0x1100
	codeReadTimeout   = 0x1200
)

// requestError is the server error shape of both gocql drivers.
type requestError interface {
	error
	Code() int
	Message() string
}

// ClassifyRequestError classifies a server error by its protocol error
// code. It returns false if err carries no server error.
func ClassifyRequestError(err error) (types.ErrorClass, bool) {
	var reqErr requestError
	if !errors.As(err, &reqErr) {
		return types.ErrorOther, false
	}

	switch reqErr.Code() {
	case codeOverloaded:
		return types.ErrorOverloaded, true
	case codeReadTimeout:
		return types.ErrorReadTimeout, true
	case codeWriteTimeout:
		return types.ErrorWriteTimeout, true
	case codeUnavailable, codeBootstrapping:
		return types.ErrorUnavailable, true
	default:
		return types.ErrorOther, true
	}
}

// ErrorMessage returns the server message of err, or its text.
func ErrorMessage(err error) string {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr.Message()
	}

	return err.Error()
}

// Retrier applies a policy.RetryPolicy to driver retry callbacks.
//
// Drivers ask separately whether to retry and how, and the "how" callback
// receives neither the attempt count nor a context. Overload backoff
// therefore uses the server's RetryAfterMs hint or the fixed backoff, and
// sleeps on the driver's goroutine where cancellation cannot interrupt it.
// MaxSleep bounds that sleep.
type Retrier struct {
	Policy   *policy.RetryPolicy
	Sleep    func(time.Duration)
	MaxSleep time.Duration
}

// NewRetrier creates a Retrier for p, or for the default policy if p is nil.
func NewRetrier(p *policy.RetryPolicy) *Retrier {
	if p == nil {
		p = policy.NewRetryPolicy(policy.DefaultRetryConfig())
	}

	return &Retrier{Policy: p, Sleep: time.Sleep}
}

// Allow reports whether a query that has made attempts tries may run again.
func (r *Retrier) Allow(ctx context.Context, attempts int) bool {
	if ctx != nil && ctx.Err() != nil {
		return false
	}

	maxRetries := r.Policy.Config().MaxRetries
	if maxRetries < 0 {
		return true
	}

	// attempts counts the attempt that just failed
	return attempts-1 < maxRetries
}

// Decide returns the retry decision for class, sleeping through the
// overload backoff before a same-host retry.
func (r *Retrier) Decide(class types.ErrorClass, message string) policy.Decision {
	decision, delay := r.Policy.Decide(class, 0, message)
	if decision == policy.DecisionRetrySame && delay > 0 {
		if r.MaxSleep > 0 && delay > r.MaxSleep {
			delay = r.MaxSleep
		}
		r.Sleep(delay)
	}

	return decision
}
