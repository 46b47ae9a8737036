package policy

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/arloliu/regionlb/internal/logging"
	"github.com/arloliu/regionlb/internal/metrics"
	"github.com/arloliu/regionlb/types"
)

// Retry defaults.
const (
	DefaultMaxRetries     = 3
	DefaultFixedBackoff   = 5 * time.Second
	DefaultGrowingBackoff = 1 * time.Second
)

// retryAfterPattern extracts a server-provided backoff hint from an
// overload error message.
var retryAfterPattern = regexp.MustCompile(`RetryAfterMs=(\d+)`)

// Decision is the outcome of a retry evaluation.
type Decision int

const (
	// DecisionRethrow gives up and returns the error to the caller.
	DecisionRethrow Decision = iota
	// DecisionRetrySame retries on the endpoint that just failed.
	DecisionRetrySame
	// DecisionRetryNext retries on the next endpoint of the plan.
	DecisionRetryNext
)

// String returns the metric label of the Decision.
func (d Decision) String() string {
	switch d {
	case DecisionRetrySame:
		return "retry"
	case DecisionRetryNext:
		return "retry_next"
	default:
		return "rethrow"
	}
}

// RetryConfig holds the retry policy settings.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// A negative value retries without bound.
	MaxRetries int `yaml:"max_retries"`

	// FixedBackoff is the base delay before retrying an overloaded endpoint.
	FixedBackoff time.Duration `yaml:"fixed_backoff"`

	// GrowingBackoff is added to FixedBackoff once per previous retry.
	GrowingBackoff time.Duration `yaml:"growing_backoff"`
}

// DefaultRetryConfig returns the default retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     DefaultMaxRetries,
		FixedBackoff:   DefaultFixedBackoff,
		GrowingBackoff: DefaultGrowingBackoff,
	}
}

// RetryPolicy decides how a failed request is retried.
//
// Overloaded endpoints are retried in place after a backoff, coordinator
// timeouts are retried in place immediately, and unavailable or unreachable
// endpoints are skipped in favor of the next endpoint of the plan. Anything
// else is returned to the caller.
type RetryPolicy struct {
	cfg     RetryConfig
	logger  types.Logger
	metrics types.MetricsCollector
}

// RetryOption configures a RetryPolicy.
type RetryOption func(*RetryPolicy)

// WithRetryLogger sets the logger for retry decisions.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - RetryOption: Configuration option
func WithRetryLogger(l types.Logger) RetryOption {
	return func(p *RetryPolicy) {
		p.logger = logging.OrNop(l)
	}
}

// WithRetryMetrics sets the metrics collector for retry decisions.
//
// Parameters:
//   - m: The metrics collector
//
// Returns:
//   - RetryOption: Configuration option
func WithRetryMetrics(m types.MetricsCollector) RetryOption {
	return func(p *RetryPolicy) {
		p.metrics = m
	}
}

// NewRetryPolicy creates a RetryPolicy.
//
// Parameters:
//   - cfg: Retry settings
//   - opts: Optional configuration options
//
// Returns:
//   - *RetryPolicy: A new retry policy
func NewRetryPolicy(cfg RetryConfig, opts ...RetryOption) *RetryPolicy {
	p := &RetryPolicy{
		cfg:     cfg,
		logger:  logging.NewNopLogger(),
		metrics: metrics.NewNopMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Config returns the policy settings.
func (p *RetryPolicy) Config() RetryConfig {
	return p.cfg
}

// Decide evaluates one failure.
//
// Parameters:
//   - class: The class of the failure
//   - retries: Number of retries already performed for this request
//   - message: The server error message, searched for a RetryAfterMs hint
//
// Returns:
//   - Decision: What to do next
//   - time.Duration: How long to wait before the next attempt
func (p *RetryPolicy) Decide(class types.ErrorClass, retries int, message string) (Decision, time.Duration) {
	decision, delay := p.decide(class, retries, message)
	p.metrics.IncRetryDecision(decision.String())
	p.logger.Debugw("retry decision",
		"class", class.String(),
		"retries", retries,
		"decision", decision.String(),
		"delay", delay,
	)

	return decision, delay
}

func (p *RetryPolicy) decide(class types.ErrorClass, retries int, message string) (Decision, time.Duration) {
	if p.cfg.MaxRetries >= 0 && retries >= p.cfg.MaxRetries {
		return DecisionRethrow, 0
	}

	switch class {
	case types.ErrorOverloaded:
		return DecisionRetrySame, p.OverloadDelay(retries, message)
	case types.ErrorReadTimeout, types.ErrorWriteTimeout:
		return DecisionRetrySame, 0
	case types.ErrorUnavailable, types.ErrorConnection:
		return DecisionRetryNext, 0
	default:
		return DecisionRethrow, 0
	}
}

// OverloadDelay returns the backoff before retrying an overloaded endpoint.
//
// A RetryAfterMs=<n> hint in the server message wins; otherwise the delay
// is FixedBackoff plus GrowingBackoff for every previous retry.
func (p *RetryPolicy) OverloadDelay(retries int, message string) time.Duration {
	if m := retryAfterPattern.FindStringSubmatch(message); m != nil {
		if ms, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}

	return p.cfg.FixedBackoff + time.Duration(retries)*p.cfg.GrowingBackoff
}

// ClassifiedError is implemented by errors that know their retry class.
type ClassifiedError interface {
	error
	ErrorClass() types.ErrorClass
}

// ClassifyFunc maps an error to its retry class.
type ClassifyFunc func(err error) types.ErrorClass

// DefaultClassify recognizes ClassifiedError and network errors. Everything
// else is types.ErrorOther.
func DefaultClassify(err error) types.ErrorClass {
	var classified ClassifiedError
	if errors.As(err, &classified) {
		return classified.ErrorClass()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return types.ErrorConnection
	}

	return types.ErrorOther
}

// AttemptFunc runs one attempt of a request against an endpoint.
type AttemptFunc func(ctx context.Context, ep types.Endpoint) error

// Retrier walks a plan under a RetryPolicy.
type Retrier struct {
	policy   *RetryPolicy
	classify ClassifyFunc
	logger   types.Logger
}

// NewRetrier creates a Retrier. A nil classify uses DefaultClassify.
//
// Parameters:
//   - policy: The retry policy
//   - classify: Error classifier
//
// Returns:
//   - *Retrier: A new retrier
func NewRetrier(policy *RetryPolicy, classify ClassifyFunc) *Retrier {
	if classify == nil {
		classify = DefaultClassify
	}

	return &Retrier{
		policy:   policy,
		classify: classify,
		logger:   policy.logger,
	}
}

// Do runs fn against the plan until it succeeds or the policy gives up.
//
// The first attempt goes to plan[0]. Each failure is classified and handed
// to the policy, which either retries the same endpoint, moves to the next
// one, or stops. Running off the end of the plan stops with the last error.
//
// Parameters:
//   - ctx: Context bounding the whole request, including backoff waits
//   - plan: Candidate endpoints in order
//   - fn: The attempt to run
//
// Returns:
//   - error: nil on success, types.ErrNoEndpoint for an empty plan, or the
//     last attempt error
func (r *Retrier) Do(ctx context.Context, plan []types.Endpoint, fn AttemptFunc) error {
	if len(plan) == 0 {
		return types.ErrNoEndpoint
	}

	var (
		idx     int
		retries int
		delay   time.Duration
	)

	return retry.Do(
		func() error {
			err := fn(ctx, plan[idx])
			if err == nil {
				return nil
			}

			class := r.classify(err)
			decision, wait := r.policy.Decide(class, retries, err.Error())
			switch decision {
			case DecisionRetrySame:
			case DecisionRetryNext:
				if idx+1 >= len(plan) {
					return retry.Unrecoverable(err)
				}
				idx++
			default:
				return retry.Unrecoverable(err)
			}

			retries++
			delay = wait

			return err
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.DelayType(func(_ uint, _ error, _ *retry.Config) time.Duration {
			return delay
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Debugw("retrying request",
				"attempt", n+1,
				"endpoint", plan[idx].String(),
				"error", err,
			)
		}),
	)
}
