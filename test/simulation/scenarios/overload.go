package scenarios

import (
	"context"
	"fmt"

	"github.com/arloliu/regionlb/test/simulation/chaos"
	simtypes "github.com/arloliu/regionlb/test/simulation/types"
	"github.com/arloliu/regionlb/types"
)

// Overload makes a region shed half of its requests with a retry hint.
//
// Overloaded requests are retried on the same node after the hinted delay,
// so they still succeed within the retry budget most of the time.
type Overload struct {
	Region string
}

func (s *Overload) Name() string {
	return "overload"
}

func (s *Overload) Description() string {
	return "Rate-limits one region to verify same-node retries with the server's backoff hint"
}

func (s *Overload) Run(ctx context.Context, env *simtypes.Environment) error {
	env.Logger.Infow("overloading region", "region", s.Region)
	env.Chaos.SetFault(s.Region, chaos.Fault{
		Class:     types.ErrorOverloaded,
		ErrorRate: 0.5,
		Message:   "rate limit reached RetryAfterMs=2",
	})
	env.Tracker.Reset()

	if err := hold(ctx, env.Duration); err != nil {
		return err
	}

	stats := env.Tracker.Snapshot()
	env.Chaos.Clear(s.Region)
	env.Logger.Infow("overload cleared", "region", s.Region, "stats", stats.String())

	if stats.Requests > 0 && stats.Attempts <= stats.Requests {
		return fmt.Errorf("no retries observed while %s was overloaded", s.Region)
	}
	if env.Metrics != nil && env.Metrics.GetRetryDecisions("retry") == 0 {
		return fmt.Errorf("no same-node retry decisions recorded for %s", s.Region)
	}
	// Four attempts at 50% each fail together about 6% of the time
	if stats.FailureRatio() > 0.15 {
		return fmt.Errorf("failure ratio %.3f too high under overload", stats.FailureRatio())
	}

	return nil
}
