package scenarios

import (
	"context"
	"fmt"

	"github.com/arloliu/regionlb/test/simulation/chaos"
	simtypes "github.com/arloliu/regionlb/test/simulation/types"
	"github.com/arloliu/regionlb/types"
)

// RegionOutage makes every node of one region unavailable.
//
// Reads and writes must keep succeeding through the fallback buckets.
type RegionOutage struct {
	Region string
}

func (s *RegionOutage) Name() string {
	return "region-outage"
}

func (s *RegionOutage) Description() string {
	return "Fails every node of one region to verify requests fall back to other regions"
}

func (s *RegionOutage) Run(ctx context.Context, env *simtypes.Environment) error {
	env.Logger.Infow("taking region down", "region", s.Region)
	env.Chaos.SetFault(s.Region, chaos.Fault{Class: types.ErrorUnavailable, ErrorRate: 1})
	env.Tracker.Reset()

	if err := hold(ctx, env.Duration); err != nil {
		return err
	}

	stats := env.Tracker.Snapshot()
	env.Chaos.Clear(s.Region)
	env.Logger.Infow("region recovered", "region", s.Region, "stats", stats.String())

	if stats.Failures > 0 {
		return fmt.Errorf("%d of %d requests failed during outage of %s", stats.Failures, stats.Requests, s.Region)
	}
	if share := stats.ServedShare("read", s.Region) + stats.ServedShare("write", s.Region); share > 0 {
		return fmt.Errorf("region %s served requests while down", s.Region)
	}

	return nil
}
