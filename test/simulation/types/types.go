package types

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arloliu/regionlb"
	"github.com/arloliu/regionlb/test/simulation/chaos"
	"github.com/arloliu/regionlb/test/simulation/workload"
	"github.com/arloliu/regionlb/test/testutil"
	"github.com/arloliu/regionlb/topology"
	lbtypes "github.com/arloliu/regionlb/types"
)

// Environment holds the shared resources for the simulation.
type Environment struct {
	Router   *regionlb.Router
	Topology *topology.Local
	Chaos    *chaos.Injector
	Tracker  *workload.Tracker
	Metrics  *testutil.TestMetricsCollector
	Logger   *zap.SugaredLogger
	Nodes    []lbtypes.Endpoint

	// Duration is how long a scenario keeps its fault active.
	Duration time.Duration
}

// NodesIn returns the simulated nodes of a region.
func (e *Environment) NodesIn(region string) []lbtypes.Endpoint {
	var out []lbtypes.Endpoint
	for _, ep := range e.Nodes {
		if ep.Region == region {
			out = append(out, ep)
		}
	}

	return out
}

// Scenario defines a test scenario interface.
type Scenario interface {
	// Name returns the unique name of the scenario.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Run executes the scenario logic.
	Run(ctx context.Context, env *Environment) error
}
