package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arloliu/regionlb/test/simulation/config"
	"github.com/arloliu/regionlb/test/simulation/scenarios"
)

func shortConfig() *config.Config {
	cfg := config.Default()
	cfg.Simulation.Seed = 42
	cfg.Simulation.TrafficInterval = time.Millisecond
	cfg.Simulation.ScenarioDuration = 300 * time.Millisecond
	cfg.Simulation.ConsoleInterval = 0

	return cfg
}

func TestSimulationQuickProfile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping simulation in short mode")
	}

	cfg := shortConfig()
	sim := New(cfg, zaptest.NewLogger(t).Sugar())
	sim.RegisterScenario(&scenarios.RegionOutage{Region: cfg.Router.ReadRegion})
	sim.RegisterScenario(&scenarios.Overload{Region: cfg.Router.WriteRegion})
	sim.RegisterScenario(&scenarios.NodeChurn{Region: cfg.Router.ReadRegion})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, sim.Run(ctx))

	env := sim.Environment()
	require.NotNil(t, env)
	assert.Len(t, env.Nodes, 8)
	assert.Len(t, env.NodesIn("eu-west-1"), 2)
	assert.Len(t, env.Router.Endpoints(), 8)
}

func TestSimulationRoutesToPreferredRegions(t *testing.T) {
	cfg := shortConfig()
	sim := New(cfg, zaptest.NewLogger(t).Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// No scenarios: only the steady-state check runs
	require.NoError(t, sim.Run(ctx))

	stats := sim.Environment().Tracker.Snapshot()
	require.Positive(t, stats.Requests)
	assert.Zero(t, stats.Failures)
	// Without faults every request takes one attempt; the last may be cut off
	assert.LessOrEqual(t, stats.Attempts-stats.Requests, int64(1))

	if stats.Served["read"] != nil {
		assert.InDelta(t, 1.0, stats.ServedShare("read", "us-east-1"), 0.0001)
	}
	if stats.Served["write"] != nil {
		assert.InDelta(t, 1.0, stats.ServedShare("write", "us-west-2"), 0.0001)
	}
}

func TestSimulationReportsScenarioFailure(t *testing.T) {
	cfg := shortConfig()
	sim := New(cfg, zaptest.NewLogger(t).Sugar())
	sim.RegisterScenario(&scenarios.NodeChurn{Region: "ap-south-1"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := sim.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node-churn")
}
