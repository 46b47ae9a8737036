package scenarios

import (
	"context"
	"fmt"
	"time"

	simtypes "github.com/arloliu/regionlb/test/simulation/types"
)

// NodeChurn withdraws the nodes of a region one by one and publishes them
// again through the topology watcher.
type NodeChurn struct {
	Region string
}

func (s *NodeChurn) Name() string {
	return "node-churn"
}

func (s *NodeChurn) Description() string {
	return "Removes and re-adds nodes while traffic flows to verify routing tables follow topology"
}

func (s *NodeChurn) Run(ctx context.Context, env *simtypes.Environment) error {
	nodes := env.NodesIn(s.Region)
	if len(nodes) == 0 {
		return fmt.Errorf("region %s has no nodes", s.Region)
	}

	total := len(env.Nodes)
	step := env.Duration / time.Duration(2*len(nodes))

	for _, ep := range nodes {
		if err := env.Topology.Withdraw(ctx, ep); err != nil {
			return err
		}
		if err := waitUntil(ctx, 5*time.Second, func() bool { return len(env.Router.Endpoints()) < total }); err != nil {
			return fmt.Errorf("router kept %s after withdraw: %w", ep, err)
		}
		if err := hold(ctx, step); err != nil {
			return err
		}

		if err := env.Topology.Publish(ctx, ep, true); err != nil {
			return err
		}
		if err := waitUntil(ctx, 5*time.Second, func() bool { return len(env.Router.Endpoints()) == total }); err != nil {
			return fmt.Errorf("router missed re-added %s: %w", ep, err)
		}
		if err := hold(ctx, step); err != nil {
			return err
		}
	}

	env.Logger.Infow("node churn completed", "region", s.Region, "nodes", len(nodes))

	return nil
}
