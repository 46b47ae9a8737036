package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arloliu/regionlb"
	"github.com/arloliu/regionlb/test/simulation/chaos"
	"github.com/arloliu/regionlb/test/simulation/config"
	simtypes "github.com/arloliu/regionlb/test/simulation/types"
	"github.com/arloliu/regionlb/test/simulation/workload"
	"github.com/arloliu/regionlb/test/testutil"
	"github.com/arloliu/regionlb/topology"
	"github.com/arloliu/regionlb/types"
)

// Simulation orchestrates the test execution.
type Simulation struct {
	settings  *config.Config
	logger    *zap.SugaredLogger
	env       *simtypes.Environment
	scenarios []simtypes.Scenario
	rng       *rand.Rand

	wg           sync.WaitGroup
	stopWorkload context.CancelFunc
}

// New creates a new simulation instance.
func New(settings *config.Config, logger *zap.SugaredLogger) *Simulation {
	if settings == nil {
		settings = config.Default()
	}

	return &Simulation{
		settings: settings,
		logger:   logger,
		//nolint:gosec // Simulation data, not security sensitive
		rng: rand.New(rand.NewSource(settings.Simulation.Seed)),
	}
}

// RegisterScenario adds a scenario to the simulation.
func (s *Simulation) RegisterScenario(scenario simtypes.Scenario) {
	s.scenarios = append(s.scenarios, scenario)
}

// Environment returns the environment built by Run, or nil before Run.
func (s *Simulation) Environment() *simtypes.Environment {
	return s.env
}

// Run builds the environment, drives traffic while each scenario runs and
// verifies the overall failure ratio. Every scenario error is returned.
func (s *Simulation) Run(ctx context.Context) error {
	s.logger.Infow("initializing simulation environment")

	defer s.teardown()
	if err := s.setupEnvironment(ctx); err != nil {
		return fmt.Errorf("failed to setup environment: %w", err)
	}

	workloadCtx, cancel := context.WithCancel(ctx)
	s.stopWorkload = cancel
	s.wg.Add(2)
	go s.generateTraffic(workloadCtx)
	go s.reportStats(workloadCtx)

	var errs []error
	for _, scenario := range s.scenarios {
		if ctx.Err() != nil {
			break
		}

		s.logger.Infow("running scenario", "name", scenario.Name(), "description", scenario.Description())
		if err := scenario.Run(ctx, s.env); err != nil {
			s.logger.Errorw("scenario failed", "name", scenario.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", scenario.Name(), err))
		} else {
			s.logger.Infow("scenario completed", "name", scenario.Name())
		}
		s.env.Chaos.Reset()
	}

	if err := s.verify(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (s *Simulation) setupEnvironment(ctx context.Context) error {
	collector := testutil.NewTestMetricsCollector()
	router, err := regionlb.New(s.settings.Router,
		regionlb.WithLogger(s.logger),
		regionlb.WithMetrics(collector),
	)
	if err != nil {
		return err
	}
	if err := router.Init(ctx, nil); err != nil {
		return err
	}

	local := topology.NewLocal(topology.WithBufferSize(256))

	s.env = &simtypes.Environment{
		Router:   router,
		Topology: local,
		Chaos:    chaos.NewInjector(s.settings.Simulation.Seed),
		Tracker:  workload.NewTracker(),
		Metrics:  collector,
		Logger:   s.logger,
		Duration: s.settings.Simulation.ScenarioDuration,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		router.Follow(ctx, local)
	}()

	for r, region := range s.settings.Cluster.Regions {
		for n := range region.Nodes {
			ep := types.NewEndpoint(fmt.Sprintf("10.%d.0.%d", r, n+1), "9042", region.Name)
			ep.HostID = uuid.New()
			s.env.Nodes = append(s.env.Nodes, ep)
			if err := local.Publish(ctx, ep, true); err != nil {
				return err
			}
		}
	}

	total := len(s.env.Nodes)
	deadline := time.Now().Add(5 * time.Second)
	for len(router.Endpoints()) < total {
		if time.Now().After(deadline) {
			return fmt.Errorf("router saw %d of %d nodes", len(router.Endpoints()), total)
		}
		time.Sleep(10 * time.Millisecond)
	}

	return nil
}

func (s *Simulation) teardown() {
	if s.stopWorkload != nil {
		s.stopWorkload()
	}
	if s.env != nil {
		_ = s.env.Topology.Close()
	}
	s.wg.Wait()
}

func (s *Simulation) generateTraffic(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.settings.Simulation.TrafficInterval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		req := s.nextRequest(i)
		var served types.Endpoint
		err := s.env.Router.Do(ctx, req, func(ctx context.Context, ep types.Endpoint) error {
			s.env.Tracker.TrackAttempt()
			err := s.env.Chaos.Attempt(ctx, ep)
			if err == nil {
				served = ep
			}

			return err
		})
		if ctx.Err() != nil {
			return
		}
		s.env.Tracker.TrackResult(req, served, err)
	}
}

func (s *Simulation) reportStats(ctx context.Context) {
	defer s.wg.Done()

	interval := s.settings.Simulation.ConsoleInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logger.Infow("traffic", "stats", s.env.Tracker.Snapshot().String())
		}
	}
}

// nextRequest alternates reads, single writes and batches.
func (s *Simulation) nextRequest(i int) types.Request {
	switch {
	case i%10 == 9:
		return types.NewBatch()
	case s.rng.Intn(2) == 0:
		return types.NewStatement("SELECT data FROM test_data WHERE id = " + strconv.Itoa(i))
	default:
		return types.NewStatement("INSERT INTO test_data (id, data) VALUES (" + strconv.Itoa(i) + ", 0x00)")
	}
}

func (s *Simulation) verify(ctx context.Context) error {
	s.logger.Infow("verifying simulation results")

	s.env.Tracker.Reset()
	if err := waitFor(ctx, 10*s.settings.Simulation.TrafficInterval); err != nil {
		return err
	}

	stats := s.env.Tracker.Snapshot()
	s.logger.Infow("steady state",
		"stats", stats.String(),
		"plans", s.env.Metrics.GetPlanTotal("read")+s.env.Metrics.GetPlanTotal("write"),
		"retries", s.env.Metrics.GetRetryDecisions("retry"),
		"retries_next", s.env.Metrics.GetRetryDecisions("retry_next"),
	)

	if ratio := stats.FailureRatio(); ratio > s.settings.Simulation.MaxFailureRatio {
		return fmt.Errorf("verification failed: failure ratio %.4f > %.4f", ratio, s.settings.Simulation.MaxFailureRatio)
	}

	return nil
}

func waitFor(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
