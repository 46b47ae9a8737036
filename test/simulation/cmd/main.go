package main

import (
	"context"
	"flag"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // pprof is intentional for simulation
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/arloliu/regionlb/test/simulation"
	"github.com/arloliu/regionlb/test/simulation/config"
	"github.com/arloliu/regionlb/test/simulation/scenarios"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	profile := flag.String("profile", "quick", "Simulation profile (quick, comprehensive)")
	duration := flag.Duration("duration", 5*time.Minute, "Upper bound on the simulation run")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	pprofAddr := flag.String("pprof", ":6060", "pprof listen address, empty to disable")
	flag.Parse()

	zl, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	logger := zl.Sugar()

	settings := config.Default()
	if *configPath != "" {
		settings, err = config.Load(*configPath)
		if err != nil {
			logger.Errorw("failed to load configuration", "path", *configPath, "error", err)
			return err
		}
		if settings.Simulation.Duration > 0 {
			*duration = settings.Simulation.Duration
		}
	}
	if settings.Simulation.Seed == 0 {
		settings.Simulation.Seed = *seed
	}

	logger.Infow("starting regionlb simulation",
		"profile", *profile,
		"seed", settings.Simulation.Seed,
		"duration", *duration,
	)

	if *pprofAddr != "" {
		go func() {
			server := &http.Server{
				Addr:              *pprofAddr,
				ReadHeaderTimeout: 3 * time.Second,
			}
			if err := server.ListenAndServe(); err != nil {
				logger.Warnw("pprof server stopped", "error", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *duration)
	defer cancelTimeout()

	sim := simulation.New(settings, logger)
	registerScenarios(sim, settings, *profile)

	if err := sim.Run(ctx); err != nil {
		logger.Errorw("simulation failed", "error", err)
		return err
	}

	logger.Infow("simulation completed successfully")

	return nil
}

func registerScenarios(sim *simulation.Simulation, settings *config.Config, profile string) {
	router := settings.Router
	readRegion := router.ReadRegion
	if readRegion == "" {
		readRegion = router.WriteRegion
	}

	sim.RegisterScenario(&scenarios.RegionOutage{Region: readRegion})
	sim.RegisterScenario(&scenarios.Overload{Region: router.WriteRegion})
	sim.RegisterScenario(&scenarios.NodeChurn{Region: readRegion})

	if profile == "comprehensive" {
		for _, region := range settings.Cluster.Regions {
			if region.Name != readRegion && region.Name != router.WriteRegion {
				sim.RegisterScenario(&scenarios.RegionOutage{Region: region.Name})
			}
		}
		sim.RegisterScenario(&scenarios.RegionOutage{Region: router.WriteRegion})
		sim.RegisterScenario(&scenarios.Overload{Region: readRegion})
		sim.RegisterScenario(&scenarios.NodeChurn{Region: router.WriteRegion})
	}
}
