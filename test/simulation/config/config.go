package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/regionlb"
)

// Config represents the simulation configuration
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Cluster    ClusterConfig    `yaml:"cluster"`
	Router     *regionlb.Config `yaml:"router"`
}

type SimulationConfig struct {
	Duration         time.Duration `yaml:"duration"`
	Seed             int64         `yaml:"seed"`
	ConsoleInterval  time.Duration `yaml:"console_interval"`
	TrafficInterval  time.Duration `yaml:"traffic_interval"`
	ScenarioDuration time.Duration `yaml:"scenario_duration"`
	MaxFailureRatio  float64       `yaml:"max_failure_ratio"`
}

type ClusterConfig struct {
	Regions []RegionConfig `yaml:"regions"`
}

type RegionConfig struct {
	Name  string `yaml:"name"`
	Nodes int    `yaml:"nodes"`
}

// Default returns a three-region cluster routed in region-pair mode.
func Default() *Config {
	router := regionlb.DefaultConfig()
	router.ReadRegion = "us-east-1"
	router.WriteRegion = "us-west-2"
	router.Retry.FixedBackoff = 5 * time.Millisecond
	router.Retry.GrowingBackoff = time.Millisecond

	return &Config{
		Simulation: SimulationConfig{
			Duration:         5 * time.Minute,
			ConsoleInterval:  10 * time.Second,
			TrafficInterval:  10 * time.Millisecond,
			ScenarioDuration: 15 * time.Second,
			MaxFailureRatio:  0.01,
		},
		Cluster: ClusterConfig{
			Regions: []RegionConfig{
				{Name: "us-east-1", Nodes: 3},
				{Name: "us-west-2", Nodes: 3},
				{Name: "eu-west-1", Nodes: 2},
			},
		},
		Router: router,
	}
}

// Load reads configuration from a YAML file on top of Default().
//
// A router section replaces the default routing mode; unset router keys
// keep regionlb.DefaultConfig() values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	cfg.Router = regionlb.DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// No routing mode in the file
	if cfg.Router.WriteRegion == "" && cfg.Router.GlobalEndpoint == "" && len(cfg.Router.PreferredRegions) == 0 {
		cfg.Router = Default().Router
	}

	if err := cfg.Router.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Cluster.Regions) == 0 {
		return nil, fmt.Errorf("config %s: cluster has no regions", path)
	}

	return cfg, nil
}
