package regionlb

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/vrischmann/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/regionlb/policy"
	"github.com/arloliu/regionlb/types"
)

// DefaultDNSExpirySeconds is the default time-to-live of a global endpoint
// resolution.
const DefaultDNSExpirySeconds = 60

// Mode is the classification scheme selected by a Config.
type Mode int

const (
	// ModeRegionPair classifies by a read region and a write region
	// (static or resolved through the global endpoint).
	ModeRegionPair Mode = iota
	// ModePreferredRegions ranks endpoints by an ordered region list.
	ModePreferredRegions
)

// String returns the string representation of the Mode.
func (m Mode) String() string {
	switch m {
	case ModePreferredRegions:
		return "preferred-regions"
	default:
		return "region-pair"
	}
}

// Config holds the region routing configuration.
//
// It is read once at construction and never re-read. Exactly one of two
// shapes is valid:
//   - region pair: WriteRegion or GlobalEndpoint (not both), optionally
//     ReadRegion
//   - preferred regions: PreferredRegions, optionally PrimaryRegion,
//     MultiRegionWrites and ContactPoints
type Config struct {
	// DNSExpirySeconds is the time-to-live of a global endpoint resolution.
	// Zero means DefaultDNSExpirySeconds.
	DNSExpirySeconds int `yaml:"dns_expiry_seconds"`

	// GlobalEndpoint is the symbolic host (optionally host:port) whose
	// addresses identify the current primary write region.
	GlobalEndpoint string `yaml:"global_endpoint"`

	// ReadRegion receives read-only requests first.
	ReadRegion string `yaml:"read_region"`

	// WriteRegion is the static write region.
	WriteRegion string `yaml:"write_region"`

	// PreferredRegions ranks regions, most preferred first.
	PreferredRegions []string `yaml:"preferred_regions"`

	// PrimaryRegion is forced to rank 0. Defaults to the first preferred region.
	PrimaryRegion string `yaml:"primary_region"`

	// MultiRegionWrites lets writes fail over across every ranked tier.
	MultiRegionWrites bool `yaml:"multi_region_writes"`

	// ContactPoints are the initial seed addresses. Among unranked regions,
	// contact points are preferred.
	ContactPoints []string `yaml:"contact_points"`

	// Retry configures the retry policy.
	Retry policy.RetryConfig `yaml:"retry"`
}

// DefaultConfig returns a Config with default DNS expiry and retry settings
// and no region selected.
//
// Returns:
//   - *Config: Configuration with default settings
func DefaultConfig() *Config {
	return &Config{
		DNSExpirySeconds: DefaultDNSExpirySeconds,
		Retry:            policy.DefaultRetryConfig(),
	}
}

// Mode returns the classification scheme this configuration selects.
func (c *Config) Mode() Mode {
	if len(c.PreferredRegions) > 0 {
		return ModePreferredRegions
	}

	return ModeRegionPair
}

// DNSExpiry returns the DNS time-to-live as a duration.
func (c *Config) DNSExpiry() time.Duration {
	if c.DNSExpirySeconds == 0 {
		return DefaultDNSExpirySeconds * time.Second
	}

	return time.Duration(c.DNSExpirySeconds) * time.Second
}

// Validate checks the configuration for contradictory or missing settings.
//
// Returns:
//   - error: *types.ConfigurationError describing the first problem found
func (c *Config) Validate() error {
	if c.DNSExpirySeconds < 0 {
		return &types.ConfigurationError{Field: "DNSExpirySeconds", Reason: "must not be negative"}
	}
	if c.Retry.FixedBackoff < 0 || c.Retry.GrowingBackoff < 0 {
		return &types.ConfigurationError{Field: "Retry", Reason: "backoff must not be negative"}
	}

	if c.Mode() == ModePreferredRegions {
		if c.ReadRegion != "" || c.WriteRegion != "" || c.GlobalEndpoint != "" {
			return &types.ConfigurationError{
				Field:  "PreferredRegions",
				Reason: "cannot be combined with ReadRegion, WriteRegion or GlobalEndpoint",
			}
		}
		if slices.Contains(c.PreferredRegions, "") {
			return &types.ConfigurationError{Field: "PreferredRegions", Reason: "region names must not be empty"}
		}

		return nil
	}

	if c.PrimaryRegion != "" || c.MultiRegionWrites {
		return &types.ConfigurationError{
			Field:  "PrimaryRegion",
			Reason: "PrimaryRegion and MultiRegionWrites require PreferredRegions",
		}
	}

	switch {
	case c.WriteRegion == "" && c.GlobalEndpoint == "":
		return &types.ConfigurationError{
			Field:  "WriteRegion/GlobalEndpoint",
			Reason: "one of them must be set",
		}
	case c.WriteRegion != "" && c.GlobalEndpoint != "":
		return &types.ConfigurationError{
			Field:  "WriteRegion/GlobalEndpoint",
			Reason: "both are set, the write region is ambiguous",
		}
	}

	return nil
}

// LoadConfigFile reads a YAML configuration file on top of DefaultConfig.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - *Config: The loaded configuration (not yet validated)
//   - error: If the file cannot be read or parsed
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("regionlb: read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("regionlb: parse config %s: %w", path, err)
	}

	return cfg, nil
}

// DefaultEnvPrefix is the environment variable prefix used when
// LoadConfigFromEnv is given an empty prefix.
const DefaultEnvPrefix = "REGIONLB"

// envConfig is the environment variable layout of Config. Keys are derived
// from field names, so DNSExpirySeconds under prefix REGIONLB is read from
// REGIONLB_DNS_EXPIRY_SECONDS and Retry.MaxRetries from
// REGIONLB_RETRY_MAX_RETRIES.
type envConfig struct {
	DNSExpirySeconds  int      `envconfig:"default=60"`
	GlobalEndpoint    string   `envconfig:"optional"`
	ReadRegion        string   `envconfig:"optional"`
	WriteRegion       string   `envconfig:"optional"`
	PreferredRegions  []string `envconfig:"optional"`
	PrimaryRegion     string   `envconfig:"optional"`
	MultiRegionWrites bool     `envconfig:"default=false"`
	ContactPoints     []string `envconfig:"optional"`

	Retry struct {
		MaxRetries     int           `envconfig:"default=3"`
		FixedBackoff   time.Duration `envconfig:"default=5s"`
		GrowingBackoff time.Duration `envconfig:"default=1s"`
	}
}

// LoadConfigFromEnv reads the configuration from environment variables
// named <prefix>_<FIELD>. List values are comma separated.
//
// Parameters:
//   - prefix: Variable name prefix; DefaultEnvPrefix when empty
//
// Returns:
//   - *Config: The loaded configuration (not yet validated)
//   - error: If a variable cannot be parsed
func LoadConfigFromEnv(prefix string) (*Config, error) {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	var env envConfig
	if err := envconfig.InitWithPrefix(&env, prefix); err != nil {
		return nil, fmt.Errorf("regionlb: load config from environment: %w", err)
	}

	return &Config{
		DNSExpirySeconds:  env.DNSExpirySeconds,
		GlobalEndpoint:    env.GlobalEndpoint,
		ReadRegion:        env.ReadRegion,
		WriteRegion:       env.WriteRegion,
		PreferredRegions:  env.PreferredRegions,
		PrimaryRegion:     env.PrimaryRegion,
		MultiRegionWrites: env.MultiRegionWrites,
		ContactPoints:     env.ContactPoints,
		Retry: policy.RetryConfig{
			MaxRetries:     env.Retry.MaxRetries,
			FixedBackoff:   env.Retry.FixedBackoff,
			GrowingBackoff: env.Retry.GrowingBackoff,
		},
	}, nil
}
