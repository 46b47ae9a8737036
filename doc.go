// Package regionlb provides a region-aware endpoint router for multi-region
// database clients.
//
// The router decides, for each request, the ordered list of database
// endpoints to try. It classifies the known endpoints by region, follows the
// primary write region through DNS, and rotates each group of endpoints so
// load spreads evenly.
//
// # Key Features
//
//   - Read/Write Region Pair: Reads go to the read region first, writes to
//     the write region, everything else is a fallback
//   - DNS-Tracked Primary: The write region can be discovered from the
//     addresses a global DNS name resolves to, refreshed on a TTL
//   - Preferred Regions: Endpoints ranked by an ordered region list with the
//     primary region always first
//   - Lock-Free Routing: Plans are built from immutable snapshots
//   - Retry Policy: Overload backoff, in-place timeout retries and
//     next-endpoint failover
//   - gocql Integration: Host selection and retry policies in adapter/gocql
//     (github.com/gocql/gocql) and adapter/gocql/v2 (the Apache v2 driver)
//
// # Basic Usage
//
//	cfg := regionlb.DefaultConfig()
//	cfg.ReadRegion = "us-east-1"
//	cfg.GlobalEndpoint = "db.global.example.com:9042"
//
//	router, err := regionlb.New(cfg, regionlb.WithLogger(zapLogger.Sugar()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := router.Init(ctx, endpoints); err != nil {
//	    log.Fatal(err) // the global endpoint could not be resolved
//	}
//
//	plan := router.PlanFor(ctx, regionlb.NewStatement("SELECT * FROM users"))
//
// # Configuration
//
// A Config selects one of two modes, validated by New:
//
//   - Region pair: WriteRegion or GlobalEndpoint (exactly one), plus an
//     optional ReadRegion
//   - Preferred regions: PreferredRegions with optional PrimaryRegion,
//     MultiRegionWrites and ContactPoints
//
// Configurations can be loaded from YAML with LoadConfigFile or from
// environment variables with LoadConfigFromEnv (REGIONLB_* by default).
//
// # Error Handling
//
// Only two errors are ever returned by the router itself:
//
//   - types.ConfigurationError from New, for contradictory settings
//   - types.ResolutionError from Init, when the global endpoint has never
//     been resolved
//
// Both support errors.Is against types.ErrInvalidConfig and
// types.ErrResolution. Later DNS failures keep the previous addresses and are
// only logged. An empty plan is a normal result meaning no endpoint is known.
//
// # Topology
//
// Host drivers call OnAdd, OnRemove, OnUp and OnDown directly. OnUp and
// OnDown never change routing. Alternatively a TopologyWatcher from the
// topology package can be followed:
//
//	go router.Follow(ctx, topology.NewLocal())
package regionlb
