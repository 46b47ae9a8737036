package regionlb

import "github.com/arloliu/regionlb/types"

// Type aliases for convenience - re-export from types package.
type (
	Endpoint           = types.Endpoint
	Request            = types.Request
	Distance           = types.Distance
	ErrorClass         = types.ErrorClass
	ConfigurationError = types.ConfigurationError
	ResolutionError    = types.ResolutionError
	Logger             = types.Logger
	MetricsCollector   = types.MetricsCollector
)

// Re-export distance constants for convenience.
const (
	DistanceIgnored = types.DistanceIgnored
	DistanceLocal   = types.DistanceLocal
	DistanceRemote  = types.DistanceRemote
)

// Re-export request constructors for convenience.
var (
	NewEndpoint  = types.NewEndpoint
	NewStatement = types.NewStatement
	NewBatch     = types.NewBatch
	NewOpaque    = types.NewOpaque
)
