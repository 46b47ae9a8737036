// Package types provides shared types and error definitions for the regionlb library.
//
// This is a leaf package with zero regionlb imports to prevent import cycles.
// All packages in regionlb can safely import this package.
//
// # Endpoints
//
// Endpoint identifies a database node by its network address. The address is
// the identity: two values with the same Address are the same node even when
// their Region fields differ (for example before the region is known).
//
//	ep := types.NewEndpoint("10.0.0.1", "9042", "us-east")
//
// # Requests
//
// Request is a closed variant describing what the router needs to know about
// a query:
//
//	types.NewStatement("SELECT * FROM t") // read
//	types.NewStatement("INSERT ...")      // write
//	types.NewBatch()                      // write
//	types.NewOpaque()                     // write, text unknown
//
// # Errors
//
//   - ErrInvalidConfig / ConfigurationError: contradictory region configuration
//   - ErrResolution / ResolutionError: first-ever global endpoint lookup failed
//   - ErrAlreadyInitialized: Init called twice
//   - ErrNilRouter: nil router handed to an adapter
package types
