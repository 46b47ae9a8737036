// Package types provides shared types and errors for the regionlb library.
//
// This is a "leaf" package with no imports from other regionlb packages,
// allowing it to be imported by any package without causing import cycles.
package types

import (
	"errors"
	"net"
	"net/netip"
	"strings"

	"github.com/google/uuid"
)

// Distance is the advisory classification of an endpoint for the host driver.
//
// The router sets it while classifying but never reads it back for routing
// decisions.
type Distance int

const (
	// DistanceIgnored marks an endpoint the router does not know about.
	DistanceIgnored Distance = iota
	// DistanceLocal marks an endpoint in a local (read or write) bucket.
	DistanceLocal
	// DistanceRemote marks an endpoint that is only used as a fallback.
	DistanceRemote
)

// String returns the string representation of the Distance.
func (d Distance) String() string {
	switch d {
	case DistanceLocal:
		return "LOCAL"
	case DistanceRemote:
		return "REMOTE"
	default:
		return "IGNORED"
	}
}

// Endpoint represents one database node/coordinator.
//
// Endpoints are created by the cluster-metadata layer and handed to the
// router; the router never creates or destroys them. Two endpoints are the
// same entity when their Address fields are equal, regardless of the other
// fields.
type Endpoint struct {
	// Address is the host:port identity of the endpoint.
	Address string

	// Region is the declared datacenter/region label. It may be empty when
	// the metadata layer has not resolved it yet.
	Region string

	// HostID is the node's unique identifier, used as a tie-break when
	// ordering endpoints of the same region.
	HostID uuid.UUID
}

// NewEndpoint builds an Endpoint from a host, port and region.
//
// Parameters:
//   - host: IP address or hostname
//   - port: Port number
//   - region: Declared region label (may be empty)
//
// Returns:
//   - Endpoint: The endpoint keyed by "host:port"
func NewEndpoint(host, port, region string) Endpoint {
	return Endpoint{
		Address: net.JoinHostPort(host, port),
		Region:  region,
	}
}

// Host returns the host part of the endpoint address.
//
// IP hosts are returned in canonical form so they compare equal to
// resolver output. Addresses without a port are returned unchanged.
func (e Endpoint) Host() string {
	host, _, err := net.SplitHostPort(e.Address)
	if err != nil {
		host = e.Address
	}

	return CanonicalHost(host)
}

// SameAs reports whether both endpoints refer to the same network address.
func (e Endpoint) SameAs(other Endpoint) bool {
	return e.Address == other.Address
}

// String returns the endpoint address and region for log messages.
func (e Endpoint) String() string {
	if e.Region == "" {
		return e.Address
	}

	return e.Address + "@" + e.Region
}

// CanonicalHost normalizes an IP literal to its canonical textual form.
// Hostnames are lower-cased and returned otherwise untouched.
func CanonicalHost(host string) string {
	host = strings.Trim(host, "[]")
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().String()
	}

	return strings.ToLower(host)
}

// requestKind is the closed set of request variants.
type requestKind uint8

const (
	kindOpaque requestKind = iota
	kindStatement
	kindBatch
)

// Request is the router's view of an in-flight database request.
//
// It is a small closed variant: a single statement with known text, a batch,
// or an opaque request whose text cannot be determined. Only single
// statements can ever be classified as reads.
type Request struct {
	kind      requestKind
	statement string
}

// NewStatement returns a request for a single statement with the given text.
func NewStatement(text string) Request {
	return Request{kind: kindStatement, statement: text}
}

// NewBatch returns a request for a batch of statements.
func NewBatch() Request {
	return Request{kind: kindBatch}
}

// NewOpaque returns a request whose statement text is unknown.
func NewOpaque() Request {
	return Request{kind: kindOpaque}
}

// Statement returns the statement text, or "" for batches and opaque requests.
func (r Request) Statement() string {
	return r.statement
}

// IsBatch reports whether the request is a batch.
func (r Request) IsBatch() bool {
	return r.kind == kindBatch
}

// IsRead reports whether the request is read-only.
//
// A request is a read if and only if it is a single statement whose text,
// trimmed and lower-cased, starts with "select". Batches and opaque requests
// are writes.
func (r Request) IsRead() bool {
	if r.kind != kindStatement {
		return false
	}

	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(r.statement)), "select")
}

// Kind returns "read" or "write" for metrics labels.
func (r Request) Kind() string {
	if r.IsRead() {
		return "read"
	}

	return "write"
}

// ErrorClass groups driver errors for retry decisions.
type ErrorClass int

const (
	// ErrorOther is any error the retry policy does not recognize.
	ErrorOther ErrorClass = iota
	// ErrorOverloaded is a server-side rate limiting / overload response.
	ErrorOverloaded
	// ErrorReadTimeout is a coordinator read timeout.
	ErrorReadTimeout
	// ErrorWriteTimeout is a coordinator write timeout.
	ErrorWriteTimeout
	// ErrorUnavailable means not enough replicas were alive.
	ErrorUnavailable
	// ErrorConnection is a transport-level failure talking to the endpoint.
	ErrorConnection
)

// String returns the string representation of the ErrorClass.
func (c ErrorClass) String() string {
	switch c {
	case ErrorOverloaded:
		return "overloaded"
	case ErrorReadTimeout:
		return "read_timeout"
	case ErrorWriteTimeout:
		return "write_timeout"
	case ErrorUnavailable:
		return "unavailable"
	case ErrorConnection:
		return "connection"
	default:
		return "other"
	}
}

// Sentinel errors for common failure scenarios.
var (
	// ErrInvalidConfig indicates a contradictory or incomplete region configuration.
	// ConfigurationError unwraps to it.
	ErrInvalidConfig = errors.New("regionlb: invalid configuration")

	// ErrResolution indicates the global endpoint could not be resolved and no
	// previous resolution exists. ResolutionError unwraps to it.
	ErrResolution = errors.New("regionlb: global endpoint resolution failed")

	// ErrNoAddresses indicates a DNS lookup succeeded but returned no addresses.
	ErrNoAddresses = errors.New("regionlb: lookup returned no addresses")

	// ErrNoEndpoint indicates a query plan had no candidate endpoint.
	ErrNoEndpoint = errors.New("regionlb: no endpoint available")

	// ErrAlreadyInitialized indicates Init was called more than once.
	ErrAlreadyInitialized = errors.New("regionlb: router already initialized")

	// ErrNilRouter indicates that a nil router was provided.
	ErrNilRouter = errors.New("regionlb: router cannot be nil")
)

// ConfigurationError reports an invalid region configuration.
//
// It is returned at construction time and is never recovered from: the
// router must not be built from the offending configuration.
type ConfigurationError struct {
	// Field names the offending configuration field(s).
	Field string

	// Reason describes what is wrong with the field.
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return "regionlb: invalid configuration: " + e.Field + ": " + e.Reason
}

// Unwrap returns ErrInvalidConfig for errors.Is compatibility.
func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfig
}

// ResolutionError reports a failed first-time resolution of the global endpoint.
type ResolutionError struct {
	// Host is the symbolic host that failed to resolve.
	Host string

	// Cause is the underlying lookup error.
	Cause error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return "regionlb: cannot resolve global endpoint " + e.Host + ": " + e.Cause.Error()
}

// Unwrap returns the wrapped errors for errors.Is/As compatibility.
func (e *ResolutionError) Unwrap() []error {
	return []error{ErrResolution, e.Cause}
}
