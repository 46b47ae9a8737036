// Package directory tracks the set of endpoints known to the router.
//
// The directory is pure in-memory bookkeeping keyed by network address.
// It preserves registration order so that classification and plan
// generation are deterministic for a given sequence of topology events.
package directory

import (
	"slices"
	"sync"

	"github.com/arloliu/regionlb/types"
)

// Directory holds the known endpoints keyed by network address.
//
// Directory is safe for concurrent use.
type Directory struct {
	mu      sync.RWMutex
	byAddr  map[string]types.Endpoint
	ordered []string
}

// New creates an empty Directory.
//
// Returns:
//   - *Directory: A new directory
func New() *Directory {
	return &Directory{
		byAddr: make(map[string]types.Endpoint),
	}
}

// Register adds an endpoint.
//
// Registration is idempotent and keyed by address: if an endpoint with the
// same address is already present the call is a no-op and the stored value
// is kept.
//
// Parameters:
//   - ep: The endpoint to add
//
// Returns:
//   - bool: true if the endpoint was added
func (d *Directory) Register(ep types.Endpoint) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byAddr[ep.Address]; ok {
		return false
	}

	d.byAddr[ep.Address] = ep
	d.ordered = append(d.ordered, ep.Address)

	return true
}

// Unregister removes the endpoint with the same address as ep.
//
// Only the address is compared. An endpoint whose region was unknown when it
// was registered is still removed by a value carrying a resolved region, and
// vice versa.
//
// Parameters:
//   - ep: The endpoint to remove
//
// Returns:
//   - types.Endpoint: The stored endpoint that was removed
//   - bool: true if an endpoint was removed
func (d *Directory) Unregister(ep types.Endpoint) (types.Endpoint, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored, ok := d.byAddr[ep.Address]
	if !ok {
		return types.Endpoint{}, false
	}

	delete(d.byAddr, ep.Address)
	if i := slices.Index(d.ordered, ep.Address); i >= 0 {
		d.ordered = slices.Delete(d.ordered, i, i+1)
	}

	return stored, true
}

// Lookup returns the stored endpoint for an address.
func (d *Directory) Lookup(address string) (types.Endpoint, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ep, ok := d.byAddr[address]

	return ep, ok
}

// All returns a snapshot of the registered endpoints in registration order.
//
// Returns:
//   - []types.Endpoint: A copy safe to retain and modify
func (d *Directory) All() []types.Endpoint {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]types.Endpoint, 0, len(d.ordered))
	for _, addr := range d.ordered {
		out = append(out, d.byAddr[addr])
	}

	return out
}

// Len returns the number of registered endpoints.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.byAddr)
}
