package chaos

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/regionlb/types"
)

// Fault describes the failures injected into one region.
type Fault struct {
	Class     types.ErrorClass // Error class returned on failure
	ErrorRate float64          // 0.0-1.0 probability an attempt fails
	Latency   time.Duration    // Added to every attempt
	Message   string           // Server message, e.g. "RetryAfterMs=20"
}

// Error is an injected failure. It carries its retry class so the router
// classifies it without a driver.
type Error struct {
	Class    types.ErrorClass
	Endpoint types.Endpoint
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("chaos: %s on %s: %s", e.Class, e.Endpoint, e.Message)
}

// ErrorClass implements policy.ClassifiedError.
func (e *Error) ErrorClass() types.ErrorClass {
	return e.Class
}

// Injector simulates endpoints that fail per region.
type Injector struct {
	faults sync.Map // region -> *atomic.Pointer[Fault]

	mu  sync.Mutex
	rng *rand.Rand
}

// NewInjector creates an injector with no faults.
func NewInjector(seed int64) *Injector {
	//nolint:gosec // Simulation data, not security sensitive
	return &Injector{rng: rand.New(rand.NewSource(seed))}
}

func (i *Injector) slot(region string) *atomic.Pointer[Fault] {
	v, _ := i.faults.LoadOrStore(region, &atomic.Pointer[Fault]{})

	return v.(*atomic.Pointer[Fault])
}

// SetFault replaces the fault of a region.
func (i *Injector) SetFault(region string, f Fault) {
	i.slot(region).Store(&f)
}

// Clear removes the fault of a region.
func (i *Injector) Clear(region string) {
	i.slot(region).Store(nil)
}

// Reset removes all faults.
func (i *Injector) Reset() {
	i.faults.Range(func(_, v any) bool {
		v.(*atomic.Pointer[Fault]).Store(nil)

		return true
	})
}

func (i *Injector) roll() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.rng.Float64()
}

// Attempt simulates one request against ep.
//
// It has the shape of policy.AttemptFunc so it can be passed to Router.Do.
func (i *Injector) Attempt(ctx context.Context, ep types.Endpoint) error {
	f := i.slot(ep.Region).Load()
	if f == nil {
		return ctx.Err()
	}

	if f.Latency > 0 {
		timer := time.NewTimer(f.Latency)
		select {
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		case <-timer.C:
		}
	}

	if f.ErrorRate > 0 && i.roll() < f.ErrorRate {
		return &Error{Class: f.Class, Endpoint: ep, Message: f.Message}
	}

	return nil
}
