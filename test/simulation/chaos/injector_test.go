package chaos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/regionlb/policy"
	"github.com/arloliu/regionlb/types"
)

var east = types.NewEndpoint("10.0.0.1", "9042", "east")

func TestInjectorNoFault(t *testing.T) {
	i := NewInjector(1)
	require.NoError(t, i.Attempt(context.Background(), east))
}

func TestInjectorAlwaysFails(t *testing.T) {
	i := NewInjector(1)
	i.SetFault("east", Fault{Class: types.ErrorUnavailable, ErrorRate: 1, Message: "down"})

	err := i.Attempt(context.Background(), east)
	require.Error(t, err)

	var chaosErr *Error
	require.True(t, errors.As(err, &chaosErr))
	assert.Equal(t, types.ErrorUnavailable, chaosErr.ErrorClass())
	assert.Equal(t, types.ErrorUnavailable, policy.DefaultClassify(err))

	// Other regions are unaffected
	require.NoError(t, i.Attempt(context.Background(), types.NewEndpoint("10.0.1.1", "9042", "west")))

	i.Clear("east")
	require.NoError(t, i.Attempt(context.Background(), east))
}

func TestInjectorReset(t *testing.T) {
	i := NewInjector(1)
	i.SetFault("east", Fault{Class: types.ErrorOverloaded, ErrorRate: 1})
	i.SetFault("west", Fault{Class: types.ErrorOverloaded, ErrorRate: 1})
	i.Reset()

	require.NoError(t, i.Attempt(context.Background(), east))
	require.NoError(t, i.Attempt(context.Background(), types.NewEndpoint("10.0.1.1", "9042", "west")))
}

func TestInjectorErrorRate(t *testing.T) {
	i := NewInjector(7)
	i.SetFault("east", Fault{Class: types.ErrorOverloaded, ErrorRate: 0.5})

	failures := 0
	for range 1000 {
		if i.Attempt(context.Background(), east) != nil {
			failures++
		}
	}
	assert.InDelta(t, 500, failures, 100)
}

func TestInjectorLatencyHonorsContext(t *testing.T) {
	i := NewInjector(1)
	i.SetFault("east", Fault{Latency: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := i.Attempt(ctx, east)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
