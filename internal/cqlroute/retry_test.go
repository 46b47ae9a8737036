package cqlroute

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arloliu/regionlb/policy"
	"github.com/arloliu/regionlb/types"
)

type serverError struct {
	code int
	msg  string
}

func (e serverError) Code() int       { return e.code }
func (e serverError) Message() string { return e.msg }
func (e serverError) Error() string   { return fmt.Sprintf("server error %x", e.code) }

func TestClassifyRequestError(t *testing.T) {
	class, ok := ClassifyRequestError(fmt.Errorf("query: %w", serverError{code: 0x1001}))
	assert.True(t, ok)
	assert.Equal(t, types.ErrorOverloaded, class)

	class, ok = ClassifyRequestError(serverError{code: 0x1002})
	assert.True(t, ok)
	assert.Equal(t, types.ErrorUnavailable, class)

	class, ok = ClassifyRequestError(serverError{code: 0x2000})
	assert.True(t, ok)
	assert.Equal(t, types.ErrorOther, class)

	_, ok = ClassifyRequestError(errors.New("dial tcp: refused"))
	assert.False(t, ok)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "RetryAfterMs=10", ErrorMessage(serverError{code: 0x1001, msg: "RetryAfterMs=10"}))
	assert.Equal(t, "boom", ErrorMessage(errors.New("boom")))
}

func TestRetrierAllow(t *testing.T) {
	r := NewRetrier(policy.NewRetryPolicy(policy.RetryConfig{MaxRetries: 2}))

	assert.True(t, r.Allow(t.Context(), 2))
	assert.False(t, r.Allow(t.Context(), 3))

	// Fakes and some driver paths report no context
	var noCtx context.Context
	assert.True(t, r.Allow(noCtx, 1))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.False(t, r.Allow(ctx, 1))
}

func TestRetrierDecideCapsSleep(t *testing.T) {
	r := NewRetrier(policy.NewRetryPolicy(policy.RetryConfig{MaxRetries: 1, FixedBackoff: time.Minute}))
	r.MaxSleep = 20 * time.Millisecond

	var slept []time.Duration
	r.Sleep = func(d time.Duration) { slept = append(slept, d) }

	assert.Equal(t, policy.DecisionRetrySame, r.Decide(types.ErrorOverloaded, ""))
	assert.Equal(t, policy.DecisionRetrySame, r.Decide(types.ErrorOverloaded, "RetryAfterMs=5"))
	assert.Equal(t, policy.DecisionRetrySame, r.Decide(types.ErrorReadTimeout, ""))
	assert.Equal(t, policy.DecisionRetryNext, r.Decide(types.ErrorConnection, ""))
	assert.Equal(t, []time.Duration{20 * time.Millisecond, 5 * time.Millisecond}, slept)
}
