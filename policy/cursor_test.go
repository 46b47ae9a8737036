package policy

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorNext(t *testing.T) {
	var c Cursor
	for i := range 5 {
		require.Equal(t, i, c.Next())
	}
	assert.Equal(t, 5, c.Peek())
}

func TestCursorWrapsBeforeOverflow(t *testing.T) {
	var c Cursor

	// Exactly at the margin: still increments
	c.v.Store(math.MaxInt32 - cursorWrapMargin)
	require.Equal(t, math.MaxInt32-cursorWrapMargin, c.Next())
	require.Equal(t, math.MaxInt32-cursorWrapMargin+1, c.Peek())

	// Past the margin: the value is used once, then reset
	require.Equal(t, math.MaxInt32-cursorWrapMargin+1, c.Next())
	require.Equal(t, 0, c.Peek())
	require.Equal(t, 0, c.Next())
}

func TestCursorNeverNegative(t *testing.T) {
	var c Cursor
	c.v.Store(math.MaxInt32)

	require.Equal(t, math.MaxInt32, c.Next())
	require.Equal(t, 0, c.Next())
}

func TestCursorConcurrent(t *testing.T) {
	var c Cursor

	const (
		workers = 8
		calls   = 1000
	)

	var (
		mu   sync.Mutex
		seen = make(map[int]bool, workers*calls)
		wg   sync.WaitGroup
	)

	for range workers {
		wg.Go(func() {
			for range calls {
				v := c.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	assert.Len(t, seen, workers*calls)
	assert.Equal(t, workers*calls, c.Peek())
}
