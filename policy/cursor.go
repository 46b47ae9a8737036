package policy

import (
	"math"
	"sync/atomic"
)

// cursorWrapMargin is how close to math.MaxInt32 the cursor may get before
// it is reset to zero.
const cursorWrapMargin = 10_000

// Cursor is the shared rotation counter used to spread load inside buckets.
//
// Every plan takes the current value and advances it by one. The value is
// reset to zero once it passes math.MaxInt32-10000 so it never overflows.
// The zero value is ready to use and Cursor is safe for concurrent use.
type Cursor struct {
	v atomic.Int32
}

// Next returns the current value and advances the cursor.
//
// Returns:
//   - int: A non-negative rotation offset
func (c *Cursor) Next() int {
	for {
		cur := c.v.Load()
		next := cur + 1
		if cur > math.MaxInt32-cursorWrapMargin {
			next = 0
		}
		if c.v.CompareAndSwap(cur, next) {
			return int(cur)
		}
	}
}

// Peek returns the value the next call to Next will return.
func (c *Cursor) Peek() int {
	return int(c.v.Load())
}
