// Package logging holds the logger regionlb packages fall back to when none
// is configured.
package logging

import (
	"go.uber.org/zap"

	"github.com/arloliu/regionlb/types"
)

var nop types.Logger = zap.NewNop().Sugar()

// NewNopLogger returns a logger that discards all messages.
//
// Returns:
//   - types.Logger: A shared no-op zap logger
func NewNopLogger() types.Logger {
	return nop
}

// OrNop returns l, or the no-op logger if l is nil.
func OrNop(l types.Logger) types.Logger {
	if l == nil {
		return nop
	}

	return l
}
