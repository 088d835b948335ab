// Package numerator defines the document auto-numbering contract.
// The database-backed implementation lives in pkg/numerator.
package numerator

import (
	"context"
	"time"
)

// Generator allocates sequential document numbers.
type Generator interface {
	// GetNextNumber returns the next number in the sequence identified
	// by cfg.Prefix and the period, formatted as PREFIX-YEAR-00001.
	// A nil opts allocates strictly.
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber forces the counter so the next allocation returns
	// value. Used when importing documents numbered elsewhere.
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}
