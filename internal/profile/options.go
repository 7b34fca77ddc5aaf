package profile

import (
	"io"
	"log/slog"
)

// DefaultMaxEntrySize caps how many bytes are read from a single entry.
// Entries larger than this are treated as absent.
const DefaultMaxEntrySize int64 = 64 << 20

type options struct {
	maxEntrySize int64
	logger       *slog.Logger
	stages       map[Stage]stageFunc
}

// Option configures how packages are opened and decoded.
type Option func(*options)

// WithMaxEntrySize overrides DefaultMaxEntrySize. Non-positive values are ignored.
func WithMaxEntrySize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEntrySize = n
		}
	}
}

// WithLogger sets the logger used for swallowed decode failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// withStage replaces one stage's implementation for this option set only.
func withStage(stage Stage, fn stageFunc) Option {
	return func(o *options) {
		o.stages[stage] = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{
		maxEntrySize: DefaultMaxEntrySize,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		stages:       make(map[Stage]stageFunc, len(defaultStages)),
	}
	for stage, fn := range defaultStages {
		o.stages[stage] = fn
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
