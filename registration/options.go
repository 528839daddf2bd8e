// SPDX-License-Identifier: MIT

package registration

import (
	"fmt"
	"io"
	"log/slog"
)

const (
	// DefaultTolerance is the default stop threshold on the update norm.
	DefaultTolerance = 1e-4

	// DefaultMaxIterations is the default Gauss-Newton iteration cap.
	DefaultMaxIterations = 20
)

// Options configures WeightedPoint.
//
// Tolerance     – stop once ‖dξ‖ < Tolerance. Must be > 0.
// MaxIterations – hard cap on Gauss-Newton iterations. Must be ≥ 1.
// ClosedForm    – seed with the weighted closed-form alignment instead of T0.
// Logger        – receives debug records per iteration and a warning on
//
//	ill-conditioned normal equations. Never nil.
type Options struct {
	Tolerance     float64
	MaxIterations int
	ClosedForm    bool
	Logger        *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the documented defaults with a discarding logger.
func DefaultOptions() Options {
	return Options{
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithTolerance sets the stop threshold. It panics if tol ≤ 0.
func WithTolerance(tol float64) Option {
	if !(tol > 0) {
		panic(fmt.Sprintf("registration: WithTolerance(%g): must be > 0", tol))
	}

	return func(o *Options) { o.Tolerance = tol }
}

// WithMaxIterations sets the iteration cap. It panics if n < 1.
func WithMaxIterations(n int) Option {
	if n < 1 {
		panic(fmt.Sprintf("registration: WithMaxIterations(%d): must be ≥ 1", n))
	}

	return func(o *Options) { o.MaxIterations = n }
}

// WithClosedFormInit seeds the iteration with Closed(X, Y, w).
func WithClosedFormInit() Option {
	return func(o *Options) { o.ClosedForm = true }
}

// WithLogger routes diagnostics to l. It panics on a nil logger.
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		panic("registration: WithLogger(nil)")
	}

	return func(o *Options) { o.Logger = l }
}
