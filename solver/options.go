// SPDX-License-Identifier: MIT

package solver

import (
	"fmt"
	"io"
	"log/slog"
)

// Method selects the optimization strategy.
type Method int

const (
	// GaussNewton solves the undamped normal equations.
	GaussNewton Method = iota

	// LevenbergMarquardt damps the normal equations with λI.
	LevenbergMarquardt

	// LevenbergMarquardtEllipsoidal damps the normal equations with λ·diag(H),
	// which keeps the step invariant to the scaling of each state coordinate.
	LevenbergMarquardtEllipsoidal
)

// String implements fmt.Stringer.
func (m Method) String() string {
	switch m {
	case GaussNewton:
		return "GN"
	case LevenbergMarquardt:
		return "LM"
	case LevenbergMarquardtEllipsoidal:
		return "LM_ELLIPS"
	default:
		return "UNKNOWN"
	}
}

const (
	// DefaultMaxIterations caps the outer iterations.
	DefaultMaxIterations = 20

	// DefaultTolerance bounds both ‖dx‖ and the relative cost decrease.
	DefaultTolerance = 1e-6

	// DefaultLambda is the initial Levenberg-Marquardt damping.
	DefaultLambda = 1e-4

	// DefaultRobustThreshold is the Mahalanobis distance where Huber and
	// Cauchy kernels start down-weighting.
	DefaultRobustThreshold = 1.0

	lambdaMin = 1e-12
	lambdaMax = 1e12
)

// damped reports whether m adapts a damping term between iterations.
func (m Method) damped() bool {
	return m == LevenbergMarquardt || m == LevenbergMarquardtEllipsoidal
}

// Options configures a Solver.
//
// Method          – GaussNewton (default), LevenbergMarquardt or LevenbergMarquardtEllipsoidal.
// MaxIterations   – outer iteration cap, ≥ 1.
// Tolerance       – convergence threshold on ‖dx‖ and relative cost change, > 0.
// Lambda          – initial LM damping, > 0.
// RobustThreshold – kernel width k for Huber/Cauchy factors, > 0.
// Logger          – per-iteration diagnostics. Never nil.
type Options struct {
	Method          Method
	MaxIterations   int
	Tolerance       float64
	Lambda          float64
	RobustThreshold float64
	Logger          *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns Gauss-Newton with the documented defaults.
func DefaultOptions() Options {
	return Options{
		Method:          GaussNewton,
		MaxIterations:   DefaultMaxIterations,
		Tolerance:       DefaultTolerance,
		Lambda:          DefaultLambda,
		RobustThreshold: DefaultRobustThreshold,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithMethod selects the strategy. It panics on an unknown method.
func WithMethod(m Method) Option {
	if m != GaussNewton && !m.damped() {
		panic(fmt.Sprintf("solver: WithMethod(%d): unknown method", m))
	}

	return func(o *Options) { o.Method = m }
}

// WithMaxIterations sets the iteration cap. It panics if n < 1.
func WithMaxIterations(n int) Option {
	if n < 1 {
		panic(fmt.Sprintf("solver: WithMaxIterations(%d): must be ≥ 1", n))
	}

	return func(o *Options) { o.MaxIterations = n }
}

// WithTolerance sets the convergence threshold. It panics if tol ≤ 0.
func WithTolerance(tol float64) Option {
	if !(tol > 0) {
		panic(fmt.Sprintf("solver: WithTolerance(%g): must be > 0", tol))
	}

	return func(o *Options) { o.Tolerance = tol }
}

// WithLambda sets the initial LM damping. It panics if l ≤ 0.
func WithLambda(l float64) Option {
	if !(l > 0) {
		panic(fmt.Sprintf("solver: WithLambda(%g): must be > 0", l))
	}

	return func(o *Options) { o.Lambda = l }
}

// WithRobustThreshold sets the kernel width. It panics if k ≤ 0.
func WithRobustThreshold(k float64) Option {
	if !(k > 0) {
		panic(fmt.Sprintf("solver: WithRobustThreshold(%g): must be > 0", k))
	}

	return func(o *Options) { o.RobustThreshold = k }
}

// WithLogger routes diagnostics to l. It panics on a nil logger.
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		panic("solver: WithLogger(nil)")
	}

	return func(o *Options) { o.Logger = l }
}
