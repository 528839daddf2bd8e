// SPDX-License-Identifier: MIT
//
// File: weighted_point.go
// Role: Weighted point-to-point Gauss-Newton registration on SE(3).

package registration

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/lvfactor/lie"
)

// Sentinel errors for registration.
var (
	// ErrInvalidShape indicates mismatched or too small inputs.
	ErrInvalidShape = errors.New("registration: invalid shape")

	// ErrInvalidWeight indicates a weight that is not strictly positive and finite.
	ErrInvalidWeight = errors.New("registration: invalid weight")

	// ErrDegenerate indicates the problem has no unique solution.
	ErrDegenerate = errors.New("registration: degenerate configuration")
)

// MinPoints is the smallest number of correspondences accepted.
const MinPoints = 3

// Result reports the outcome of WeightedPoint.
type Result struct {
	Transform  lie.SE3 // estimated T with y ≈ T·x
	Iterations int     // Gauss-Newton iterations performed
	Converged  bool    // last ‖dξ‖ fell below the tolerance
	UpdateNorm float64 // ‖dξ‖ of the last iteration
	Error      float64 // Σ wᵢ‖yᵢ − T·xᵢ‖² / Σ wᵢ at Transform
}

// WeightedPoint estimates T such that Y ≈ T·X, row by row, minimizing the
// weighted squared residuals from the initial guess T0.
//
// Implementation:
//   - Stage 1: validate shapes and weights, optionally replace T0 by Closed.
//   - Stage 2: iterate g, H accumulation, dξ = −H⁻¹·g, T ← Exp(dξ)·T.
//   - Stage 3: report the weighted mean squared residual at the final T.
//
// Errors: ErrInvalidShape, ErrInvalidWeight, ErrDegenerate. On ErrDegenerate
// the Result holds the transform reached so far.
//
// Complexity: O(K·N) for K iterations and N correspondences.
func WeightedPoint(X, Y mat.Matrix, w []float64, T0 lie.SE3, opts ...Option) (Result, error) {
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	// Stage 1
	xs, ys, err := correspondences(X, Y, w)
	if err != nil {
		return Result{Transform: T0}, fmt.Errorf("WeightedPoint: %w", err)
	}
	if err = support(xs, w); err != nil {
		return Result{Transform: T0}, fmt.Errorf("WeightedPoint: %w", err)
	}
	T := T0
	if cfg.ClosedForm {
		if T, err = closed(xs, ys, w); err != nil {
			return Result{Transform: T0}, fmt.Errorf("WeightedPoint: %w", err)
		}
	}

	// Stage 2
	res := Result{Transform: T}
	var (
		g  = mat.NewVecDense(6, nil)
		H  = mat.NewDense(6, 6, nil)
		Jr = mat.NewDense(3, 6, nil)
		JH mat.Dense
		dx mat.VecDense
		r  = mat.NewVecDense(3, nil)
		Jg mat.VecDense
	)
	for res.Iterations < cfg.MaxIterations {
		g.Zero()
		H.Zero()
		for i := range xs {
			Tx := T.Transform(xs[i])
			d := ys[i].Sub(Tx)
			r.SetVec(0, d.X)
			r.SetVec(1, d.Y)
			r.SetVec(2, d.Z)
			jacobian(Jr, Tx)

			Jg.MulVec(Jr.T(), r)
			g.AddScaledVec(g, w[i], &Jg)
			JH.Mul(Jr.T(), Jr)
			JH.Scale(w[i], &JH)
			H.Add(H, &JH)
		}

		if err = dx.SolveVec(H, g); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
				res.Transform = T
				return res, fmt.Errorf("WeightedPoint: iteration %d: %w", res.Iterations, ErrDegenerate)
			}
			cfg.Logger.Warn("ill-conditioned normal equations", "iteration", res.Iterations, "condition", float64(cond))
		}
		dx.ScaleVec(-1, &dx)
		xi, _ := lie.TangentFromVec(&dx)
		if math.IsNaN(xi.Norm()) {
			res.Transform = T
			return res, fmt.Errorf("WeightedPoint: iteration %d: %w", res.Iterations, ErrDegenerate)
		}
		T.UpdateLHS(xi)

		res.Iterations++
		res.UpdateNorm = xi.Norm()
		cfg.Logger.Debug("gauss-newton step", "iteration", res.Iterations, "update", res.UpdateNorm)
		if res.UpdateNorm < cfg.Tolerance {
			res.Converged = true
			break
		}
	}

	// Stage 3
	res.Transform = T
	res.Error = weightedError(T, xs, ys, w)

	return res, nil
}

// jacobian writes [(Tx)^ | −I] into the 3×6 matrix J.
func jacobian(J *mat.Dense, Tx r3.Vector) {
	J.Slice(0, 3, 0, 3).(*mat.Dense).Copy(lie.Hat3(Tx))
	for i := 0; i < 3; i++ {
		for j := 3; j < 6; j++ {
			J.Set(i, j, 0)
		}
		J.Set(i, 3+i, -1)
	}
}

// weightedError returns Σ wᵢ‖yᵢ − T·xᵢ‖² / Σ wᵢ.
func weightedError(T lie.SE3, xs, ys []r3.Vector, w []float64) float64 {
	var num, den float64
	for i := range xs {
		num += w[i] * ys[i].Sub(T.Transform(xs[i])).Norm2()
		den += w[i]
	}

	return num / den
}

// support rejects clouds whose weighted scatter has rank < 2: coincident or
// collinear points leave a rotation unobservable.
func support(xs []r3.Vector, w []float64) error {
	var c r3.Vector
	var sw float64
	for i := range xs {
		c = c.Add(xs[i].Mul(w[i]))
		sw += w[i]
	}
	c = c.Mul(1 / sw)
	scatter := mat.NewSymDense(3, nil)
	var a, b int
	for i := range xs {
		d := xs[i].Sub(c)
		u := [3]float64{d.X, d.Y, d.Z}
		for a = 0; a < 3; a++ {
			for b = a; b < 3; b++ {
				scatter.SetSym(a, b, scatter.At(a, b)+w[i]*u[a]*u[b])
			}
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(scatter, false); !ok {
		return ErrDegenerate
	}
	v := es.Values(nil) // ascending
	if v[2] <= 0 || v[1] <= rankEps*v[2] {
		return fmt.Errorf("collinear or coincident points: %w", ErrDegenerate)
	}

	return nil
}

// correspondences validates the inputs and converts the rows to vectors.
func correspondences(X, Y mat.Matrix, w []float64) ([]r3.Vector, []r3.Vector, error) {
	if X == nil || Y == nil {
		return nil, nil, ErrInvalidShape
	}
	nx, cx := X.Dims()
	ny, cy := Y.Dims()
	switch {
	case cx != 3 || cy != 3:
		return nil, nil, fmt.Errorf("columns %d/%d, want 3: %w", cx, cy, ErrInvalidShape)
	case nx < MinPoints:
		return nil, nil, fmt.Errorf("%d rows, want ≥ %d: %w", nx, MinPoints, ErrInvalidShape)
	case nx != ny:
		return nil, nil, fmt.Errorf("rows %d ≠ %d: %w", nx, ny, ErrInvalidShape)
	case len(w) != nx:
		return nil, nil, fmt.Errorf("%d weights for %d rows: %w", len(w), nx, ErrInvalidShape)
	}
	xs := make([]r3.Vector, nx)
	ys := make([]r3.Vector, nx)
	for i := 0; i < nx; i++ {
		if !(w[i] > 0) || math.IsInf(w[i], 1) {
			return nil, nil, fmt.Errorf("weight %d = %g: %w", i, w[i], ErrInvalidWeight)
		}
		xs[i] = r3.Vector{X: X.At(i, 0), Y: X.At(i, 1), Z: X.At(i, 2)}
		ys[i] = r3.Vector{X: Y.At(i, 0), Y: Y.At(i, 1), Z: Y.At(i, 2)}
	}

	return xs, ys, nil
}
