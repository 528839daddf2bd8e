// SPDX-License-Identifier: MIT
//
// File: estimate.go
// Role: Closed-form plane, normal and centroid estimation.
// Determinism: eigenvectors are sign-canonicalized before returning.

package plane

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// EstimatePlane fits a plane to the rows of X.
//
// With centered=true the centroid/scatter formulation is used, otherwise the
// homogeneous 4×4 moment formulation. Both return a unit normal in canonical
// sign.
//
// Implementation:
//   - Stage 1: validate X and reject degenerate clouds from the scatter spectrum.
//   - Stage 2: take the smallest eigenvector of the chosen matrix.
//   - Stage 3: normalize and canonicalize.
//
// Errors: ErrInvalidShape, ErrNonFinite, ErrDegenerate, ErrEigen.
//
// Complexity: O(N) to accumulate, O(1) eigen work on a 3×3 or 4×4 matrix.
func EstimatePlane(X mat.Matrix, centered bool) (Plane, error) {
	// Stage 1: the scatter decides degeneracy for both formulations.
	c, scatter, err := centroidScatter(X)
	if err != nil {
		return Plane{}, fmt.Errorf("EstimatePlane: %w", err)
	}
	normal, err := normalFromScatter(scatter)
	if err != nil {
		return Plane{}, fmt.Errorf("EstimatePlane: %w", err)
	}
	if centered {
		return Canonicalize(Plane{Normal: normal, D: -c.Dot(normal)}), nil
	}

	// Stage 2: homogeneous formulation.
	S, _ := MatrixS(X) // X already validated
	_, v, err := SmallestEigen(S)
	if err != nil {
		return Plane{}, fmt.Errorf("EstimatePlane: %w", err)
	}

	// Stage 3
	p, err := FromCoeffs([4]float64{v.AtVec(0), v.AtVec(1), v.AtVec(2), v.AtVec(3)})
	if err != nil {
		return Plane{}, fmt.Errorf("EstimatePlane: %w", err)
	}

	return Canonicalize(p), nil
}

// EstimateNormal returns the unit normal of the best-fitting plane through
// the rows of X (centered formulation).
//
// Errors: ErrInvalidShape, ErrNonFinite, ErrDegenerate, ErrEigen.
func EstimateNormal(X mat.Matrix) (r3.Vector, error) {
	p, err := EstimatePlane(X, true)
	if err != nil {
		return r3.Vector{}, fmt.Errorf("EstimateNormal: %w", err)
	}

	return p.Normal, nil
}

// EstimateCentroid returns the mean of the rows of X.
//
// Errors: ErrInvalidShape, ErrNonFinite.
func EstimateCentroid(X mat.Matrix) (r3.Vector, error) {
	if err := validate(X); err != nil {
		return r3.Vector{}, fmt.Errorf("EstimateCentroid: %w", err)
	}

	return centroid(X), nil
}

// MatrixS returns the 4×4 moment matrix S = Σ[p;1][p;1]ᵗ over the rows of X.
// S[3][3] equals the number of points and S[0:3][3] the coordinate sums.
//
// Errors: ErrInvalidShape, ErrNonFinite.
func MatrixS(X mat.Matrix) (*mat.SymDense, error) {
	if err := validate(X); err != nil {
		return nil, fmt.Errorf("MatrixS: %w", err)
	}
	S := mat.NewSymDense(4, nil)
	n, _ := X.Dims()
	for i := 0; i < n; i++ {
		AccumulateS(S, r3.Vector{X: X.At(i, 0), Y: X.At(i, 1), Z: X.At(i, 2)})
	}

	return S, nil
}

// AccumulateS adds the outer product [p;1][p;1]ᵗ to the 4×4 matrix S in place.
// It panics if S is not 4×4.
func AccumulateS(S *mat.SymDense, p r3.Vector) {
	h := [4]float64{p.X, p.Y, p.Z, 1}
	var i, j int
	for i = 0; i < 4; i++ {
		for j = i; j < 4; j++ {
			S.SetSym(i, j, S.At(i, j)+h[i]*h[j])
		}
	}
}

// SmallestEigen returns the smallest eigenvalue of the symmetric matrix A and
// its unit eigenvector.
//
// Errors: ErrEigen when the factorization does not converge.
func SmallestEigen(A mat.Symmetric) (float64, *mat.VecDense, error) {
	var es mat.EigenSym
	if ok := es.Factorize(A, true); !ok {
		return 0, nil, ErrEigen
	}
	values := es.Values(nil) // ascending
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	return values[0], mat.VecDenseCopyOf(vecs.ColView(0)), nil
}

// validate checks shape and finiteness of X.
func validate(X mat.Matrix) error {
	if X == nil {
		return ErrInvalidShape
	}
	r, c := X.Dims()
	if c != 3 || r < MinPoints {
		return fmt.Errorf("%dx%d: %w", r, c, ErrInvalidShape)
	}
	var i, j int
	for i = 0; i < r; i++ {
		for j = 0; j < 3; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d: %w", i, ErrNonFinite)
			}
		}
	}

	return nil
}

func centroid(X mat.Matrix) r3.Vector {
	n, _ := X.Dims()
	var c r3.Vector
	for i := 0; i < n; i++ {
		c = c.Add(r3.Vector{X: X.At(i, 0), Y: X.At(i, 1), Z: X.At(i, 2)})
	}

	return c.Mul(1 / float64(n))
}

// centroidScatter validates X and returns its centroid and centered scatter.
func centroidScatter(X mat.Matrix) (r3.Vector, *mat.SymDense, error) {
	if err := validate(X); err != nil {
		return r3.Vector{}, nil, err
	}
	c := centroid(X)
	scatter := mat.NewSymDense(3, nil)
	n, _ := X.Dims()
	var i, a, b int
	for i = 0; i < n; i++ {
		d := [3]float64{X.At(i, 0) - c.X, X.At(i, 1) - c.Y, X.At(i, 2) - c.Z}
		for a = 0; a < 3; a++ {
			for b = a; b < 3; b++ {
				scatter.SetSym(a, b, scatter.At(a, b)+d[a]*d[b])
			}
		}
	}

	return c, scatter, nil
}

// normalFromScatter returns the smallest eigenvector of the 3×3 scatter and
// rejects spectra with fewer than two significant directions.
func normalFromScatter(scatter *mat.SymDense) (r3.Vector, error) {
	var es mat.EigenSym
	if ok := es.Factorize(scatter, true); !ok {
		return r3.Vector{}, ErrEigen
	}
	values := es.Values(nil)
	if values[2] <= 0 || values[1] <= DegeneracyRatio*values[2] {
		return r3.Vector{}, ErrDegenerate
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	n := r3.Vector{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)}

	return n.Normalize(), nil
}
