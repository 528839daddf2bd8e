// SPDX-License-Identifier: MIT

package plane

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Sentinel errors for plane fitting.
var (
	// ErrInvalidShape indicates an input that is not an N×3 matrix with N ≥ 3.
	ErrInvalidShape = errors.New("plane: invalid shape")

	// ErrNonFinite indicates a NaN or ±Inf coordinate.
	ErrNonFinite = errors.New("plane: NaN or Inf coordinate")

	// ErrDegenerate indicates coincident or collinear points.
	ErrDegenerate = errors.New("plane: degenerate point cloud")

	// ErrEigen indicates the eigen decomposition failed to converge.
	ErrEigen = errors.New("plane: eigen decomposition failed")
)

const (
	// MinPoints is the smallest cloud a plane can be fitted to.
	MinPoints = 3

	// DegeneracyRatio bounds λ₁/λ₂ of the centered scatter: below it the
	// cloud is treated as collinear.
	DegeneracyRatio = 1e-12

	// canonicalEps is the magnitude under which a coefficient counts as zero
	// when choosing the canonical sign.
	canonicalEps = 1e-12
)

// Plane is n·x + D = 0 with a unit normal n.
type Plane struct {
	Normal r3.Vector
	D      float64
}

// Coeffs returns π = [nx, ny, nz, d].
func (p Plane) Coeffs() [4]float64 {
	return [4]float64{p.Normal.X, p.Normal.Y, p.Normal.Z, p.D}
}

// Distance returns the signed distance n·x + D of x to the plane.
func (p Plane) Distance(x r3.Vector) float64 {
	return p.Normal.Dot(x) + p.D
}

// Flip returns the same plane with opposite orientation.
func (p Plane) Flip() Plane {
	return Plane{Normal: p.Normal.Mul(-1), D: -p.D}
}

// String implements fmt.Stringer.
func (p Plane) String() string {
	return fmt.Sprintf("[%g %g %g %g]", p.Normal.X, p.Normal.Y, p.Normal.Z, p.D)
}

// Canonicalize fixes the sign ambiguity of a plane: when |D| is non-zero the
// plane is oriented so that D ≤ 0 (the normal points away from the origin);
// otherwise the first non-zero normal component is made positive.
func Canonicalize(p Plane) Plane {
	if math.Abs(p.D) > canonicalEps {
		if p.D > 0 {
			return p.Flip()
		}
		return p
	}
	for _, c := range [3]float64{p.Normal.X, p.Normal.Y, p.Normal.Z} {
		if math.Abs(c) > canonicalEps {
			if c < 0 {
				return p.Flip()
			}
			return p
		}
	}

	return p
}

// FromCoeffs builds a plane from π = [a, b, c, d], rescaling so that the
// normal has unit length. It returns ErrDegenerate when ‖(a, b, c)‖ vanishes.
func FromCoeffs(pi [4]float64) (Plane, error) {
	n := r3.Vector{X: pi[0], Y: pi[1], Z: pi[2]}
	norm := n.Norm()
	if norm < canonicalEps || math.IsNaN(norm) {
		return Plane{}, fmt.Errorf("FromCoeffs: zero normal: %w", ErrDegenerate)
	}

	return Plane{Normal: n.Mul(1 / norm), D: pi[3] / norm}, nil
}
