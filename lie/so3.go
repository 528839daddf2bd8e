// SPDX-License-Identifier: MIT

package lie

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// taylorAngle is the angle below which the closed forms switch to their
// Taylor expansions.
const taylorAngle = 1e-5

// Hat3 returns the skew-symmetric matrix v^ such that v^·u = v × u.
func Hat3(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}

// Vee3 is the inverse of Hat3. Only the skew-symmetric part of m is read,
// so for a rotation matrix it returns sin(θ)·k.
func Vee3(m mat.Matrix) r3.Vector {
	return r3.Vector{
		X: 0.5 * (m.At(2, 1) - m.At(1, 2)),
		Y: 0.5 * (m.At(0, 2) - m.At(2, 0)),
		Z: 0.5 * (m.At(1, 0) - m.At(0, 1)),
	}
}

// ExpSO3 maps a rotation vector ω to R = I + a·ω^ + b·(ω^)² (Rodrigues).
func ExpSO3(w r3.Vector) *mat.Dense {
	theta := w.Norm()
	var a, b float64
	if theta < taylorAngle {
		t2 := theta * theta
		a = 1 - t2/6
		b = 0.5 - t2/24
	} else {
		a = math.Sin(theta) / theta
		b = (1 - math.Cos(theta)) / (theta * theta)
	}

	return polyHat(w, a, b)
}

// LnSO3 returns the rotation vector of R with angle in [0, π].
// R is assumed orthonormal; no re-orthogonalization is attempted.
func LnSO3(R mat.Matrix) r3.Vector {
	cosTheta := 0.5 * (R.At(0, 0) + R.At(1, 1) + R.At(2, 2) - 1)
	cosTheta = math.Max(-1, math.Min(1, cosTheta))
	theta := math.Acos(cosTheta)
	s := Vee3(R) // sin(θ)·k

	switch {
	case theta < taylorAngle:
		return s.Mul(1 + theta*theta/6)
	case math.Pi-theta < taylorAngle:
		return axisNearPi(R, s).Mul(theta)
	default:
		return s.Mul(theta / math.Sin(theta))
	}
}

// axisNearPi recovers the unit axis when sin(θ)≈0 from R ≈ 2·k·kᵗ − I,
// using the largest diagonal entry as pivot. The residual skew part s
// only resolves the sign.
func axisNearPi(R mat.Matrix, s r3.Vector) r3.Vector {
	pivot := 0
	for i := 1; i < 3; i++ {
		if R.At(i, i) > R.At(pivot, pivot) {
			pivot = i
		}
	}
	var k [3]float64
	k[pivot] = math.Sqrt(math.Max(0, 0.5*(R.At(pivot, pivot)+1)))
	for j := 0; j < 3; j++ {
		if j == pivot {
			continue
		}
		k[j] = 0.25 * (R.At(pivot, j) + R.At(j, pivot)) / k[pivot]
	}
	axis := r3.Vector{X: k[0], Y: k[1], Z: k[2]}.Normalize()
	if axis.Dot(s) < 0 {
		axis = axis.Mul(-1)
	}

	return axis
}

// polyHat evaluates I + a·w^ + b·(w^)².
func polyHat(w r3.Vector, a, b float64) *mat.Dense {
	W := Hat3(w)
	var W2 mat.Dense
	W2.Mul(W, W)

	out := mat.NewDense(3, 3, nil)
	var i, j int
	for i = 0; i < 3; i++ {
		for j = 0; j < 3; j++ {
			v := a*W.At(i, j) + b*W2.At(i, j)
			if i == j {
				v++
			}
			out.Set(i, j, v)
		}
	}

	return out
}
