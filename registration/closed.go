// SPDX-License-Identifier: MIT

package registration

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/lvfactor/lie"
)

// rankEps is the relative singular value below which the cross-covariance is
// considered rank deficient.
const rankEps = 1e-12

// Closed returns the weighted least-squares rigid transform with Y ≈ T·X in
// closed form: weighted centroids, SVD of the cross-covariance
// C = Σ wᵢ(xᵢ−x̄)(yᵢ−ȳ)ᵗ = U·Σ·Vᵗ, R = V·diag(1, 1, det(V·Uᵗ))·Uᵗ and
// t = ȳ − R·x̄.
//
// Errors: ErrInvalidShape, ErrInvalidWeight, ErrDegenerate when C has rank < 2.
func Closed(X, Y mat.Matrix, w []float64) (lie.SE3, error) {
	xs, ys, err := correspondences(X, Y, w)
	if err != nil {
		return lie.SE3{}, fmt.Errorf("Closed: %w", err)
	}
	T, err := closed(xs, ys, w)
	if err != nil {
		return lie.SE3{}, fmt.Errorf("Closed: %w", err)
	}

	return T, nil
}

func closed(xs, ys []r3.Vector, w []float64) (lie.SE3, error) {
	var cx, cy r3.Vector
	var sw float64
	for i := range xs {
		cx = cx.Add(xs[i].Mul(w[i]))
		cy = cy.Add(ys[i].Mul(w[i]))
		sw += w[i]
	}
	cx = cx.Mul(1 / sw)
	cy = cy.Mul(1 / sw)

	C := mat.NewDense(3, 3, nil)
	var a, b int
	for i := range xs {
		dx := xs[i].Sub(cx)
		dy := ys[i].Sub(cy)
		u := [3]float64{dx.X, dx.Y, dx.Z}
		v := [3]float64{dy.X, dy.Y, dy.Z}
		for a = 0; a < 3; a++ {
			for b = 0; b < 3; b++ {
				C.Set(a, b, C.At(a, b)+w[i]*u[a]*v[b])
			}
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(C, mat.SVDFull); !ok {
		return lie.SE3{}, ErrDegenerate
	}
	sv := svd.Values(nil)
	if sv[0] <= 0 || sv[1] <= rankEps*sv[0] {
		return lie.SE3{}, ErrDegenerate
	}
	var U, V mat.Dense
	svd.UTo(&U)
	svd.VTo(&V)

	var VUt mat.Dense
	VUt.Mul(&V, U.T())
	D := mat.NewDiagDense(3, []float64{1, 1, 1})
	if mat.Det(&VUt) < 0 {
		D.SetDiag(2, -1)
	}
	var VD, R mat.Dense
	VD.Mul(&V, D)
	R.Mul(&VD, U.T())

	Rcx := r3.Vector{
		X: R.At(0, 0)*cx.X + R.At(0, 1)*cx.Y + R.At(0, 2)*cx.Z,
		Y: R.At(1, 0)*cx.X + R.At(1, 1)*cx.Y + R.At(1, 2)*cx.Z,
		Z: R.At(2, 0)*cx.X + R.At(2, 1)*cx.Y + R.At(2, 2)*cx.Z,
	}
	T, err := lie.FromRt(&R, cy.Sub(Rcx))
	if err != nil {
		return lie.SE3{}, fmt.Errorf("closed: %w", err)
	}

	return T, nil
}
