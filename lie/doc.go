// Package lie implements the slice of SO(3)/SE(3) algebra consumed by the
// estimation packages of lvfactor.
//
// What is provided:
//
//   - SE3: a rigid transform stored as a 4×4 homogeneous matrix.
//     The zero value is the identity transform.
//   - Tangent: a 6-vector ξ = [ω; v] (rotation first, translation second).
//   - ExpSE3 / Ln: exponential and logarithm maps between the two.
//   - UpdateLHS: the left-multiplicative retraction T ← Exp(ξ)·T used by every
//     Gauss-Newton loop in this module.
//   - Hat3 / Vee3 / ExpSO3 / LnSO3: the rotation-only helpers.
//   - Generator(k): the k-th 4×4 generator G_k of se(3), so that
//     ξ^ = Σ ξ_k·G_k.
//
// Perturbation convention:
//
//	T(ξ) = Exp(ξ)·T  ⇒  d/dξ [T(ξ)·p] at ξ=0 = [ -(T·p)^ | I ]
//
// Values are immutable: every method returns a fresh SE3 except UpdateLHS,
// which swaps the receiver's backing matrix for a newly computed one. Copying
// an SE3 is therefore cheap and safe.
//
// Numeric storage and products go through gonum.org/v1/gonum/mat; points are
// github.com/golang/geo/r3 vectors.
package lie
