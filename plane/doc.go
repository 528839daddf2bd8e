// Package plane fits planes to 3-D point clouds in closed form.
//
// Two formulations are provided and agree up to the sign of the plane
// coefficients:
//
//   - Centered: the normal is the eigenvector of the smallest eigenvalue of
//     the 3×3 scatter Σ(p−c)(p−c)ᵗ around the centroid c, and d = −c·n.
//   - Homogeneous: π = [n; d] is the eigenvector of the smallest eigenvalue
//     of the 4×4 moment matrix S = Σ[p;1][p;1]ᵗ, rescaled so that ‖n‖ = 1.
//
// Results are returned in canonical sign (see Canonicalize) so that repeated
// fits of the same cloud are comparable.
//
// Inputs are N×3 matrices (one point per row) with N ≥ 3. Clouds whose points
// are coincident or collinear leave the normal undetermined and are rejected
// with ErrDegenerate.
//
// Errors:
//
//	ErrInvalidShape - fewer than 3 rows or a column count other than 3.
//	ErrNonFinite    - a coordinate is NaN or ±Inf.
//	ErrDegenerate   - coincident or collinear points.
//	ErrEigen        - the symmetric eigen decomposition did not converge.
//
// All functions are pure and safe for concurrent use.
package plane
