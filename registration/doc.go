// Package registration aligns corresponding 3-D point sets with a rigid
// transform.
//
// WeightedPoint minimizes Σ wᵢ‖yᵢ − T·xᵢ‖² over T ∈ SE(3) with Gauss-Newton
// steps on the left tangent space: per iteration it accumulates
//
//	g = Σ wᵢ·Jᵢᵗ·rᵢ,   H = Σ wᵢ·Jᵢᵗ·Jᵢ,   rᵢ = yᵢ − T·xᵢ,   Jᵢ = [(T·xᵢ)^ | −I]
//
// solves dξ = −H⁻¹·g and retracts T ← Exp(dξ)·T, stopping once ‖dξ‖ drops
// below the tolerance or the iteration cap is reached. Reaching the cap is not
// an error; Result.Converged reports it.
//
// Closed computes the weighted closed-form alignment (centroids plus SVD of
// the cross-covariance) and can seed WeightedPoint via WithClosedFormInit.
//
// Options:
//
//	WithTolerance(tol)     - stop threshold on ‖dξ‖ (default 1e-4).
//	WithMaxIterations(n)   - iteration cap (default 20).
//	WithClosedFormInit()   - replace the initial guess with Closed(X, Y, w).
//	WithLogger(l)          - slog logger for per-iteration diagnostics.
//
// Errors:
//
//	ErrInvalidShape  - X or Y not N×3, N < 3, row counts or weight length differ.
//	ErrInvalidWeight - a weight is not strictly positive and finite.
//	ErrDegenerate    - the normal equations are exactly singular (e.g. all
//	                   points coincide) or the cloud has no rotational support.
//
// Functions are pure and safe for concurrent use.
package registration
