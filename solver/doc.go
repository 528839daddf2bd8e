// Package solver runs dense nonlinear least squares over a core.FGraph.
//
// Every iteration evaluates residuals and Jacobians of all factors and eigen
// factors, assembles the normal equations over the STANDARD nodes
//
//	H = Σ ωf·Jfᵗ·Wf·Jf + Σ H_ef,   b = Σ ωf·Jfᵗ·Wf·rf + Σ J_ef
//
// (ωf the robust weight of factor f), solves (H + λI)·dx = −b by Cholesky and
// retracts each node with its slice of dx. ANCHOR nodes contribute to
// residuals but never move.
//
// Methods:
//
//	GaussNewton        - λ = 0, every step is accepted.
//	LevenbergMarquardt - spherical damping λ, steps that increase the robust
//	                     cost are undone and λ grows; accepted steps shrink λ.
//
// The linear algebra is dense: the problem size is the state dimension of
// the graph, which suits small and medium problems.
//
// A Solver mutates node states and is not safe for concurrent use.
package solver
