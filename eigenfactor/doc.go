// Package eigenfactor provides structure-free geometric factors whose
// parameter is re-derived from aggregated point statistics on every
// evaluation instead of being stored as a graph Node.
//
// Plane connects every pose that observed the same planar surface. Each pose
// contributes the moment matrix S = Σ[p;1][p;1]ᵗ of its local-frame points;
// with the pose T the world-frame moment is Q = T·S·Tᵗ, and the plane π is the
// unit eigenvector of the smallest eigenvalue of Σ Q. That eigenvalue is the
// plane error and the factor's chi2.
//
// Moving a single pose only changes its own Q, so EstimatePlaneIncrementally
// and ErrorIncremental update the estimate in O(1) regardless of how many
// poses observe the plane.
//
// Gradient and Hessian are exposed per pose through NodeJacobian and
// NodeHessian; the inherited Obs, Residual, InformationMatrix and Jacobian
// accessors return core.ErrInvalidOperationForVariant.
//
// A Plane is not safe for concurrent use.
package eigenfactor
