// Package factors provides the concrete Nodes and Factors of lvfactor for
// 3-D pose/landmark problems:
//
//   - NodePose3d      – an SE(3) pose, tangent dimension 6, left retraction.
//   - NodeLandmark3d  – a free 3-D point, tangent dimension 3, additive update.
//   - Factor1Pose1Landmark3d – a landmark observed in a pose's local frame:
//
//     r = T⁻¹·l − z
//     ∂r/∂ξ_T = R⁻¹·[ l^ | −I ]   (3×6, T ← Exp(ξ)·T)
//     ∂r/∂l   = R⁻¹               (3×3)
//
// The factor stores its two neighbours in ascending NodeID order regardless of
// the order the roles were passed in, and records which slot holds the pose so
// the Jacobian blocks land in the right columns.
package factors
