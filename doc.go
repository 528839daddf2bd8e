// Package lvfactor is a nonlinear least-squares estimation engine for
// geometric perception: pose/landmark SLAM and point-cloud plane alignment.
//
// The module is organized in small packages that build on each other:
//
//	lie/          — SE(3)/SO(3) values: Exp, Ln, Inv, Mul, left retraction, generators
//	core/         — FGraph container; Node, Factor and EigenFactor contracts
//	factors/      — NodePose3d, NodeLandmark3d and the pose–landmark factor
//	eigenfactor/  — structure-free plane EigenFactor with O(1) incremental updates
//	plane/        — closed-form plane, normal and centroid estimation
//	registration/ — weighted point-to-point Gauss-Newton alignment
//	solver/       — dense Gauss-Newton / Levenberg-Marquardt over an FGraph
//
// A typical session:
//
//	g := core.NewFGraph()
//	pose0 := factors.NewNodePose3d(lie.Identity(), core.ModeAnchor)
//	pose1 := factors.NewNodePose3d(guess, core.ModeStandard)
//	_, _ = g.AddNode(pose0)
//	_, _ = g.AddNode(pose1)
//
//	ef := eigenfactor.NewPlane()
//	id, _ := g.AddEigenFactor(ef)
//	_ = g.EigenFactorAddPoint(id, pose0.ID(), p) // for every observed point
//
//	sv, _ := solver.New(g, solver.WithMethod(solver.LevenbergMarquardt))
//	res, err := sv.Solve()
//
// Linear algebra is done with gonum.org/v1/gonum/mat and 3-D points are
// github.com/golang/geo/r3 vectors. Everything runs in-process, synchronously
// and single-threaded.
package lvfactor
