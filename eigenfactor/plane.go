// SPDX-License-Identifier: MIT
//
// File: plane.go
// Role: Incremental plane EigenFactor over any number of pose nodes.
// Determinism: Q is accumulated in ascending NodeID order.
// Concurrency: not safe for concurrent use.

package eigenfactor

import (
	"errors"
	"fmt"
	"io"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/lvfactor/core"
	"github.com/katalvlaran/lvfactor/factors"
	"github.com/katalvlaran/lvfactor/lie"
	"github.com/katalvlaran/lvfactor/plane"
)

// Sentinel errors for eigen factors.
var (
	// ErrUnknownNode indicates a node that has contributed no points to the factor.
	ErrUnknownNode = errors.New("eigenfactor: node has no points in this factor")

	// ErrNodeType indicates a node whose state is not a pose.
	ErrNodeType = errors.New("eigenfactor: node is not a pose")

	// ErrNoPoints indicates an estimate was requested before any point was added.
	ErrNoPoints = errors.New("eigenfactor: no points")
)

// generators holds the six 4×4 se(3) generators.
var generators = func() [6]*mat.Dense {
	var g [6]*mat.Dense
	for k := range g {
		g[k] = lie.Generator(k)
	}
	return g
}()

// Option configures a Plane at construction.
type Option func(o *options)

type options struct {
	robust core.RobustType
}

// WithRobust selects the robust cost tag forwarded to the solver.
func WithRobust(r core.RobustType) Option {
	return func(o *options) { o.robust = r }
}

// Plane is an EigenFactor estimating a plane from points observed by poses.
type Plane struct {
	core.FactorBase

	poses   map[core.NodeID]factors.PoseNode
	points  map[core.NodeID][]r3.Vector
	moments map[core.NodeID]*mat.SymDense // Σ[p;1][p;1]ᵗ, local frame
	stale   map[core.NodeID]bool
	world   map[core.NodeID]*mat.SymDense // T·S·Tᵗ
	accQ    *mat.SymDense

	pi        *mat.VecDense // unit 4-vector [n; d]
	planeErr  float64
	numPoints int

	grad      map[core.NodeID]*mat.VecDense
	hess      map[core.NodeID]*mat.Dense
	evaluated bool
	chi2      float64
}

// NewPlane returns an empty plane factor.
func NewPlane(opts ...Option) *Plane {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return &Plane{
		FactorBase: core.NewFactorBase(1, o.robust),
		poses:      make(map[core.NodeID]factors.PoseNode),
		points:     make(map[core.NodeID][]r3.Vector),
		moments:    make(map[core.NodeID]*mat.SymDense),
		stale:      make(map[core.NodeID]bool),
		world:      make(map[core.NodeID]*mat.SymDense),
		accQ:       mat.NewSymDense(4, nil),
		pi:         mat.NewVecDense(4, nil),
		grad:       make(map[core.NodeID]*mat.VecDense),
		hess:       make(map[core.NodeID]*mat.Dense),
	}
}

// AddPoint stores p, expressed in the local frame of pose n, and registers n
// as a neighbour. The moment matrix of n is marked stale. Nothing is stored
// when an error is returned.
//
// Errors: core.ErrNilNode, core.ErrUnregisteredNode, ErrNodeType, and
// core.ErrForeignNode once the factor is in a graph that does not own n.
func (p *Plane) AddPoint(pt r3.Vector, n core.Node) error {
	if n == nil {
		return fmt.Errorf("Plane.AddPoint: %w", core.ErrNilNode)
	}
	pose, ok := n.(factors.PoseNode)
	if !ok {
		return fmt.Errorf("Plane.AddPoint: node %d: %w", n.ID(), ErrNodeType)
	}
	// ordering and ownership are checked before any state changes
	if _, err := p.InsertNeighbour(n); err != nil {
		return fmt.Errorf("Plane.AddPoint: node %d: %w", n.ID(), err)
	}
	id := n.ID()
	p.poses[id] = pose
	p.points[id] = append(p.points[id], pt)
	p.stale[id] = true
	p.numPoints++

	return nil
}

// PointCount returns the total number of points added.
func (p *Plane) PointCount() int { return p.numPoints }

// CalculateAllMatricesS computes S = Σ[p;1][p;1]ᵗ per node. With reset every
// matrix is rebuilt; otherwise only missing or stale ones are.
func (p *Plane) CalculateAllMatricesS(reset bool) {
	for id := range p.points {
		if reset || p.stale[id] || p.moments[id] == nil {
			p.calculateS(id)
		}
	}
}

func (p *Plane) calculateS(id core.NodeID) {
	S := mat.NewSymDense(4, nil)
	for _, pt := range p.points[id] {
		plane.AccumulateS(S, pt)
	}
	p.moments[id] = S
	delete(p.stale, id)
}

// freshS returns the up-to-date moment matrix of node id.
func (p *Plane) freshS(id core.NodeID) (*mat.SymDense, error) {
	if _, ok := p.points[id]; !ok {
		return nil, ErrUnknownNode
	}
	if p.stale[id] || p.moments[id] == nil {
		p.calculateS(id)
	}

	return p.moments[id], nil
}

// MeanPoint returns the centroid of the points observed from node id in its
// local frame, read from S as S[0:3,3]/S[3,3].
//
// Errors: ErrUnknownNode.
func (p *Plane) MeanPoint(id core.NodeID) (r3.Vector, error) {
	S, err := p.freshS(id)
	if err != nil {
		return r3.Vector{}, fmt.Errorf("Plane.MeanPoint(%d): %w", id, err)
	}
	n := S.At(3, 3)

	return r3.Vector{X: S.At(0, 3) / n, Y: S.At(1, 3) / n, Z: S.At(2, 3) / n}, nil
}

// CalculateAllMatricesQ recomputes Q = T·S·Tᵗ for every node from its current
// pose and rebuilds the accumulated Q. Stale moment matrices are refreshed
// first.
func (p *Plane) CalculateAllMatricesQ() {
	p.CalculateAllMatricesS(false)
	p.accQ = mat.NewSymDense(4, nil)
	// neighbours are sorted, so the sum is formed in identity order
	for _, n := range p.Neighbours() {
		id := n.ID()
		Q := transformS(p.poses[id].Pose(), p.moments[id])
		p.world[id] = Q
		p.accQ.AddSym(p.accQ, Q)
	}
}

// EstimatePlane recomputes every Q, then sets the plane to the eigenvector of
// the smallest eigenvalue of Σ Q and returns that eigenvalue.
//
// Errors: ErrNoPoints, plane.ErrEigen.
func (p *Plane) EstimatePlane() (float64, error) {
	if p.numPoints == 0 {
		return 0, fmt.Errorf("Plane.EstimatePlane: %w", ErrNoPoints)
	}
	p.CalculateAllMatricesQ()
	if err := p.solve(p.accQ); err != nil {
		return 0, fmt.Errorf("Plane.EstimatePlane: %w", err)
	}

	return p.planeErr, nil
}

// EstimatePlaneIncrementally refreshes only the Q of node id, updates Σ Q by
// the difference and re-solves the 4×4 eigenproblem. A node without a
// previous Q contributes it for the first time.
//
// Errors: ErrUnknownNode, plane.ErrEigen.
//
// Complexity: O(1) in the number of nodes.
func (p *Plane) EstimatePlaneIncrementally(id core.NodeID) (float64, error) {
	acc, Q, err := p.incremental(id)
	if err != nil {
		return 0, fmt.Errorf("Plane.EstimatePlaneIncrementally(%d): %w", id, err)
	}
	if err = p.solve(acc); err != nil {
		return 0, fmt.Errorf("Plane.EstimatePlaneIncrementally(%d): %w", id, err)
	}
	// commit only after the eigenproblem succeeded
	p.world[id] = Q
	p.accQ = acc

	return p.planeErr, nil
}

// ErrorIncremental returns the plane error that EstimatePlaneIncrementally(id)
// would produce, leaving the factor untouched.
//
// Errors: ErrUnknownNode, plane.ErrEigen.
func (p *Plane) ErrorIncremental(id core.NodeID) (float64, error) {
	acc, _, err := p.incremental(id)
	if err != nil {
		return 0, fmt.Errorf("Plane.ErrorIncremental(%d): %w", id, err)
	}
	lambda, _, err := plane.SmallestEigen(acc)
	if err != nil {
		return 0, fmt.Errorf("Plane.ErrorIncremental(%d): %w", id, err)
	}

	return lambda, nil
}

// incremental returns Σ Q − Q_old + Q_new for node id and Q_new.
func (p *Plane) incremental(id core.NodeID) (*mat.SymDense, *mat.SymDense, error) {
	S, err := p.freshS(id)
	if err != nil {
		return nil, nil, err
	}
	// Q_new from the current pose; S is already in the local frame
	Q := transformS(p.poses[id].Pose(), S)
	// work on a copy so ErrorIncremental stays read-only
	acc := mat.NewSymDense(4, nil)
	acc.CopySym(p.accQ)
	if old := p.world[id]; old != nil {
		// swap the old contribution for the new one
		var diff mat.Dense
		diff.Sub(Q, old)
		addSymmetrized(acc, &diff)
	} else {
		// first contribution of this node
		acc.AddSym(acc, Q)
	}

	return acc, Q, nil
}

func (p *Plane) solve(acc mat.Symmetric) error {
	lambda, v, err := plane.SmallestEigen(acc)
	if err != nil {
		return err
	}
	p.pi.CopyVec(v)
	p.planeErr = lambda

	return nil
}

// Plane returns a copy of the current estimate π = [n; d] with ‖π‖ = 1.
func (p *Plane) Plane() *mat.VecDense { return mat.VecDenseCopyOf(p.pi) }

// Geometric returns the current estimate with a unit normal and canonical sign.
//
// Errors: plane.ErrDegenerate when no estimate exists yet.
func (p *Plane) Geometric() (plane.Plane, error) {
	g, err := plane.FromCoeffs([4]float64{p.pi.AtVec(0), p.pi.AtVec(1), p.pi.AtVec(2), p.pi.AtVec(3)})
	if err != nil {
		return plane.Plane{}, fmt.Errorf("Plane.Geometric: %w", err)
	}

	return plane.Canonicalize(g), nil
}

// Error returns the smallest eigenvalue found by the last estimate.
func (p *Plane) Error() float64 { return p.planeErr }

// EvaluateResiduals re-estimates the plane from the current poses.
func (p *Plane) EvaluateResiduals() error {
	if _, err := p.EstimatePlane(); err != nil {
		return fmt.Errorf("Plane.EvaluateResiduals: %w", err)
	}
	p.evaluated = true

	return nil
}

// EvaluateJacobians computes the per-node gradient and diagonal Hessian block
// of the plane error w.r.t. a left perturbation Exp(ξ)·T, with π held fixed:
//
//	J_k  = πᵗ(G_k·Q + Q·G_kᵗ)π
//	H_kl = 2(G_kᵗπ)ᵗ·Q·(G_lᵗπ) + πᵗ(G_k·G_l + G_l·G_k)·Q·π
//
// Errors: core.ErrNotEvaluated.
func (p *Plane) EvaluateJacobians() error {
	if !p.evaluated {
		return fmt.Errorf("Plane.EvaluateJacobians: %w", core.ErrNotEvaluated)
	}
	for id, Q := range p.world {
		p.grad[id], p.hess[id] = derivatives(p.pi, Q)
	}

	return nil
}

// derivatives returns the 6-gradient and 6×6 Hessian of πᵗ·Q(ξ)·π at ξ = 0.
func derivatives(pi *mat.VecDense, Q mat.Matrix) (*mat.VecDense, *mat.Dense) {
	var Qpi mat.VecDense
	Qpi.MulVec(Q, pi)

	J := mat.NewVecDense(6, nil)
	var a [6]mat.VecDense // G_kᵗ·π
	var GQpi mat.VecDense
	// first order: ∂/∂ξ_k πᵗQπ = 2πᵗG_kQπ
	for k, G := range generators {
		GQpi.MulVec(G, &Qpi)
		J.SetVec(k, 2*mat.Dot(pi, &GQpi))
		a[k].MulVec(G.T(), pi)
	}

	H := mat.NewDense(6, 6, nil)
	var QA, GGQpi mat.VecDense
	var GG, LK mat.Dense
	var k, l int
	// second order, upper triangle mirrored
	for k = 0; k < 6; k++ {
		for l = k; l < 6; l++ {
			// 2(G_kᵗπ)ᵗQ(G_lᵗπ)
			QA.MulVec(Q, &a[l])
			h := 2 * mat.Dot(&a[k], &QA)
			// πᵗ(G_kG_l + G_lG_k)Qπ
			GG.Mul(generators[k], generators[l])
			LK.Mul(generators[l], generators[k])
			GG.Add(&GG, &LK)
			GGQpi.MulVec(&GG, &Qpi)
			h += mat.Dot(pi, &GGQpi)
			H.Set(k, l, h)
			H.Set(l, k, h)
		}
	}

	return J, H
}

// EvaluateChi2 returns the plane error (unit point weight).
func (p *Plane) EvaluateChi2() float64 {
	p.chi2 = p.planeErr

	return p.chi2
}

// Chi2 returns the last evaluated cost.
func (p *Plane) Chi2() float64 { return p.chi2 }

// NodeJacobian returns a copy of the gradient block of node id.
//
// Errors: core.ErrNotEvaluated, ErrUnknownNode.
func (p *Plane) NodeJacobian(id core.NodeID) (*mat.VecDense, error) {
	if _, ok := p.points[id]; !ok {
		return nil, fmt.Errorf("Plane.NodeJacobian(%d): %w", id, ErrUnknownNode)
	}
	J, ok := p.grad[id]
	if !ok {
		return nil, fmt.Errorf("Plane.NodeJacobian(%d): %w", id, core.ErrNotEvaluated)
	}

	return mat.VecDenseCopyOf(J), nil
}

// NodeHessian returns a copy of the diagonal Hessian block of node id.
//
// Errors: core.ErrNotEvaluated, ErrUnknownNode.
func (p *Plane) NodeHessian(id core.NodeID) (*mat.Dense, error) {
	if _, ok := p.points[id]; !ok {
		return nil, fmt.Errorf("Plane.NodeHessian(%d): %w", id, ErrUnknownNode)
	}
	H, ok := p.hess[id]
	if !ok {
		return nil, fmt.Errorf("Plane.NodeHessian(%d): %w", id, core.ErrNotEvaluated)
	}

	return mat.DenseCopyOf(H), nil
}

// Obs is not defined for a plane factor.
func (p *Plane) Obs() (*mat.VecDense, error) {
	return nil, fmt.Errorf("Plane.Obs: %w", core.ErrInvalidOperationForVariant)
}

// Residual is not defined for a plane factor.
func (p *Plane) Residual() (*mat.VecDense, error) {
	return nil, fmt.Errorf("Plane.Residual: %w", core.ErrInvalidOperationForVariant)
}

// InformationMatrix is not defined for a plane factor.
func (p *Plane) InformationMatrix() (*mat.Dense, error) {
	return nil, fmt.Errorf("Plane.InformationMatrix: %w", core.ErrInvalidOperationForVariant)
}

// Jacobian is not defined for a plane factor; use NodeJacobian.
func (p *Plane) Jacobian() (*mat.Dense, error) {
	return nil, fmt.Errorf("Plane.Jacobian: %w", core.ErrInvalidOperationForVariant)
}

// Print writes the estimate, error and connectivity.
func (p *Plane) Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Printing EigenFactorPlane: %d, plane = [%g %g %g %g]\n",
		p.ID(), p.pi.AtVec(0), p.pi.AtVec(1), p.pi.AtVec(2), p.pi.AtVec(3))
	_, _ = fmt.Fprintf(w, " Plane error = %g, points = %d, neighbour Nodes %d\n",
		p.planeErr, p.numPoints, p.NeighbourCount())
}

// transformS returns T·S·Tᵗ, symmetrized.
func transformS(T lie.SE3, S mat.Matrix) *mat.SymDense {
	M := T.T()
	var TS, Q mat.Dense
	TS.Mul(M, S)
	Q.Mul(&TS, M.T())
	out := mat.NewSymDense(4, nil)
	addSymmetrized(out, &Q)

	return out
}

// addSymmetrized adds (A + Aᵗ)/2 to dst.
func addSymmetrized(dst *mat.SymDense, A mat.Matrix) {
	var i, j int
	for i = 0; i < 4; i++ {
		for j = i; j < 4; j++ {
			dst.SetSym(i, j, dst.At(i, j)+0.5*(A.At(i, j)+A.At(j, i)))
		}
	}
}
