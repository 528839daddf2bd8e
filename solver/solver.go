// SPDX-License-Identifier: MIT
//
// File: solver.go
// Role: Dense GN/LM iterations over the FGraph evaluation contract.
// Determinism: nodes are laid out in the state vector in identity order.
// Concurrency: mutates node states; not safe for concurrent use.

package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/lvfactor/core"
)

// Sentinel errors for the solver.
var (
	// ErrNilGraph indicates New was called with a nil graph.
	ErrNilGraph = errors.New("solver: graph is nil")

	// ErrEmptyProblem indicates a graph without STANDARD nodes to optimize.
	ErrEmptyProblem = errors.New("solver: state dimension is zero")

	// ErrSingular indicates Gauss-Newton normal equations that are not
	// positive definite (typically an unanchored gauge freedom).
	ErrSingular = errors.New("solver: normal equations not positive definite")
)

// Result summarizes a Solve call. Chi2 values are the plain sums of factor
// costs, without robust kernels.
type Result struct {
	Iterations  int
	Converged   bool
	InitialChi2 float64
	FinalChi2   float64
	Lambda      float64 // final damping, LM only
}

// Solver optimizes the STANDARD nodes of one graph.
type Solver struct {
	g    *core.FGraph
	opts Options

	offsets map[core.NodeID]int // position of each STANDARD node in dx
	dim     int
}

// New binds a solver to g.
//
// Errors: ErrNilGraph.
func New(g *core.FGraph, opts ...Option) (*Solver, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Solver{g: g, opts: cfg}, nil
}

// Chi2 returns Σ chi2 over factors and eigen factors. With evaluate set,
// residuals are recomputed from the current states first; otherwise the
// cached values are summed.
//
// Errors: whatever a factor's EvaluateResiduals returns.
func (s *Solver) Chi2(evaluate bool) (float64, error) {
	var total float64
	err := s.each(evaluate, func(f core.Factor, chi2 float64) {
		total += chi2
	})

	return total, err
}

// cost is the robust counterpart of Chi2.
func (s *Solver) cost(evaluate bool) (float64, error) {
	var total float64
	k := s.opts.RobustThreshold
	err := s.each(evaluate, func(f core.Factor, chi2 float64) {
		total += RobustCost(f.Robust(), chi2, k)
	})

	return total, err
}

// each visits every factor and non-empty eigen factor with its chi2.
func (s *Solver) each(evaluate bool, visit func(core.Factor, float64)) error {
	fs := s.g.Factors()
	all := make([]core.Factor, 0, len(fs)+s.g.EigenFactorCount())
	all = append(all, fs...)
	for _, ef := range s.g.EigenFactors() {
		// registered but not yet filled: contributes nothing
		if len(ef.Neighbours()) == 0 {
			continue
		}
		all = append(all, ef)
	}
	for _, f := range all {
		if !evaluate {
			visit(f, f.Chi2())
			continue
		}
		if err := f.EvaluateResiduals(); err != nil {
			return fmt.Errorf("factor %d: %w", f.ID(), err)
		}
		visit(f, f.EvaluateChi2())
	}

	return nil
}

// Solve iterates until convergence or the iteration cap.
//
// Implementation:
//   - Stage 1: lay out STANDARD nodes, evaluate the initial cost.
//   - Stage 2: per iteration assemble (H, b), solve, retract; the LM methods
//     undo steps that increase the robust cost and adapt λ.
//   - Stage 3: evaluate the final chi2.
//
// Errors: ErrEmptyProblem, ErrSingular (Gauss-Newton only), factor errors.
func (s *Solver) Solve() (Result, error) {
	// Stage 1
	s.layout()
	if s.dim == 0 {
		return Result{}, ErrEmptyProblem
	}
	var res Result
	var err error
	if res.InitialChi2, err = s.Chi2(true); err != nil {
		return res, fmt.Errorf("Solve: %w", err)
	}
	cost, err := s.cost(false)
	if err != nil {
		return res, fmt.Errorf("Solve: %w", err)
	}
	damped := s.opts.Method.damped()
	ellipsoidal := s.opts.Method == LevenbergMarquardtEllipsoidal
	lambda := 0.0
	if damped {
		lambda = s.opts.Lambda
	}
	log := s.opts.Logger.With("method", s.opts.Method.String(), "dim", s.dim)
	log.Debug("solve start", "chi2", res.InitialChi2)

	// Stage 2
	for res.Iterations < s.opts.MaxIterations {
		res.Iterations++
		// linearize every factor at the current states
		H, b, err := s.assemble()
		if err != nil {
			return res, fmt.Errorf("Solve: %w", err)
		}
		dx, err := solve(H, b, lambda, ellipsoidal)
		if err != nil {
			// GN has no damping to raise; LM retries with a stiffer system
			if !damped {
				return res, fmt.Errorf("Solve: iteration %d: %w", res.Iterations, err)
			}
			lambda = math.Min(lambda*10, lambdaMax)
			log.Debug("damping increased", "iteration", res.Iterations, "lambda", lambda)
			continue
		}
		step := mat.Norm(dx, 2)

		// keep the states so a rejected step can be undone
		backup := s.backup()
		if err = s.apply(dx); err != nil {
			return res, fmt.Errorf("Solve: %w", err)
		}
		next, err := s.cost(true)
		if err != nil {
			return res, fmt.Errorf("Solve: %w", err)
		}
		log.Debug("iteration", "n", res.Iterations, "cost", next, "step", step, "lambda", lambda)

		if damped && next > cost {
			// reject: restore, then stop once the step or λ saturates
			if err = s.restore(backup); err != nil {
				return res, fmt.Errorf("Solve: %w", err)
			}
			if step < s.opts.Tolerance || lambda >= lambdaMax {
				res.Converged = step < s.opts.Tolerance
				break
			}
			lambda = math.Min(lambda*10, lambdaMax)
			continue
		}
		// accept: relax damping towards Gauss-Newton
		if damped {
			lambda = math.Max(lambda/10, lambdaMin)
		}

		rel := math.Abs(cost-next) / math.Max(cost, math.SmallestNonzeroFloat64)
		cost = next
		if step < s.opts.Tolerance || rel < s.opts.Tolerance {
			res.Converged = true
			break
		}
	}

	// Stage 3
	res.Lambda = lambda
	if res.FinalChi2, err = s.Chi2(true); err != nil {
		return res, fmt.Errorf("Solve: %w", err)
	}
	log.Debug("solve done", "iterations", res.Iterations, "chi2", res.FinalChi2, "converged", res.Converged)

	return res, nil
}

// InformationMatrix returns the normal-equation matrix H = Σ JᵗWJ (robust
// weights applied) linearized at the current node states, in the state order
// of Solve.
//
// Errors: ErrEmptyProblem, factor errors.
func (s *Solver) InformationMatrix() (*mat.Dense, error) {
	s.layout()
	if s.dim == 0 {
		return nil, ErrEmptyProblem
	}
	H, _, err := s.assemble()
	if err != nil {
		return nil, fmt.Errorf("InformationMatrix: %w", err)
	}

	return H, nil
}

// layout assigns each STANDARD node its offset in the state vector.
func (s *Solver) layout() {
	s.offsets = make(map[core.NodeID]int)
	s.dim = 0
	for _, n := range s.g.ActiveNodes() {
		s.offsets[n.ID()] = s.dim
		s.dim += n.Dim()
	}
}

// block locates a neighbour both in the state vector and in a factor Jacobian.
type block struct {
	offset int // row/column in H
	col    int // column in the factor Jacobian
	dim    int
	node   core.NodeID
}

// blocks returns the STANDARD neighbours of f with their Jacobian columns.
//
// Errors: core.ErrForeignNode when a neighbour is not owned by the graph.
func (s *Solver) blocks(f core.Factor) ([]block, error) {
	var out []block
	col := 0
	for _, n := range f.Neighbours() {
		// offsets are keyed by identity; make sure it is this graph's node
		if !s.g.Owns(n) {
			return nil, fmt.Errorf("node %d: %w", n.ID(), core.ErrForeignNode)
		}
		if off, ok := s.offsets[n.ID()]; ok {
			out = append(out, block{offset: off, col: col, dim: n.Dim(), node: n.ID()})
		}
		// anchors still occupy columns in the factor Jacobian
		col += n.Dim()
	}

	return out, nil
}

// assemble evaluates every factor at the current states and builds H and b.
func (s *Solver) assemble() (*mat.Dense, *mat.VecDense, error) {
	H := mat.NewDense(s.dim, s.dim, nil)
	b := mat.NewVecDense(s.dim, nil)
	k := s.opts.RobustThreshold

	// pose–landmark style factors: full JᵗWJ blocks, cross terms included
	for _, f := range s.g.Factors() {
		blks, err := s.blocks(f)
		if err != nil {
			return nil, nil, fmt.Errorf("factor %d: %w", f.ID(), err)
		}
		if err = f.EvaluateResiduals(); err != nil {
			return nil, nil, fmt.Errorf("factor %d: %w", f.ID(), err)
		}
		if err = f.EvaluateJacobians(); err != nil {
			return nil, nil, fmt.Errorf("factor %d: %w", f.ID(), err)
		}
		// IRLS weight from the current cost
		w := RobustWeight(f.Robust(), f.EvaluateChi2(), k)
		r, err := f.Residual()
		if err != nil {
			return nil, nil, fmt.Errorf("factor %d: %w", f.ID(), err)
		}
		W, err := f.InformationMatrix()
		if err != nil {
			return nil, nil, fmt.Errorf("factor %d: %w", f.ID(), err)
		}
		J, err := f.Jacobian()
		if err != nil {
			return nil, nil, fmt.Errorf("factor %d: %w", f.ID(), err)
		}
		m := f.DimObs()

		var WJ mat.Dense
		WJ.Mul(W, J)
		var Wr, g mat.VecDense
		Wr.MulVec(W, r)
		for _, bi := range blks {
			// b_i += w·J_iᵗWr
			Ji := J.Slice(0, m, bi.col, bi.col+bi.dim)
			g.Reset()
			g.MulVec(Ji.T(), &Wr)
			addVec(b, bi.offset, &g, w)
			// H_ij += w·J_iᵗWJ_j
			for _, bj := range blks {
				var Hij mat.Dense
				Hij.Mul(Ji.T(), WJ.Slice(0, m, bj.col, bj.col+bj.dim))
				addBlock(H, bi.offset, bj.offset, &Hij, w)
			}
		}
	}

	// eigen factors: per-node gradient and diagonal Hessian only
	for _, ef := range s.g.EigenFactors() {
		if len(ef.Neighbours()) == 0 {
			continue
		}
		blks, err := s.blocks(ef)
		if err != nil {
			return nil, nil, fmt.Errorf("eigen factor %d: %w", ef.ID(), err)
		}
		if err = ef.EvaluateResiduals(); err != nil {
			return nil, nil, fmt.Errorf("eigen factor %d: %w", ef.ID(), err)
		}
		if err = ef.EvaluateJacobians(); err != nil {
			return nil, nil, fmt.Errorf("eigen factor %d: %w", ef.ID(), err)
		}
		w := RobustWeight(ef.Robust(), ef.EvaluateChi2(), k)
		for _, bi := range blks {
			g, err := ef.NodeJacobian(bi.node)
			if err != nil {
				return nil, nil, fmt.Errorf("eigen factor %d: %w", ef.ID(), err)
			}
			Hn, err := ef.NodeHessian(bi.node)
			if err != nil {
				return nil, nil, fmt.Errorf("eigen factor %d: %w", ef.ID(), err)
			}
			addVec(b, bi.offset, g, w)
			addBlock(H, bi.offset, bi.offset, Hn, w)
		}
	}

	return H, b, nil
}

// solve returns dx with (H + λD)·dx = −b, where D is I, or diag(H) when
// ellipsoidal is set.
func solve(H *mat.Dense, b *mat.VecDense, lambda float64, ellipsoidal bool) (*mat.VecDense, error) {
	n := b.Len()
	A := mat.NewSymDense(n, nil)
	var i, j int
	for i = 0; i < n; i++ {
		// symmetrize away round-off from the block products
		for j = i; j < n; j++ {
			A.SetSym(i, j, 0.5*(H.At(i, j)+H.At(j, i)))
		}
		d := 1.0
		if ellipsoidal {
			d = H.At(i, i)
		}
		A.SetSym(i, i, A.At(i, i)+lambda*d)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(A); !ok {
		return nil, ErrSingular
	}
	dx := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(dx, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, ErrSingular
		}
	}
	// descent direction
	dx.ScaleVec(-1, dx)

	return dx, nil
}

// apply retracts every STANDARD node by its slice of dx.
func (s *Solver) apply(dx *mat.VecDense) error {
	for _, n := range s.g.ActiveNodes() {
		// each node retracts on its own manifold
		off := s.offsets[n.ID()]
		if err := n.Update(dx.SliceVec(off, off+n.Dim())); err != nil {
			return fmt.Errorf("node %d: %w", n.ID(), err)
		}
	}

	return nil
}

func (s *Solver) backup() []*mat.Dense {
	nodes := s.g.ActiveNodes()
	out := make([]*mat.Dense, len(nodes))
	for i, n := range nodes {
		out[i] = n.State()
	}

	return out
}

func (s *Solver) restore(states []*mat.Dense) error {
	for i, n := range s.g.ActiveNodes() {
		if err := n.SetState(states[i]); err != nil {
			return fmt.Errorf("node %d: %w", n.ID(), err)
		}
	}

	return nil
}

// addVec adds scale·v into dst starting at offset.
func addVec(dst *mat.VecDense, offset int, v mat.Vector, scale float64) {
	for i := 0; i < v.Len(); i++ {
		dst.SetVec(offset+i, dst.AtVec(offset+i)+scale*v.AtVec(i))
	}
}

// addBlock adds scale·M into dst with its top-left corner at (r0, c0).
func addBlock(dst *mat.Dense, r0, c0 int, M mat.Matrix, scale float64) {
	r, c := M.Dims()
	var i, j int
	for i = 0; i < r; i++ {
		for j = 0; j < c; j++ {
			dst.Set(r0+i, c0+j, dst.At(r0+i, c0+j)+scale*M.At(i, j))
		}
	}
}
