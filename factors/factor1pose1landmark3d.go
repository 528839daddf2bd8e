// SPDX-License-Identifier: MIT

package factors

import (
	"fmt"
	"io"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/lvfactor/core"
	"github.com/katalvlaran/lvfactor/lie"
)

// Option configures a factor at construction.
type Option func(o *options)

type options struct {
	robust       core.RobustType
	initLandmark bool
}

// WithRobust selects the robust cost tag forwarded to the solver.
func WithRobust(r core.RobustType) Option {
	return func(o *options) { o.robust = r }
}

// WithInitializeLandmark overwrites the landmark state with T·z at
// construction, i.e. the landmark is placed where the pose currently sees it.
func WithInitializeLandmark() Option {
	return func(o *options) { o.initLandmark = true }
}

// Factor1Pose1Landmark3d constrains a landmark observed in a pose's frame.
//
// Neighbours are stored by ascending NodeID. When the landmark has the lower
// identity, reversed is set and the Jacobian is laid out as [landmark | pose].
type Factor1Pose1Landmark3d struct {
	core.FactorBase

	obs      r3.Vector
	W        *mat.Dense // 3×3 information matrix
	pose     PoseNode
	landmark LandmarkNode
	reversed bool

	// cached by EvaluateResiduals, reused by EvaluateJacobians
	tInv      lie.SE3
	lm        r3.Vector
	r         r3.Vector
	evaluated bool

	J    *mat.Dense // 3×9
	chi2 float64
}

// NewFactor1Pose1Landmark3d builds the factor for observation z of landmark
// from pose with information W. Both nodes must already be registered so the
// neighbour order can be fixed.
//
// Errors:
//   - core.ErrNilNode, core.ErrUnregisteredNode.
//   - ErrNodeType: pose does not implement PoseNode or landmark LandmarkNode.
//   - core.ErrInvalidShape: W is not 3×3. ErrNotSymmetric: W ≠ Wᵗ.
func NewFactor1Pose1Landmark3d(z r3.Vector, pose, landmark core.Node, W mat.Matrix, opts ...Option) (*Factor1Pose1Landmark3d, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if pose == nil || landmark == nil {
		return nil, fmt.Errorf("NewFactor1Pose1Landmark3d: %w", core.ErrNilNode)
	}
	p, ok := pose.(PoseNode)
	if !ok {
		return nil, fmt.Errorf("NewFactor1Pose1Landmark3d: pose: %w", ErrNodeType)
	}
	l, ok := landmark.(LandmarkNode)
	if !ok {
		return nil, fmt.Errorf("NewFactor1Pose1Landmark3d: landmark: %w", ErrNodeType)
	}
	if err := validateInformation(W, 3); err != nil {
		return nil, fmt.Errorf("NewFactor1Pose1Landmark3d: %w", err)
	}

	f := &Factor1Pose1Landmark3d{
		FactorBase: core.NewFactorBase(3, o.robust),
		obs:        z,
		W:          mat.DenseCopyOf(W),
		pose:       p,
		landmark:   l,
		J:          mat.NewDense(3, 9, nil),
	}
	if _, err := f.InsertNeighbour(pose); err != nil {
		return nil, fmt.Errorf("NewFactor1Pose1Landmark3d: pose: %w", err)
	}
	slot, err := f.InsertNeighbour(landmark)
	if err != nil {
		return nil, fmt.Errorf("NewFactor1Pose1Landmark3d: landmark: %w", err)
	}
	f.reversed = slot == 0

	if o.initLandmark {
		q := p.Pose().Transform(z)
		if err = landmark.SetState(mat.NewDense(3, 1, []float64{q.X, q.Y, q.Z})); err != nil {
			return nil, fmt.Errorf("NewFactor1Pose1Landmark3d: init landmark: %w", err)
		}
	}

	return f, nil
}

// Reversed reports whether the landmark holds the lower identity.
func (f *Factor1Pose1Landmark3d) Reversed() bool { return f.reversed }

// EvaluateResiduals computes r = T⁻¹·l − z and caches T⁻¹ and l.
func (f *Factor1Pose1Landmark3d) EvaluateResiduals() error {
	f.tInv = f.pose.Pose().Inv()
	f.lm = f.landmark.Position()
	f.r = f.tInv.Transform(f.lm).Sub(f.obs)
	f.evaluated = true

	return nil
}

// EvaluateJacobians fills the 3×9 Jacobian from the cached T⁻¹ and l:
// the pose block is R⁻¹·[l^ | −I], the landmark block is R⁻¹.
//
// Errors:
//   - core.ErrNotEvaluated: no prior EvaluateResiduals.
func (f *Factor1Pose1Landmark3d) EvaluateJacobians() error {
	if !f.evaluated {
		return fmt.Errorf("Factor1Pose1Landmark3d.EvaluateJacobians: %w", core.ErrNotEvaluated)
	}
	Rinv := f.tInv.R()

	Jr := mat.NewDense(3, 6, nil)
	Jr.Slice(0, 3, 0, 3).(*mat.Dense).Copy(lie.Hat3(f.lm))
	for i := 0; i < 3; i++ {
		Jr.Set(i, 3+i, -1)
	}
	var poseBlock mat.Dense
	poseBlock.Mul(Rinv, Jr)

	poseCol, landmarkCol := 0, 6
	if f.reversed {
		poseCol, landmarkCol = 3, 0
	}
	f.J.Slice(0, 3, poseCol, poseCol+6).(*mat.Dense).Copy(&poseBlock)
	f.J.Slice(0, 3, landmarkCol, landmarkCol+3).(*mat.Dense).Copy(Rinv)

	return nil
}

// EvaluateChi2 returns 0.5·rᵗ·W·r.
func (f *Factor1Pose1Landmark3d) EvaluateChi2() float64 {
	r := mat.NewVecDense(3, []float64{f.r.X, f.r.Y, f.r.Z})
	f.chi2 = 0.5 * mat.Inner(r, f.W, r)

	return f.chi2
}

// Chi2 returns the last evaluated cost.
func (f *Factor1Pose1Landmark3d) Chi2() float64 { return f.chi2 }

// Obs returns the observed local-frame landmark.
func (f *Factor1Pose1Landmark3d) Obs() (*mat.VecDense, error) {
	return mat.NewVecDense(3, []float64{f.obs.X, f.obs.Y, f.obs.Z}), nil
}

// Residual returns the cached residual.
func (f *Factor1Pose1Landmark3d) Residual() (*mat.VecDense, error) {
	if !f.evaluated {
		return nil, fmt.Errorf("Factor1Pose1Landmark3d.Residual: %w", core.ErrNotEvaluated)
	}

	return mat.NewVecDense(3, []float64{f.r.X, f.r.Y, f.r.Z}), nil
}

// InformationMatrix returns a copy of W.
func (f *Factor1Pose1Landmark3d) InformationMatrix() (*mat.Dense, error) {
	return mat.DenseCopyOf(f.W), nil
}

// Jacobian returns a copy of the last evaluated Jacobian.
func (f *Factor1Pose1Landmark3d) Jacobian() (*mat.Dense, error) {
	if !f.evaluated {
		return nil, fmt.Errorf("Factor1Pose1Landmark3d.Jacobian: %w", core.ErrNotEvaluated)
	}

	return mat.DenseCopyOf(f.J), nil
}

// Print writes observation, residual, information, Jacobian and cost.
func (f *Factor1Pose1Landmark3d) Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Printing Factor: %d, obs= [%g %g %g]\n Residuals= [%g %g %g]\n",
		f.ID(), f.obs.X, f.obs.Y, f.obs.Z, f.r.X, f.r.Y, f.r.Z)
	_, _ = fmt.Fprintf(w, " and Information matrix\n%v\n Calculated Jacobian =\n%v\n",
		mat.Formatted(f.W, mat.Squeeze()), mat.Formatted(f.J, mat.Squeeze()))
	_, _ = fmt.Fprintf(w, " Chi2 error = %g and neighbour Nodes %d\n", f.chi2, f.NeighbourCount())
}

// validateInformation checks that W is n×n and symmetric.
func validateInformation(W mat.Matrix, n int) error {
	if W == nil {
		return core.ErrInvalidShape
	}
	if r, c := W.Dims(); r != n || c != n {
		return fmt.Errorf("information %dx%d: %w", r, c, core.ErrInvalidShape)
	}
	var i, j int
	for i = 0; i < n; i++ {
		for j = i + 1; j < n; j++ {
			if math.Abs(W.At(i, j)-W.At(j, i)) > symmetryTolerance {
				return ErrNotSymmetric
			}
		}
	}

	return nil
}
