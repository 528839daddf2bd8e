package solver_test

import (
	"bytes"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/lvfactor/core"
	"github.com/katalvlaran/lvfactor/eigenfactor"
	"github.com/katalvlaran/lvfactor/factors"
	"github.com/katalvlaran/lvfactor/lie"
	"github.com/katalvlaran/lvfactor/solver"
)

var (
	truePose1     = lie.ExpSE3(lie.Tangent{0.1, -0.05, 0.2, 1, 0.5, -0.3})
	trueLandmarks = []r3.Vector{
		{X: 3, Y: 1, Z: 2},
		{X: -2, Y: 4, Z: 1},
		{X: 1, Y: -3, Z: 5},
		{X: 4, Y: 4, Z: -1},
		{X: -1, Y: -2, Z: 3},
		{X: 2, Y: 0, Z: -4},
	}
)

// slam is a two-pose landmark problem: pose 0 is an anchor at the origin,
// pose 1 and every landmark start perturbed from the truth.
type slam struct {
	g         *core.FGraph
	pose1     *factors.NodePose3d
	landmarks []*factors.NodeLandmark3d
}

func newSLAM(t testing.TB, robust core.RobustType) *slam {
	t.Helper()
	s := &slam{g: core.NewFGraph()}
	pose0 := factors.NewNodePose3d(lie.Identity(), core.ModeAnchor)
	_, err := s.g.AddNode(pose0)
	require.NoError(t, err)

	start := lie.ExpSE3(lie.Tangent{0.02, -0.03, 0.01, 0.1, -0.1, 0.05}).Mul(truePose1)
	s.pose1 = factors.NewNodePose3d(start, core.ModeStandard)
	for i, l := range trueLandmarks {
		if i == 1 {
			// one landmark precedes pose 1 so its factor is reversed
			_, err = s.g.AddNode(s.pose1)
			require.NoError(t, err)
		}
		n := factors.NewNodeLandmark3d(l.Add(r3.Vector{X: 0.1, Y: -0.1, Z: 0.05}), core.ModeStandard)
		_, err = s.g.AddNode(n)
		require.NoError(t, err)
		s.landmarks = append(s.landmarks, n)
	}

	W := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	for i, l := range trueLandmarks {
		for _, p := range []struct {
			node *factors.NodePose3d
			T    lie.SE3
		}{{pose0, lie.Identity()}, {s.pose1, truePose1}} {
			f, err := factors.NewFactor1Pose1Landmark3d(p.T.Inv().Transform(l), p.node, s.landmarks[i], W, factors.WithRobust(robust))
			require.NoError(t, err)
			_, err = s.g.AddFactor(f)
			require.NoError(t, err)
		}
	}
	return s
}

type SLAMSuite struct {
	suite.Suite
}

func (s *SLAMSuite) solveWith(method solver.Method) (*slam, solver.Result) {
	p := newSLAM(s.T(), core.RobustQuadratic)
	sv, err := solver.New(p.g, solver.WithMethod(method), solver.WithMaxIterations(50), solver.WithTolerance(1e-9))
	s.Require().NoError(err)
	res, err := sv.Solve()
	s.Require().NoError(err)
	return p, res
}

func (s *SLAMSuite) TestGaussNewtonRecoversTruth() {
	p, res := s.solveWith(solver.GaussNewton)
	s.True(res.Converged)
	s.Greater(res.InitialChi2, 1e-3)
	s.Less(res.FinalChi2, 1e-12)
	s.Less(p.pose1.Pose().Distance(truePose1), 1e-6)
	for i, n := range p.landmarks {
		s.Less(n.Position().Sub(trueLandmarks[i]).Norm(), 1e-6, "landmark %d", i)
	}
	s.Equal(3*len(trueLandmarks)+6, p.g.StateDim())
}

func (s *SLAMSuite) TestLevenbergMarquardtRecoversTruth() {
	p, res := s.solveWith(solver.LevenbergMarquardt)
	s.LessOrEqual(res.FinalChi2, res.InitialChi2)
	s.Less(res.FinalChi2, 1e-10)
	s.Less(p.pose1.Pose().Distance(truePose1), 1e-5)
	s.Greater(res.Lambda, 0.0)
}

func (s *SLAMSuite) TestEllipsoidalDampingRecoversTruth() {
	p, res := s.solveWith(solver.LevenbergMarquardtEllipsoidal)
	s.LessOrEqual(res.FinalChi2, res.InitialChi2)
	s.Less(res.FinalChi2, 1e-10)
	s.Less(p.pose1.Pose().Distance(truePose1), 1e-5)
	for i, n := range p.landmarks {
		s.Less(n.Position().Sub(trueLandmarks[i]).Norm(), 1e-5, "landmark %d", i)
	}
}

func (s *SLAMSuite) TestInformationMatrix() {
	p := newSLAM(s.T(), core.RobustQuadratic)
	sv, err := solver.New(p.g)
	s.Require().NoError(err)
	H, err := sv.InformationMatrix()
	s.Require().NoError(err)

	r, c := H.Dims()
	s.Equal(p.g.StateDim(), r)
	s.Equal(p.g.StateDim(), c)
	for i := 0; i < r; i++ {
		s.Greater(H.At(i, i), 0.0, "diagonal %d", i)
		for j := 0; j < i; j++ {
			s.InDelta(H.At(i, j), H.At(j, i), 1e-9)
		}
	}
	// linearization only: states are unchanged
	s.Less(p.pose1.Pose().Distance(truePose1), 1.0)
	s.Greater(p.pose1.Pose().Distance(truePose1), 1e-3)
}

// TestEmptyEigenFactorIsSkipped registers a plane that never receives points
// next to a solvable problem.
func (s *SLAMSuite) TestEmptyEigenFactorIsSkipped() {
	p := newSLAM(s.T(), core.RobustQuadratic)
	_, err := p.g.AddEigenFactor(eigenfactor.NewPlane())
	s.Require().NoError(err)

	sv, err := solver.New(p.g, solver.WithMaxIterations(50), solver.WithTolerance(1e-9))
	s.Require().NoError(err)
	chi2, err := sv.Chi2(true)
	s.Require().NoError(err)
	s.Greater(chi2, 0.0)

	res, err := sv.Solve()
	s.Require().NoError(err)
	s.True(res.Converged)
	s.Less(res.FinalChi2, 1e-10)
}

func (s *SLAMSuite) TestChi2CachedMatchesEvaluated() {
	p := newSLAM(s.T(), core.RobustQuadratic)
	sv, err := solver.New(p.g)
	s.Require().NoError(err)
	evaluated, err := sv.Chi2(true)
	s.Require().NoError(err)
	cached, err := sv.Chi2(false)
	s.Require().NoError(err)
	s.Equal(evaluated, cached)
	s.Greater(evaluated, 0.0)
}

func TestSLAMSuite(t *testing.T) {
	suite.Run(t, new(SLAMSuite))
}

// TestRobustKernelLimitsOutlier corrupts one observation by 5 m and checks
// Huber keeps pose 1 closer to the truth than plain least squares.
func TestRobustKernelLimitsOutlier(t *testing.T) {
	poseError := func(robust core.RobustType) float64 {
		p := newSLAM(t, robust)
		W := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
		z := truePose1.Inv().Transform(trueLandmarks[2]).Add(r3.Vector{X: 5})
		f, err := factors.NewFactor1Pose1Landmark3d(z, p.pose1, p.landmarks[2], W, factors.WithRobust(robust))
		require.NoError(t, err)
		_, err = p.g.AddFactor(f)
		require.NoError(t, err)

		sv, err := solver.New(p.g, solver.WithMethod(solver.LevenbergMarquardt), solver.WithMaxIterations(100))
		require.NoError(t, err)
		_, err = sv.Solve()
		require.NoError(t, err)
		return p.pose1.Pose().Distance(truePose1)
	}
	assert.Less(t, poseError(core.RobustHuber), poseError(core.RobustQuadratic))
}

// TestPlaneAlignment registers a pose against an anchor using three
// orthogonal planes observed by both, with no point correspondences.
func TestPlaneAlignment(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	g := core.NewFGraph()
	truth := lie.ExpSE3(lie.Tangent{0.05, 0.1, -0.08, 0.5, -0.2, 0.3})
	pose0 := factors.NewNodePose3d(lie.Identity(), core.ModeAnchor)
	pose1 := factors.NewNodePose3d(lie.ExpSE3(lie.Tangent{0.03, -0.02, 0.04, 0.05, -0.05, 0.08}).Mul(truth), core.ModeStandard)
	_, err := g.AddNode(pose0)
	require.NoError(t, err)
	_, err = g.AddNode(pose1)
	require.NoError(t, err)

	sample := func(axis int) r3.Vector {
		a, b := rng.Float64()*4-2, rng.Float64()*4-2
		switch axis {
		case 0:
			return r3.Vector{X: 3, Y: a, Z: b}
		case 1:
			return r3.Vector{X: a, Y: -2, Z: b}
		default:
			return r3.Vector{X: a, Y: b, Z: 1.5}
		}
	}
	for axis := 0; axis < 3; axis++ {
		id, err := g.AddEigenFactor(eigenfactor.NewPlane())
		require.NoError(t, err)
		for k := 0; k < 30; k++ {
			require.NoError(t, g.EigenFactorAddPoint(id, pose0.ID(), sample(axis)))
			require.NoError(t, g.EigenFactorAddPoint(id, pose1.ID(), truth.Inv().Transform(sample(axis))))
		}
	}

	before := pose1.Pose().Distance(truth)
	sv, err := solver.New(g, solver.WithMethod(solver.LevenbergMarquardt), solver.WithMaxIterations(50))
	require.NoError(t, err)
	res, err := sv.Solve()
	require.NoError(t, err)

	assert.LessOrEqual(t, res.FinalChi2, res.InitialChi2)
	assert.Less(t, res.FinalChi2, 0.1*res.InitialChi2)
	assert.Less(t, pose1.Pose().Distance(truth), before)
}

func TestSolveErrors(t *testing.T) {
	_, err := solver.New(nil)
	assert.ErrorIs(t, err, solver.ErrNilGraph)

	g := core.NewFGraph()
	_, err = g.AddNode(factors.NewNodePose3d(lie.Identity(), core.ModeAnchor))
	require.NoError(t, err)
	sv, err := solver.New(g)
	require.NoError(t, err)
	_, err = sv.Solve()
	assert.ErrorIs(t, err, solver.ErrEmptyProblem)
	_, err = sv.InformationMatrix()
	assert.ErrorIs(t, err, solver.ErrEmptyProblem)

	// an unconstrained node leaves H singular
	_, err = g.AddNode(factors.NewNodeLandmark3d(r3.Vector{}, core.ModeStandard))
	require.NoError(t, err)
	_, err = sv.Solve()
	assert.ErrorIs(t, err, solver.ErrSingular)
}

func TestSolveLogs(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p := newSLAM(t, core.RobustQuadratic)
	sv, err := solver.New(p.g, solver.WithLogger(l))
	require.NoError(t, err)
	_, err = sv.Solve()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "solve done")
	assert.Contains(t, buf.String(), "method=GN")
}

func TestRobustKernels(t *testing.T) {
	// chi2 = ½e² with e = 3
	assert.Equal(t, 1.0, solver.RobustWeight(core.RobustQuadratic, 4.5, 1))
	assert.InDelta(t, 1.0/3, solver.RobustWeight(core.RobustHuber, 4.5, 1), 1e-12)
	assert.Equal(t, 1.0, solver.RobustWeight(core.RobustHuber, 0.1, 1))
	assert.InDelta(t, 0.1, solver.RobustWeight(core.RobustCauchy, 4.5, 1), 1e-12)

	assert.Equal(t, 4.5, solver.RobustCost(core.RobustQuadratic, 4.5, 1))
	assert.InDelta(t, 2.5, solver.RobustCost(core.RobustHuber, 4.5, 1), 1e-12)
	// Huber is continuous at e = k
	assert.InDelta(t, 0.5, solver.RobustCost(core.RobustHuber, 0.5, 1), 1e-12)
	assert.Less(t, solver.RobustCost(core.RobustCauchy, 4.5, 1), 4.5)
}

func TestOptions(t *testing.T) {
	assert.Panics(t, func() { solver.WithMethod(solver.Method(9)) })
	assert.Panics(t, func() { solver.WithMaxIterations(0) })
	assert.Panics(t, func() { solver.WithTolerance(-1) })
	assert.Panics(t, func() { solver.WithLambda(0) })
	assert.Panics(t, func() { solver.WithRobustThreshold(0) })
	assert.Panics(t, func() { solver.WithLogger(nil) })
	assert.Equal(t, "LM", solver.LevenbergMarquardt.String())
	assert.Equal(t, "LM_ELLIPS", solver.LevenbergMarquardtEllipsoidal.String())
	assert.NotPanics(t, func() { solver.WithMethod(solver.LevenbergMarquardtEllipsoidal) })
	assert.Equal(t, solver.GaussNewton, solver.DefaultOptions().Method)
}

func BenchmarkSolveSLAM(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		p := newSLAM(b, core.RobustQuadratic)
		sv, _ := solver.New(p.g)
		b.StartTimer()
		_, _ = sv.Solve()
	}
}
