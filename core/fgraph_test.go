// SPDX-License-Identifier: MIT
// Package core_test verifies FGraph bookkeeping contracts.

package core_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/lvfactor/core"
	"github.com/katalvlaran/lvfactor/eigenfactor"
	"github.com/katalvlaran/lvfactor/factors"
)

// TestAddNode_DenseIdentitiesAndStateDim checks identity assignment and that
// anchors are excluded from the state dimension.
func TestAddNode_DenseIdentitiesAndStateDim(t *testing.T) {
	g := core.NewFGraph()
	anchor := NewPose(core.ModeAnchor)
	pose := NewPose(core.ModeStandard)
	lm := NewLandmark(r3.Vector{X: 1})
	assert.Equal(t, core.NodeID(core.UnassignedID), pose.ID())

	ids := MustAddNodes(t, g, anchor, pose, lm)
	assert.Equal(t, []core.NodeID{0, 1, 2}, ids)
	assert.Equal(t, core.NodeID(1), pose.ID())
	assert.Equal(t, PoseDim+LandmarkDim, g.StateDim())
	assert.Equal(t, 3, g.NodeCount())
	assert.Len(t, g.ActiveNodes(), 2)
	assert.Len(t, g.Nodes(), 3)

	n, err := g.Node(2)
	require.NoError(t, err)
	assert.Same(t, lm, n)
}

func TestAddNode_Errors(t *testing.T) {
	g := core.NewFGraph()

	_, err := g.AddNode(nil)
	assert.ErrorIs(t, err, core.ErrNilNode)

	schur := NewPose(core.ModeSchurMargi)
	_, err = g.AddNode(schur)
	assert.ErrorIs(t, err, core.ErrUnsupportedMode)
	assert.Equal(t, 0, g.NodeCount(), "rejected node must not be inserted")
	assert.Equal(t, core.NodeID(core.UnassignedID), schur.ID())

	p := NewPose(core.ModeStandard)
	MustAddNodes(t, g, p)
	_, err = g.AddNode(p)
	assert.ErrorIs(t, err, core.ErrAlreadyRegistered)
	_, err = core.NewFGraph().AddNode(p)
	assert.ErrorIs(t, err, core.ErrAlreadyRegistered, "a node belongs to one graph")
	assert.Equal(t, PoseDim, g.StateDim())
}

func TestLookups_OutOfRange(t *testing.T) {
	g := core.NewFGraph()
	MustAddNodes(t, g, NewPose(core.ModeStandard))

	for _, id := range []core.NodeID{-1, 1, 100} {
		_, err := g.Node(id)
		assert.ErrorIs(t, err, core.ErrOutOfRange, "Node(%d)", id)
	}
	_, err := g.Factor(0)
	assert.ErrorIs(t, err, core.ErrOutOfRange)
	_, err = g.EigenFactor(0)
	assert.ErrorIs(t, err, core.ErrOutOfRange)
}

func TestAddFactor(t *testing.T) {
	g := core.NewFGraph()
	pose := NewPose(core.ModeAnchor)
	l1, l2 := NewLandmark(r3.Vector{X: 1}), NewLandmark(r3.Vector{Y: 1})
	MustAddNodes(t, g, pose, l1, l2)

	f1 := MustLandmarkFactor(t, g, pose, l1)
	f2 := MustLandmarkFactor(t, g, pose, l2)
	assert.Equal(t, core.FactorID(0), f1.ID())
	assert.Equal(t, core.FactorID(1), f2.ID())
	assert.Equal(t, 6, g.ObsDim())
	assert.Equal(t, LandmarkDim*2, g.StateDim())

	got, err := g.Factor(1)
	require.NoError(t, err)
	assert.Same(t, f2, got)
	assert.Len(t, g.Factors(), 2)

	_, err = g.AddFactor(f1)
	assert.ErrorIs(t, err, core.ErrAlreadyRegistered)
	_, err = g.AddFactor(nil)
	assert.ErrorIs(t, err, core.ErrNilFactor)
	_, err = g.AddEigenFactor(nil)
	assert.ErrorIs(t, err, core.ErrNilFactor)
}

func TestAddFactor_ForeignNode(t *testing.T) {
	g1, g2 := core.NewFGraph(), core.NewFGraph()
	pose, lm := NewPose(core.ModeStandard), NewLandmark(r3.Vector{})
	MustAddNodes(t, g1, pose, lm)
	MustAddNodes(t, g2, NewPose(core.ModeStandard), NewLandmark(r3.Vector{}))

	f, err := factors.NewFactor1Pose1Landmark3d(r3.Vector{}, pose, lm, Identity3())
	require.NoError(t, err)
	_, err = g2.AddFactor(f)
	assert.ErrorIs(t, err, core.ErrForeignNode)
	assert.Equal(t, 0, g2.FactorCount())
	assert.Equal(t, 0, g2.ObsDim())
}

// TestOwnership checks that identities from different graphs are never
// confused, before and after a factor is registered.
func TestOwnership(t *testing.T) {
	g1, g2 := core.NewFGraph(), core.NewFGraph()
	mine, theirs := NewPose(core.ModeStandard), NewPose(core.ModeStandard)
	MustAddNodes(t, g1, mine)
	MustAddNodes(t, g2, theirs)
	require.Equal(t, mine.ID(), theirs.ID())

	assert.True(t, g1.Owns(mine))
	assert.False(t, g1.Owns(theirs))
	assert.False(t, g1.Owns(NewPose(core.ModeStandard)))
	assert.False(t, g1.Owns(nil))

	// unregistered factor: a second node under the same identity is refused
	b := core.NewFactorBase(1, core.RobustQuadratic)
	_, err := b.InsertNeighbour(mine)
	require.NoError(t, err)
	_, err = b.InsertNeighbour(theirs)
	assert.ErrorIs(t, err, core.ErrForeignNode)
	assert.Equal(t, 1, b.NeighbourCount())

	// registered eigen factor: nodes of another graph are refused outright
	ef := eigenfactor.NewPlane()
	efID, err := g1.AddEigenFactor(ef)
	require.NoError(t, err)
	assert.ErrorIs(t, ef.AddPoint(r3.Vector{X: 1}, theirs), core.ErrForeignNode)
	assert.Zero(t, ef.PointCount())
	require.NoError(t, g1.EigenFactorAddPoint(efID, mine.ID(), r3.Vector{X: 1}))
	assert.Equal(t, 1, ef.PointCount())
}

func TestEigenFactors_NumberedIndependently(t *testing.T) {
	g := core.NewFGraph()
	pose, lm := NewPose(core.ModeStandard), NewLandmark(r3.Vector{})
	MustAddNodes(t, g, pose, lm)
	MustLandmarkFactor(t, g, pose, lm)

	ef := eigenfactor.NewPlane()
	id, err := g.AddEigenFactor(ef)
	require.NoError(t, err)
	assert.Equal(t, core.FactorID(0), id)
	assert.Equal(t, 1, g.EigenFactorCount())
	assert.Len(t, g.EigenFactors(), 1)

	require.NoError(t, g.EigenFactorAddPoint(id, pose.ID(), r3.Vector{X: 1}))
	assert.ErrorIs(t, g.EigenFactorAddPoint(id+1, pose.ID(), r3.Vector{}), core.ErrOutOfRange)

	assert.Equal(t, core.Stats{
		Nodes: 2, ActiveNodes: 2, Factors: 1, EigenFactors: 1,
		StateDim: PoseDim + LandmarkDim, ObsDim: 3,
	}, g.Stats())
}

func TestEstimatedState(t *testing.T) {
	g := core.NewFGraph()
	MustAddNodes(t, g, NewPose(core.ModeAnchor), NewLandmark(r3.Vector{X: 1, Y: 2, Z: 3}))
	states := g.EstimatedState()
	require.Len(t, states, 2)
	r, c := states[0].Dims()
	assert.Equal(t, [2]int{4, 4}, [2]int{r, c})
	assert.Equal(t, 2.0, states[1].At(1, 0))
}

func TestPrint(t *testing.T) {
	g := core.NewFGraph()
	pose, lm := NewPose(core.ModeStandard), NewLandmark(r3.Vector{})
	MustAddNodes(t, g, pose, lm)
	MustLandmarkFactor(t, g, pose, lm)

	var short, full bytes.Buffer
	g.Print(&short, false)
	assert.Equal(t, "Status of graph: Nodes = 2, Factors = 1, Eigen Factors = 0\n", short.String())

	g.Print(&full, true)
	out := full.String()
	assert.True(t, strings.HasPrefix(out, short.String()))
	assert.Contains(t, out, "Printing NodePose3d: 0 (STANDARD)")
	assert.Contains(t, out, "Printing NodeLandmark3d: 1")
	assert.Contains(t, out, "Printing Factor: 0")
}

func TestWithLogger(t *testing.T) {
	assert.Panics(t, func() { core.WithLogger(nil) })

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	g := core.NewFGraph(core.WithLogger(l))
	MustAddNodes(t, g, NewPose(core.ModeAnchor))
	assert.Contains(t, buf.String(), "node added")
	assert.Contains(t, buf.String(), "mode=ANCHOR")
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "STANDARD", core.ModeStandard.String())
	assert.Equal(t, "SCHUR_MARGI", core.ModeSchurMargi.String())
	assert.Equal(t, "UNKNOWN", core.NodeMode(7).String())
	assert.Equal(t, "HUBER", core.RobustHuber.String())
	assert.Equal(t, "UNKNOWN", core.RobustType(-1).String())
}
