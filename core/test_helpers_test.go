// SPDX-License-Identifier: MIT
// Package core_test contains fixtures shared by the FGraph tests.
//
// Purpose:
//   - Build small graphs from the concrete 3-D nodes and factors.
//   - Keep magic numbers out of test bodies.

package core_test

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/lvfactor/core"
	"github.com/katalvlaran/lvfactor/factors"
	"github.com/katalvlaran/lvfactor/lie"
)

// Tangent dimensions of the fixture nodes.
const (
	PoseDim     = 6
	LandmarkDim = 3
)

// NewPose returns an unregistered identity pose in the given mode.
func NewPose(mode core.NodeMode) *factors.NodePose3d {
	return factors.NewNodePose3d(lie.Identity(), mode)
}

// NewLandmark returns an unregistered landmark at p.
func NewLandmark(p r3.Vector) *factors.NodeLandmark3d {
	return factors.NewNodeLandmark3d(p, core.ModeStandard)
}

// Identity3 returns a fresh 3×3 identity information matrix.
func Identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// MustAddNodes registers nodes in order and returns their identities.
func MustAddNodes(t testing.TB, g *core.FGraph, nodes ...core.Node) []core.NodeID {
	t.Helper()
	ids := make([]core.NodeID, len(nodes))
	for i, n := range nodes {
		id, err := g.AddNode(n)
		require.NoError(t, err, "AddNode #%d", i)
		ids[i] = id
	}
	return ids
}

// MustLandmarkFactor builds and registers a pose–landmark factor.
func MustLandmarkFactor(t testing.TB, g *core.FGraph, pose, lm core.Node) *factors.Factor1Pose1Landmark3d {
	t.Helper()
	f, err := factors.NewFactor1Pose1Landmark3d(r3.Vector{X: 1}, pose, lm, Identity3())
	require.NoError(t, err)
	_, err = g.AddFactor(f)
	require.NoError(t, err)
	return f
}
