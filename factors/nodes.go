// SPDX-License-Identifier: MIT

package factors

import (
	"fmt"
	"io"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/lvfactor/core"
	"github.com/katalvlaran/lvfactor/lie"
)

// PoseNode is a node whose state is a rigid transform.
type PoseNode interface {
	core.Node
	Pose() lie.SE3
}

// LandmarkNode is a node whose state is a 3-D point.
type LandmarkNode interface {
	core.Node
	Position() r3.Vector
}

// NodePose3d is an SE(3) pose updated by T ← Exp(dξ)·T.
type NodePose3d struct {
	core.NodeBase
	state lie.SE3
}

// NewNodePose3d returns an unregistered pose node.
func NewNodePose3d(T lie.SE3, mode core.NodeMode) *NodePose3d {
	return &NodePose3d{NodeBase: core.NewNodeBase(6, mode), state: T}
}

// Pose returns the current transform.
func (n *NodePose3d) Pose() lie.SE3 { return n.state }

// State returns the 4×4 homogeneous matrix.
func (n *NodePose3d) State() *mat.Dense { return n.state.T() }

// SetState replaces the pose; x must be a rigid 4×4 matrix.
func (n *NodePose3d) SetState(x mat.Matrix) error {
	T, err := lie.NewSE3(x)
	if err != nil {
		return fmt.Errorf("NodePose3d.SetState: %w", err)
	}
	n.state = T

	return nil
}

// Update applies the left retraction with the 6-vector dx = [ω; v].
func (n *NodePose3d) Update(dx mat.Vector) error {
	if dx == nil || dx.Len() != 6 {
		return fmt.Errorf("NodePose3d.Update: %w", core.ErrInvalidShape)
	}
	xi, err := lie.TangentFromVec(dx)
	if err != nil {
		return fmt.Errorf("NodePose3d.Update: %w", err)
	}
	n.state.UpdateLHS(xi)

	return nil
}

// Print writes the node identity, mode and pose.
func (n *NodePose3d) Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Printing NodePose3d: %d (%s), state =\n", n.ID(), n.Mode())
	n.state.Print(w)
}

// NodeLandmark3d is a 3-D point updated additively.
type NodeLandmark3d struct {
	core.NodeBase
	state r3.Vector
}

// NewNodeLandmark3d returns an unregistered landmark node.
func NewNodeLandmark3d(p r3.Vector, mode core.NodeMode) *NodeLandmark3d {
	return &NodeLandmark3d{NodeBase: core.NewNodeBase(3, mode), state: p}
}

// Position returns the current point.
func (n *NodeLandmark3d) Position() r3.Vector { return n.state }

// State returns the point as a 3×1 column.
func (n *NodeLandmark3d) State() *mat.Dense {
	return mat.NewDense(3, 1, []float64{n.state.X, n.state.Y, n.state.Z})
}

// SetState accepts a 3×1 or 1×3 matrix.
func (n *NodeLandmark3d) SetState(x mat.Matrix) error {
	if x == nil {
		return fmt.Errorf("NodeLandmark3d.SetState: %w", core.ErrInvalidShape)
	}
	switch r, c := x.Dims(); {
	case r == 3 && c == 1:
		n.state = r3.Vector{X: x.At(0, 0), Y: x.At(1, 0), Z: x.At(2, 0)}
	case r == 1 && c == 3:
		n.state = r3.Vector{X: x.At(0, 0), Y: x.At(0, 1), Z: x.At(0, 2)}
	default:
		return fmt.Errorf("NodeLandmark3d.SetState: %dx%d: %w", r, c, core.ErrInvalidShape)
	}

	return nil
}

// Update adds the 3-vector dx to the point.
func (n *NodeLandmark3d) Update(dx mat.Vector) error {
	if dx == nil || dx.Len() != 3 {
		return fmt.Errorf("NodeLandmark3d.Update: %w", core.ErrInvalidShape)
	}
	n.state = n.state.Add(r3.Vector{X: dx.AtVec(0), Y: dx.AtVec(1), Z: dx.AtVec(2)})

	return nil
}

// Print writes the node identity, mode and point.
func (n *NodeLandmark3d) Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Printing NodeLandmark3d: %d (%s), state = [%g %g %g]\n",
		n.ID(), n.Mode(), n.state.X, n.state.Y, n.state.Z)
}
