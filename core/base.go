// SPDX-License-Identifier: MIT
//
// File: base.go
// Role: Embeddable bookkeeping shared by every Node and Factor variant.
// Policy:
//   - Identity is written only by FGraph (unexported setters).
//   - Neighbour lists are kept in ascending NodeID order at all times.
//   - Once a factor is registered, it only accepts nodes of the same graph.

package core

import "sort"

// NodeBase carries identity, tangent dimension and mode. Concrete nodes embed
// it by value; the zero value reports UnassignedID, dimension 0, ModeStandard.
type NodeBase struct {
	id         NodeID
	registered bool
	dim        int
	mode       NodeMode
	owner      *FGraph // graph that assigned id
}

// NewNodeBase returns an unregistered base with the given tangent dimension and mode.
func NewNodeBase(dim int, mode NodeMode) NodeBase {
	return NodeBase{dim: dim, mode: mode}
}

// ID returns the graph identity, or UnassignedID before insertion.
func (b *NodeBase) ID() NodeID {
	if !b.registered {
		return UnassignedID
	}

	return b.id
}

// Dim returns the tangent-space dimension.
func (b *NodeBase) Dim() int { return b.dim }

// Mode returns the optimization mode.
func (b *NodeBase) Mode() NodeMode { return b.mode }

// Registered reports whether the node was inserted into a graph.
func (b *NodeBase) Registered() bool { return b.registered }

func (b *NodeBase) nodeBase() *NodeBase { return b }

func (b *NodeBase) assign(id NodeID, g *FGraph) {
	b.id = id
	b.registered = true
	b.owner = g
}

// FactorBase carries identity, observation dimension, robust tag and the
// sorted neighbour list. Concrete factors embed it by value.
type FactorBase struct {
	id         FactorID
	registered bool
	dimObs     int
	robust     RobustType
	neighbours []Node
	owner      *FGraph // set on registration
}

// NewFactorBase returns an unregistered base.
func NewFactorBase(dimObs int, robust RobustType) FactorBase {
	return FactorBase{dimObs: dimObs, robust: robust}
}

// ID returns the graph identity, or UnassignedID before insertion.
func (b *FactorBase) ID() FactorID {
	if !b.registered {
		return UnassignedID
	}

	return b.id
}

// DimObs returns the residual dimension.
func (b *FactorBase) DimObs() int { return b.dimObs }

// DimState returns Σ Dim() over the neighbours.
func (b *FactorBase) DimState() int {
	var d int
	for _, n := range b.neighbours {
		d += n.Dim()
	}

	return d
}

// Robust returns the robust cost tag.
func (b *FactorBase) Robust() RobustType { return b.robust }

// Neighbours returns a copy of the neighbour list (ascending NodeID).
func (b *FactorBase) Neighbours() []Node {
	out := make([]Node, len(b.neighbours))
	copy(out, b.neighbours)

	return out
}

// NeighbourCount returns the number of neighbours without copying.
func (b *FactorBase) NeighbourCount() int { return len(b.neighbours) }

// InsertNeighbour places n in the neighbour list keeping ascending NodeID
// order and returns its position. A node already present is not duplicated.
// Before registration any registered node is accepted and FGraph checks
// ownership on insertion; afterwards n must belong to the factor's graph.
//
// Errors:
//   - ErrNilNode: n is nil.
//   - ErrUnregisteredNode: n has no identity yet, so it cannot be ordered.
//   - ErrForeignNode: the factor is registered and n belongs to another graph,
//     or another node with the same identity is already a neighbour.
//
// Complexity: O(k) for k current neighbours.
func (b *FactorBase) InsertNeighbour(n Node) (int, error) {
	if n == nil {
		return 0, ErrNilNode
	}
	id := n.ID()
	if id == UnassignedID {
		return 0, ErrUnregisteredNode
	}
	// identities are only unique within one graph
	if b.owner != nil && n.nodeBase().owner != b.owner {
		return 0, ErrForeignNode
	}
	pos := sort.Search(len(b.neighbours), func(i int) bool { return b.neighbours[i].ID() >= id })
	if pos < len(b.neighbours) && b.neighbours[pos].ID() == id {
		// a different node under the same identity comes from another graph
		if b.neighbours[pos] != n {
			return 0, ErrForeignNode
		}
		return pos, nil
	}
	// shift the tail right by one and drop n into the gap
	b.neighbours = append(b.neighbours, nil)
	copy(b.neighbours[pos+1:], b.neighbours[pos:])
	b.neighbours[pos] = n

	return pos, nil
}

// NeighbourIndex returns the position of node id, or -1 if absent.
// Complexity: O(log k).
func (b *FactorBase) NeighbourIndex(id NodeID) int {
	pos := sort.Search(len(b.neighbours), func(i int) bool { return b.neighbours[i].ID() >= id })
	if pos < len(b.neighbours) && b.neighbours[pos].ID() == id {
		return pos
	}

	return -1
}

// Neighbour returns the node at position i of the ordered neighbour list.
// It panics on an out-of-range position, like a slice index.
func (b *FactorBase) Neighbour(i int) Node { return b.neighbours[i] }

func (b *FactorBase) factorBase() *FactorBase { return b }

func (b *FactorBase) assign(id FactorID, g *FGraph) {
	b.id = id
	b.registered = true
	b.owner = g
}
