// File: methods_nodes.go
// Role: Node lifecycle & lookup.
//
// Determinism:
//   - Identities are the arena size at insertion time: 0, 1, 2, …
//
// Concurrency:
//   - None; FGraph is single-threaded by contract.
package core

import "fmt"

// AddNode registers n and returns its identity.
//
// Implementation:
//   - Stage 1: Reject nil and already-registered nodes.
//   - Stage 2: Dispatch on mode. STANDARD grows the state dimension and the
//     active list, ANCHOR only joins the arena, SCHUR_MARGI is refused before
//     any mutation.
//   - Stage 3: Assign identity = len(nodes) and append.
//
// Errors:
//   - ErrNilNode, ErrAlreadyRegistered, ErrUnsupportedMode.
//
// Complexity:
//   - Time O(1) amortized, Space O(1) amortized.
func (g *FGraph) AddNode(n Node) (NodeID, error) {
	if n == nil {
		return UnassignedID, fmt.Errorf("AddNode: %w", ErrNilNode)
	}
	// Stage 1: validate
	base := n.nodeBase()
	if base.registered {
		return UnassignedID, fmt.Errorf("AddNode(%d): %w", base.id, ErrAlreadyRegistered)
	}

	// Stage 2: mode dispatch
	switch n.Mode() {
	case ModeStandard:
		g.active = append(g.active, n)
		g.stateDim += n.Dim()
	case ModeAnchor:
		// fixed value, not part of the state vector
	default:
		return UnassignedID, fmt.Errorf("AddNode(%s): %w", n.Mode(), ErrUnsupportedMode)
	}

	// Stage 3: identity = arena size
	id := NodeID(len(g.nodes))
	base.assign(id, g)
	g.nodes = append(g.nodes, n)
	g.logger.Debug("node added", "id", int(id), "dim", n.Dim(), "mode", n.Mode().String())

	return id, nil
}

// Node returns the node with identity id.
//
// Errors:
//   - ErrOutOfRange: id ∉ [0, NodeCount()).
//
// Complexity: O(1).
func (g *FGraph) Node(id NodeID) (Node, error) {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil, fmt.Errorf("Node(%d): %w", id, ErrOutOfRange)
	}

	return g.nodes[id], nil
}

// Nodes returns every node in identity order. The slice is a copy; the
// nodes are shared.
func (g *FGraph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)

	return out
}

// ActiveNodes returns the STANDARD nodes in identity order.
func (g *FGraph) ActiveNodes() []Node {
	out := make([]Node, len(g.active))
	copy(out, g.active)

	return out
}

// NodeCount returns the number of registered nodes.
func (g *FGraph) NodeCount() int { return len(g.nodes) }

// owns reports whether n was registered by g and is stored under its identity.
func (g *FGraph) owns(n Node) bool {
	if n.nodeBase().owner != g {
		return false
	}
	id := n.ID()
	return id >= 0 && int(id) < len(g.nodes) && g.nodes[id] == n
}

// Owns reports whether n was registered by this graph.
//
// Complexity: O(1).
func (g *FGraph) Owns(n Node) bool {
	if n == nil {
		return false
	}

	return g.owns(n)
}
