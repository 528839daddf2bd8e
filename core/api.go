// SPDX-License-Identifier: MIT
//
// File: api.go
// Role: Read-only getters and the diagnostic dump of FGraph.
// Policy:
//   - No algorithms or hidden state here.
//   - Every exported function documents complexity.

package core

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

// Stats is a snapshot of the aggregate sizes of a graph.
type Stats struct {
	Nodes        int // all nodes
	ActiveNodes  int // STANDARD nodes
	Factors      int
	EigenFactors int
	StateDim     int // Σ Dim() over STANDARD nodes
	ObsDim       int // Σ DimObs() over factors
}

// StateDim returns the size of the optimized state vector.
// ANCHOR nodes do not count.
//
// Complexity: O(1).
func (g *FGraph) StateDim() int { return g.stateDim }

// ObsDim returns the summed residual dimension of all factors.
// EigenFactors are not included.
//
// Complexity: O(1).
func (g *FGraph) ObsDim() int { return g.obsDim }

// Stats returns the aggregate counts.
//
// Complexity: O(1).
func (g *FGraph) Stats() Stats {
	return Stats{
		Nodes:        len(g.nodes),
		ActiveNodes:  len(g.active),
		Factors:      len(g.factors),
		EigenFactors: len(g.eigenFactors),
		StateDim:     g.stateDim,
		ObsDim:       g.obsDim,
	}
}

// EstimatedState returns a copy of every node state in identity order,
// anchors included.
//
// Complexity: O(V).
func (g *FGraph) EstimatedState() []*mat.Dense {
	out := make([]*mat.Dense, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.State()
	}

	return out
}

// Print writes the aggregate counts to w and, when complete is set, the full
// dump of every node, factor and eigen factor in identity order.
//
// Complexity: O(V + F + EF) entity dumps.
func (g *FGraph) Print(w io.Writer, complete bool) {
	_, _ = fmt.Fprintf(w, "Status of graph: Nodes = %d, Factors = %d, Eigen Factors = %d\n",
		len(g.nodes), len(g.factors), len(g.eigenFactors))
	if !complete {
		return
	}
	for _, n := range g.nodes {
		n.Print(w)
	}
	for _, f := range g.factors {
		f.Print(w)
	}
	for _, ef := range g.eigenFactors {
		ef.Print(w)
	}
}
