// File: methods_factors.go
// Role: Factor and EigenFactor lifecycle & lookup.
//
// Determinism:
//   - Factors and EigenFactors are numbered independently from 0.
package core

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// AddFactor registers f and returns its identity. Every neighbour of f must
// already be owned by this graph.
//
// Errors:
//   - ErrNilFactor, ErrAlreadyRegistered, ErrForeignNode.
//
// Complexity:
//   - Time O(k) for k neighbours, Space O(1) amortized.
func (g *FGraph) AddFactor(f Factor) (FactorID, error) {
	if f == nil {
		return UnassignedID, fmt.Errorf("AddFactor: %w", ErrNilFactor)
	}
	// Stage 1: identity and ownership of every neighbour
	base := f.factorBase()
	if err := g.admit(base); err != nil {
		return UnassignedID, fmt.Errorf("AddFactor: %w", err)
	}

	// Stage 2: bind to this graph and account for the residual size
	id := FactorID(len(g.factors))
	base.assign(id, g)
	g.factors = append(g.factors, f)
	g.obsDim += f.DimObs()
	g.logger.Debug("factor added", "id", int(id), "dimObs", f.DimObs(), "neighbours", len(base.neighbours))

	return id, nil
}

// AddEigenFactor registers ef and returns its identity. EigenFactors may be
// added empty and grow their neighbour set through AddPoint later.
//
// Errors:
//   - ErrNilFactor, ErrAlreadyRegistered, ErrForeignNode.
func (g *FGraph) AddEigenFactor(ef EigenFactor) (FactorID, error) {
	if ef == nil {
		return UnassignedID, fmt.Errorf("AddEigenFactor: %w", ErrNilFactor)
	}
	base := ef.factorBase()
	if err := g.admit(base); err != nil {
		return UnassignedID, fmt.Errorf("AddEigenFactor: %w", err)
	}

	// from here on the factor only accepts nodes of g (see InsertNeighbour)
	id := FactorID(len(g.eigenFactors))
	base.assign(id, g)
	g.eigenFactors = append(g.eigenFactors, ef)
	g.logger.Debug("eigen factor added", "id", int(id), "neighbours", len(base.neighbours))

	return id, nil
}

// EigenFactorAddPoint attaches point p, observed from node nodeID, to eigen
// factor efID. Both are resolved by identity, so the node is owned by g.
//
// Errors:
//   - ErrOutOfRange for an unknown identity, plus whatever AddPoint returns.
func (g *FGraph) EigenFactorAddPoint(efID FactorID, nodeID NodeID, p r3.Vector) error {
	// resolve both sides by identity in this graph
	ef, err := g.EigenFactor(efID)
	if err != nil {
		return fmt.Errorf("EigenFactorAddPoint: %w", err)
	}
	n, err := g.Node(nodeID)
	if err != nil {
		return fmt.Errorf("EigenFactorAddPoint: %w", err)
	}
	if err = ef.AddPoint(p, n); err != nil {
		return fmt.Errorf("EigenFactorAddPoint: %w", err)
	}

	return nil
}

// Factor returns the factor with identity id.
//
// Errors:
//   - ErrOutOfRange: id ∉ [0, FactorCount()).
func (g *FGraph) Factor(id FactorID) (Factor, error) {
	if id < 0 || int(id) >= len(g.factors) {
		return nil, fmt.Errorf("Factor(%d): %w", id, ErrOutOfRange)
	}

	return g.factors[id], nil
}

// EigenFactor returns the eigen factor with identity id.
//
// Errors:
//   - ErrOutOfRange: id ∉ [0, EigenFactorCount()).
func (g *FGraph) EigenFactor(id FactorID) (EigenFactor, error) {
	if id < 0 || int(id) >= len(g.eigenFactors) {
		return nil, fmt.Errorf("EigenFactor(%d): %w", id, ErrOutOfRange)
	}

	return g.eigenFactors[id], nil
}

// Factors returns every factor in identity order (copied slice, shared factors).
func (g *FGraph) Factors() []Factor {
	out := make([]Factor, len(g.factors))
	copy(out, g.factors)

	return out
}

// EigenFactors returns every eigen factor in identity order.
func (g *FGraph) EigenFactors() []EigenFactor {
	out := make([]EigenFactor, len(g.eigenFactors))
	copy(out, g.eigenFactors)

	return out
}

// FactorCount returns the number of registered factors.
func (g *FGraph) FactorCount() int { return len(g.factors) }

// EigenFactorCount returns the number of registered eigen factors.
func (g *FGraph) EigenFactorCount() int { return len(g.eigenFactors) }

// admit checks a factor base before insertion.
func (g *FGraph) admit(base *FactorBase) error {
	if base.registered {
		return ErrAlreadyRegistered
	}
	// neighbours were inserted before registration, so check each one now
	for _, n := range base.neighbours {
		if !g.owns(n) {
			return fmt.Errorf("node %d: %w", n.ID(), ErrForeignNode)
		}
	}

	return nil
}
