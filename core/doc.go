// Package core provides the variable/constraint graph of lvfactor: the
// FGraph container and the Node, Factor and EigenFactor contracts that every
// estimation variant implements.
//
// The graph G = (Nodes, Factors, EigenFactors) is append-only:
//
//   - AddNode / AddFactor / AddEigenFactor assign dense identities 0, 1, 2, …
//     (factors and eigen factors are numbered independently).
//   - STANDARD nodes grow StateDim by their tangent dimension; ANCHOR nodes are
//     fixed and contribute nothing; SCHUR_MARGI is reserved and rejected.
//   - Factors grow ObsDim by their residual dimension.
//
// Evaluation contract (consumed by package solver):
//
//	EvaluateResiduals()   // caches r from current node states
//	EvaluateJacobians()   // valid only right after EvaluateResiduals
//	EvaluateChi2()        // 0.5·rᵗ·W·r (eigen factors: their own error)
//
// Ownership:
//
//	Factors keep pointers to the Nodes the graph stores. Neighbour lists are
//	always sorted by ascending NodeID; FactorBase.InsertNeighbour maintains that
//	order and returns the slot, so variants record their semantic-role mapping
//	separately instead of reordering roles.
//
// Embedding:
//
//	Concrete nodes embed NodeBase and concrete factors embed FactorBase. The
//	contracts include an unexported accessor satisfied only through these
//	embeddings, which keeps identity assignment inside the graph.
//
// Errors:
//
//	ErrOutOfRange                 – lookup outside [0, count)
//	ErrUnsupportedMode            – SCHUR_MARGI node
//	ErrInvalidOperationForVariant – inherited accessor meaningless for the variant
//	ErrNotEvaluated               – Jacobians before residuals
//	ErrNilNode / ErrNilFactor / ErrAlreadyRegistered / ErrUnregisteredNode / ErrForeignNode
//
// The graph is not safe for concurrent use.
package core
