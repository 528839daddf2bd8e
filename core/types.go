// Package core defines the central FGraph container together with the Node,
// Factor and EigenFactor contracts every estimation variant implements.
//
// This file declares identities, node modes, robust tags, the contracts,
// sentinel errors, and the FGraph struct with its constructor.
//
// Errors:
//
//	ErrNilNode                    - a nil Node was passed.
//	ErrNilFactor                  - a nil Factor or EigenFactor was passed.
//	ErrAlreadyRegistered          - the entity already carries an identity.
//	ErrUnregisteredNode           - a Node without identity was referenced.
//	ErrForeignNode                - a Factor references a Node owned by another graph.
//	ErrOutOfRange                 - identity lookup outside [0, count).
//	ErrUnsupportedMode            - SCHUR_MARGI nodes are not implemented.
//	ErrInvalidOperationForVariant - accessor meaningless for the receiving variant.
//	ErrNotEvaluated               - Jacobians requested before residuals.
package core

import (
	"errors"
	"io"
	"log/slog"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Sentinel errors for core graph operations.
var (
	// ErrNilNode indicates that a nil Node was supplied.
	ErrNilNode = errors.New("core: node is nil")

	// ErrNilFactor indicates that a nil Factor or EigenFactor was supplied.
	ErrNilFactor = errors.New("core: factor is nil")

	// ErrAlreadyRegistered indicates an entity was inserted into a graph twice.
	ErrAlreadyRegistered = errors.New("core: entity already registered")

	// ErrUnregisteredNode indicates a Node without an identity was referenced.
	// Nodes receive their identity from FGraph.AddNode.
	ErrUnregisteredNode = errors.New("core: node is not registered in a graph")

	// ErrForeignNode indicates a Factor references a Node that this graph does not own.
	ErrForeignNode = errors.New("core: node belongs to another graph")

	// ErrOutOfRange indicates an identity outside the dense range [0, count).
	ErrOutOfRange = errors.New("core: identity out of range")

	// ErrUnsupportedMode indicates a node mode that has no implementation (SCHUR_MARGI).
	ErrUnsupportedMode = errors.New("core: unsupported node mode")

	// ErrInvalidOperationForVariant indicates an inherited accessor that has no
	// meaning for the receiving variant (e.g. Residual on a plane EigenFactor).
	ErrInvalidOperationForVariant = errors.New("core: operation invalid for this factor variant")

	// ErrNotEvaluated indicates EvaluateJacobians was called before EvaluateResiduals.
	ErrNotEvaluated = errors.New("core: residuals not evaluated")

	// ErrInvalidShape indicates a state or increment of the wrong dimension.
	ErrInvalidShape = errors.New("core: invalid shape")
)

// NodeID is the dense, insertion-ordered identity of a Node.
type NodeID int

// FactorID is the dense, insertion-ordered identity of a Factor or EigenFactor.
// Factors and EigenFactors are numbered independently.
type FactorID int

// UnassignedID is reported by entities that were never inserted into a graph.
const UnassignedID = -1

// NodeMode selects how a Node participates in optimization.
type NodeMode int

const (
	// ModeStandard nodes are optimized and contribute Dim() to the state dimension.
	ModeStandard NodeMode = iota

	// ModeAnchor nodes are held fixed and contribute nothing to the state dimension.
	ModeAnchor

	// ModeSchurMargi is reserved for Schur marginalization; inserting such a node fails.
	ModeSchurMargi
)

// String implements fmt.Stringer.
func (m NodeMode) String() string {
	switch m {
	case ModeStandard:
		return "STANDARD"
	case ModeAnchor:
		return "ANCHOR"
	case ModeSchurMargi:
		return "SCHUR_MARGI"
	default:
		return "UNKNOWN"
	}
}

// RobustType tags the robust cost a Factor requests from the solver.
type RobustType int

const (
	// RobustQuadratic is the plain least-squares cost.
	RobustQuadratic RobustType = iota

	// RobustHuber down-weights residuals beyond the solver's threshold linearly.
	RobustHuber

	// RobustCauchy down-weights residuals with the Cauchy (Lorentzian) kernel.
	RobustCauchy
)

// String implements fmt.Stringer.
func (r RobustType) String() string {
	switch r {
	case RobustQuadratic:
		return "QUADRATIC"
	case RobustHuber:
		return "HUBER"
	case RobustCauchy:
		return "CAUCHY"
	default:
		return "UNKNOWN"
	}
}

// Node is a state variable living on a manifold.
//
// Implementations embed NodeBase; the unexported accessor keeps identity
// assignment inside this package.
type Node interface {
	// ID returns the identity assigned by FGraph.AddNode, or UnassignedID.
	ID() NodeID

	// Dim returns the tangent-space dimension.
	Dim() int

	// Mode returns the optimization mode fixed at construction.
	Mode() NodeMode

	// State returns a copy of the current manifold value.
	State() *mat.Dense

	// SetState overwrites the manifold value; used to restore rejected steps.
	SetState(x mat.Matrix) error

	// Update applies a tangent-space increment of length Dim() via retraction.
	Update(dx mat.Vector) error

	// Print writes a human-readable dump.
	Print(w io.Writer)

	nodeBase() *NodeBase
}

// Factor is a measurement constraint over an ordered list of Nodes.
//
// Sequencing contract: EvaluateJacobians is valid only after EvaluateResiduals
// on the same Factor with unchanged node states; EvaluateChi2 reads the cached
// residual.
type Factor interface {
	// ID returns the identity assigned by the graph, or UnassignedID.
	ID() FactorID

	// DimObs returns the residual dimension.
	DimObs() int

	// DimState returns the sum of the neighbours' tangent dimensions.
	DimState() int

	// Robust returns the robust cost tag.
	Robust() RobustType

	// Neighbours returns the neighbour Nodes in ascending identity order.
	Neighbours() []Node

	// EvaluateResiduals computes and caches the residual from current states.
	EvaluateResiduals() error

	// EvaluateJacobians computes the Jacobian blocks in neighbour order.
	EvaluateJacobians() error

	// EvaluateChi2 computes, caches and returns the scalar cost.
	EvaluateChi2() float64

	// Chi2 returns the cost cached by the last EvaluateChi2.
	Chi2() float64

	// Obs returns a copy of the observation.
	Obs() (*mat.VecDense, error)

	// Residual returns a copy of the cached residual.
	Residual() (*mat.VecDense, error)

	// InformationMatrix returns a copy of the weight matrix.
	InformationMatrix() (*mat.Dense, error)

	// Jacobian returns a copy of the cached DimObs×DimState Jacobian.
	Jacobian() (*mat.Dense, error)

	// Print writes a human-readable dump.
	Print(w io.Writer)

	factorBase() *FactorBase
}

// EigenFactor is a Factor over an open-ended set of Nodes whose parameter is
// re-derived from aggregated statistics instead of being stored as a Node.
// The inherited Obs/Residual/InformationMatrix/Jacobian accessors return
// ErrInvalidOperationForVariant; gradient and Hessian are exposed per node.
type EigenFactor interface {
	Factor

	// AddPoint attaches a point observed from node n, registering n as a neighbour.
	AddPoint(p r3.Vector, n Node) error

	// NodeJacobian returns the gradient block of the cost w.r.t. node id.
	NodeJacobian(id NodeID) (*mat.VecDense, error)

	// NodeHessian returns the diagonal Hessian block of the cost w.r.t. node id.
	NodeHessian(id NodeID) (*mat.Dense, error)
}

// FGraph owns the Node, Factor and EigenFactor arenas of an estimation problem.
//
// Entities are appended only; identities are dense and increase from 0.
// Factors hold pointers to the very Nodes the graph stores, so a Node lives
// as long as the graph or any Factor referencing it.
//
// FGraph is not safe for concurrent use: the estimation pipeline is
// single-threaded and mutates node states only between evaluation passes.
type FGraph struct {
	nodes        []Node        // every node, by identity
	active       []Node        // STANDARD nodes, in insertion order
	factors      []Factor      // by identity
	eigenFactors []EigenFactor // by identity

	stateDim int // Σ Dim() over STANDARD nodes
	obsDim   int // Σ DimObs() over factors

	logger *slog.Logger
}

// GraphOption configures an FGraph before use.
type GraphOption func(g *FGraph)

// WithLogger routes insertion diagnostics to l. It panics on a nil logger.
func WithLogger(l *slog.Logger) GraphOption {
	if l == nil {
		panic("core: WithLogger(nil)")
	}

	return func(g *FGraph) { g.logger = l }
}

// NewFGraph creates an empty graph.
// Complexity: O(len(opts)).
func NewFGraph(opts ...GraphOption) *FGraph {
	g := &FGraph{logger: discardLogger()}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
