package factors

import "errors"

var (
	// ErrNodeType indicates a node of the wrong kind for the requested role
	// (e.g. a landmark passed where a pose is expected).
	ErrNodeType = errors.New("factors: node type does not fit role")

	// ErrNotSymmetric indicates an information matrix that is not symmetric.
	ErrNotSymmetric = errors.New("factors: information matrix is not symmetric")
)

// symmetryTolerance bounds |W(i,j) − W(j,i)| accepted for information matrices.
const symmetryTolerance = 1e-9
