// SPDX-License-Identifier: MIT

package lie

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Sentinel errors for the lie package.
var (
	// ErrInvalidShape indicates a matrix of the wrong size was supplied.
	ErrInvalidShape = errors.New("lie: invalid shape")

	// ErrNotRigid indicates the supplied matrix is not a proper rigid transform
	// (non-orthonormal rotation, det ≠ +1, or bottom row ≠ [0 0 0 1]).
	ErrNotRigid = errors.New("lie: matrix is not a rigid transform")
)

// RigidTolerance bounds the element-wise deviation accepted by NewSE3 and FromRt.
const RigidTolerance = 1e-6

// Tangent is an element of se(3) in the ordering [ωx ωy ωz vx vy vz].
type Tangent [6]float64

// Omega returns the rotational part of ξ.
func (x Tangent) Omega() r3.Vector { return r3.Vector{X: x[0], Y: x[1], Z: x[2]} }

// V returns the translational part of ξ.
func (x Tangent) V() r3.Vector { return r3.Vector{X: x[3], Y: x[4], Z: x[5]} }

// Norm returns the Euclidean norm of ξ.
func (x Tangent) Norm() float64 {
	var s float64
	for _, v := range x {
		s += v * v
	}

	return math.Sqrt(s)
}

// TangentFromVec reads the first six entries of v. It returns ErrInvalidShape
// when v is shorter than six.
func TangentFromVec(v mat.Vector) (Tangent, error) {
	var x Tangent
	if v == nil || v.Len() < 6 {
		return x, fmt.Errorf("TangentFromVec: %w", ErrInvalidShape)
	}
	for i := range x {
		x[i] = v.AtVec(i)
	}

	return x, nil
}

// SE3 is a rigid transform T = [R t; 0 1]. The zero value is the identity.
type SE3 struct {
	m *mat.Dense // 4×4, never mutated after construction
}

// Identity returns the identity transform.
func Identity() SE3 { return SE3{m: identity4()} }

// NewSE3 copies a 4×4 homogeneous matrix after checking it is rigid within
// RigidTolerance.
func NewSE3(T mat.Matrix) (SE3, error) {
	if T == nil {
		return SE3{}, fmt.Errorf("NewSE3: %w", ErrInvalidShape)
	}
	if r, c := T.Dims(); r != 4 || c != 4 {
		return SE3{}, fmt.Errorf("NewSE3: %dx%d: %w", r, c, ErrInvalidShape)
	}
	bottom := [4]float64{0, 0, 0, 1}
	for j := 0; j < 4; j++ {
		if math.Abs(T.At(3, j)-bottom[j]) > RigidTolerance {
			return SE3{}, fmt.Errorf("NewSE3: bottom row: %w", ErrNotRigid)
		}
	}
	if err := checkRotation(mat.DenseCopyOf(T).Slice(0, 3, 0, 3)); err != nil {
		return SE3{}, fmt.Errorf("NewSE3: %w", err)
	}

	return SE3{m: mat.DenseCopyOf(T)}, nil
}

// FromRt assembles a transform from a 3×3 rotation and a translation.
func FromRt(R mat.Matrix, t r3.Vector) (SE3, error) {
	if R == nil {
		return SE3{}, fmt.Errorf("FromRt: %w", ErrInvalidShape)
	}
	if r, c := R.Dims(); r != 3 || c != 3 {
		return SE3{}, fmt.Errorf("FromRt: %dx%d: %w", r, c, ErrInvalidShape)
	}
	if err := checkRotation(R); err != nil {
		return SE3{}, fmt.Errorf("FromRt: %w", err)
	}

	return compose(R, t), nil
}

// ExpSE3 maps ξ = [ω; v] to Exp(ξ) = [Exp(ω) V·v; 0 1] with
// V = I + (1−cos θ)/θ²·ω^ + (θ−sin θ)/θ³·(ω^)².
func ExpSE3(xi Tangent) SE3 {
	w := xi.Omega()
	theta := w.Norm()
	var b, c float64
	if theta < taylorAngle {
		t2 := theta * theta
		b = 0.5 - t2/24
		c = 1.0/6 - t2/120
	} else {
		t2 := theta * theta
		b = (1 - math.Cos(theta)) / t2
		c = (theta - math.Sin(theta)) / (t2 * theta)
	}
	V := polyHat(w, b, c)

	return compose(ExpSO3(w), mulVec3(V, xi.V()))
}

// Ln returns the tangent vector ξ with Exp(ξ) = T and ‖ω‖ ≤ π.
func (s SE3) Ln() Tangent {
	R := s.R()
	w := LnSO3(R)
	theta := w.Norm()
	var e float64
	if theta < taylorAngle {
		e = 1.0/12 + theta*theta/720
	} else {
		e = (1 - theta*math.Sin(theta)/(2*(1-math.Cos(theta)))) / (theta * theta)
	}
	v := mulVec3(polyHat(w, -0.5, e), s.Translation())

	return Tangent{w.X, w.Y, w.Z, v.X, v.Y, v.Z}
}

// T returns a copy of the 4×4 homogeneous matrix.
func (s SE3) T() *mat.Dense { return mat.DenseCopyOf(s.mat()) }

// R returns a copy of the 3×3 rotation block.
func (s SE3) R() *mat.Dense { return mat.DenseCopyOf(s.mat().Slice(0, 3, 0, 3)) }

// Translation returns the translation column.
func (s SE3) Translation() r3.Vector {
	m := s.mat()
	return r3.Vector{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)}
}

// Transform returns T·p for a 3-D point p.
func (s SE3) Transform(p r3.Vector) r3.Vector {
	m := s.mat()
	return r3.Vector{
		X: m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)*p.Z + m.At(0, 3),
		Y: m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)*p.Z + m.At(1, 3),
		Z: m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)*p.Z + m.At(2, 3),
	}
}

// Rotate applies only the rotation block to a direction d.
func (s SE3) Rotate(d r3.Vector) r3.Vector {
	return mulVec3(s.mat().Slice(0, 3, 0, 3), d)
}

// Inv returns T⁻¹ = [Rᵗ −Rᵗt; 0 1].
func (s SE3) Inv() SE3 {
	var Rt mat.Dense
	Rt.CloneFrom(s.mat().Slice(0, 3, 0, 3).T())
	t := mulVec3(&Rt, s.Translation())

	return compose(&Rt, t.Mul(-1))
}

// Mul returns the composition s·o (o is applied first).
func (s SE3) Mul(o SE3) SE3 {
	var out mat.Dense
	out.Mul(s.mat(), o.mat())

	return SE3{m: &out}
}

// UpdateLHS applies the left retraction T ← Exp(ξ)·T.
func (s *SE3) UpdateLHS(xi Tangent) {
	*s = ExpSE3(xi).Mul(*s)
}

// Distance returns ‖Ln(s·o⁻¹)‖, a left-invariant distance between poses.
func (s SE3) Distance(o SE3) float64 {
	return s.Mul(o.Inv()).Ln().Norm()
}

// Print writes the homogeneous matrix to w, one row per line.
func (s SE3) Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "%v\n", mat.Formatted(s.mat(), mat.Squeeze()))
}

// Generator returns the k-th generator of se(3) as a 4×4 matrix so that
// ξ^ = Σ ξ_k·G_k. Indices 0..2 are rotations about x,y,z; 3..5 translations.
// It panics if k is outside [0, 6), mirroring gonum's index panics.
func Generator(k int) *mat.Dense {
	if k < 0 || k >= 6 {
		panic(fmt.Sprintf("lie: generator index %d out of range", k))
	}
	G := mat.NewDense(4, 4, nil)
	if k < 3 {
		var e r3.Vector
		switch k {
		case 0:
			e.X = 1
		case 1:
			e.Y = 1
		default:
			e.Z = 1
		}
		G.Slice(0, 3, 0, 3).(*mat.Dense).Copy(Hat3(e))
		return G
	}
	G.Set(k-3, 3, 1)

	return G
}

// mat returns the backing matrix, substituting identity for the zero value.
func (s SE3) mat() *mat.Dense {
	if s.m == nil {
		return identity4()
	}

	return s.m
}

func compose(R mat.Matrix, t r3.Vector) SE3 {
	m := identity4()
	var i, j int
	for i = 0; i < 3; i++ {
		for j = 0; j < 3; j++ {
			m.Set(i, j, R.At(i, j))
		}
	}
	m.Set(0, 3, t.X)
	m.Set(1, 3, t.Y)
	m.Set(2, 3, t.Z)

	return SE3{m: m}
}

func checkRotation(R mat.Matrix) error {
	var RtR mat.Dense
	RtR.Mul(R.T(), R)
	var i, j int
	for i = 0; i < 3; i++ {
		for j = 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(RtR.At(i, j)-want) > RigidTolerance {
				return ErrNotRigid
			}
		}
	}
	if mat.Det(R) < 0 {
		return ErrNotRigid
	}

	return nil
}

func identity4() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

func mulVec3(M mat.Matrix, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: M.At(0, 0)*v.X + M.At(0, 1)*v.Y + M.At(0, 2)*v.Z,
		Y: M.At(1, 0)*v.X + M.At(1, 1)*v.Y + M.At(1, 2)*v.Z,
		Z: M.At(2, 0)*v.X + M.At(2, 1)*v.Y + M.At(2, 2)*v.Z,
	}
}
