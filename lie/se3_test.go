package lie_test

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/lvfactor/lie"
)

const tol = 1e-9

func assertTangentNear(t *testing.T, want, got lie.Tangent, eps float64) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], eps, "component %d", i)
	}
}

// TestExpLn_RoundTrip checks Ln(Exp(ξ)) = ξ across small, generic and large angles.
func TestExpLn_RoundTrip(t *testing.T) {
	cases := []lie.Tangent{
		{0, 0, 0, 0, 0, 0},
		{1e-8, -2e-8, 3e-9, 1, 2, 3},
		{0.1, -0.2, 0.3, 0.5, -1, 2},
		{1.2, 0.4, -0.9, -3, 0.25, 7},
		{0, 0, math.Pi - 1e-3, 1, 0, 0},
	}
	for _, xi := range cases {
		got := lie.ExpSE3(xi).Ln()
		assertTangentNear(t, xi, got, 1e-8)
	}
}

// TestLnSO3_NearPi exercises the axis recovery branch around θ = π.
func TestLnSO3_NearPi(t *testing.T) {
	w := r3.Vector{X: 1, Y: 1, Z: 0}.Normalize().Mul(math.Pi - 1e-7)
	got := lie.LnSO3(lie.ExpSO3(w))
	assert.InDelta(t, w.X, got.X, 1e-6)
	assert.InDelta(t, w.Y, got.Y, 1e-6)
	assert.InDelta(t, w.Z, got.Z, 1e-6)
}

// TestInv_Compose verifies T·T⁻¹ = I and that Transform agrees with the matrix product.
func TestInv_Compose(t *testing.T) {
	T := lie.ExpSE3(lie.Tangent{0.3, -0.1, 0.7, 1, -2, 0.5})
	I := T.Mul(T.Inv()).T()
	require.True(t, mat.EqualApprox(I, mat.NewDiagDense(4, []float64{1, 1, 1, 1}), tol))

	p := r3.Vector{X: 0.4, Y: -1.5, Z: 2}
	h := mat.NewVecDense(4, []float64{p.X, p.Y, p.Z, 1})
	var out mat.VecDense
	out.MulVec(T.T(), h)
	q := T.Transform(p)
	assert.InDelta(t, out.AtVec(0), q.X, tol)
	assert.InDelta(t, out.AtVec(1), q.Y, tol)
	assert.InDelta(t, out.AtVec(2), q.Z, tol)

	back := T.Inv().Transform(q)
	assert.InDelta(t, 0.0, back.Sub(p).Norm(), tol)
}

// TestZeroValue_IsIdentity documents that an uninitialized SE3 is usable.
func TestZeroValue_IsIdentity(t *testing.T) {
	var T lie.SE3
	p := r3.Vector{X: 1, Y: 2, Z: 3}
	assert.Equal(t, p, T.Transform(p))
	assert.InDelta(t, 0.0, T.Ln().Norm(), tol)
}

// TestUpdateLHS checks the left retraction against an explicit product.
func TestUpdateLHS(t *testing.T) {
	T := lie.ExpSE3(lie.Tangent{0.1, 0.2, 0.3, 1, 1, 1})
	dx := lie.Tangent{0.01, -0.02, 0.005, 0.1, 0, -0.3}
	want := lie.ExpSE3(dx).Mul(T)
	T.UpdateLHS(dx)
	assert.InDelta(t, 0.0, T.Distance(want), tol)
}

// TestGenerator_SumIsHat verifies ξ^ = Σ ξ_k·G_k.
func TestGenerator_SumIsHat(t *testing.T) {
	xi := lie.Tangent{0.3, -0.2, 0.1, 4, 5, 6}
	sum := mat.NewDense(4, 4, nil)
	for k := 0; k < 6; k++ {
		var g mat.Dense
		g.Scale(xi[k], lie.Generator(k))
		sum.Add(sum, &g)
	}
	hat := lie.Hat3(xi.Omega())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, hat.At(i, j), sum.At(i, j), tol)
		}
	}
	assert.InDelta(t, 4.0, sum.At(0, 3), tol)
	assert.InDelta(t, 5.0, sum.At(1, 3), tol)
	assert.InDelta(t, 6.0, sum.At(2, 3), tol)
	assert.Panics(t, func() { lie.Generator(6) })
}

// TestHatVee checks that Hat3 implements the cross product and Vee3 inverts it.
func TestHatVee(t *testing.T) {
	a := r3.Vector{X: 1, Y: -2, Z: 0.5}
	b := r3.Vector{X: 0.3, Y: 4, Z: -1}
	var out mat.VecDense
	out.MulVec(lie.Hat3(a), mat.NewVecDense(3, []float64{b.X, b.Y, b.Z}))
	c := a.Cross(b)
	assert.InDelta(t, c.X, out.AtVec(0), tol)
	assert.InDelta(t, c.Y, out.AtVec(1), tol)
	assert.InDelta(t, c.Z, out.AtVec(2), tol)
	assert.Equal(t, a, lie.Vee3(lie.Hat3(a)))
}

// TestNewSE3_Validation covers the shape and rigidity sentinels.
func TestNewSE3_Validation(t *testing.T) {
	_, err := lie.NewSE3(mat.NewDense(3, 3, nil))
	assert.ErrorIs(t, err, lie.ErrInvalidShape)

	scaled := lie.Identity().T()
	scaled.Set(0, 0, 2)
	_, err = lie.NewSE3(scaled)
	assert.ErrorIs(t, err, lie.ErrNotRigid)

	reflect := lie.Identity().T()
	reflect.Set(2, 2, -1)
	_, err = lie.NewSE3(reflect)
	assert.ErrorIs(t, err, lie.ErrNotRigid)

	good := lie.ExpSE3(lie.Tangent{0.2, 0.1, 0, 1, 2, 3})
	T, err := lie.NewSE3(good.T())
	require.NoError(t, err)
	assert.InDelta(t, 0.0, T.Distance(good), tol)

	_, err = lie.FromRt(mat.NewDense(2, 2, nil), r3.Vector{})
	assert.ErrorIs(t, err, lie.ErrInvalidShape)
}
