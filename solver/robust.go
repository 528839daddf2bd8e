// SPDX-License-Identifier: MIT

package solver

import (
	"math"

	"github.com/katalvlaran/lvfactor/core"
)

// RobustWeight returns the IRLS weight ρ'(e)/e of a factor with cost
// chi2 = ½e² under kernel t of width k.
func RobustWeight(t core.RobustType, chi2, k float64) float64 {
	e := math.Sqrt(2 * math.Max(chi2, 0))
	switch t {
	case core.RobustHuber:
		if e <= k {
			return 1
		}
		return k / e
	case core.RobustCauchy:
		return 1 / (1 + (e*e)/(k*k))
	default:
		return 1
	}
}

// RobustCost returns ρ(e) for a factor with cost chi2 = ½e²; the quadratic
// kernel returns chi2 unchanged.
func RobustCost(t core.RobustType, chi2, k float64) float64 {
	chi2 = math.Max(chi2, 0)
	e := math.Sqrt(2 * chi2)
	switch t {
	case core.RobustHuber:
		if e <= k {
			return chi2
		}
		return k*e - 0.5*k*k
	case core.RobustCauchy:
		return 0.5 * k * k * math.Log1p((e*e)/(k*k))
	default:
		return chi2
	}
}
