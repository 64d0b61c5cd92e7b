// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package optimizer minimizes smooth objectives with a bounded quasi-Newton
// iteration. It knows nothing about the problem it solves: callers hand in
// an Objective and get back a Result in one of a few terminal states.
package optimizer

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ErrDimension is returned when the start vector does not match Objective.Dim.
var ErrDimension = errors.New("optimizer: dimension mismatch")

// Objective is a scalar cost with a gradient.
type Objective interface {
	// Dim returns the number of parameters.
	Dim() int
	// Cost evaluates the objective at x.
	Cost(x []float64) float64
	// Gradient writes ∂cost/∂x into grad.
	Gradient(grad, x []float64)
}

// ResidualObjective is an Objective of the form Σ r_i(x)². Exposing the
// residuals and their Jacobian enables Gauss-Newton directions.
type ResidualObjective interface {
	Objective
	// NumResiduals returns the number of residual terms.
	NumResiduals() int
	// Residuals writes r(x) into dst.
	Residuals(dst, x []float64)
	// Jacobian writes ∂r_i/∂x_k into dst, which is NumResiduals×Dim.
	Jacobian(dst *mat.Dense, x []float64)
}

// BlockObjective is an Objective whose parameters fall into blocks that are
// well conditioned on their own. Both backends minimize each block in turn,
// the others held fixed, before minimizing all parameters together.
type BlockObjective interface {
	Objective
	// Blocks returns disjoint sets of parameter indices.
	Blocks() [][]int
}
