// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ellipsoid

import (
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/magnetometer_calibration/internal/samples"
)

// CostModel scores a calibration vector against a fixed set of samples.
//
// For each sample x_i the residual is r_i = (x_i - c)ᵀA(x_i - c) - 1 and the
// cost is Σ r_i². The cost is a sum, so its magnitude grows with the number
// of samples.
//
// A CostModel keeps no state between calls and may be used from several
// goroutines, provided nobody mutates the sample slice it was given.
type CostModel struct {
	points []samples.Sample
	h      float64
}

// NewCostModel returns a model over points, which should be a Snapshot.
// A non-positive perturbation selects DefaultPerturbation.
func NewCostModel(points []samples.Sample, perturbation float64) *CostModel {
	if perturbation <= 0 {
		perturbation = DefaultPerturbation
	}
	return &CostModel{points: points, h: perturbation}
}

// Dim returns the number of parameters, always NumParams.
func (m *CostModel) Dim() int { return NumParams }

// NumResiduals returns the number of samples.
func (m *CostModel) NumResiduals() int { return len(m.points) }

// Blocks splits the vector into the center and the entries of A. For a
// fixed center the residuals are linear in A.
func (m *CostModel) Blocks() [][]int {
	return [][]int{
		{IdxCX, IdxCY, IdxCZ},
		{IdxA00, IdxA01, IdxA02, IdxA11, IdxA12, IdxA22},
	}
}

// Perturbation returns the forward-difference step.
func (m *CostModel) Perturbation() float64 { return m.h }

// Points returns the samples the model was built on.
func (m *CostModel) Points() []samples.Sample { return m.points }

// residual evaluates the ellipsoid equation for one sample, with A applied
// as the full symmetric matrix.
func residual(x []float64, s samples.Sample) float64 {
	dx := s.X - x[IdxCX]
	dy := s.Y - x[IdxCY]
	dz := s.Z - x[IdxCZ]

	q := x[IdxA00]*dx*dx + x[IdxA11]*dy*dy + x[IdxA22]*dz*dz +
		2*(x[IdxA01]*dx*dy+x[IdxA02]*dx*dz+x[IdxA12]*dy*dz)
	return q - 1
}

// Residuals writes r_i for every sample into dst.
func (m *CostModel) Residuals(dst, x []float64) {
	if len(dst) != len(m.points) {
		panic("ellipsoid: residual length mismatch")
	}
	for i, s := range m.points {
		dst[i] = residual(x, s)
	}
}

// Cost returns Σ r_i². A non-finite sample makes the cost NaN or Inf.
func (m *CostModel) Cost(x []float64) float64 {
	var sum float64
	for _, s := range m.points {
		r := residual(x, s)
		sum += r * r
	}
	return sum
}

// Gradient estimates ∂cost/∂x by forward differences.
func (m *CostModel) Gradient(grad, x []float64) {
	ForwardGradient(grad, m.Cost, x, m.h)
}

// Jacobian estimates ∂r_i/∂x_k by forward differences into dst, which must
// be NumResiduals×NumParams.
func (m *CostModel) Jacobian(dst *mat.Dense, x []float64) {
	ForwardJacobian(dst, m.Residuals, len(m.points), x, m.h)
}
