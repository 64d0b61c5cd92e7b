// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ellipsoid

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/magnetometer_calibration/internal/samples"
)

// Quality summarizes how well a calibration explains a sample set.
type Quality struct {
	Samples int
	Cost    float64 // Σ r_i²
	RMS     float64 // sqrt(cost / samples), comparable across sample counts

	MeanResidual   float64
	StdDevResidual float64
	MaxAbsResidual float64

	// SemiAxes are the ellipsoid semi-axis lengths 1/sqrt(λ) for the
	// eigenvalues λ of A, in ascending order. Inf for non-positive λ.
	SemiAxes [3]float64
	// AxisRatio is shortest/longest semi-axis: 1 for a sphere, near 0 for
	// heavy soft-iron distortion. Zero when A is not positive definite.
	AxisRatio float64

	PositiveDefinite bool
}

// Evaluate computes the Quality of p over points.
func Evaluate(points []samples.Sample, p Params) Quality {
	q := Quality{Samples: len(points)}

	x := p[:]
	res := make([]float64, len(points))
	for i, s := range points {
		r := residual(x, s)
		res[i] = r
		q.Cost += r * r
		if a := math.Abs(r); a > q.MaxAbsResidual {
			q.MaxAbsResidual = a
		}
	}
	if n := len(points); n > 0 {
		q.RMS = math.Sqrt(q.Cost / float64(n))
		q.MeanResidual = stat.Mean(res, nil)
	}
	if len(points) > 1 {
		q.StdDevResidual = stat.StdDev(res, nil)
	}

	var es mat.EigenSym
	if !es.Factorize(p.Matrix(), false) {
		return q
	}
	vals := es.Values(nil)
	sort.Float64s(vals)

	q.PositiveDefinite = vals[0] > 0
	for i, v := range vals {
		if v > 0 {
			// Largest eigenvalue gives the shortest axis; store ascending.
			q.SemiAxes[2-i] = 1 / math.Sqrt(v)
		} else {
			q.SemiAxes[2-i] = math.Inf(1)
		}
	}
	if q.PositiveDefinite {
		q.AxisRatio = q.SemiAxes[0] / q.SemiAxes[2]
	}
	return q
}
