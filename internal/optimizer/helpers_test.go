// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package optimizer_test

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/relabs-tech/magnetometer_calibration/internal/ellipsoid"
	"github.com/relabs-tech/magnetometer_calibration/internal/samples"
)

// quadratic is f(x) = (x-a)ᵀQ(x-a) with an exact gradient.
type quadratic struct {
	q [3][3]float64
	a [3]float64
}

func newQuadratic() *quadratic {
	return &quadratic{
		q: [3][3]float64{
			{3, 0.5, 0},
			{0.5, 2, 0.3},
			{0, 0.3, 1},
		},
		a: [3]float64{1, -2, 0.5},
	}
}

func (f *quadratic) Dim() int { return 3 }

func (f *quadratic) Cost(x []float64) float64 {
	var sum float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum += (x[i] - f.a[i]) * f.q[i][j] * (x[j] - f.a[j])
		}
	}
	return sum
}

func (f *quadratic) Gradient(grad, x []float64) {
	for i := 0; i < 3; i++ {
		grad[i] = 0
		for j := 0; j < 3; j++ {
			grad[i] += 2 * f.q[i][j] * (x[j] - f.a[j])
		}
	}
}

// objectiveOnly hides the residual methods of a CostModel.
type objectiveOnly struct {
	m *ellipsoid.CostModel
}

func (o objectiveOnly) Dim() int                   { return o.m.Dim() }
func (o objectiveOnly) Cost(x []float64) float64   { return o.m.Cost(x) }
func (o objectiveOnly) Gradient(grad, x []float64) { o.m.Gradient(grad, x) }
func (o objectiveOnly) Blocks() [][]int            { return o.m.Blocks() }

// cubeSphere returns the 26 normalized directions of {-1,0,1}³ shifted to center.
func cubeSphere(center r3.Vector) []samples.Sample {
	var pts []samples.Sample
	for x := -1.0; x <= 1; x++ {
		for y := -1.0; y <= 1; y++ {
			for z := -1.0; z <= 1; z++ {
				if x == 0 && y == 0 && z == 0 {
					continue
				}
				d := r3.Vector{X: x, Y: y, Z: z}.Normalize()
				pts = append(pts, samples.FromVector(center.Add(d)))
			}
		}
	}
	return pts
}

// ellipsoidPoints returns n points lying exactly on p.
func ellipsoidPoints(p ellipsoid.Params, n int) []samples.Sample {
	corr, err := p.Correction()
	if err != nil {
		panic(err)
	}
	golden := math.Pi * (3 - math.Sqrt(5))
	pts := make([]samples.Sample, n)
	for i := range pts {
		y := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - y*y)
		theta := golden * float64(i)
		pts[i] = corr.Invert(r3.Vector{X: r * math.Cos(theta), Y: y, Z: r * math.Sin(theta)})
	}
	return pts
}

func skewedTruth() ellipsoid.Params {
	return ellipsoid.Params{0.8, -0.5, 0.3, 1.3, 0.12, -0.05, 0.9, 0.08, 1.1}
}

func facePoints() []samples.Sample {
	return []samples.Sample{
		{X: 0, Y: 2, Z: 3}, {X: 2, Y: 2, Z: 3},
		{X: 1, Y: 1, Z: 3}, {X: 1, Y: 3, Z: 3},
		{X: 1, Y: 2, Z: 2}, {X: 1, Y: 2, Z: 4},
	}
}
