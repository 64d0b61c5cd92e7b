// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ellipsoid

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/magnetometer_calibration/internal/samples"
)

// fibonacciSphere returns n well spread unit vectors.
func fibonacciSphere(n int) []r3.Vector {
	golden := math.Pi * (3 - math.Sqrt(5))
	out := make([]r3.Vector, n)
	for i := range out {
		y := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - y*y)
		theta := golden * float64(i)
		out[i] = r3.Vector{X: r * math.Cos(theta), Y: y, Z: r * math.Sin(theta)}
	}
	return out
}

// surfacePoints returns n samples lying exactly on the ellipsoid p.
func surfacePoints(t *testing.T, p Params, n int) []samples.Sample {
	t.Helper()
	corr, err := p.Correction()
	require.NoError(t, err)

	pts := make([]samples.Sample, 0, n)
	for _, u := range fibonacciSphere(n) {
		pts = append(pts, corr.Invert(u))
	}
	return pts
}

// skewedEllipsoid is a representative soft/hard-iron calibration.
func skewedEllipsoid() Params {
	return Params{
		0.8, -0.5, 0.3,
		1.3, 0.12, -0.05,
		0.9, 0.08,
		1.1,
	}
}

// analyticJacobianRow returns ∂r/∂θ for one sample.
func analyticJacobianRow(p Params, s samples.Sample) [NumParams]float64 {
	d := s.Vector().Sub(p.Center())
	a := p.Matrix()
	ad := [3]float64{
		a.At(0, 0)*d.X + a.At(0, 1)*d.Y + a.At(0, 2)*d.Z,
		a.At(1, 0)*d.X + a.At(1, 1)*d.Y + a.At(1, 2)*d.Z,
		a.At(2, 0)*d.X + a.At(2, 1)*d.Y + a.At(2, 2)*d.Z,
	}
	return [NumParams]float64{
		-2 * ad[0], -2 * ad[1], -2 * ad[2],
		d.X * d.X, 2 * d.X * d.Y, 2 * d.X * d.Z,
		d.Y * d.Y, 2 * d.Y * d.Z,
		d.Z * d.Z,
	}
}
