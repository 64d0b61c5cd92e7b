// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ellipsoid

import (
	"math"

	"github.com/relabs-tech/magnetometer_calibration/internal/samples"
)

// MinMaxEstimate returns the classic min/max approximation: the center of
// the bounding box as hard-iron offset and a diagonal A from the per-axis
// half ranges. It ignores axis coupling, so it is a starting guess rather
// than a fit. ok is false when points is empty or an axis has no spread.
func MinMaxEstimate(points []samples.Sample) (p Params, ok bool) {
	if len(points) == 0 {
		return Params{}, false
	}

	lo := [3]float64{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64}
	hi := [3]float64{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64}
	for _, s := range points {
		for k, v := range [3]float64{s.X, s.Y, s.Z} {
			lo[k] = math.Min(lo[k], v)
			hi[k] = math.Max(hi[k], v)
		}
	}

	diag := [3]int{IdxA00, IdxA11, IdxA22}
	for k := 0; k < 3; k++ {
		half := (hi[k] - lo[k]) / 2
		if !(half > 0) || math.IsInf(half, 0) {
			return Params{}, false
		}
		p[k] = (hi[k] + lo[k]) / 2
		p[diag[k]] = 1 / (half * half)
	}
	return p, true
}
