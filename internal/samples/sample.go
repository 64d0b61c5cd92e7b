// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package samples

import (
	"math"

	"github.com/golang/geo/r3"
)

// Sample represents a single raw magnetometer reading.
// Units are whatever the producer delivers (µT, gauss or raw counts);
// the calibration only requires them to be consistent.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Source is anything that can provide magnetometer readings over time.
type Source interface {
	Next() (Sample, error)
}

// FromVector converts an r3 vector into a Sample.
func FromVector(v r3.Vector) Sample {
	return Sample{X: v.X, Y: v.Y, Z: v.Z}
}

// Vector returns the sample as an r3 vector.
func (s Sample) Vector() r3.Vector {
	return r3.Vector{X: s.X, Y: s.Y, Z: s.Z}
}

// Finite reports whether all three components are finite numbers.
func (s Sample) Finite() bool {
	for _, v := range [3]float64{s.X, s.Y, s.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
