// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors provides magnetometer sources for calibration runs.
package sensors

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/magnetometer_calibration/internal/ellipsoid"
	"github.com/relabs-tech/magnetometer_calibration/internal/samples"
)

// SimConfig describes the sensor being simulated.
type SimConfig struct {
	Seed int64

	// Offset is the hard-iron offset added to every reading.
	Offset r3.Vector
	// Scale holds the per-axis soft-iron gains.
	Scale r3.Vector
	// Skew couples the axes: every off-diagonal entry of the soft-iron matrix.
	Skew float64

	// FieldStrength is the magnitude of the undistorted field.
	FieldStrength float64
	// Inclination is the dip angle of the field below the horizon, in degrees.
	Inclination float64
	// Noise is the standard deviation of the Gaussian noise per axis.
	Noise float64

	// Rate is the output data rate in Hz.
	Rate float64
}

// DefaultSimConfig returns a moderately distorted sensor in a 50 µT field.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Seed:          1,
		Offset:        r3.Vector{X: 12.5, Y: -8.0, Z: 4.2},
		Scale:         r3.Vector{X: 1.08, Y: 0.93, Z: 1.02},
		Skew:          0.03,
		FieldStrength: 50,
		Inclination:   60,
		Noise:         0.05,
		Rate:          50,
	}
}

// SimulatedMagnetometer produces readings x = c + F·M·u(t) + noise, where
// u(t) is the unit field direction seen by a tumbling body, M the soft-iron
// matrix, F the field strength and c the hard-iron offset.
//
// Readings are a pure function of the seed and the call count, so two
// sources with the same config produce the same stream.
type SimulatedMagnetometer struct {
	cfg   SimConfig
	rows  [3]r3.Vector // F·M, row by row
	field r3.Vector    // unit field in the world frame
	rng   *rand.Rand
	dt    float64
	count int
}

// NewSimulatedMagnetometer validates cfg and returns a source.
func NewSimulatedMagnetometer(cfg SimConfig) (*SimulatedMagnetometer, error) {
	if cfg.FieldStrength <= 0 {
		return nil, fmt.Errorf("simulated magnetometer: field strength must be positive, got %g", cfg.FieldStrength)
	}
	if cfg.Rate <= 0 {
		return nil, fmt.Errorf("simulated magnetometer: rate must be positive, got %g", cfg.Rate)
	}
	if cfg.Noise < 0 {
		return nil, fmt.Errorf("simulated magnetometer: noise must not be negative, got %g", cfg.Noise)
	}

	s := &SimulatedMagnetometer{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		dt:  1 / cfg.Rate,
	}
	f := cfg.FieldStrength
	s.rows = [3]r3.Vector{
		{X: f * cfg.Scale.X, Y: f * cfg.Skew, Z: f * cfg.Skew},
		{X: f * cfg.Skew, Y: f * cfg.Scale.Y, Z: f * cfg.Skew},
		{X: f * cfg.Skew, Y: f * cfg.Skew, Z: f * cfg.Scale.Z},
	}
	if det := s.rows[0].Dot(s.rows[1].Cross(s.rows[2])); math.Abs(det) < 1e-12*f*f*f {
		return nil, fmt.Errorf("simulated magnetometer: soft-iron matrix is singular")
	}

	dip := cfg.Inclination * math.Pi / 180
	s.field = r3.Vector{X: math.Cos(dip), Y: 0, Z: -math.Sin(dip)}
	return s, nil
}

// Interval returns the time between two readings.
func (s *SimulatedMagnetometer) Interval() time.Duration {
	return time.Duration(s.dt * float64(time.Second))
}

// Elapsed returns the simulated time of the next reading.
func (s *SimulatedMagnetometer) Elapsed() time.Duration {
	return time.Duration(float64(s.count) * s.dt * float64(time.Second))
}

// Next returns the next reading and advances simulated time by one interval.
func (s *SimulatedMagnetometer) Next() (samples.Sample, error) {
	u := s.direction(float64(s.count) * s.dt)
	s.count++

	x := s.cfg.Offset.Add(r3.Vector{
		X: s.rows[0].Dot(u),
		Y: s.rows[1].Dot(u),
		Z: s.rows[2].Dot(u),
	})
	if n := s.cfg.Noise; n > 0 {
		x = x.Add(r3.Vector{X: n * s.rng.NormFloat64(), Y: n * s.rng.NormFloat64(), Z: n * s.rng.NormFloat64()})
	}
	return samples.FromVector(x), nil
}

// direction returns the unit field in body coordinates at time t. The body
// spins about all three axes at incommensurate rates, so the field sweeps
// the whole sphere over a few tens of seconds.
func (s *SimulatedMagnetometer) direction(t float64) r3.Vector {
	roll := 2 * math.Pi * 0.131 * t
	pitch := 2 * math.Pi * 0.071 * t
	yaw := 2 * math.Pi * 0.043 * t
	return rotateX(rotateY(rotateZ(s.field, yaw), pitch), roll)
}

// Truth returns the calibration that maps noise-free readings onto the unit sphere.
func (s *SimulatedMagnetometer) Truth() (ellipsoid.Params, error) {
	m := mat.NewDense(3, 3, nil)
	for i, r := range s.rows {
		m.SetRow(i, []float64{r.X, r.Y, r.Z})
	}
	return ellipsoid.FromDistortion(s.cfg.Offset, m)
}

func rotateX(v r3.Vector, a float64) r3.Vector {
	sin, cos := math.Sincos(a)
	return r3.Vector{X: v.X, Y: cos*v.Y - sin*v.Z, Z: sin*v.Y + cos*v.Z}
}

func rotateY(v r3.Vector, a float64) r3.Vector {
	sin, cos := math.Sincos(a)
	return r3.Vector{X: cos*v.X + sin*v.Z, Y: v.Y, Z: -sin*v.X + cos*v.Z}
}

func rotateZ(v r3.Vector, a float64) r3.Vector {
	sin, cos := math.Sincos(a)
	return r3.Vector{X: cos*v.X - sin*v.Y, Y: sin*v.X + cos*v.Y, Z: v.Z}
}
