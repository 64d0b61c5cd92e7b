// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/relabs-tech/magnetometer_calibration/internal/config"
	"github.com/relabs-tech/magnetometer_calibration/internal/optimizer"
	"github.com/relabs-tech/magnetometer_calibration/internal/sensors"
	"github.com/relabs-tech/magnetometer_calibration/internal/timeutil"
)

// InitialGuess selects the starting calibration vector of a fit.
type InitialGuess int

const (
	// GuessDefault starts from the unit sphere at the origin.
	GuessDefault InitialGuess = iota
	// GuessMinMax starts from the bounding-box estimate of the samples.
	GuessMinMax
)

func (g InitialGuess) String() string {
	if g == GuessMinMax {
		return "minmax"
	}
	return "default"
}

// Options configure a Calibrator.
type Options struct {
	MaxDataRate  float64
	Perturbation float64
	Settings     optimizer.Settings
	Backend      optimizer.Backend
	InitialGuess InitialGuess

	// Clock drives the rate limiter and fit timing. Defaults to the wall clock.
	Clock timeutil.Clock
	// Logf receives progress lines. Defaults to log.Printf.
	Logf func(format string, v ...interface{})
	// Verbose logs every optimizer iteration.
	Verbose bool
}

// OptionsFromConfig translates the configuration file into Options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	dir, err := optimizer.ParseDirection(cfg.Direction)
	if err != nil {
		return Options{}, fmt.Errorf("options: %w", err)
	}
	backend, err := optimizer.ParseBackend(cfg.Backend)
	if err != nil {
		return Options{}, fmt.Errorf("options: %w", err)
	}

	opts := Options{
		MaxDataRate:  cfg.MaxDataRate,
		Perturbation: cfg.Perturbation,
		Backend:      backend,
		Settings: optimizer.Settings{
			MaxIterations:     cfg.MaxIterations,
			MaxStepIterations: cfg.MaxStepIterations,
			InitialStepSize:   cfg.InitialStepSize,
			StepGrowth:        cfg.StepGrowth,
			MaxStepSize:       cfg.MaxStepSize,
			FunctionTolerance: cfg.FunctionTolerance,
			CostTolerance:     cfg.CostTolerance,
			Direction:         dir,
			DisableWarmup:     !cfg.Warmup,
		},
	}
	switch cfg.InitialGuess {
	case "", "default":
		opts.InitialGuess = GuessDefault
	case "minmax":
		opts.InitialGuess = GuessMinMax
	default:
		return Options{}, fmt.Errorf("options: unknown initial guess %q", cfg.InitialGuess)
	}
	return opts, nil
}

// SimConfigFromConfig returns the simulated sensor described by cfg.
func SimConfigFromConfig(cfg *config.Config) sensors.SimConfig {
	return sensors.SimConfig{
		Seed:          cfg.SimSeed,
		Offset:        r3.Vector{X: cfg.SimOffsetX, Y: cfg.SimOffsetY, Z: cfg.SimOffsetZ},
		Scale:         r3.Vector{X: cfg.SimScaleX, Y: cfg.SimScaleY, Z: cfg.SimScaleZ},
		Skew:          cfg.SimSkew,
		FieldStrength: cfg.SimFieldStrength,
		Inclination:   cfg.SimInclination,
		Noise:         cfg.SimNoise,
		Rate:          cfg.SimRate,
	}
}
