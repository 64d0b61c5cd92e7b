// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package optimizer

import (
	"fmt"
	"strings"
)

// Defaults used for zero-valued Settings fields.
const (
	DefaultMaxIterations     = 100
	DefaultMaxStepIterations = 10
	DefaultInitialStepSize   = 0.001
	DefaultStepGrowth        = 10.0
	DefaultMaxStepSize       = 1.0
	DefaultFunctionTolerance = 1e-10
	DefaultCostTolerance     = 1e-12
)

// Direction selects how the search direction is built.
type Direction int

const (
	// DirectionAuto uses Gauss-Newton for a ResidualObjective and BFGS otherwise.
	DirectionAuto Direction = iota
	DirectionGaussNewton
	DirectionBFGS
)

func (d Direction) String() string {
	switch d {
	case DirectionGaussNewton:
		return "gauss-newton"
	case DirectionBFGS:
		return "bfgs"
	default:
		return "auto"
	}
}

// ParseDirection accepts auto, gauss-newton (or gn) and bfgs.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return DirectionAuto, nil
	case "gauss-newton", "gaussnewton", "gn":
		return DirectionGaussNewton, nil
	case "bfgs":
		return DirectionBFGS, nil
	}
	return DirectionAuto, fmt.Errorf("unknown direction %q", s)
}

// Iteration is passed to Settings.Recorder after every accepted step.
type Iteration struct {
	Iter        int
	Cost        float64
	StepSize    float64
	Evaluations int
}

// Settings bounds a fit. Zero or negative numeric fields take the defaults.
type Settings struct {
	// MaxIterations caps the outer iterations.
	MaxIterations int
	// MaxStepIterations caps the trial steps of one line search.
	MaxStepIterations int
	// InitialStepSize is the first multiplier tried along the direction.
	InitialStepSize float64
	// StepGrowth multiplies the step after an accepted step.
	StepGrowth float64
	// MaxStepSize caps the step multiplier.
	MaxStepSize float64
	// FunctionTolerance is the relative improvement below which the fit
	// is considered converged.
	FunctionTolerance float64
	// CostTolerance is the per-residual cost treated as an exact fit.
	CostTolerance float64

	Direction Direction
	// DisableWarmup skips the per-block passes of a BlockObjective.
	DisableWarmup bool
	Recorder      func(Iteration)
}

// DefaultSettings returns Settings with every default filled in.
func DefaultSettings() Settings {
	return Settings{}.withDefaults()
}

func (s Settings) withDefaults() Settings {
	if s.MaxIterations <= 0 {
		s.MaxIterations = DefaultMaxIterations
	}
	if s.MaxStepIterations <= 0 {
		s.MaxStepIterations = DefaultMaxStepIterations
	}
	if s.InitialStepSize <= 0 {
		s.InitialStepSize = DefaultInitialStepSize
	}
	if s.StepGrowth <= 0 {
		s.StepGrowth = DefaultStepGrowth
	}
	if s.MaxStepSize <= 0 {
		s.MaxStepSize = DefaultMaxStepSize
	}
	if s.InitialStepSize > s.MaxStepSize {
		s.InitialStepSize = s.MaxStepSize
	}
	if s.FunctionTolerance <= 0 {
		s.FunctionTolerance = DefaultFunctionTolerance
	}
	if s.CostTolerance <= 0 {
		s.CostTolerance = DefaultCostTolerance
	}
	return s
}
