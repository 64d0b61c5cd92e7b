// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package optimizer

import "fmt"

// Result is the outcome of a fit. X is always the best vector found.
type Result struct {
	X           []float64
	Cost        float64
	InitialCost float64

	Iterations      int
	Evaluations     int // cost evaluations
	GradEvaluations int // gradient or Jacobian evaluations
	StepSize        float64

	State     State
	Direction Direction
}

// Improved reports whether the fit lowered the cost.
func (r *Result) Improved() bool {
	return r.Cost < r.InitialCost
}

func (r *Result) String() string {
	return fmt.Sprintf("%s after %d iterations (cost %.6g -> %.6g, %d evaluations, step %.3g)",
		r.State, r.Iterations, r.InitialCost, r.Cost, r.Evaluations, r.StepSize)
}
