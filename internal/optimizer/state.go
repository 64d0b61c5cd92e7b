// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package optimizer

// State is the phase of a fit session.
type State int

const (
	NotStarted State = iota
	Running
	// Converged means the cost stopped improving or is negligible.
	Converged
	// IterationLimit means MaxIterations outer iterations were spent.
	IterationLimit
	// StepLimit means the line search found no improving step, or there
	// was no descent direction to search along.
	StepLimit
	// NonFinite means the cost or gradient became NaN or Inf.
	NonFinite
	// Cancelled means the context was done before the fit finished.
	Cancelled
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case Running:
		return "RUNNING"
	case Converged:
		return "CONVERGED"
	case IterationLimit:
		return "ITERATION_LIMIT"
	case StepLimit:
		return "STEP_LIMIT"
	case NonFinite:
		return "NON_FINITE"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further iterations will happen.
func (s State) Terminal() bool {
	return s >= Converged
}
