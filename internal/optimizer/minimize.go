// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package optimizer

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Minimize runs the quasi-Newton iteration from x0 until a terminal state.
//
// Each outer iteration evaluates the gradient, builds a search direction and
// runs a bounded line search: the step multiplier starts at the current step
// size and is halved up to MaxStepIterations times until the cost strictly
// decreases. An accepted step grows the next starting step by StepGrowth,
// capped at MaxStepSize.
//
// A BlockObjective is first minimized one block at a time, then over all
// parameters. The passes share the MaxIterations budget.
//
// The error is non-nil only for a start vector of the wrong length. Every
// other outcome, including stalls and non-finite costs, is reported through
// Result.State, and Result.X always holds the best vector found.
func Minimize(ctx context.Context, obj Objective, x0 []float64, settings Settings) (*Result, error) {
	if n := obj.Dim(); len(x0) != n {
		return nil, fmt.Errorf("%w: start vector has %d values, objective has %d", ErrDimension, len(x0), n)
	}
	return staged(ctx, obj, x0, settings.withDefaults(), runSession), nil
}

func runSession(ctx context.Context, obj Objective, x []float64, cost float64, settings Settings) *Result {
	s := newSession(obj, x, settings)
	s.run(ctx, cost)
	return s.result()
}

// strategy produces gradients and search directions for a session.
type strategy interface {
	gradient(grad, x []float64)
	direction(p, grad []float64)
	// accepted reports a step the line search took and the cost it saved.
	accepted(step []float64, reduction float64)
	// update feeds the last accepted step and the gradient change.
	update(step, gradDiff []float64)
	// reset drops accumulated curvature. It returns false when there is
	// nothing to drop.
	reset() bool
}

type session struct {
	obj      Objective
	settings Settings
	dir      Direction
	strategy strategy

	residuals int // -1 when obj does not expose residuals
	costTol   float64

	state       State
	x           []float64
	cost        float64
	prevCost    float64
	initialCost float64
	step        float64
	iter        int
	evals       int
	gradEvals   int

	grad, gradPrev []float64
	p, trial       []float64
	lastStep, diff []float64
	havePrev       bool
}

func newSession(obj Objective, x0 []float64, settings Settings) *session {
	n := len(x0)
	s := &session{
		obj:       obj,
		settings:  settings,
		residuals: -1,
		state:     NotStarted,
		x:         append([]float64(nil), x0...),
		step:      settings.InitialStepSize,
		grad:      make([]float64, n),
		gradPrev:  make([]float64, n),
		p:         make([]float64, n),
		trial:     make([]float64, n),
		lastStep:  make([]float64, n),
		diff:      make([]float64, n),
	}

	ro, isResidual := obj.(ResidualObjective)
	if isResidual {
		s.residuals = ro.NumResiduals()
	}
	s.costTol = settings.CostTolerance * math.Max(1, float64(s.residuals))

	s.dir = settings.Direction
	if s.dir == DirectionAuto || (s.dir == DirectionGaussNewton && !isResidual) {
		if isResidual {
			s.dir = DirectionGaussNewton
		} else {
			s.dir = DirectionBFGS
		}
	}
	if s.dir == DirectionGaussNewton {
		s.strategy = newGaussNewton(ro)
	} else {
		s.strategy = newBFGS(obj)
	}
	return s
}

func (s *session) evaluate(x []float64) float64 {
	s.evals++
	return s.obj.Cost(x)
}

// run iterates from s.x, whose cost the caller has already evaluated.
func (s *session) run(ctx context.Context, cost float64) {
	s.state = Running
	s.cost = cost
	s.initialCost = cost
	if !isFinite(s.cost) {
		s.state = NonFinite
		return
	}
	if s.residuals == 0 {
		// No residual terms: the cost is zero everywhere.
		s.state = StepLimit
		return
	}

	for {
		if ctx.Err() != nil {
			s.state = Cancelled
			return
		}
		if s.cost <= s.costTol {
			s.state = Converged
			return
		}
		if s.iter >= s.settings.MaxIterations {
			s.state = IterationLimit
			return
		}

		s.strategy.gradient(s.grad, s.x)
		s.gradEvals++
		if !allFinite(s.grad) {
			s.state = NonFinite
			return
		}
		if floats.Norm(s.grad, math.Inf(1)) == 0 {
			s.state = StepLimit
			return
		}
		if s.havePrev {
			floats.SubTo(s.diff, s.grad, s.gradPrev)
			s.strategy.update(s.lastStep, s.diff)
		}

		s.strategy.direction(s.p, s.grad)
		ok := s.lineSearch()
		if !ok && s.strategy.reset() {
			s.strategy.direction(s.p, s.grad)
			ok = s.lineSearch()
		}
		if !ok {
			s.state = StepLimit
			return
		}

		s.iter++
		if rec := s.settings.Recorder; rec != nil {
			rec(Iteration{Iter: s.iter, Cost: s.cost, StepSize: s.step, Evaluations: s.evals})
		}
		if s.prevCost-s.cost <= s.settings.FunctionTolerance*s.prevCost {
			s.state = Converged
			return
		}
		s.step = math.Min(s.settings.MaxStepSize, s.step*s.settings.StepGrowth)
	}
}

// lineSearch tries x + α·p for α = step, step/2, ... and accepts the first
// trial with a strictly lower cost. Non-finite trial costs count as no
// improvement.
func (s *session) lineSearch() bool {
	alpha := s.step
	for i := 0; i < s.settings.MaxStepIterations; i++ {
		floats.AddScaledTo(s.trial, s.x, alpha, s.p)
		if f := s.evaluate(s.trial); f < s.cost {
			floats.SubTo(s.lastStep, s.trial, s.x)
			copy(s.gradPrev, s.grad)
			s.havePrev = true

			s.strategy.accepted(s.lastStep, s.cost-f)

			copy(s.x, s.trial)
			s.prevCost, s.cost = s.cost, f
			s.step = alpha
			return true
		}
		alpha /= 2
	}
	return false
}

func (s *session) result() *Result {
	return &Result{
		X:               s.x,
		Cost:            s.cost,
		InitialCost:     s.initialCost,
		Iterations:      s.iter,
		Evaluations:     s.evals,
		GradEvaluations: s.gradEvals,
		StepSize:        s.step,
		State:           s.state,
		Direction:       s.dir,
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if !isFinite(x) {
			return false
		}
	}
	return true
}
