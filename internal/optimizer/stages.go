// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package optimizer

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// pass minimizes obj from x, whose cost is already known, spending at most
// settings.MaxIterations iterations. A budget of zero is valid.
type pass func(ctx context.Context, obj Objective, x []float64, cost float64, settings Settings) *Result

// passes lists the parameter sets minimized in turn: every block of a
// BlockObjective alone, then all parameters, marked by a nil set.
func passes(obj Objective, settings Settings) [][]int {
	var out [][]int
	if bo, ok := obj.(BlockObjective); ok && !settings.DisableWarmup {
		for _, b := range bo.Blocks() {
			if len(b) > 0 && len(b) < obj.Dim() {
				out = append(out, b)
			}
		}
	}
	return append(out, nil)
}

// staged threads x and its cost through one run per parameter set. The
// iteration budget is shared, so Iterations never exceeds MaxIterations.
// A set ending in Converged or StepLimit hands over to the next one; any
// other state ends the fit.
func staged(ctx context.Context, obj Objective, x0 []float64, settings Settings, run pass) *Result {
	res := &Result{
		X:           append([]float64(nil), x0...),
		State:       Running,
		Evaluations: 1,
	}
	res.Cost = obj.Cost(res.X)
	res.InitialCost = res.Cost

	for _, idx := range passes(obj, settings) {
		sub, z := obj, res.X
		if idx != nil {
			sub = restrict(obj, res.X, idx)
			z = gather(res.X, idx)
		}
		ps := settings
		ps.MaxIterations = settings.MaxIterations - res.Iterations
		ps.Recorder = shift(settings.Recorder, res.Iterations, res.Evaluations)

		r := run(ctx, sub, z, res.Cost, ps)
		scatter(res.X, idx, r.X)
		res.Cost = r.Cost
		res.Iterations += r.Iterations
		res.Evaluations += r.Evaluations
		res.GradEvaluations += r.GradEvaluations
		res.StepSize = r.StepSize
		res.Direction = r.Direction
		res.State = r.State
		if r.State != Converged && r.State != StepLimit {
			break
		}
	}
	return res
}

// shift renumbers a pass's iterations into the fit's running totals.
func shift(fn func(Iteration), iters, evals int) func(Iteration) {
	if fn == nil {
		return nil
	}
	return func(it Iteration) {
		it.Iter += iters
		it.Evaluations += evals
		fn(it)
	}
}

func gather(x []float64, idx []int) []float64 {
	z := make([]float64, len(idx))
	for k, i := range idx {
		z[k] = x[i]
	}
	return z
}

func scatter(x []float64, idx []int, z []float64) {
	if idx == nil {
		copy(x, z)
		return
	}
	for k, i := range idx {
		x[i] = z[k]
	}
}

// subspace is obj over the parameters in idx, the rest pinned to base.
type subspace struct {
	obj  Objective
	idx  []int
	x    []float64
	grad []float64
}

// restrict returns obj as a function of x[idx] alone. The result is a
// ResidualObjective whenever obj is one.
func restrict(obj Objective, base []float64, idx []int) Objective {
	s := &subspace{
		obj:  obj,
		idx:  idx,
		x:    append([]float64(nil), base...),
		grad: make([]float64, len(base)),
	}
	if ro, ok := obj.(ResidualObjective); ok {
		return &residualSubspace{subspace: s, ro: ro}
	}
	return s
}

func (s *subspace) Dim() int { return len(s.idx) }

func (s *subspace) expand(z []float64) []float64 {
	scatter(s.x, s.idx, z)
	return s.x
}

func (s *subspace) Cost(z []float64) float64 {
	return s.obj.Cost(s.expand(z))
}

func (s *subspace) Gradient(grad, z []float64) {
	s.obj.Gradient(s.grad, s.expand(z))
	for k, i := range s.idx {
		grad[k] = s.grad[i]
	}
}

type residualSubspace struct {
	*subspace
	ro  ResidualObjective
	jac *mat.Dense
}

func (s *residualSubspace) NumResiduals() int { return s.ro.NumResiduals() }

func (s *residualSubspace) Residuals(dst, z []float64) {
	s.ro.Residuals(dst, s.expand(z))
}

func (s *residualSubspace) Jacobian(dst *mat.Dense, z []float64) {
	if s.jac == nil {
		s.jac = mat.NewDense(s.ro.NumResiduals(), s.ro.Dim(), nil)
	}
	s.ro.Jacobian(s.jac, s.expand(z))
	for k, i := range s.idx {
		for r := 0; r < s.ro.NumResiduals(); r++ {
			dst.Set(r, k, s.jac.At(r, i))
		}
	}
}
