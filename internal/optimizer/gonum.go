// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package optimizer

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// stallIterations is how many major iterations gonum may spend without
// meaningful improvement before reporting convergence.
const stallIterations = 3

// MinimizeGonum minimizes obj with gonum.org/v1/gonum/optimize. A
// ResidualObjective goes to optimize.Newton with the Gauss-Newton Hessian
// 2JᵀJ and gradient 2Jᵀr, unless settings ask for BFGS. Any other objective
// goes to optimize.BFGS. Both use a halving backtracking line search, and
// a BlockObjective gets the same block passes as Minimize.
//
// Settings are mapped onto optimize.Settings and the gonum status onto the
// same terminal states Minimize reports. InitialStepSize, StepGrowth and
// MaxStepSize do not apply; gonum manages its own step lengths.
func MinimizeGonum(ctx context.Context, obj Objective, x0 []float64, settings Settings) (*Result, error) {
	if n := obj.Dim(); len(x0) != n {
		return nil, fmt.Errorf("%w: start vector has %d values, objective has %d", ErrDimension, len(x0), n)
	}
	return staged(ctx, obj, x0, settings.withDefaults(), runGonum), nil
}

func runGonum(ctx context.Context, obj Objective, x []float64, cost float64, settings Settings) *Result {
	n := obj.Dim()
	res := &Result{
		X:           append([]float64(nil), x...),
		Cost:        cost,
		InitialCost: cost,
		Direction:   DirectionBFGS,
		State:       Running,
	}

	residuals := -1
	ro, isResidual := obj.(ResidualObjective)
	if isResidual {
		residuals = ro.NumResiduals()
	}
	tol := settings.CostTolerance * math.Max(1, float64(residuals))

	switch {
	case !isFinite(cost):
		res.State = NonFinite
		return res
	case residuals == 0:
		res.State = StepLimit
		return res
	case ctx.Err() != nil:
		res.State = Cancelled
		return res
	case cost <= tol:
		res.State = Converged
		return res
	case settings.MaxIterations <= 0:
		res.State = IterationLimit
		return res
	}

	problem := optimize.Problem{
		Func: obj.Cost,
		Grad: obj.Gradient,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	linesearch := &optimize.Backtracking{ContractionFactor: 0.5}
	var method optimize.Method = &optimize.BFGS{Linesearcher: linesearch}
	if isResidual && settings.Direction != DirectionBFGS {
		gn := newGaussNewtonProblem(ro)
		problem.Grad = gn.gradient
		problem.Hess = gn.hessian
		method = &optimize.Newton{Linesearcher: linesearch}
		res.Direction = DirectionGaussNewton
	}

	grad := make([]float64, n)
	problem.Grad(grad, res.X)
	res.GradEvaluations = 1
	if !allFinite(grad) {
		res.State = NonFinite
		return res
	}
	if floats.Norm(grad, math.Inf(1)) == 0 {
		res.State = StepLimit
		return res
	}

	opts := &optimize.Settings{
		MajorIterations: settings.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   tol,
			Relative:   settings.FunctionTolerance,
			Iterations: stallIterations,
		},
	}
	if settings.Recorder != nil {
		opts.Recorder = &recorder{fn: settings.Recorder}
	}

	out, err := optimize.Minimize(problem, res.X, opts, method)
	if out != nil && out.X != nil && out.F <= res.Cost {
		copy(res.X, out.X)
		res.Cost = out.F
	}
	if out != nil {
		res.Iterations = out.MajorIterations
		res.Evaluations += out.FuncEvaluations
		res.GradEvaluations += out.GradEvaluations
	}
	res.State = gonumState(ctx, out, err, res.Cost, tol)
	return res
}

// gaussNewtonProblem supplies optimize.Newton with 2Jᵀr and 2JᵀJ.
type gaussNewtonProblem struct {
	obj ResidualObjective
	r   []float64
	jac *mat.Dense
}

func newGaussNewtonProblem(obj ResidualObjective) *gaussNewtonProblem {
	return &gaussNewtonProblem{
		obj: obj,
		r:   make([]float64, obj.NumResiduals()),
		jac: mat.NewDense(obj.NumResiduals(), obj.Dim(), nil),
	}
}

func (p *gaussNewtonProblem) gradient(grad, x []float64) {
	residualGradient(grad, p.r, p.jac, p.obj, x)
}

func (p *gaussNewtonProblem) hessian(hess *mat.SymDense, x []float64) {
	p.obj.Jacobian(p.jac, x)
	hess.SymOuterK(2, p.jac.T())
}

func gonumState(ctx context.Context, out *optimize.Result, err error, cost, tol float64) State {
	switch {
	case ctx.Err() != nil:
		return Cancelled
	case !isFinite(cost):
		return NonFinite
	case cost <= tol:
		return Converged
	case err != nil || out == nil:
		return StepLimit
	}
	switch out.Status {
	case optimize.Success, optimize.FunctionConvergence, optimize.GradientThreshold,
		optimize.StepConvergence, optimize.MethodConverge:
		return Converged
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit,
		optimize.GradientEvaluationLimit, optimize.RuntimeLimit:
		return IterationLimit
	default:
		return StepLimit
	}
}

// recorder forwards gonum major iterations to Settings.Recorder.
type recorder struct {
	fn func(Iteration)
}

func (r *recorder) Init() error { return nil }

func (r *recorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op != optimize.MajorIteration {
		return nil
	}
	r.fn(Iteration{Iter: stats.MajorIterations, Cost: loc.F, Evaluations: stats.FuncEvaluations})
	return nil
}
