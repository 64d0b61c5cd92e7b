// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package optimizer

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// Marquardt damping λ scales the diagonal of JᵀJ, so every parameter is
	// damped relative to its own curvature.
	initialDamping = 1e-3
	minDamping     = 1e-12
	maxDamping     = 1e12
	dampingGrowth  = 10.0
	dampingRetries = 8
	// Floor on the scaling diagonal, relative to its largest entry.
	scaleFloor = 1e-12

	// Gain ratio bounds: λ shrinks above goodGain and grows below poorGain.
	goodGain = 0.75
	poorGain = 0.25

	// BFGS skips updates whose curvature yᵀs is not clearly positive.
	curvatureEps = 1e-10
)

// gaussNewton solves the damped normal equations
// (JᵀJ + λ·diag(JᵀJ))p = −Jᵀr. Doubling both sides gives the same p with
// g = 2Jᵀr, the gradient of Σr². After each accepted step λ follows the
// ratio of the actual cost reduction to the one the linear model predicted.
type gaussNewton struct {
	obj    ResidualObjective
	r      []float64
	g      []float64
	scale  []float64
	jac    *mat.Dense
	jtj    *mat.SymDense
	damped *mat.SymDense
	chol   mat.Cholesky
	lambda float64
}

func newGaussNewton(obj ResidualObjective) *gaussNewton {
	m, n := obj.NumResiduals(), obj.Dim()
	g := &gaussNewton{
		obj:    obj,
		r:      make([]float64, m),
		g:      make([]float64, n),
		scale:  make([]float64, n),
		jtj:    mat.NewSymDense(n, nil),
		damped: mat.NewSymDense(n, nil),
		lambda: initialDamping,
	}
	if m > 0 {
		g.jac = mat.NewDense(m, n, nil)
	}
	return g
}

func (g *gaussNewton) gradient(grad, x []float64) {
	if g.jac == nil {
		for i := range grad {
			grad[i] = 0
		}
		return
	}
	residualGradient(grad, g.r, g.jac, g.obj, x)
}

// residualGradient fills r and jac at x and writes 2Jᵀr into grad.
func residualGradient(grad, r []float64, jac *mat.Dense, obj ResidualObjective, x []float64) {
	obj.Residuals(r, x)
	obj.Jacobian(jac, x)

	gv := mat.NewVecDense(len(grad), grad)
	gv.MulVec(jac.T(), mat.NewVecDense(len(r), r))
	gv.ScaleVec(2, gv)
}

func (g *gaussNewton) direction(p, grad []float64) {
	n := len(p)
	copy(g.g, grad)
	g.jtj.SymOuterK(1, g.jac.T())

	var maxDiag float64
	for i := 0; i < n; i++ {
		maxDiag = math.Max(maxDiag, g.jtj.At(i, i))
	}
	for i := range g.scale {
		g.scale[i] = math.Max(g.jtj.At(i, i), math.Max(scaleFloor*maxDiag, math.SmallestNonzeroFloat64))
	}

	pv := mat.NewVecDense(n, p)
	gv := mat.NewVecDense(n, grad)
	for try := 0; try < dampingRetries; try++ {
		g.damped.CopySym(g.jtj)
		for i := 0; i < n; i++ {
			g.damped.SetSym(i, i, g.damped.At(i, i)+g.lambda*g.scale[i])
		}
		if g.chol.Factorize(g.damped) && solved(g.chol.SolveVecTo(pv, gv)) {
			pv.ScaleVec(-0.5, pv)
			if allFinite(p) && floats.Dot(p, grad) < 0 {
				return
			}
		}
		g.lambda = math.Min(maxDamping, g.lambda*dampingGrowth)
	}

	// Hopelessly ill-conditioned: steepest descent.
	steepest(p, grad)
}

// accepted compares the reduction against the model
// pred = −(gᵀs + sᵀJᵀJs) and adapts λ.
func (g *gaussNewton) accepted(step []float64, reduction float64) {
	sv := mat.NewVecDense(len(step), step)
	pred := -(floats.Dot(g.g, step) + mat.Inner(sv, g.jtj, sv))
	var rho float64
	if pred > 0 {
		rho = reduction / pred
	}
	switch {
	case rho > goodGain:
		g.lambda = math.Max(minDamping, g.lambda/3)
	case rho < poorGain:
		g.lambda = math.Min(maxDamping, 2*g.lambda)
	}
}

func (g *gaussNewton) update(_, _ []float64) {}

func (g *gaussNewton) reset() bool { return false }

// solved accepts a poorly conditioned solve; the line search judges the result.
func solved(err error) bool {
	var cond mat.Condition
	return err == nil || errors.As(err, &cond)
}

// bfgs keeps an inverse Hessian approximation H and searches along −Hg.
type bfgs struct {
	obj      Objective
	inv      *mat.SymDense
	hy       *mat.VecDense
	identity bool
}

func newBFGS(obj Objective) *bfgs {
	n := obj.Dim()
	b := &bfgs{
		obj: obj,
		inv: mat.NewSymDense(n, nil),
		hy:  mat.NewVecDense(n, nil),
	}
	b.reset()
	return b
}

func (b *bfgs) gradient(grad, x []float64) {
	b.obj.Gradient(grad, x)
}

// direction returns −Hg. While H is still the unscaled identity it returns
// the unit steepest-descent vector, so the first step length does not
// depend on the magnitude of the gradient.
func (b *bfgs) direction(p, grad []float64) {
	if b.identity {
		steepestUnit(p, grad)
		return
	}
	pv := mat.NewVecDense(len(p), p)
	pv.MulVec(b.inv, mat.NewVecDense(len(grad), grad))
	pv.ScaleVec(-1, pv)
	if !(floats.Dot(p, grad) < 0) {
		b.reset()
		steepestUnit(p, grad)
	}
}

func (b *bfgs) accepted(_ []float64, _ float64) {}

// update applies the inverse BFGS formula
//
//	H ← (I − ρsyᵀ) H (I − ρysᵀ) + ρssᵀ,  ρ = 1/yᵀs
func (b *bfgs) update(s, y []float64) {
	sy := floats.Dot(s, y)
	if !(sy > curvatureEps*floats.Norm(s, 2)*floats.Norm(y, 2)) {
		return
	}
	if b.identity {
		// Scale the identity to the curvature seen along s before the first update.
		b.inv.ScaleSym(sy/floats.Dot(y, y), b.inv)
		b.identity = false
	}

	sv := mat.NewVecDense(len(s), s)
	yv := mat.NewVecDense(len(y), y)
	b.hy.MulVec(b.inv, yv)
	yhy := mat.Dot(yv, b.hy)

	b.inv.RankTwo(b.inv, -1/sy, b.hy, sv)
	b.inv.SymRankOne(b.inv, (sy+yhy)/(sy*sy), sv)
}

func (b *bfgs) reset() bool {
	if b.identity {
		return false
	}
	n, _ := b.inv.Dims()
	b.inv.Zero()
	for i := 0; i < n; i++ {
		b.inv.SetSym(i, i, 1)
	}
	b.identity = true
	return true
}

func steepest(p, grad []float64) {
	copy(p, grad)
	floats.Scale(-1, p)
}

func steepestUnit(p, grad []float64) {
	steepest(p, grad)
	floats.Scale(1/floats.Norm(p, 2), p)
}
