// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ellipsoid

import (
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// DefaultPerturbation is the forward-difference step used when none is given.
// For 64-bit floats and parameters of order 0.01..1 it balances truncation
// error against cancellation in the subtraction.
const DefaultPerturbation = 1e-6

// ForwardGradient estimates the gradient of f at x with forward differences,
//
//	∂f/∂x_k ≈ (f(x + h·e_k) − f(x)) / h
//
// storing the result in dst. If dst is nil a new slice is allocated.
// x is not modified.
func ForwardGradient(dst []float64, f func(x []float64) float64, x []float64, h float64) []float64 {
	if dst != nil && len(dst) != len(x) {
		panic("ellipsoid: gradient length mismatch")
	}
	return fd.Gradient(dst, f, x, &fd.Settings{
		Formula: fd.Forward,
		Step:    h,
	})
}

// ForwardJacobian estimates the m×len(x) Jacobian of the vector function f
// at x with the same single-parameter perturbation as ForwardGradient.
// f writes its m outputs into the first argument.
func ForwardJacobian(dst *mat.Dense, f func(y, x []float64), m int, x []float64, h float64) {
	if r, c := dst.Dims(); r != m || c != len(x) {
		panic("ellipsoid: jacobian dimension mismatch")
	}
	if m == 0 {
		return
	}
	fd.Jacobian(dst, f, x, &fd.JacobianSettings{
		Formula: fd.Forward,
		Step:    h,
	})
}
