// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ellipsoid fits the generalized ellipsoid (x-c)ᵀA(x-c) = 1 to
// magnetometer samples. The center c is the hard-iron offset and the
// symmetric matrix A carries the soft-iron distortion.
package ellipsoid

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// NumParams is the length of a calibration vector.
const NumParams = 9

// Layout of a calibration vector.
const (
	IdxCX = iota
	IdxCY
	IdxCZ
	IdxA00
	IdxA01
	IdxA02
	IdxA11
	IdxA12
	IdxA22
)

// Params is a calibration vector: the ellipsoid center followed by the six
// independent entries of the symmetric matrix A, row by row from the upper
// triangle (A00 A01 A02 A11 A12 A22).
type Params [NumParams]float64

// Initial returns the default starting guess: center at the origin and
// A = identity, the axis-aligned unit sphere.
func Initial() Params {
	var p Params
	p[IdxA00] = 1
	p[IdxA11] = 1
	p[IdxA22] = 1
	return p
}

// FromSlice copies a 9-element slice into Params.
func FromSlice(x []float64) (Params, error) {
	var p Params
	if len(x) != NumParams {
		return p, fmt.Errorf("calibration vector has %d values, want %d", len(x), NumParams)
	}
	copy(p[:], x)
	return p, nil
}

// New builds Params from a center and a symmetric matrix.
func New(center r3.Vector, a mat.Symmetric) Params {
	return Params{
		center.X, center.Y, center.Z,
		a.At(0, 0), a.At(0, 1), a.At(0, 2),
		a.At(1, 1), a.At(1, 2),
		a.At(2, 2),
	}
}

// Slice returns the vector as a new slice.
func (p Params) Slice() []float64 {
	out := make([]float64, NumParams)
	copy(out, p[:])
	return out
}

// Center returns the ellipsoid center (hard-iron offset).
func (p Params) Center() r3.Vector {
	return r3.Vector{X: p[IdxCX], Y: p[IdxCY], Z: p[IdxCZ]}
}

// Matrix returns A with the off-diagonal entries mirrored.
func (p Params) Matrix() *mat.SymDense {
	return mat.NewSymDense(3, []float64{
		p[IdxA00], p[IdxA01], p[IdxA02],
		p[IdxA01], p[IdxA11], p[IdxA12],
		p[IdxA02], p[IdxA12], p[IdxA22],
	})
}

// Valid reports whether A is positive definite, i.e. whether the vector
// describes a real ellipsoid rather than a degenerate or hyperbolic surface.
func (p Params) Valid() bool {
	var chol mat.Cholesky
	return chol.Factorize(p.Matrix())
}

// String formats the vector for log lines.
func (p Params) String() string {
	return fmt.Sprintf("c=(%.6g, %.6g, %.6g) A=[%.6g %.6g %.6g; %.6g %.6g; %.6g]",
		p[IdxCX], p[IdxCY], p[IdxCZ],
		p[IdxA00], p[IdxA01], p[IdxA02],
		p[IdxA11], p[IdxA12],
		p[IdxA22])
}

// FromDistortion returns the calibration of a sensor whose readings are
// x = offset + M·u for unit vectors u. Then A = (M Mᵀ)⁻¹.
func FromDistortion(offset r3.Vector, m mat.Matrix) (Params, error) {
	var mmt mat.Dense
	mmt.Mul(m, m.T())

	var inv mat.Dense
	if err := inv.Inverse(&mmt); err != nil {
		return Params{}, fmt.Errorf("distortion matrix is singular: %w", err)
	}

	a := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			a.SetSym(i, j, 0.5*(inv.At(i, j)+inv.At(j, i)))
		}
	}
	return New(offset, a), nil
}
