// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ellipsoid

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/magnetometer_calibration/internal/samples"
)

// ErrNotPositiveDefinite is returned when A does not describe an ellipsoid.
var ErrNotPositiveDefinite = errors.New("ellipsoid: matrix A is not positive definite")

// Correction maps raw readings onto the unit sphere:
//
//	corrected = W (raw - Offset),  W = A^(1/2)
type Correction struct {
	Offset   r3.Vector
	SoftIron *mat.SymDense // W
	inverse  *mat.SymDense // W⁻¹
}

// Correction builds the hard/soft-iron correction for p.
func (p Params) Correction() (*Correction, error) {
	var es mat.EigenSym
	if !es.Factorize(p.Matrix(), true) {
		return nil, errors.New("ellipsoid: eigendecomposition of A failed")
	}
	vals := es.Values(nil)
	for _, v := range vals {
		if v <= 0 {
			return nil, ErrNotPositiveDefinite
		}
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	return &Correction{
		Offset:   p.Center(),
		SoftIron: symFunc(&vecs, vals, math.Sqrt),
		inverse:  symFunc(&vecs, vals, func(v float64) float64 { return 1 / math.Sqrt(v) }),
	}, nil
}

// symFunc returns V·diag(f(λ))·Vᵀ.
func symFunc(vecs *mat.Dense, vals []float64, f func(float64) float64) *mat.SymDense {
	out := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			var sum float64
			for k, v := range vals {
				sum += vecs.At(i, k) * f(v) * vecs.At(j, k)
			}
			out.SetSym(i, j, sum)
		}
	}
	return out
}

// Apply returns the corrected reading. A perfectly calibrated reading has unit norm.
func (c *Correction) Apply(s samples.Sample) r3.Vector {
	return mulSym(c.SoftIron, s.Vector().Sub(c.Offset))
}

// Invert maps a point of the unit sphere back to a raw reading.
func (c *Correction) Invert(u r3.Vector) samples.Sample {
	return samples.FromVector(mulSym(c.inverse, u).Add(c.Offset))
}

func mulSym(m mat.Symmetric, v r3.Vector) r3.Vector {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}
