// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ellipsoid

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/magnetometer_calibration/internal/samples"
)

func fromVec(v r3.Vector) samples.Sample { return samples.FromVector(v) }

func TestResidualUsesFullSymmetricMatrix(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := skewedEllipsoid()
	a := p.Matrix()

	for i := 0; i < 50; i++ {
		s := samples.Sample{X: rng.NormFloat64() * 3, Y: rng.NormFloat64() * 3, Z: rng.NormFloat64() * 3}
		d := s.Vector().Sub(p.Center())
		dv := mat.NewVecDense(3, []float64{d.X, d.Y, d.Z})
		want := mat.Inner(dv, a, dv) - 1
		assert.InDelta(t, want, residual(p[:], s), 1e-12)
	}
}

func TestCostZeroAtExactCalibration(t *testing.T) {
	sphere := Params{1, 2, 3, 1, 0, 0, 1, 0, 1}
	tests := []struct {
		name string
		p    Params
		n    int
	}{
		{"offset unit sphere", sphere, 1},
		{"offset unit sphere many", sphere, 200},
		{"skewed ellipsoid", skewedEllipsoid(), 64},
		{"small field", Params{0.02, -0.01, 0.03, 400, 10, 0, 350, -5, 420}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts := surfacePoints(t, tt.p, tt.n)
			m := NewCostModel(pts, 0)
			assert.InDelta(t, 0, m.Cost(tt.p[:]), 1e-20)
		})
	}
}

func TestCostFaceScenario(t *testing.T) {
	pts := []samples.Sample{
		{X: 0, Y: 2, Z: 3}, {X: 2, Y: 2, Z: 3},
		{X: 1, Y: 1, Z: 3}, {X: 1, Y: 3, Z: 3},
		{X: 1, Y: 2, Z: 2}, {X: 1, Y: 2, Z: 4},
	}
	m := NewCostModel(pts, 0)
	assert.Equal(t, 0.0, m.Cost([]float64{1, 2, 3, 1, 0, 0, 1, 0, 1}))
	assert.Greater(t, m.Cost(Initial().Slice()), 0.0)
}

func TestCostIsSumNotMean(t *testing.T) {
	pts := surfacePoints(t, skewedEllipsoid(), 20)
	x := Initial().Slice()

	single := NewCostModel(pts, 0).Cost(x)
	doubled := NewCostModel(append(append([]samples.Sample{}, pts...), pts...), 0).Cost(x)
	assert.InDelta(t, 2*single, doubled, 1e-9*single)
}

func TestEmptyModel(t *testing.T) {
	m := NewCostModel(nil, 0)
	rng := rand.New(rand.NewSource(3))
	grad := make([]float64, NumParams)
	for i := 0; i < 10; i++ {
		x := make([]float64, NumParams)
		for k := range x {
			x[k] = rng.NormFloat64() * 10
		}
		assert.Equal(t, 0.0, m.Cost(x))
		m.Gradient(grad, x)
		for _, g := range grad {
			assert.Equal(t, 0.0, g)
		}
	}
	assert.Equal(t, 0, m.NumResiduals())
}

func TestCostNonFiniteSample(t *testing.T) {
	m := NewCostModel([]samples.Sample{{X: 1}, {X: math.NaN()}}, 0)
	assert.True(t, math.IsNaN(m.Cost(Initial().Slice())))

	m = NewCostModel([]samples.Sample{{Y: math.Inf(1)}}, 0)
	c := m.Cost(Initial().Slice())
	assert.True(t, math.IsNaN(c) || math.IsInf(c, 0), "cost %v", c)
}

func TestDefaultPerturbation(t *testing.T) {
	assert.Equal(t, DefaultPerturbation, NewCostModel(nil, 0).Perturbation())
	assert.Equal(t, 1e-5, NewCostModel(nil, 1e-5).Perturbation())
}

func TestGradientMatchesAnalytic(t *testing.T) {
	pts := surfacePoints(t, Params{1, 2, 3, 1, 0, 0, 1, 0, 1}, 26)
	m := NewCostModel(pts, 0)

	for _, p := range []Params{Initial(), skewedEllipsoid(), {0.9, 2.1, 2.8, 1.1, 0.05, 0, 0.95, -0.02, 1.02}} {
		x := p.Slice()

		var want [NumParams]float64
		for _, s := range pts {
			r := residual(x, s)
			row := analyticJacobianRow(p, s)
			for k := range want {
				want[k] += 2 * r * row[k]
			}
		}

		got := make([]float64, NumParams)
		m.Gradient(got, x)
		for k := range want {
			assert.InDelta(t, want[k], got[k], 1e-2+1e-5*math.Abs(want[k]), "param %d at %v", k, p)
		}

		// Central differences have O(h²) error and sit closer to the analytic value.
		central := fd.Gradient(nil, m.Cost, x, &fd.Settings{Formula: fd.Central, Step: 1e-5})
		for k := range central {
			assert.InDelta(t, central[k], got[k], 1e-2+1e-5*math.Abs(central[k]), "param %d", k)
		}
	}
}

func TestJacobianMatchesAnalytic(t *testing.T) {
	pts := surfacePoints(t, skewedEllipsoid(), 15)
	m := NewCostModel(pts, 0)
	p := Params{0.5, -0.2, 0.1, 1, 0.1, 0, 1.2, 0, 0.9}

	jac := mat.NewDense(len(pts), NumParams, nil)
	m.Jacobian(jac, p.Slice())

	for i, s := range pts {
		row := analyticJacobianRow(p, s)
		for k := range row {
			assert.InDelta(t, row[k], jac.At(i, k), 1e-4, "row %d param %d", i, k)
		}
	}
}

func TestGradientConsistentWithJacobian(t *testing.T) {
	pts := surfacePoints(t, skewedEllipsoid(), 12)
	m := NewCostModel(pts, 0)
	x := Initial().Slice()

	jac := mat.NewDense(len(pts), NumParams, nil)
	m.Jacobian(jac, x)
	r := make([]float64, len(pts))
	m.Residuals(r, x)

	var jtr mat.VecDense
	jtr.MulVec(jac.T(), mat.NewVecDense(len(r), r))

	grad := make([]float64, NumParams)
	m.Gradient(grad, x)
	for k := range grad {
		assert.InDelta(t, 2*jtr.AtVec(k), grad[k], 1e-3*(1+math.Abs(grad[k])))
	}
}

func TestGradientConcurrentCalls(t *testing.T) {
	pts := surfacePoints(t, skewedEllipsoid(), 50)
	m := NewCostModel(pts, 0)
	x := Initial().Slice()

	want := make([]float64, NumParams)
	m.Gradient(want, x)

	var wg sync.WaitGroup
	results := make([][]float64, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g := make([]float64, NumParams)
			m.Gradient(g, x)
			results[i] = g
		}(i)
	}
	wg.Wait()

	for _, g := range results {
		require.Equal(t, want, g)
	}
	assert.Equal(t, Initial().Slice(), x, "gradient must not modify its input")
}

func TestBlocksPartitionParams(t *testing.T) {
	m := NewCostModel(nil, 0)
	seen := make(map[int]bool)
	for _, b := range m.Blocks() {
		for _, i := range b {
			assert.False(t, seen[i], "index %d in two blocks", i)
			seen[i] = true
		}
	}
	assert.Len(t, seen, NumParams)
}

func TestResidualLinearInMatrixBlock(t *testing.T) {
	pts := []samples.Sample{{X: 1, Y: -2, Z: 0.5}, {X: -3, Y: 0.2, Z: 4}, {X: 0, Y: 0, Z: -1}}
	m := NewCostModel(pts, 0)
	p, q := skewedEllipsoid(), Initial()
	q[IdxCX], q[IdxCY], q[IdxCZ] = p[IdxCX], p[IdxCY], p[IdxCZ]

	sum := p
	for _, i := range m.Blocks()[1] {
		sum[i] += q[i]
	}

	rp, rq, rs := make([]float64, 3), make([]float64, 3), make([]float64, 3)
	m.Residuals(rp, p[:])
	m.Residuals(rq, q[:])
	m.Residuals(rs, sum[:])
	for i := range pts {
		assert.InDelta(t, (rp[i]+1)+(rq[i]+1), rs[i]+1, 1e-9)
	}
}
