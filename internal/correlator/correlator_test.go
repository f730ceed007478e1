// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package correlator

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointlander/lattice/internal/field"
	"github.com/pointlander/lattice/internal/lattice"
	"github.com/pointlander/lattice/internal/rng"
)

var geometry = lattice.Geometry{T: 8, X: 3, Y: 2, Z: 2}

func near(t *testing.T, want, got complex128, msg ...interface{}) {
	t.Helper()
	assert.InDelta(t, real(want), real(got), 1e-10, msg...)
	assert.InDelta(t, imag(want), imag(got), 1e-10, msg...)
}

func randomField(seed int64) *field.Field {
	f := field.New(geometry)
	stream := rng.NewManager(1, seed).Stream(0)
	f.Initialize(stream)
	geometry.Sites(func(s lattice.Site) {
		f.Propose(stream, 0.5, s.T, s.X, s.Y, s.Z)
	})
	return f
}

func fill(value func(s lattice.Site) complex128) *field.Field {
	f := field.New(geometry)
	geometry.Sites(func(s lattice.Site) {
		f.Set(s.T, s.X, s.Y, s.Z, value(s))
	})
	return f
}

// bruteForce evaluates the correlator straight from its definition
func bruteForce(f *field.Field, n, dt int, p [3]int) complex128 {
	g := f.Geometry()
	project := func(t int) complex128 {
		sum := complex128(0)
		for x := 0; x < g.X; x++ {
			for y := 0; y < g.Y; y++ {
				for z := 0; z < g.Z; z++ {
					theta := 2 * math.Pi * (float64(p[0]*x)/float64(g.X) + float64(p[1]*y)/float64(g.Y) + float64(p[2]*z)/float64(g.Z))
					sum += cmplx.Exp(complex(0, theta)) * f.At(t, x, y, z)
				}
			}
		}
		return sum / complex(float64(g.SpatialVolume()), 0)
	}
	corr := complex128(0)
	for t1 := 0; t1 < g.T; t1++ {
		sink := cmplx.Pow(project(t1), complex(float64(n), 0))
		source := cmplx.Pow(project((t1+dt)%g.T), complex(float64(n), 0))
		corr += source * cmplx.Conj(sink) / complex(float64(g.T), 0)
	}
	return corr
}

func TestCorrelateMatchesDefinition(t *testing.T) {
	f := randomField(1)
	r := New(geometry)
	for _, p := range [][3]int{{0, 0, 0}, {1, 0, 0}, {1, 1, 1}} {
		r.SetMomentum(p)
		for n := 1; n <= 3; n++ {
			for dt := 0; dt < geometry.T; dt++ {
				near(t, bruteForce(f, n, dt, p), r.Correlate(f, n, dt), "p=%v n=%d dt=%d", p, n, dt)
			}
		}
	}
}

func TestUniformField(t *testing.T) {
	c := complex(0.6, -0.3)
	f := fill(func(lattice.Site) complex128 { return c })
	r := New(geometry)
	abs2 := real(c)*real(c) + imag(c)*imag(c)
	for n := 1; n <= 5; n++ {
		for _, v := range r.Series(f, n) {
			near(t, complex(math.Pow(abs2, float64(n)), 0), v)
		}
	}
	r.SetMomentum([3]int{1, 0, 0})
	near(t, 0, r.Slice(f, 0))

	r.Derivative = true
	r.SetMomentum([3]int{})
	for _, v := range r.Series(f, 2) {
		near(t, 0, v)
	}
}

func TestPhaseConvention(t *testing.T) {
	omega := 2 * math.Pi / float64(geometry.T)
	f := fill(func(s lattice.Site) complex128 { return cmplx.Exp(complex(0, omega*float64(s.T))) })
	r := New(geometry)
	for dt := 0; dt < geometry.T; dt++ {
		near(t, cmplx.Exp(complex(0, omega*float64(dt))), r.Correlate(f, 1, dt))
	}
}

func TestMomentumProjection(t *testing.T) {
	f := fill(func(s lattice.Site) complex128 {
		return complex(float64(s.T+1), 0) * cmplx.Exp(complex(0, 2*math.Pi*float64(s.X)/float64(geometry.X)))
	})
	r := New(geometry)
	r.SetMomentum([3]int{-1, 0, 0})
	for ts := 0; ts < geometry.T; ts++ {
		near(t, complex(float64(ts+1), 0), r.Slice(f, ts))
	}
}

func TestSeriesReflection(t *testing.T) {
	f := randomField(2)
	for _, derivative := range []bool{false, true} {
		r := New(geometry)
		r.Derivative = derivative
		for n := 1; n <= 3; n++ {
			series := r.Series(f, n)
			require.Len(t, series, geometry.T)
			for dt := 1; dt < geometry.T/2; dt++ {
				assert.Equal(t, series[dt], series[geometry.T-dt])
			}
			for dt := 0; dt <= geometry.T/2; dt++ {
				near(t, r.Value(f, n, dt), series[dt])
			}
		}
	}
}

func TestDerivative(t *testing.T) {
	f := randomField(3)
	r := New(geometry)
	r.Derivative = true
	for dt := 0; dt <= geometry.T/2; dt++ {
		want := r.Correlate(f, 2, dt) - r.Correlate(f, 2, dt+1)
		near(t, want, r.Value(f, 2, dt))
	}
}

func TestReflectOddLength(t *testing.T) {
	series := []complex128{1, 2, 3, 0, 0}
	Reflect(series)
	assert.Equal(t, []complex128{1, 2, 3, 3, 2}, series)
}

func TestEnsemble(t *testing.T) {
	e := NewEnsemble(2)
	require.NoError(t, e.Add([]complex128{1, complex(0, 2)}))
	require.NoError(t, e.Add([]complex128{3, complex(0, 4)}))
	assert.Error(t, e.Add([]complex128{1}))
	assert.Equal(t, 2, e.Len())
	assert.Equal(t, []complex128{2, complex(0, 3)}, e.Mean())
	re, im := e.StdErr()
	assert.InDelta(t, 1.0, re[0], 1e-12)
	assert.InDelta(t, 0.0, im[0], 1e-12)
	assert.InDelta(t, 1.0, im[1], 1e-12)
}
