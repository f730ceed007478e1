// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package correlator projects field configurations onto n-particle operators
// and reduces them to time-dependent two-point functions.
package correlator

import (
	"math"

	"github.com/pointlander/lattice/internal/cnum"
	"github.com/pointlander/lattice/internal/field"
	"github.com/pointlander/lattice/internal/lattice"
)

// Reducer computes correlators for one lattice, momentum and mode
type Reducer struct {
	geometry lattice.Geometry
	// Momentum is the lattice momentum (px, py, pz) of the operator
	Momentum [3]int
	// Derivative reports C(dt) - C(dt+1) instead of C(dt)
	Derivative bool
	phases     []complex128
}

// New creates a reducer at zero momentum
func New(g lattice.Geometry) *Reducer {
	r := &Reducer{geometry: g}
	r.SetMomentum([3]int{})
	return r
}

// SetMomentum sets the momentum and tabulates exp(i 2 pi p.r/L) per spatial site
func (r *Reducer) SetMomentum(p [3]int) {
	g := r.geometry
	r.Momentum = p
	r.phases = make([]complex128, 0, g.SpatialVolume())
	for x := 0; x < g.X; x++ {
		for y := 0; y < g.Y; y++ {
			for z := 0; z < g.Z; z++ {
				theta := 2 * math.Pi * (float64(p[0]*x)/float64(g.X) +
					float64(p[1]*y)/float64(g.Y) + float64(p[2]*z)/float64(g.Z))
				r.phases = append(r.phases, cnum.Phase(theta))
			}
		}
	}
}

// Slice is the momentum-projected spatial average of phi at time t
func (r *Reducer) Slice(f *field.Field, t int) complex128 {
	g := r.geometry
	sum := complex128(0)
	i := 0
	for x := 0; x < g.X; x++ {
		for y := 0; y < g.Y; y++ {
			for z := 0; z < g.Z; z++ {
				sum += cnum.Mul(r.phases[i], f.At(t, x, y, z))
				i++
			}
		}
	}
	return sum / complex(float64(g.SpatialVolume()), 0)
}

func (r *Reducer) slices(f *field.Field) []complex128 {
	slices := make([]complex128, r.geometry.T)
	for t := range slices {
		slices[t] = r.Slice(f, t)
	}
	return slices
}

func (r *Reducer) correlate(slices []complex128, n, dt int) complex128 {
	T := len(slices)
	corr := complex128(0)
	for t1 := 0; t1 < T; t1++ {
		sink := cnum.Pow(slices[t1], n)
		source := cnum.Pow(slices[(t1+dt)%T], n)
		corr += cnum.Mul(source, cnum.Conj(sink))
	}
	return corr / complex(float64(T), 0)
}

// Correlate is the n-particle correlator at time separation dt, averaged over
// the source time. It ignores the derivative mode.
func (r *Reducer) Correlate(f *field.Field, n, dt int) complex128 {
	return r.correlate(r.slices(f), n, ((dt%r.geometry.T)+r.geometry.T)%r.geometry.T)
}

// value honours the derivative mode
func (r *Reducer) value(slices []complex128, n, dt int) complex128 {
	T := len(slices)
	if r.Derivative {
		return cnum.Sub(r.correlate(slices, n, dt%T), r.correlate(slices, n, (dt+1)%T))
	}
	return r.correlate(slices, n, dt%T)
}

// Value is the reported correlator of f at dt for 0 <= dt <= T/2
func (r *Reducer) Value(f *field.Field, n, dt int) complex128 {
	return r.value(r.slices(f), n, dt)
}

// Series is the reported correlator for every dt in [0, T). Values for
// dt in [0, T/2] are computed; the rest are reflected, series[T-dt] = series[dt].
func (r *Reducer) Series(f *field.Field, n int) []complex128 {
	slices := r.slices(f)
	T := r.geometry.T
	series := make([]complex128, T)
	for dt := 0; dt <= T/2; dt++ {
		series[dt] = r.value(slices, n, dt)
	}
	Reflect(series)
	return series
}

// Reflect fills the entries above T/2 with their mirror images below it
func Reflect(series []complex128) {
	T := len(series)
	for dt := T/2 + 1; dt < T; dt++ {
		series[dt] = series[T-dt]
	}
}
