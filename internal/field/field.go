// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package field is the complex scalar field living on the lattice.
package field

import (
	"errors"
	"fmt"
	"math"

	"github.com/pointlander/lattice/internal/cnum"
	"github.com/pointlander/lattice/internal/lattice"
	"github.com/pointlander/lattice/internal/rng"
)

// ErrGeometryMismatch is returned when two fields of different lattices meet
var ErrGeometryMismatch = errors.New("field geometry mismatch")

// Field is one complex value per lattice site. The buffer is allocated once
// and never resized; sites are only addressed through the lattice index.
type Field struct {
	geometry lattice.Geometry
	values   []complex128
}

// New allocates a zero field on g
func New(g lattice.Geometry) *Field {
	return &Field{
		geometry: g,
		values:   make([]complex128, g.Volume()),
	}
}

// Geometry is the lattice of the field
func (f *Field) Geometry() lattice.Geometry {
	return f.geometry
}

// At is the value at (t,x,y,z)
func (f *Field) At(t, x, y, z int) complex128 {
	return f.values[f.geometry.Index(t, x, y, z)]
}

// Set stores v at (t,x,y,z)
func (f *Field) Set(t, x, y, z int, v complex128) {
	f.values[f.geometry.Index(t, x, y, z)] = v
}

// Get is the value at a linear offset obtained from the lattice index
func (f *Field) Get(index int) complex128 {
	return f.values[index]
}

// Initialize puts every site on the unit circle at a uniformly random phase
func (f *Field) Initialize(stream rng.Stream) {
	f.geometry.Sites(func(s lattice.Site) {
		theta := 2 * math.Pi * stream.Float64()
		f.values[f.geometry.IndexOf(s)] = complex(math.Cos(theta), math.Sin(theta))
	})
}

// CopySite overwrites one site of dst with the same site of src
func CopySite(dst, src *Field, t, x, y, z int) {
	i := dst.geometry.Index(t, x, y, z)
	dst.values[i] = src.values[i]
}

// CopyFrom overwrites every site of f with src
func (f *Field) CopyFrom(src *Field) error {
	if f.geometry != src.geometry {
		return fmt.Errorf("%w: %v and %v", ErrGeometryMismatch, f.geometry, src.geometry)
	}
	copy(f.values, src.values)
	return nil
}

// Clone is a deep copy of f
func (f *Field) Clone() *Field {
	c := New(f.geometry)
	copy(c.values, f.values)
	return c
}

// Propose shifts the real and imaginary parts of one site independently by a
// uniform amount in [-step, step]. Draw order is real then imaginary.
func (f *Field) Propose(stream rng.Stream, step float64, t, x, y, z int) {
	i := f.geometry.Index(t, x, y, z)
	re := real(f.values[i]) - step + 2*step*stream.Float64()
	im := imag(f.values[i]) - step + 2*step*stream.Float64()
	f.values[i] = complex(re, im)
}

// MeanAbs2 is the lattice average of |phi|^2
func (f *Field) MeanAbs2() float64 {
	sum := 0.0
	for _, v := range f.values {
		sum += cnum.Abs2(v)
	}
	return sum / float64(len(f.values))
}
