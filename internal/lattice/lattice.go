// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lattice maps periodic 4D coordinates (t,x,y,z) onto offsets of a
// flat field buffer and partitions the time extent between workers.
//
// The layout is ((x*Y+y)*Z+z)*T+t, so t varies fastest. Every package that
// reads or writes a field goes through Index; none of them knows the layout.
package lattice

import (
	"errors"
	"fmt"
)

// ErrGeometry is returned for extents that cannot form a lattice
var ErrGeometry = errors.New("invalid lattice geometry")

// Geometry is the extent of the lattice in each direction
type Geometry struct {
	T, X, Y, Z int
}

// Site is one lattice point
type Site struct {
	T, X, Y, Z int
}

// Validate checks that every extent is positive
func (g Geometry) Validate() error {
	if g.T < 1 || g.X < 1 || g.Y < 1 || g.Z < 1 {
		return fmt.Errorf("%w: extents %dx%dx%dx%d must be positive", ErrGeometry, g.T, g.X, g.Y, g.Z)
	}
	return nil
}

// Volume is the number of sites
func (g Geometry) Volume() int {
	return g.T * g.X * g.Y * g.Z
}

// SpatialVolume is the number of sites in one time slice
func (g Geometry) SpatialVolume() int {
	return g.X * g.Y * g.Z
}

// String formats the geometry the way configuration files are named
func (g Geometry) String() string {
	return fmt.Sprintf("%d_%d_%d_%d", g.X, g.Y, g.Z, g.T)
}

func wrap(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}

// Index returns the offset of (t,x,y,z); out of range coordinates wrap around
func (g Geometry) Index(t, x, y, z int) int {
	t, x, y, z = wrap(t, g.T), wrap(x, g.X), wrap(y, g.Y), wrap(z, g.Z)
	return ((x*g.Y+y)*g.Z+z)*g.T + t
}

// IndexOf returns the offset of a site
func (g Geometry) IndexOf(s Site) int {
	return g.Index(s.T, s.X, s.Y, s.Z)
}

// Coord is the inverse of Index for offsets in [0, Volume)
func (g Geometry) Coord(index int) Site {
	t := index % g.T
	index /= g.T
	z := index % g.Z
	index /= g.Z
	y := index % g.Y
	x := index / g.Y
	return Site{T: t, X: x, Y: y, Z: z}
}

// Sites calls visit for every site in t, x, y, z loop order
func (g Geometry) Sites(visit func(s Site)) {
	for t := 0; t < g.T; t++ {
		for x := 0; x < g.X; x++ {
			for y := 0; y < g.Y; y++ {
				for z := 0; z < g.Z; z++ {
					visit(Site{T: t, X: x, Y: y, Z: z})
				}
			}
		}
	}
}

// Forward returns the four forward neighbours t+1, x+1, y+1, z+1
func (g Geometry) Forward(t, x, y, z int) [4]int {
	return [4]int{
		g.Index(t+1, x, y, z),
		g.Index(t, x+1, y, z),
		g.Index(t, x, y+1, z),
		g.Index(t, x, y, z+1),
	}
}

// Neighbors returns all eight nearest neighbours, forward then backward
func (g Geometry) Neighbors(t, x, y, z int) [8]int {
	return [8]int{
		g.Index(t+1, x, y, z),
		g.Index(t, x+1, y, z),
		g.Index(t, x, y+1, z),
		g.Index(t, x, y, z+1),
		g.Index(t-1, x, y, z),
		g.Index(t, x-1, y, z),
		g.Index(t, x, y-1, z),
		g.Index(t, x, y, z-1),
	}
}
