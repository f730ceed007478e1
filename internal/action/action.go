// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package action evaluates the Euclidean lattice action
//
//	S = sum_x [ lambda (|phi_x|^2 - 1)^2 + |phi_x|^2 - 2 kappa sum_mu Re(phi_x^* phi_x+mu) ]
//
// globally, and the change of S caused by replacing the value of one site.
package action

import (
	"math"

	"github.com/pointlander/lattice/internal/cnum"
	"github.com/pointlander/lattice/internal/field"
)

// Couplings are the lattice parameters of the action
type Couplings struct {
	Lambda float64 `yaml:"lambda"`
	Kappa  float64 `yaml:"kappa"`
}

// FromBare derives the lattice couplings from the bare mass squared and the
// bare quartic coupling. Both branches are roots of the same quadratic; the
// alternate root is taken when the principal kappa falls outside [0, 1].
func FromBare(mass2, lambdaC float64) Couplings {
	a := 8 + mass2
	root := math.Sqrt(8*lambdaC + a*a)
	c := Couplings{
		Lambda: (4*lambdaC - a*(-a+root)) / (8 * lambdaC),
		Kappa:  (-a + root) / (4 * lambdaC),
	}
	if c.Kappa < 0 || c.Kappa > 1 {
		c = Couplings{
			Lambda: (4*lambdaC + a*(a+root)) / (8 * lambdaC),
			Kappa:  (-a - root) / (4 * lambdaC),
		}
	}
	return c
}

// Evaluator computes the action for fixed couplings
type Evaluator struct {
	Couplings
}

// New creates an evaluator
func New(c Couplings) *Evaluator {
	return &Evaluator{Couplings: c}
}

func (e *Evaluator) potential(v complex128) float64 {
	rho := cnum.Abs2(v)
	return e.Lambda*(rho-1)*(rho-1) + rho
}

// Global is the action of the whole field, with hopping terms over the four
// forward directions so every link is counted once.
func (e *Evaluator) Global(f *field.Field) float64 {
	g := f.Geometry()
	action := 0.0
	for t := 0; t < g.T; t++ {
		for x := 0; x < g.X; x++ {
			for y := 0; y < g.Y; y++ {
				for z := 0; z < g.Z; z++ {
					v := f.Get(g.Index(t, x, y, z))
					action += e.potential(v)
					conj := cnum.Conj(v)
					hop := 0.0
					for _, n := range g.Forward(t, x, y, z) {
						hop += real(conj * f.Get(n))
					}
					action += -2 * e.Kappa * hop
				}
			}
		}
	}
	return action
}

// Local is the part of the action that depends on the site (t,x,y,z): its
// potential and its links to all eight neighbours.
func (e *Evaluator) Local(f *field.Field, t, x, y, z int) float64 {
	g := f.Geometry()
	v := f.Get(g.Index(t, x, y, z))
	conj := cnum.Conj(v)
	hop := 0.0
	for _, n := range g.Neighbors(t, x, y, z) {
		hop += real(conj * f.Get(n))
	}
	return e.potential(v) - 2*e.Kappa*hop
}

// Delta is S(proposal) - S(current) when the two fields differ only at
// (t,x,y,z). It costs O(1) regardless of the lattice volume.
func (e *Evaluator) Delta(current, proposal *field.Field, t, x, y, z int) float64 {
	return e.Local(proposal, t, x, y, z) - e.Local(current, t, x, y, z)
}
