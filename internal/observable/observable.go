// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package observable holds ensemble statistics and reference values for the
// sampler.
package observable

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/stat"

	"github.com/pointlander/lattice/internal/action"
)

// Mean is the sample mean
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return stat.Mean(samples, nil)
}

// StdErr is the standard error of the mean, ignoring autocorrelation
func StdErr(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	return stat.StdErr(stat.StdDev(samples, nil), float64(len(samples)))
}

const (
	// width of the rho panels integrated separately
	panel = 0.1
	// Gauss-Legendre nodes per panel
	nodes = 20
)

// SingleSiteMoment is <|phi|^(2k)> of one site decoupled from its neighbours
// (kappa = 0), where the weight of rho = |phi|^2 is exp(-lambda (rho-1)^2 - rho).
// The angular integral is uniform so only rho is integrated. It is NaN for a
// negative lambda, where the weight is not normalizable.
func SingleSiteMoment(c action.Couplings, k int) float64 {
	lambda := c.Lambda
	if lambda < 0 {
		return math.NaN()
	}
	s := func(rho float64) float64 {
		return lambda*(rho-1)*(rho-1) + rho
	}
	minimum := 0.0
	if lambda > 0.5 {
		minimum = 1 - 1/(2*lambda)
	}
	shift := s(minimum)
	upper := minimum + 1
	for s(upper)-shift < 80 {
		upper++
	}

	weight := func(rho float64) float64 {
		return math.Exp(-(s(rho) - shift))
	}
	moment := func(rho float64) float64 {
		return math.Pow(rho, float64(k)) * weight(rho)
	}
	numerator, denominator := 0.0, 0.0
	panels := int(math.Ceil(upper / panel))
	for i := 0; i < panels; i++ {
		a, b := float64(i)*panel, float64(i+1)*panel
		numerator += quad.Fixed(moment, a, b, nodes, quad.Legendre{}, 0)
		denominator += quad.Fixed(weight, a, b, nodes, quad.Legendre{}, 0)
	}
	return numerator / denominator
}
