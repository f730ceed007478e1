// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package correlator

import (
	"fmt"

	"github.com/pointlander/lattice/internal/observable"
)

// Ensemble accumulates correlator series over configurations
type Ensemble struct {
	re, im [][]float64
	count  int
}

// NewEnsemble creates an accumulator for series of length T
func NewEnsemble(T int) *Ensemble {
	return &Ensemble{
		re: make([][]float64, T),
		im: make([][]float64, T),
	}
}

// Add accumulates one series
func (e *Ensemble) Add(series []complex128) error {
	if len(series) != len(e.re) {
		return fmt.Errorf("series of length %d in an ensemble of length %d", len(series), len(e.re))
	}
	for dt, v := range series {
		e.re[dt] = append(e.re[dt], real(v))
		e.im[dt] = append(e.im[dt], imag(v))
	}
	e.count++
	return nil
}

// Len is the number of series added
func (e *Ensemble) Len() int {
	return e.count
}

// Mean is the ensemble average per dt
func (e *Ensemble) Mean() []complex128 {
	mean := make([]complex128, len(e.re))
	for dt := range mean {
		mean[dt] = complex(observable.Mean(e.re[dt]), observable.Mean(e.im[dt]))
	}
	return mean
}

// StdErr is the standard error of the real and imaginary parts per dt
func (e *Ensemble) StdErr() (re, im []float64) {
	re = make([]float64, len(e.re))
	im = make([]float64, len(e.im))
	for dt := range re {
		re[dt] = observable.StdErr(e.re[dt])
		im[dt] = observable.StdErr(e.im[dt])
	}
	return re, im
}
