// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cnum holds the complex arithmetic used by the field, the action
// and the correlators. Values are plain complex128.
package cnum

import "math/cmplx"

// One is the multiplicative identity
const One = complex(1, 0)

// Mul is the complex product
func Mul(a, b complex128) complex128 {
	return a * b
}

// Conj is the complex conjugate
func Conj(z complex128) complex128 {
	return complex(real(z), -imag(z))
}

// Sub subtracts b from a componentwise
func Sub(a, b complex128) complex128 {
	return complex(real(a)-real(b), imag(a)-imag(b))
}

// Abs2 is |z|^2
func Abs2(z complex128) float64 {
	return real(z)*real(z) + imag(z)*imag(z)
}

// Pow raises z to an integer power by repeated squaring.
// Pow(z, 0) is One; negative powers invert the positive power.
func Pow(z complex128, n int) complex128 {
	if n < 0 {
		return One / Pow(z, -n)
	}
	result := One
	for n > 0 {
		if n&1 == 1 {
			result *= z
		}
		z *= z
		n >>= 1
	}
	return result
}

// PowComplex is the principal value of z^w
func PowComplex(z, w complex128) complex128 {
	return cmplx.Pow(z, w)
}

// Phase is exp(i theta)
func Phase(theta float64) complex128 {
	return cmplx.Rect(1, theta)
}
