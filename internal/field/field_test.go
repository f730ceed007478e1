// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package field

import (
	"bytes"
	"errors"
	"math/cmplx"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointlander/lattice/internal/lattice"
	"github.com/pointlander/lattice/internal/rng"
)

var small = lattice.Geometry{T: 4, X: 2, Y: 3, Z: 2}

func random(seed int64) *Field {
	f := New(small)
	f.Initialize(rng.NewManager(1, seed).Stream(0))
	return f
}

func TestInitializeUnitCircle(t *testing.T) {
	f := random(0)
	small.Sites(func(s lattice.Site) {
		assert.InDelta(t, 1.0, cmplx.Abs(f.At(s.T, s.X, s.Y, s.Z)), 1e-12)
	})
	assert.InDelta(t, 1.0, f.MeanAbs2(), 1e-12)
	assert.Equal(t, random(0), f)
	assert.NotEqual(t, random(1), f)
}

func TestCopy(t *testing.T) {
	a, b := random(1), random(2)
	CopySite(a, b, 1, 0, 2, 1)
	assert.Equal(t, b.At(1, 0, 2, 1), a.At(1, 0, 2, 1))
	assert.NotEqual(t, b.At(0, 0, 0, 0), a.At(0, 0, 0, 0))

	require.NoError(t, a.CopyFrom(b))
	assert.Equal(t, b, a)

	other := New(lattice.Geometry{T: 2, X: 2, Y: 2, Z: 2})
	assert.True(t, errors.Is(other.CopyFrom(a), ErrGeometryMismatch))

	c := a.Clone()
	c.Set(0, 0, 0, 0, 42)
	assert.NotEqual(t, c.At(0, 0, 0, 0), a.At(0, 0, 0, 0))
}

func TestPropose(t *testing.T) {
	f := random(3)
	before := f.Clone()
	stream := rng.NewManager(1, 9).Stream(0)
	for i := 0; i < 200; i++ {
		site := f.At(2, 1, 1, 0)
		f.Propose(stream, 0.25, 2, 1, 1, 0)
		moved := f.At(2, 1, 1, 0)
		assert.LessOrEqual(t, abs(real(moved)-real(site)), 0.25)
		assert.LessOrEqual(t, abs(imag(moved)-imag(site)), 0.25)
	}
	small.Sites(func(s lattice.Site) {
		if s == (lattice.Site{T: 2, X: 1, Y: 1, Z: 0}) {
			return
		}
		assert.Equal(t, before.At(s.T, s.X, s.Y, s.Z), f.At(s.T, s.X, s.Y, s.Z))
	})
}

func abs(a float64) float64 {
	if a < 0 {
		return -a
	}
	return a
}

func TestRoundTrip(t *testing.T) {
	f := random(4)
	f.Set(1, 1, 1, 1, complex(-1.5e-7, 12345.678))
	var buffer bytes.Buffer
	require.NoError(t, f.Encode(&buffer))
	lines := strings.Split(strings.TrimSuffix(buffer.String(), "\n"), "\n")
	assert.Len(t, lines, small.Volume())
	assert.Len(t, strings.Fields(lines[0]), 6)

	g := New(small)
	require.NoError(t, g.Decode(&buffer))
	assert.Equal(t, f, g)
}

func TestDecodeFormat(t *testing.T) {
	f := New(small)
	f.Set(0, 0, 0, 0, 7)
	input := "1 2 1 3 0.5 -0.25\n\n0 0 0 -1 1 2\n"
	require.NoError(t, f.Decode(strings.NewReader(input)))
	assert.Equal(t, complex(0.5, -0.25), f.At(3, 1, 2, 1))
	assert.Equal(t, complex(1, 2), f.At(3, 0, 0, 0))
	assert.Equal(t, complex128(7), f.At(0, 0, 0, 0))
}

func TestDecodeMalformed(t *testing.T) {
	for _, input := range []string{
		"0 0 0 0 1\n",
		"0 0 a 0 1 1\n",
		"0 0 0 0 1 x\n",
		"0 0 0 0 y 1\n",
	} {
		f := New(small)
		err := f.Decode(strings.NewReader("1 1 1 1 3 3\n" + input))
		assert.True(t, errors.Is(err, ErrMalformedLine), "input %q", input)
		assert.Equal(t, complex128(0), f.At(1, 1, 1, 1), "partial decode of %q", input)
	}
}
