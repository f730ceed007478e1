// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rng

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draw(s Stream, n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = s.Float64()
	}
	return values
}

func TestSeedPerWorker(t *testing.T) {
	m := NewManager(4, 10)
	require.Equal(t, 4, m.Size())
	for w := 0; w < m.Size(); w++ {
		expected := rand.New(rand.NewSource(int64(10 + w)))
		for i := 0; i < 16; i++ {
			assert.Equal(t, expected.Float64(), m.Stream(w).Float64())
		}
	}
}

func TestIndependentOfOtherWorkers(t *testing.T) {
	a := NewManager(2, 3)
	b := NewManager(2, 3)
	draw(b.Stream(0), 100)
	assert.Equal(t, draw(a.Stream(1), 20), draw(b.Stream(1), 20))
}

func TestReseed(t *testing.T) {
	m := NewManager(2, 0)
	first := draw(m.Stream(1), 8)
	m.Reseed(0)
	assert.Equal(t, first, draw(m.Stream(1), 8))
	assert.Equal(t, int64(0), m.Base())
	m.Reseed(7)
	assert.Equal(t, int64(7), m.Base())
	assert.NotEqual(t, first, draw(m.Stream(1), 8))
}

func TestRanges(t *testing.T) {
	s := NewManager(1, 0).Stream(0)
	for i := 0; i < 1000; i++ {
		n := s.IntN(5)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 5)
		u := s.Float64()
		assert.GreaterOrEqual(t, u, 0.0)
		assert.Less(t, u, 1.0)
	}
}

func TestConcurrentWorkers(t *testing.T) {
	m := NewManager(4, 1)
	results := make([][]float64, m.Size())
	var wg sync.WaitGroup
	for w := 0; w < m.Size(); w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			results[w] = draw(m.Stream(w), 256)
		}(w)
	}
	wg.Wait()
	serial := NewManager(4, 1)
	for w := range results {
		assert.Equal(t, draw(serial.Stream(w), 256), results[w])
	}
}

func TestUnknownWorkerPanics(t *testing.T) {
	m := NewManager(2, 0)
	assert.Panics(t, func() { m.Stream(2) })
}
