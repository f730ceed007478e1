// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rng provides one independent seeded random stream per worker.
package rng

import (
	"fmt"
	"math/rand"
)

// Stream is a source of uniform draws owned by a single worker
type Stream interface {
	// IntN is uniform in [0, n)
	IntN(n int) int
	// Float64 is uniform in [0, 1)
	Float64() float64
}

// Provider hands a worker its stream
type Provider interface {
	Stream(worker int) Stream
}

// source wraps a math/rand generator
type source struct {
	*rand.Rand
}

// IntN is uniform in [0, n)
func (s source) IntN(n int) int {
	return s.Intn(n)
}

// Manager owns one generator per worker. Worker i is seeded with base+i.
// A stream must only be used by the worker it belongs to.
type Manager struct {
	streams []source
	base    int64
}

// NewManager creates streams for workers seeded from base
func NewManager(workers int, base int64) *Manager {
	if workers < 1 {
		workers = 1
	}
	m := &Manager{
		streams: make([]source, workers),
	}
	for i := range m.streams {
		m.streams[i] = source{Rand: rand.New(rand.NewSource(0))}
	}
	m.Reseed(base)
	return m
}

// Reseed resets every stream to base+worker
func (m *Manager) Reseed(base int64) {
	m.base = base
	for i := range m.streams {
		m.streams[i].Seed(base + int64(i))
	}
}

// Base is the seed of stream 0
func (m *Manager) Base() int64 {
	return m.base
}

// Size is the number of streams
func (m *Manager) Size() int {
	return len(m.streams)
}

// Stream returns the stream of a worker; it panics for an unknown worker
func (m *Manager) Stream(worker int) Stream {
	if worker < 0 || worker >= len(m.streams) {
		panic(fmt.Sprintf("rng: no stream for worker %d of %d", worker, len(m.streams)))
	}
	return m.streams[worker]
}
