// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lattice

import (
	"errors"
	"fmt"
)

// ErrWorkerCount is returned when the worker count cannot checkerboard T
var ErrWorkerCount = errors.New("invalid worker count")

// ErrOverlap is returned when two concurrently active ranges intersect
var ErrOverlap = errors.New("worker ranges overlap")

// Parity selects the odd or even time slices of a pass
type Parity int

const (
	// Odd time slices are updated first
	Odd Parity = iota
	// Even time slices are updated second
	Even
)

// Passes is the fixed order of a macro-step
var Passes = [2]Parity{Odd, Even}

// Matches reports whether t has this parity
func (p Parity) Matches(t int) bool {
	if p == Odd {
		return t%2 == 1
	}
	return t%2 == 0
}

func (p Parity) String() string {
	if p == Odd {
		return "odd"
	}
	return "even"
}

// Range is the half-open interval [Start, End) of time slices a worker may
// write during one pass, restricted to Parity.
type Range struct {
	Worker     int
	Start, End int
	Parity     Parity
}

// Len is the number of time slices in the range, of either parity
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether the worker owning r may write slice t
func (r Range) Contains(t int) bool {
	return t >= r.Start && t < r.End && r.Parity.Matches(t)
}

// Intersects reports whether two ranges share a writable slice
func (r Range) Intersects(o Range) bool {
	if r.Parity != o.Parity {
		return false
	}
	return r.Start < o.End && o.Start < r.End
}

// ValidateWorkers rejects worker counts for which concurrent passes could
// write neighbouring sites: the count must divide T, T must hold both
// parities, and with more than one
// worker it must not exceed T/2 and T must be even so that the periodic
// neighbours t=0 and t=T-1 have different parities.
func (g Geometry) ValidateWorkers(workers int) error {
	if workers < 1 {
		return fmt.Errorf("%w: %d workers", ErrWorkerCount, workers)
	}
	if g.T%workers != 0 {
		return fmt.Errorf("%w: T=%d is not a multiple of %d workers", ErrWorkerCount, g.T, workers)
	}
	if g.T < 2 {
		return fmt.Errorf("%w: T=%d has no odd slices", ErrWorkerCount, g.T)
	}
	if workers == 1 {
		return nil
	}
	if workers > g.T/2 {
		return fmt.Errorf("%w: %d workers exceed T/2=%d", ErrWorkerCount, workers, g.T/2)
	}
	if g.T%2 != 0 {
		return fmt.Errorf("%w: T=%d must be even for %d workers", ErrWorkerCount, g.T, workers)
	}
	return nil
}

// Partition splits T into contiguous ranges, one per worker, for a pass of
// the given parity.
func (g Geometry) Partition(workers int, parity Parity) ([]Range, error) {
	if err := g.ValidateWorkers(workers); err != nil {
		return nil, err
	}
	chunk := g.T / workers
	ranges := make([]Range, workers)
	for w := range ranges {
		ranges[w] = Range{
			Worker: w,
			Start:  w * chunk,
			End:    (w + 1) * chunk,
			Parity: parity,
		}
	}
	return ranges, nil
}

// CheckDisjoint verifies that no two ranges intersect and that no range
// writes a slice whose time neighbour is writable by another range.
func (g Geometry) CheckDisjoint(ranges []Range) error {
	for i := range ranges {
		for j := i + 1; j < len(ranges); j++ {
			if ranges[i].Intersects(ranges[j]) {
				return fmt.Errorf("%w: worker %d [%d,%d) and worker %d [%d,%d)", ErrOverlap,
					ranges[i].Worker, ranges[i].Start, ranges[i].End,
					ranges[j].Worker, ranges[j].Start, ranges[j].End)
			}
		}
	}
	for _, r := range ranges {
		for t := r.Start; t < r.End; t++ {
			if !r.Contains(t) {
				continue
			}
			for _, n := range [2]int{wrap(t-1, g.T), wrap(t+1, g.T)} {
				for _, o := range ranges {
					if o.Worker != r.Worker && o.Contains(n) {
						return fmt.Errorf("%w: slice %d of worker %d neighbours slice %d of worker %d",
							ErrOverlap, t, r.Worker, n, o.Worker)
					}
				}
			}
		}
	}
	return nil
}
