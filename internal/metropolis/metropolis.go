// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metropolis is the checkerboard-parallel Metropolis sampler.
//
// A macro-step is an odd pass followed by an even pass over the time slices.
// In a pass every worker owns a contiguous block of T/workers slices and
// only writes the slices of the pass parity inside its block. The neighbours
// of such a slice in time have the other parity, so nobody writes them during
// the pass, and neighbours in space share the slice and therefore the worker.
// The two passes are separated by a barrier.
package metropolis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pointlander/lattice/internal/action"
	"github.com/pointlander/lattice/internal/field"
	"github.com/pointlander/lattice/internal/lattice"
	"github.com/pointlander/lattice/internal/rng"
	"github.com/pointlander/lattice/internal/telemetry"
)

var tracer = otel.Tracer("lattice.metropolis")

// ErrConfig is returned by New for parameters the sampler cannot run with
var ErrConfig = errors.New("invalid metropolis configuration")

// Config are the sampler parameters
type Config struct {
	// Proposals is the number of local updates per worker per pass
	Proposals int
	// StepSize bounds the shift of the real and imaginary parts
	StepSize float64
	// Workers is the number of goroutines of a pass
	Workers int
}

// Option configures an Engine
type Option func(*Engine)

// WithMetrics records sampler metrics
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// counter is the private tally of one worker during one pass
type counter struct {
	proposals int
	accepted  int
	first     bool
}

// Engine runs Metropolis sweeps over a field
type Engine struct {
	geometry lattice.Geometry
	action   *action.Evaluator
	streams  rng.Provider
	config   Config
	ranges   [2][]lattice.Range
	working  *field.Field
	counters []counter
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// New validates the configuration and allocates the working field. Every
// configuration error is reported here, before any sweep.
func New(g lattice.Geometry, evaluator *action.Evaluator, streams rng.Provider, config Config, options ...Option) (*Engine, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := g.ValidateWorkers(config.Workers); err != nil {
		return nil, err
	}
	if config.Proposals < 1 {
		return nil, fmt.Errorf("%w: %d proposals per pass", ErrConfig, config.Proposals)
	}
	if !(config.StepSize > 0) {
		return nil, fmt.Errorf("%w: step size %v", ErrConfig, config.StepSize)
	}
	if sized, ok := streams.(interface{ Size() int }); ok && sized.Size() < config.Workers {
		return nil, fmt.Errorf("%w: %d random streams for %d workers", ErrConfig, sized.Size(), config.Workers)
	}

	e := &Engine{
		geometry: g,
		action:   evaluator,
		streams:  streams,
		config:   config,
		working:  field.New(g),
		counters: make([]counter, config.Workers),
		metrics:  telemetry.Discard(),
		logger:   slog.Default(),
	}
	for _, option := range options {
		option(e)
	}
	for i, parity := range lattice.Passes {
		ranges, err := g.Partition(config.Workers, parity)
		if err != nil {
			return nil, err
		}
		if err := g.CheckDisjoint(ranges); err != nil {
			return nil, err
		}
		e.ranges[i] = ranges
	}
	return e, nil
}

// Config is the validated configuration
func (e *Engine) Config() Config {
	return e.config
}

// Ranges are the worker ranges of a pass
func (e *Engine) Ranges(parity lattice.Parity) []lattice.Range {
	return e.ranges[parity]
}

// PassResult is the tally of one pass over all workers
type PassResult struct {
	Parity    lattice.Parity
	Proposals int
	Accepted  int
	// First reports whether the first proposal of worker 0 was accepted
	First bool
}

// SweepResult is the tally of one macro-step
type SweepResult struct {
	Passes [2]PassResult
}

// Counted is the number of distinguished acceptances of the sweep
func (s SweepResult) Counted() int {
	n := 0
	for _, p := range s.Passes {
		if p.First {
			n++
		}
	}
	return n
}

// Result summarizes a run
type Result struct {
	// Accepted counts accepted first proposals of worker 0, one slot per pass
	Accepted int
	// Passes is the number of odd and even passes
	Passes int
	// Ratio is Accepted/Passes
	Ratio float64
	// Proposals and SiteAccepted count every proposal of every worker
	Proposals    int
	SiteAccepted int
	SiteRatio    float64
	// Action is the global action at the end of the run
	Action float64
}

// work runs the local updates of one worker inside its range
func (e *Engine) work(accepted *field.Field, r lattice.Range) {
	g := e.geometry
	stream := e.streams.Stream(r.Worker)
	c := &e.counters[r.Worker]
	*c = counter{}
	for i := 0; i < e.config.Proposals; i++ {
		x := stream.IntN(g.X)
		y := stream.IntN(g.Y)
		z := stream.IntN(g.Z)
		t := r.Start + stream.IntN(r.Len())
		for !r.Parity.Matches(t) {
			t = r.Start + stream.IntN(r.Len())
		}

		e.working.Propose(stream, e.config.StepSize, t, x, y, z)
		delta := e.action.Delta(accepted, e.working, t, x, y, z)
		if math.Exp(-delta) > stream.Float64() {
			field.CopySite(accepted, e.working, t, x, y, z)
			c.accepted++
			if i == 0 {
				c.first = true
			}
		}
		field.CopySite(e.working, accepted, t, x, y, z)
		c.proposals++
	}
}

// pass forks one goroutine per worker and joins them
func (e *Engine) pass(ctx context.Context, accepted *field.Field, parity lattice.Parity) PassResult {
	var group errgroup.Group
	for _, r := range e.ranges[parity] {
		group.Go(func() error {
			e.work(accepted, r)
			return nil
		})
	}
	_ = group.Wait()

	result := PassResult{Parity: parity, First: e.counters[0].first}
	for _, c := range e.counters {
		result.Proposals += c.proposals
		result.Accepted += c.accepted
	}
	attributes := metric.WithAttributes(attribute.String("parity", parity.String()))
	e.metrics.Proposals.Add(ctx, int64(result.Proposals), attributes)
	e.metrics.Accepted.Add(ctx, int64(result.Accepted), attributes)
	return result
}

// Sweep resets the working field to accepted and runs one odd pass and one
// even pass, with a barrier in between.
func (e *Engine) Sweep(ctx context.Context, accepted *field.Field) (SweepResult, error) {
	if err := e.working.CopyFrom(accepted); err != nil {
		return SweepResult{}, err
	}
	start := time.Now()
	var result SweepResult
	for i, parity := range lattice.Passes {
		result.Passes[i] = e.pass(ctx, accepted, parity)
	}
	e.metrics.MacroSteps.Add(ctx, 1)
	e.metrics.MacroStepDuration.Record(ctx, time.Since(start).Seconds())
	return result, nil
}

// Run sweeps accepted until target distinguished acceptances have been
// counted. The context is only checked between macro-steps.
func (e *Engine) Run(ctx context.Context, accepted *field.Field, target int) (Result, error) {
	ctx, span := tracer.Start(ctx, "metropolis.Run", trace.WithAttributes(
		attribute.Int("target", target),
		attribute.Int("workers", e.config.Workers),
	))
	defer span.End()

	var result Result
	for result.Accepted < target {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("metropolis run after %d passes: %w", result.Passes, err)
		}
		sweep, err := e.Sweep(ctx, accepted)
		if err != nil {
			return result, err
		}
		result.Accepted += sweep.Counted()
		result.Passes += len(sweep.Passes)
		for _, p := range sweep.Passes {
			result.Proposals += p.Proposals
			result.SiteAccepted += p.Accepted
		}
	}
	if result.Passes > 0 {
		result.Ratio = float64(result.Accepted) / float64(result.Passes)
		result.SiteRatio = float64(result.SiteAccepted) / float64(result.Proposals)
	}
	result.Action = e.action.Global(accepted)
	e.metrics.Action.Record(ctx, result.Action)

	span.SetAttributes(
		attribute.Int("passes", result.Passes),
		attribute.Float64("action", result.Action),
	)
	e.logger.Debug("metropolis run",
		slog.Int("accepted", result.Accepted),
		slog.Int("passes", result.Passes),
		slog.Float64("acceptance", result.Ratio),
		slog.Float64("site_acceptance", result.SiteRatio),
		slog.Float64("action", result.Action))
	return result, nil
}
