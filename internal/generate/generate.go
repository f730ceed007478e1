// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package generate produces a Markov chain of field configurations.
package generate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pointlander/lattice/internal/action"
	"github.com/pointlander/lattice/internal/config"
	"github.com/pointlander/lattice/internal/field"
	"github.com/pointlander/lattice/internal/metropolis"
	"github.com/pointlander/lattice/internal/observable"
	"github.com/pointlander/lattice/internal/rng"
	"github.com/pointlander/lattice/internal/store"
	"github.com/pointlander/lattice/internal/telemetry"
)

// Option configures a Generator
type Option func(*Generator)

// WithMetrics records sampler and save metrics
func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// WithActionLog receives the global action after every run, one %e per line
func WithActionLog(w io.Writer) Option {
	return func(g *Generator) {
		g.actions = w
	}
}

// Generator owns the field, the sampler and its random streams
type Generator struct {
	ID        uuid.UUID
	config    config.Config
	couplings action.Couplings
	store     store.Store
	streams   *rng.Manager
	engine    *metropolis.Engine
	phi       *field.Field
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	actions   io.Writer
}

// Summary describes a finished generation
type Summary struct {
	ID        uuid.UUID
	Couplings action.Couplings
	// Thermalization is the hot start run, zero for a file start
	Thermalization metropolis.Result
	Runs           []metropolis.Result
	// Saved are the configuration numbers written, in order
	Saved []int64
}

// New validates c and builds the sampler
func New(c config.Config, s store.Store, options ...Option) (*Generator, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{
		ID:        uuid.New(),
		config:    c,
		couplings: c.Couplings.Lattice(),
		store:     s,
		metrics:   telemetry.Discard(),
		logger:    slog.Default(),
		actions:   io.Discard,
	}
	for _, option := range options {
		option(g)
	}
	g.logger = g.logger.With(slog.String("run", g.ID.String()))

	geometry := c.Lattice.Geometry()
	g.streams = rng.NewManager(c.Metropolis.Workers, c.Metropolis.Seed)
	engine, err := metropolis.New(geometry, action.New(g.couplings), g.streams, c.Metropolis.Engine(),
		metropolis.WithMetrics(g.metrics), metropolis.WithLogger(g.logger))
	if err != nil {
		return nil, err
	}
	g.engine = engine
	g.phi = field.New(geometry)
	return g, nil
}

// Field is the current accepted configuration
func (g *Generator) Field() *field.Field {
	return g.phi
}

// start initializes the field from the configured start
func (g *Generator) start() error {
	run := g.config.Run
	if run.Random() {
		g.phi.Initialize(g.streams.Stream(0))
		return nil
	}
	if err := store.ReadFile(run.StartFile, g.phi); err != nil {
		return fmt.Errorf("start configuration: %w", err)
	}
	return nil
}

func (g *Generator) run(ctx context.Context, target int) (metropolis.Result, error) {
	result, err := g.engine.Run(ctx, g.phi, target)
	if err != nil {
		return result, err
	}
	if _, err := fmt.Fprintf(g.actions, "%e\n", result.Action); err != nil {
		return result, fmt.Errorf("write action log: %w", err)
	}
	return result, nil
}

// Generate thermalizes a hot start and then saves run.saves configurations,
// each after run.accepts_per_save counted acceptances.
func (g *Generator) Generate(ctx context.Context) (Summary, error) {
	run := g.config.Run
	summary := Summary{ID: g.ID, Couplings: g.couplings}
	g.logger.Info("generate",
		slog.Float64("mass2", g.config.Couplings.Mass2),
		slog.Float64("lambda_c", g.config.Couplings.Lambda),
		slog.Float64("lambda", g.couplings.Lambda),
		slog.Float64("kappa", g.couplings.Kappa),
		slog.String("lattice", g.config.Lattice.Geometry().String()),
		slog.Int("workers", g.config.Metropolis.Workers),
		slog.String("start", run.Start))
	if g.couplings.Kappa == 0 {
		g.logger.Info("decoupled sites", slog.Float64("abs2", observable.SingleSiteMoment(g.couplings, 1)))
	}

	if err := g.start(); err != nil {
		return summary, err
	}
	ev := action.New(g.couplings)
	g.logger.Info("start action", slog.Float64("action", ev.Global(g.phi)))

	if run.Random() && run.Thermalization > 0 {
		result, err := g.run(ctx, run.Thermalization)
		if err != nil {
			return summary, fmt.Errorf("thermalize: %w", err)
		}
		summary.Thermalization = result
		g.logger.Info("thermalized",
			slog.Float64("acceptance", result.Ratio),
			slog.Float64("action", result.Action))
	}

	offset := int64(0)
	if !run.Random() {
		offset = run.StartNumber
	}
	saved := metric.WithAttributes(attribute.String("operation", "generate"))
	for i := 0; i < run.Saves; i++ {
		begin := time.Now()
		result, err := g.run(ctx, run.AcceptsPerSave)
		if err != nil {
			return summary, fmt.Errorf("configuration %d: %w", i, err)
		}
		n := int64(i+1)*int64(run.AcceptsPerSave) + offset
		if err := g.store.Save(ctx, n, g.phi); err != nil {
			return summary, err
		}
		g.metrics.Configurations.Add(ctx, 1, saved)
		summary.Runs = append(summary.Runs, result)
		summary.Saved = append(summary.Saved, n)
		g.logger.Info("saved",
			slog.Int64("configuration", n),
			slog.Float64("acceptance", result.Ratio),
			slog.Float64("action", result.Action),
			slog.Duration("duration", time.Since(begin)))
	}
	return summary, nil
}
