// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package analysis measures n-particle correlators over stored configurations
// and writes them as tab separated tables.
package analysis

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/pointlander/lattice/internal/action"
	"github.com/pointlander/lattice/internal/config"
	"github.com/pointlander/lattice/internal/correlator"
	"github.com/pointlander/lattice/internal/field"
	"github.com/pointlander/lattice/internal/store"
	"github.com/pointlander/lattice/internal/telemetry"
)

// Metadata is the name of the coupling and lattice summary file
const Metadata = "metadata_conf.tsv"

// Name is the per configuration table of sector n
func Name(n int) string {
	return fmt.Sprintf("correlators_%d_phi.tsv", n)
}

// MeanName is the ensemble average table of sector n
func MeanName(n int) string {
	return fmt.Sprintf("correlators_%d_phi_mean.tsv", n)
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithMetrics counts analysed configurations
func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// Analyzer reads configurations from a store and reduces them per sector
type Analyzer struct {
	config    config.Config
	couplings action.Couplings
	store     store.Store
	reducer   *correlator.Reducer
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// Summary describes a finished analysis
type Summary struct {
	// Configurations is the number of stored configurations considered
	Configurations int
	// Analysed are the configuration numbers reduced, every restrict-th one
	Analysed []int64
	// Means are the ensemble averages per sector
	Means map[int][]complex128
}

// New validates c and prepares the reducer
func New(c config.Config, s store.Store, options ...Option) (*Analyzer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	reducer := correlator.New(c.Lattice.Geometry())
	reducer.SetMomentum(c.Analysis.Momentum)
	reducer.Derivative = c.Analysis.Derivative
	a := &Analyzer{
		config:    c,
		couplings: c.Couplings.Lattice(),
		store:     s,
		reducer:   reducer,
		metrics:   telemetry.Discard(),
		logger:    slog.Default(),
	}
	for _, option := range options {
		option(a)
	}
	return a, nil
}

// table is an open output file
type table struct {
	file   *os.File
	writer *bufio.Writer
}

func create(path string) (*table, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &table{file: file, writer: bufio.NewWriter(file)}, nil
}

func (t *table) printf(format string, args ...any) {
	fmt.Fprintf(t.writer, format, args...)
}

func (t *table) row(index int, v complex128) {
	t.printf("%d\t%e\t%e\n", index, real(v), imag(v))
}

func (t *table) close() error {
	if err := t.writer.Flush(); err != nil {
		t.file.Close()
		return fmt.Errorf("write %s: %w", t.file.Name(), err)
	}
	return t.file.Close()
}

// Series is the reported correlator of f in sector n. The values for
// dt <= T/2 are computed concurrently and the rest reflected.
func (a *Analyzer) Series(ctx context.Context, f *field.Field, n int) ([]complex128, error) {
	T := a.config.Lattice.T
	series := make([]complex128, T)
	group, ctx := errgroup.WithContext(ctx)
	for dt := 0; dt <= T/2; dt++ {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			series[dt] = a.reducer.Value(f, n, dt)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	correlator.Reflect(series)
	return series, nil
}

// Analyze writes the correlator tables of every configured sector into the
// output directory.
func (a *Analyzer) Analyze(ctx context.Context) (summary Summary, err error) {
	c := a.config
	g := c.Lattice.Geometry()
	numbers, err := a.store.List(ctx)
	if err != nil {
		return summary, err
	}
	if c.Analysis.Configurations > 0 && c.Analysis.Configurations < len(numbers) {
		numbers = numbers[:c.Analysis.Configurations]
	}
	summary.Configurations = len(numbers)
	summary.Means = make(map[int][]complex128, len(c.Analysis.Sectors))

	output := c.Analysis.Output
	if err := os.MkdirAll(output, 0750); err != nil {
		return summary, fmt.Errorf("create output directory %s: %w", output, err)
	}
	a.logger.Info("analyse",
		slog.Int("configurations", len(numbers)),
		slog.Int("restrict", c.Analysis.Restrict),
		slog.Any("sectors", c.Analysis.Sectors),
		slog.Bool("derivative", c.Analysis.Derivative),
		slog.Float64("lambda", a.couplings.Lambda),
		slog.Float64("kappa", a.couplings.Kappa))

	if err := a.metadata(filepath.Join(output, Metadata), len(numbers)); err != nil {
		return summary, err
	}

	tables := make(map[int]*table, len(c.Analysis.Sectors))
	defer func() {
		for _, t := range tables {
			if closeErr := t.close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}
	}()
	ensembles := make(map[int]*correlator.Ensemble, len(c.Analysis.Sectors))
	for _, n := range c.Analysis.Sectors {
		t, err := create(filepath.Join(output, Name(n)))
		if err != nil {
			return summary, err
		}
		tables[n] = t
		t.printf("# Number of particles n=%d\n", n)
		t.printf("# LAMBDA=%f KAPPA=%f\n", a.couplings.Lambda, a.couplings.Kappa)
		t.printf("# X=%d Y=%d Z=%d T=%d configurations=%d\n", g.X, g.Y, g.Z, g.T, len(numbers))
		t.printf("index\tRe\tIm\n")
		ensembles[n] = correlator.NewEnsemble(g.T)
	}

	phi := field.New(g)
	analysed := metric.WithAttributes(attribute.String("operation", "analyse"))
	for i, number := range numbers {
		if i%c.Analysis.Restrict != 0 {
			continue
		}
		if err := a.store.Load(ctx, number, phi); err != nil {
			return summary, err
		}
		for _, n := range c.Analysis.Sectors {
			series, err := a.Series(ctx, phi, n)
			if err != nil {
				return summary, err
			}
			for dt, v := range series {
				tables[n].row(dt, v)
			}
			if err := ensembles[n].Add(series); err != nil {
				return summary, err
			}
		}
		summary.Analysed = append(summary.Analysed, number)
		a.metrics.Configurations.Add(ctx, 1, analysed)
		if len(summary.Analysed)%100 == 0 {
			a.logger.Info("analysed", slog.Int("configurations", len(summary.Analysed)))
		}
	}

	for _, n := range c.Analysis.Sectors {
		mean := ensembles[n].Mean()
		summary.Means[n] = mean
		if err := a.means(filepath.Join(output, MeanName(n)), n, ensembles[n]); err != nil {
			return summary, err
		}
	}
	a.logger.Info("analysis done", slog.Int("analysed", len(summary.Analysed)), slog.String("output", output))
	return summary, nil
}

func (a *Analyzer) metadata(path string, configurations int) error {
	g := a.config.Lattice.Geometry()
	t, err := create(path)
	if err != nil {
		return err
	}
	t.printf("%f\t%f\n", a.couplings.Lambda, a.couplings.Kappa)
	t.printf("%d\t%d\t%d\t%d\t%d\n", g.X, g.Y, g.Z, g.T, configurations)
	return t.close()
}

func (a *Analyzer) means(path string, n int, ensemble *correlator.Ensemble) error {
	t, err := create(path)
	if err != nil {
		return err
	}
	mean := ensemble.Mean()
	re, im := ensemble.StdErr()
	t.printf("# Number of particles n=%d\n", n)
	t.printf("# LAMBDA=%f KAPPA=%f\n", a.couplings.Lambda, a.couplings.Kappa)
	t.printf("# samples=%d\n", ensemble.Len())
	t.printf("index\tRe\tIm\tReErr\tImErr\n")
	for dt, v := range mean {
		t.printf("%d\t%e\t%e\t%e\t%e\n", dt, real(v), imag(v), re[dt], im[dt])
	}
	return t.close()
}
