// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pointlander/lattice/internal/action"
	"github.com/pointlander/lattice/internal/cnum"
	"github.com/pointlander/lattice/internal/config"
	"github.com/pointlander/lattice/internal/field"
	"github.com/pointlander/lattice/internal/metropolis"
	"github.com/pointlander/lattice/internal/observable"
	"github.com/pointlander/lattice/internal/rng"
)

// BalanceParameters control a decoupled sampling run
type BalanceParameters struct {
	Lambda         float64
	Thermalization int
	Sweeps         int
	Bins           int
	// Max is the top of the last |phi|^2 bin
	Max float64
}

// Balance is the outcome of sampling the kappa = 0 theory, where every site
// is independent and <|phi|^2> is known by quadrature
type Balance struct {
	Couplings action.Couplings
	Sweeps    int
	// Mean is the average of |phi|^2 over sweeps and Error its standard error
	Mean, Error float64
	// Reference is the quadrature value of <|phi|^2>
	Reference float64
	// Histogram is the fraction of sampled sites per |phi|^2 bin
	Histogram []float64
	Width     float64
	// FromHistogram is <|phi|^2> recomputed from the histogram
	FromHistogram float64
	Acceptance    float64
}

// RunBalance thermalizes and then samples |phi|^2 with the lattice and
// sampler settings of c
func RunBalance(ctx context.Context, c config.Config, p BalanceParameters, logger *slog.Logger) (Balance, error) {
	if p.Bins < 1 || !(p.Max > 0) || p.Lambda < 0 || p.Sweeps < 1 || p.Thermalization < 0 {
		return Balance{}, fmt.Errorf("%w: balance parameters %+v", config.ErrInvalid, p)
	}
	g := c.Lattice.Geometry()
	b := Balance{
		Couplings: action.Couplings{Lambda: p.Lambda},
		Histogram: make([]float64, p.Bins),
		Width:     p.Max / float64(p.Bins),
	}
	b.Reference = observable.SingleSiteMoment(b.Couplings, 1)

	streams := rng.NewManager(c.Metropolis.Workers, c.Metropolis.Seed)
	engine, err := metropolis.New(g, action.New(b.Couplings), streams, c.Metropolis.Engine(),
		metropolis.WithLogger(logger))
	if err != nil {
		return b, err
	}
	phi := field.New(g)
	phi.Initialize(streams.Stream(0))

	logger.Info("balance",
		slog.Float64("lambda", p.Lambda),
		slog.Int("thermalization", p.Thermalization),
		slog.Int("sweeps", p.Sweeps))
	for i := 0; i < p.Thermalization; i++ {
		if _, err := engine.Sweep(ctx, phi); err != nil {
			return b, err
		}
	}

	samples := make([]float64, 0, p.Sweeps)
	proposals, accepted := 0, 0
	for i := 0; i < p.Sweeps; i++ {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return b, err
			}
		}
		sweep, err := engine.Sweep(ctx, phi)
		if err != nil {
			return b, err
		}
		for _, pass := range sweep.Passes {
			proposals += pass.Proposals
			accepted += pass.Accepted
		}
		samples = append(samples, phi.MeanAbs2())
		for index := 0; index < g.Volume(); index++ {
			bin := int(cnum.Abs2(phi.Get(index)) / b.Width)
			if bin < p.Bins {
				b.Histogram[bin]++
			}
		}
	}

	values := float64(p.Sweeps * g.Volume())
	for bin := range b.Histogram {
		b.Histogram[bin] /= values
		b.FromHistogram += b.Histogram[bin] * b.Width * (float64(bin) + 0.5)
	}
	b.Sweeps = p.Sweeps
	b.Mean = observable.Mean(samples)
	b.Error = observable.StdErr(samples)
	if proposals > 0 {
		b.Acceptance = float64(accepted) / float64(proposals)
	}
	return b, nil
}

// WriteHistogram writes one "rho P" line per bin
func (b Balance) WriteHistogram(w io.Writer) error {
	for bin, p := range b.Histogram {
		if _, err := fmt.Fprintf(w, " %v\t%v\n", b.Width*(float64(bin)+0.5), p); err != nil {
			return err
		}
	}
	return nil
}

func balanceCommand(flags *Flags) *cobra.Command {
	p := BalanceParameters{}
	var histogram string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Compare the sampled <|phi|^2> of decoupled sites with quadrature",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := flags.setup(ctx, cmd)
			if err != nil {
				return err
			}
			b, err := RunBalance(ctx, env.Config, p, env.Logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "<|phi|^2> = %v +/- %v\n", b.Mean, b.Error)
			fmt.Fprintf(out, "<|phi|^2> from P = %v\n", b.FromHistogram)
			fmt.Fprintf(out, "<|phi|^2> quadrature = %v\n", b.Reference)
			fmt.Fprintf(out, "acceptance = %v\n", b.Acceptance)
			if histogram == "" {
				return nil
			}
			file, err := os.Create(histogram)
			if err != nil {
				return err
			}
			if err := b.WriteHistogram(file); err != nil {
				file.Close()
				return err
			}
			return file.Close()
		},
	}
	cmd.Flags().Float64Var(&p.Lambda, "lambda", 0.5, "quartic coupling")
	cmd.Flags().IntVar(&p.Thermalization, "thermalization", 200, "sweeps before sampling")
	cmd.Flags().IntVar(&p.Sweeps, "sweeps", 10000, "sampled sweeps")
	cmd.Flags().IntVar(&p.Bins, "bins", 100, "histogram bins")
	cmd.Flags().Float64Var(&p.Max, "max", 4, "top of the last |phi|^2 bin")
	cmd.Flags().StringVar(&histogram, "histogram", "balance.out", "histogram file, empty to disable")
	return cmd
}
