// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pointlander/lattice/internal/analysis"
	"github.com/pointlander/lattice/internal/config"
	"github.com/pointlander/lattice/internal/generate"
	"github.com/pointlander/lattice/internal/store"
	"github.com/pointlander/lattice/internal/telemetry"
)

// Flags are the persistent flags of every command
type Flags struct {
	// Config is the YAML configuration, the defaults are used when empty
	Config string
	// Debug enables debug logging
	Debug bool
	// Metrics is the address of the Prometheus endpoint, disabled when empty
	Metrics string
}

// Environment is what a command needs after the flags are parsed
type Environment struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// setup builds the logger, loads the configuration and starts the metrics
// endpoint, which stops with ctx
func (f *Flags) setup(ctx context.Context, cmd *cobra.Command) (*Environment, error) {
	level := slog.LevelInfo
	if f.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	env := &Environment{Logger: logger, Metrics: telemetry.Discard()}
	if f.Config == "" {
		env.Config = config.Default()
		env.Config.Resolve()
		if err := env.Config.Validate(); err != nil {
			return nil, err
		}
	} else {
		c, err := config.Load(f.Config)
		if err != nil {
			return nil, err
		}
		env.Config = c
	}

	if f.Metrics != "" {
		provider, err := telemetry.NewProvider()
		if err != nil {
			return nil, err
		}
		metrics, err := telemetry.NewMetrics(provider.Meter("lattice"))
		if err != nil {
			return nil, err
		}
		env.Metrics = metrics
		go func() {
			if err := provider.Serve(ctx, f.Metrics, logger); err != nil {
				logger.Error("metrics endpoint", slog.String("error", err.Error()))
			}
		}()
	}
	return env, nil
}

func (e *Environment) open() (store.Store, error) {
	options := e.Config.Storage.Options()
	options.Logger = e.Logger
	return store.Open(options, e.Config.Lattice.Geometry())
}

// Root is the lattice command with all subcommands attached
func Root() *cobra.Command {
	flags := &Flags{}
	root := &cobra.Command{
		Use:           "lattice",
		Short:         "Complex scalar field theory on a 4D lattice",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.Config, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "debug logging")
	root.PersistentFlags().StringVar(&flags.Metrics, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(generateCommand(flags), correlateCommand(flags), configCommand(), balanceCommand(flags))
	return root
}

func generateCommand(flags *Flags) *cobra.Command {
	var actions string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Sample field configurations with the Metropolis algorithm",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := flags.setup(ctx, cmd)
			if err != nil {
				return err
			}
			s, err := env.open()
			if err != nil {
				return err
			}
			defer s.Close()

			options := []generate.Option{generate.WithLogger(env.Logger), generate.WithMetrics(env.Metrics)}
			if actions != "" {
				file, err := os.Create(actions)
				if err != nil {
					return err
				}
				defer file.Close()
				options = append(options, generate.WithActionLog(file))
			}
			g, err := generate.New(env.Config, s, options...)
			if err != nil {
				return err
			}
			summary, err := g.Generate(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s saved %d configurations\n", summary.ID, len(summary.Saved))
			return nil
		},
	}
	cmd.Flags().StringVar(&actions, "actions", "action.out", "file receiving the action after every run, empty to disable")
	return cmd
}

func correlateCommand(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "correlate",
		Short: "Measure n-particle correlators over the stored configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := flags.setup(ctx, cmd)
			if err != nil {
				return err
			}
			s, err := env.open()
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := analysis.New(env.Config, s, analysis.WithLogger(env.Logger), analysis.WithMetrics(env.Metrics))
			if err != nil {
				return err
			}
			summary, err := a.Analyze(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "analysed %d of %d configurations into %s\n",
				len(summary.Analysed), summary.Configurations, env.Config.Analysis.Output)
			return nil
		},
	}
}

func configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config [file]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "lattice.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.Default().Write(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := Root().ExecuteContext(ctx); err != nil {
		slog.Error("lattice", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}
