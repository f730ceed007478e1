// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config is the YAML run configuration of generation and analysis.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/shirou/gopsutil/v3/cpu"
	"gopkg.in/yaml.v3"

	"github.com/pointlander/lattice/internal/action"
	"github.com/pointlander/lattice/internal/lattice"
	"github.com/pointlander/lattice/internal/metropolis"
	"github.com/pointlander/lattice/internal/store"
)

// ErrInvalid is returned for a configuration that fails validation
var ErrInvalid = errors.New("invalid configuration")

var validate = validator.New()

// Lattice are the extents
type Lattice struct {
	T int `yaml:"t" validate:"min=2"`
	X int `yaml:"x" validate:"min=1"`
	Y int `yaml:"y" validate:"min=1"`
	Z int `yaml:"z" validate:"min=1"`
}

// Geometry converts the extents
func (l Lattice) Geometry() lattice.Geometry {
	return lattice.Geometry{T: l.T, X: l.X, Y: l.Y, Z: l.Z}
}

// Couplings are the bare continuum parameters
type Couplings struct {
	Mass2  float64 `yaml:"mass2"`
	Lambda float64 `yaml:"lambda" validate:"gt=0"`
}

// Lattice derives lambda and kappa
func (c Couplings) Lattice() action.Couplings {
	return action.FromBare(c.Mass2, c.Lambda)
}

// Metropolis are the sampler parameters
type Metropolis struct {
	Proposals int     `yaml:"proposals" validate:"min=1"`
	Step      float64 `yaml:"step" validate:"gt=0"`
	// Workers is the number of goroutines per pass, 0 sizes it from the host
	Workers int   `yaml:"workers" validate:"min=0"`
	Seed    int64 `yaml:"seed"`
}

// Engine converts the parameters for the sampler
func (m Metropolis) Engine() metropolis.Config {
	return metropolis.Config{Proposals: m.Proposals, StepSize: m.Step, Workers: m.Workers}
}

// Run drives generation
type Run struct {
	Thermalization int    `yaml:"thermalization" validate:"min=0"`
	AcceptsPerSave int    `yaml:"accepts_per_save" validate:"min=1"`
	Saves          int    `yaml:"saves" validate:"min=0"`
	Start          string `yaml:"start" validate:"oneof=random file"`
	StartFile      string `yaml:"start_file" validate:"required_if=Start file"`
	StartNumber    int64  `yaml:"start_number" validate:"min=0"`
}

// Random reports a hot start
func (r Run) Random() bool {
	return r.Start == "random"
}

// Storage selects the configuration store
type Storage struct {
	Backend string `yaml:"backend" validate:"oneof=text badger"`
	Path    string `yaml:"path" validate:"required"`
}

// Options converts the section for store.Open
func (s Storage) Options() store.Options {
	return store.Options{Backend: s.Backend, Path: s.Path}
}

// Analysis drives correlator measurement
type Analysis struct {
	Sectors    []int  `yaml:"sectors" validate:"min=1,dive,min=1"`
	Derivative bool   `yaml:"derivative"`
	Momentum   [3]int `yaml:"momentum"`
	// Configurations limits the number of stored configurations read, 0 reads all
	Configurations int    `yaml:"configurations" validate:"min=0"`
	Restrict       int    `yaml:"restrict" validate:"min=1"`
	Output         string `yaml:"output" validate:"required"`
}

// Config is the whole run configuration
type Config struct {
	Lattice    Lattice    `yaml:"lattice"`
	Couplings  Couplings  `yaml:"couplings"`
	Metropolis Metropolis `yaml:"metropolis"`
	Run        Run        `yaml:"run"`
	Storage    Storage    `yaml:"storage"`
	Analysis   Analysis   `yaml:"analysis"`
}

// Default is an 8x6^3 lattice at m0^2 = -4.9 and lambda_c = 10
func Default() Config {
	return Config{
		Lattice:   Lattice{T: 8, X: 6, Y: 6, Z: 6},
		Couplings: Couplings{Mass2: -4.9, Lambda: 10},
		Metropolis: Metropolis{
			Proposals: 10000,
			Step:      1,
		},
		Run: Run{
			Thermalization: 1000,
			AcceptsPerSave: 1000,
			Saves:          20,
			Start:          "random",
		},
		Storage: Storage{
			Backend: store.BackendText,
			Path:    "field_configs",
		},
		Analysis: Analysis{
			Sectors:    []int{1, 2, 3, 4, 5},
			Derivative: true,
			Restrict:   1,
			Output:     "corr_analysis",
		},
	}
}

// Load reads path over the defaults, resolves the worker count and validates
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
	}
	c.Resolve()
	return c, c.Validate()
}

// Write stores c as YAML
func (c Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Validate checks the field tags and that the workers checkerboard T
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Lattice.Geometry().ValidateWorkers(c.Metropolis.Workers); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Resolve replaces a zero worker count with one sized from the logical CPUs
func (c *Config) Resolve() {
	if c.Metropolis.Workers != 0 {
		return
	}
	cpus, err := cpu.Counts(true)
	if err != nil || cpus < 1 {
		cpus = 1
	}
	c.Metropolis.Workers = Workers(c.Lattice.Geometry(), cpus)
}

// Workers is the largest valid worker count for g not above cpus
func Workers(g lattice.Geometry, cpus int) int {
	for w := min(cpus, g.T/2); w > 1; w-- {
		if g.ValidateWorkers(w) == nil {
			return w
		}
	}
	return 1
}
