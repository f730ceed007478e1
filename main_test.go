// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointlander/lattice/internal/analysis"
	"github.com/pointlander/lattice/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	cmd := Root()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func tiny(t *testing.T) (string, config.Config) {
	dir := t.TempDir()
	c := config.Default()
	c.Lattice = config.Lattice{T: 4, X: 2, Y: 2, Z: 2}
	c.Metropolis.Proposals = 4
	c.Metropolis.Step = 0.5
	c.Metropolis.Workers = 2
	c.Run.Thermalization = 4
	c.Run.AcceptsPerSave = 2
	c.Run.Saves = 3
	c.Storage.Path = filepath.Join(dir, "configs")
	c.Analysis.Sectors = []int{1, 2}
	c.Analysis.Output = filepath.Join(dir, "analysis")
	path := filepath.Join(dir, "lattice.yaml")
	require.NoError(t, c.Write(path))
	return path, c
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	out, err := execute(t, "config", path)
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Lattice, c.Lattice)
}

func TestGenerateCorrelate(t *testing.T) {
	path, c := tiny(t)
	actions := filepath.Join(t.TempDir(), "action.out")

	out, err := execute(t, "generate", "--config", path, "--actions", actions)
	require.NoError(t, err)
	assert.Contains(t, out, "saved 3 configurations")
	for _, n := range []string{"2", "4", "6"} {
		assert.FileExists(t, filepath.Join(c.Storage.Path, "scalar_2_2_2_4_"+n+".txt"))
	}
	data, err := os.ReadFile(actions)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 4)

	out, err = execute(t, "correlate", "-c", path, "--debug")
	require.NoError(t, err)
	assert.Contains(t, out, "analysed 3 of 3 configurations")
	for _, n := range c.Analysis.Sectors {
		assert.FileExists(t, filepath.Join(c.Analysis.Output, analysis.Name(n)))
		assert.FileExists(t, filepath.Join(c.Analysis.Output, analysis.MeanName(n)))
	}
	assert.FileExists(t, filepath.Join(c.Analysis.Output, analysis.Metadata))
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lattice:\n  t: 6\nmetropolis:\n  workers: 4\n"), 0600))
	_, err := execute(t, "generate", "--config", path)
	assert.True(t, errors.Is(err, config.ErrInvalid))
}

func TestBalance(t *testing.T) {
	if testing.Short() {
		t.Skip("long sampling run")
	}
	c := config.Default()
	c.Lattice = config.Lattice{T: 2, X: 2, Y: 2, Z: 2}
	c.Metropolis.Workers = 1
	c.Metropolis.Proposals = 16
	c.Metropolis.Step = 1
	c.Metropolis.Seed = 5
	p := BalanceParameters{Lambda: 0.5, Thermalization: 100, Sweeps: 10000, Bins: 50, Max: 5}
	b, err := RunBalance(context.Background(), c, p, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.InDelta(t, math.Sqrt(2/math.Pi), b.Reference, 1e-9)
	assert.InDelta(t, b.Reference, b.Mean, 0.03)
	assert.InDelta(t, b.Mean, b.FromHistogram, 0.05)
	assert.Greater(t, b.Acceptance, 0.0)
	assert.Less(t, b.Acceptance, 1.0)

	total := 0.0
	for _, p := range b.Histogram {
		total += p
	}
	assert.InDelta(t, 1.0, total, 0.01)

	var histogram bytes.Buffer
	require.NoError(t, b.WriteHistogram(&histogram))
	assert.Len(t, strings.Split(strings.TrimSpace(histogram.String()), "\n"), 50)
}

func TestBalanceParameters(t *testing.T) {
	c := config.Default()
	c.Metropolis.Workers = 1
	_, err := RunBalance(context.Background(), c, BalanceParameters{Lambda: 0.5, Sweeps: 1}, slog.Default())
	assert.True(t, errors.Is(err, config.ErrInvalid))
}
