// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pointlander/lattice/internal/field"
	"github.com/pointlander/lattice/internal/lattice"
)

// Dir stores each configuration as a text file in a directory
type Dir struct {
	path     string
	geometry lattice.Geometry
}

// OpenDir creates the directory if needed
func OpenDir(path string, g lattice.Geometry) (*Dir, error) {
	if path == "" {
		return nil, errors.New("path is required for the text store")
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", path, err)
	}
	return &Dir{path: path, geometry: g}, nil
}

func (d *Dir) prefix() string {
	return "scalar_" + d.geometry.String() + "_"
}

// Name is the file holding configuration n
func (d *Dir) Name(n int64) string {
	return filepath.Join(d.path, d.prefix()+strconv.FormatInt(n, 10)+".txt")
}

// Save writes configuration n through a temporary file and a rename
func (d *Dir) Save(ctx context.Context, n int64, f *field.Field) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteFile(d.Name(n), f)
}

// Load reads configuration n into f
func (d *Dir) Load(ctx context.Context, n int64, f *field.Field) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := ReadFile(d.Name(n), f)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %d in %s", ErrNotFound, n, d.path)
	}
	return err
}

// List returns the configuration numbers found in the directory
func (d *Dir) List(ctx context.Context) ([]int64, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.path, err)
	}
	prefix := d.prefix()
	var numbers []int64
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".txt") {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".txt"), 10, 64)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	return numbers, nil
}

// Close is a no-op
func (d *Dir) Close() error {
	return nil
}

// ReadFile decodes the text file at path into f
func ReadFile(path string, f *field.Field) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open field %s: %w", path, err)
	}
	defer file.Close()
	if err := f.Decode(file); err != nil {
		return fmt.Errorf("decode field %s: %w", path, err)
	}
	return nil
}

// WriteFile encodes f into the text file at path
func WriteFile(path string, f *field.Field) error {
	temp, err := os.CreateTemp(filepath.Dir(path), ".scalar-*")
	if err != nil {
		return fmt.Errorf("create field %s: %w", path, err)
	}
	defer os.Remove(temp.Name())
	if err := f.Encode(temp); err != nil {
		temp.Close()
		return fmt.Errorf("encode field %s: %w", path, err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("close field %s: %w", path, err)
	}
	if err := os.Rename(temp.Name(), path); err != nil {
		return fmt.Errorf("rename field %s: %w", path, err)
	}
	return nil
}
