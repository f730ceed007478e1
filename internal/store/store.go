// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store persists numbered field configurations.
//
// Two backends share the "x y z t re im" text encoding of package field:
// a directory of scalar_X_Y_Z_T_n.txt files, readable by other tools, and an
// embedded BadgerDB keyed by geometry and configuration number.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pointlander/lattice/internal/field"
	"github.com/pointlander/lattice/internal/lattice"
)

// ErrNotFound is returned when a configuration number has not been saved
var ErrNotFound = errors.New("configuration not found")

// ErrBackend is returned for an unknown backend name
var ErrBackend = errors.New("unknown storage backend")

// Store saves and loads field configurations by number
type Store interface {
	// Save persists f as configuration n, replacing any previous one
	Save(ctx context.Context, n int64, f *field.Field) error
	// Load reads configuration n into f; sites missing from the stored
	// configuration keep their value
	Load(ctx context.Context, n int64, f *field.Field) error
	// List returns the stored configuration numbers in increasing order
	List(ctx context.Context) ([]int64, error)
	// Close releases the backend
	Close() error
}

// Backends
const (
	BackendText   = "text"
	BackendBadger = "badger"
)

// Options select and configure a backend
type Options struct {
	Backend  string
	Path     string
	InMemory bool
	Logger   *slog.Logger
}

// Open creates the store described by options for fields on g
func Open(options Options, g lattice.Geometry) (Store, error) {
	switch options.Backend {
	case BackendText, "":
		dir, err := OpenDir(options.Path, g)
		if err != nil {
			return nil, err
		}
		return dir, nil
	case BackendBadger:
		config := DefaultBadgerConfig()
		config.Path = options.Path
		config.InMemory = options.InMemory
		config.Logger = options.Logger
		db, err := OpenBadger(config, g)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrBackend, options.Backend)
	}
}
