// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/pointlander/lattice/internal/field"
	"github.com/pointlander/lattice/internal/lattice"
)

// BadgerConfig configures the embedded database
type BadgerConfig struct {
	// Path is the database directory, ignored when InMemory is set
	Path     string
	InMemory bool
	// SyncWrites fsyncs every commit
	SyncWrites bool
	// Logger receives badger's own log lines; nil silences them
	Logger *slog.Logger
	// GCInterval is the value log GC period, 0 disables it
	GCInterval     time.Duration
	GCDiscardRatio float64
}

// DefaultBadgerConfig is durable with a five minute GC period
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// badgerLogger adapts slog to badger.Logger
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Badger stores configurations in BadgerDB under scalar/X_Y_Z_T/n
type Badger struct {
	db       *badger.DB
	geometry lattice.Geometry
	prefix   []byte
	logger   *slog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// OpenBadger opens the database and starts value log GC when persistent
func OpenBadger(config BadgerConfig, g lattice.Geometry) (*Badger, error) {
	var options badger.Options
	if config.InMemory {
		options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if config.Path == "" {
			return nil, errors.New("path is required for a persistent badger store")
		}
		if err := os.MkdirAll(config.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", config.Path, err)
		}
		options = badger.DefaultOptions(config.Path)
	}
	options = options.WithSyncWrites(config.SyncWrites).WithNumVersionsToKeep(1)
	if config.Logger != nil {
		options = options.WithLogger(&badgerLogger{logger: config.Logger})
	} else {
		options = options.WithLogger(nil)
	}

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Badger{
		db:       db,
		geometry: g,
		prefix:   []byte("scalar/" + g.String() + "/"),
		logger:   logger,
	}
	if config.GCInterval > 0 && !config.InMemory {
		if config.GCDiscardRatio <= 0 || config.GCDiscardRatio >= 1 {
			db.Close()
			return nil, errors.New("gc discard ratio must be between 0 and 1")
		}
		b.stop, b.done = make(chan struct{}), make(chan struct{})
		go b.collect(config.GCInterval, config.GCDiscardRatio)
	}
	return b, nil
}

func (b *Badger) collect(interval time.Duration, ratio float64) {
	defer close(b.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			err := b.db.RunValueLogGC(ratio)
			if err == nil {
				b.logger.Debug("badger value log GC completed")
			} else if !errors.Is(err, badger.ErrNoRewrite) {
				b.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// key zero pads n so that keys sort numerically
func (b *Badger) key(n int64) []byte {
	return append(append([]byte(nil), b.prefix...), fmt.Sprintf("%020d", n)...)
}

// Save stores the text encoding of f
func (b *Badger) Save(ctx context.Context, n int64, f *field.Field) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("configuration number %d is negative", n)
	}
	var buffer bytes.Buffer
	if err := f.Encode(&buffer); err != nil {
		return fmt.Errorf("encode configuration %d: %w", n, err)
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(n), buffer.Bytes())
	})
	if err != nil {
		return fmt.Errorf("save configuration %d: %w", n, err)
	}
	return nil
}

// Load decodes configuration n into f
func (b *Badger) Load(ctx context.Context, n int64, f *field.Field) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(n))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %d", ErrNotFound, n)
	} else if err != nil {
		return fmt.Errorf("load configuration %d: %w", n, err)
	}
	if err := f.Decode(bytes.NewReader(value)); err != nil {
		return fmt.Errorf("decode configuration %d: %w", n, err)
	}
	return nil
}

// List walks the key prefix of this geometry without fetching values
func (b *Badger) List(ctx context.Context) ([]int64, error) {
	var numbers []int64
	err := b.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = b.prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().Key()
			n, err := strconv.ParseInt(string(key[len(b.prefix):]), 10, 64)
			if err != nil {
				continue
			}
			numbers = append(numbers, n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	return numbers, nil
}

// Close stops GC and closes the database
func (b *Badger) Close() error {
	if b.stop != nil {
		close(b.stop)
		<-b.done
		b.stop = nil
	}
	return b.db.Close()
}
