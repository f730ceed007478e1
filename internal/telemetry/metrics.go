// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package telemetry holds the sampler metrics and the Prometheus endpoint
// that exposes them.
package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics are the instruments recorded by the sampler and the drivers
type Metrics struct {
	// Proposals counts single-site proposals by parity
	Proposals metric.Int64Counter
	// Accepted counts accepted single-site proposals by parity
	Accepted metric.Int64Counter
	// MacroSteps counts odd+even sweeps
	MacroSteps metric.Int64Counter
	// MacroStepDuration records the wall time of a sweep in seconds
	MacroStepDuration metric.Float64Histogram
	// Action records the global action after each run
	Action metric.Float64Gauge
	// Configurations counts configurations saved or analysed by operation
	Configurations metric.Int64Counter
}

// NewMetrics registers the instruments with meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.Proposals, err = meter.Int64Counter(
		"lattice_proposals",
		metric.WithDescription("Single-site Metropolis proposals"),
		metric.WithUnit("{proposal}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create proposals: %w", err)
	}

	m.Accepted, err = meter.Int64Counter(
		"lattice_accepted",
		metric.WithDescription("Accepted single-site Metropolis proposals"),
		metric.WithUnit("{proposal}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create accepted: %w", err)
	}

	m.MacroSteps, err = meter.Int64Counter(
		"lattice_macro_steps",
		metric.WithDescription("Odd and even checkerboard sweeps"),
		metric.WithUnit("{sweep}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create macro_steps: %w", err)
	}

	m.MacroStepDuration, err = meter.Float64Histogram(
		"lattice_macro_step_duration_seconds",
		metric.WithDescription("Duration of one odd and even sweep"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create macro_step_duration: %w", err)
	}

	m.Action, err = meter.Float64Gauge(
		"lattice_action",
		metric.WithDescription("Global Euclidean action after the last run"),
	)
	if err != nil {
		return nil, fmt.Errorf("create action: %w", err)
	}

	m.Configurations, err = meter.Int64Counter(
		"lattice_configurations",
		metric.WithDescription("Field configurations saved or analysed"),
		metric.WithUnit("{configuration}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create configurations: %w", err)
	}

	return m, nil
}

// Discard returns metrics that record nothing
func Discard() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("discard"))
	if err != nil {
		panic(err)
	}
	return m
}
