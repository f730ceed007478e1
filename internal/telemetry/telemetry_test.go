// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.Proposals.Add(ctx, 10)
	m.Accepted.Add(ctx, 4)
	m.MacroSteps.Add(ctx, 1)
	m.MacroStepDuration.Record(ctx, 0.002)
	m.Action.Record(ctx, -12.5)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		names[metric.Name] = true
		if metric.Name == "lattice_proposals" {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(10), sum.DataPoints[0].Value)
		}
	}
	for _, name := range []string{"lattice_proposals", "lattice_accepted", "lattice_macro_steps",
		"lattice_macro_step_duration_seconds", "lattice_action"} {
		assert.True(t, names[name], "missing %s", name)
	}
}

func TestDiscard(t *testing.T) {
	m := Discard()
	assert.NotPanics(t, func() {
		m.Proposals.Add(context.Background(), 1)
		m.Action.Record(context.Background(), 1)
	})
}

func TestProviderHandler(t *testing.T) {
	p, err := NewProvider()
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter("test"))
	require.NoError(t, err)
	m.Accepted.Add(context.Background(), 3)

	server := httptest.NewServer(p.Handler())
	defer server.Close()

	response, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "lattice_accepted")
}
