// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package wiring_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/USA-RedDragon/rtrproxy/internal/config"
	"github.com/USA-RedDragon/rtrproxy/internal/wiring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBuildWiresUnitToTarget(t *testing.T) {
	cfg := &config.Config{
		HTTPListen: []string{"127.0.0.1:0"},
		Units: []config.Unit{
			{Name: "upstream", Type: config.UnitTypeRTR, Remote: "127.0.0.1:1"},
		},
		Targets: []config.Target{
			{Name: "export", Type: config.TargetTypeHTTP, Unit: "upstream", Path: "/json"},
		},
	}

	result, err := wiring.Build(cfg, discardLogger(), prometheus.NewRegistry())
	require.NoError(t, err)
	require.NotNil(t, result.Graph)
	require.Len(t, result.Engines, 1)
	require.Contains(t, result.Engines, "127.0.0.1:0")
}

func TestBuildRejectsUnknownTargetUnit(t *testing.T) {
	cfg := &config.Config{
		Targets: []config.Target{
			{Name: "export", Type: config.TargetTypeHTTP, Unit: "missing", Path: "/json"},
		},
	}

	_, err := wiring.Build(cfg, discardLogger(), prometheus.NewRegistry())
	require.Error(t, err)
}

func TestBuildRejectsCyclicUnits(t *testing.T) {
	cfg := &config.Config{
		Units: []config.Unit{
			{Name: "a", Type: config.UnitTypeAny, Sources: []string{"b"}},
			{Name: "b", Type: config.UnitTypeAny, Sources: []string{"a"}},
		},
	}

	_, err := wiring.Build(cfg, discardLogger(), prometheus.NewRegistry())
	require.Error(t, err)
}

func TestBuildRejectsUnknownUnitSource(t *testing.T) {
	cfg := &config.Config{
		Units: []config.Unit{
			{Name: "a", Type: config.UnitTypeSLURM, Source: "missing"},
		},
	}

	_, err := wiring.Build(cfg, discardLogger(), prometheus.NewRegistry())
	require.Error(t, err)
}

func TestBuildMountsMetricsWhenEnabled(t *testing.T) {
	cfg := &config.Config{
		HTTPListen: []string{"127.0.0.1:0"},
		Metrics:    config.Metrics{Enabled: true},
	}

	result, err := wiring.Build(cfg, discardLogger(), prometheus.NewRegistry())
	require.NoError(t, err)
	engine := result.Engines["127.0.0.1:0"]
	require.NotNil(t, engine)

	routes := engine.Routes()
	var hasMetrics bool
	for _, r := range routes {
		if r.Path == "/metrics" {
			hasMetrics = true
		}
	}
	require.True(t, hasMetrics)
}
