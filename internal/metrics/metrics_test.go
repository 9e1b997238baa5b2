// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package metrics_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/USA-RedDragon/rtrproxy/internal/gate"
	"github.com/USA-RedDragon/rtrproxy/internal/metrics"
	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.GateHealthy.WithLabelValues("test").Set(1)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestRegisterHandlersServesMetricsAndStatus(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	metrics.New(reg)

	status := metrics.NewStatusRegistry()
	g := gate.New()
	g.Publish(payload.New([]payload.Origin{
		{Prefix: netip.MustParsePrefix("192.0.2.0/24"), MaxLength: 24, ASN: 64496},
	}, nil, nil))
	status.Register("upstream", g.Subscribe())

	r := gin.New()
	metrics.RegisterHandlers(r, reg, status)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/status", nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)

	var body struct {
		Components []metrics.ComponentStatus `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &body))
	require.Len(t, body.Components, 1)
	require.Equal(t, "upstream", body.Components[0].Name)
	require.True(t, body.Components[0].Healthy)
	require.Equal(t, 1, body.Components[0].Origins)
}
