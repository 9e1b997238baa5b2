// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package metrics exposes Prometheus collectors for every component
// kind in the graph, and a JSON status summary, both mounted on the
// configured http-listen addresses (spec.md section 1, supplemented in
// spec.md section 9 since the distillation names observability only as
// an out-of-scope collaborator boundary).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector this process registers. wiring.Build
// creates and registers one instance; no unit or target constructor
// receives it.
type Metrics struct {
	// Gate health, one series per unit/target name.
	GateHealthy     *prometheus.GaugeVec
	GateLastPublish *prometheus.GaugeVec

	// RTR server-side session state, one series per rtr/rtr-tls target.
	RTRSessionSerial    *prometheus.GaugeVec
	RTRConnectedRouters *prometheus.GaugeVec
	RTRHistoryDepth     *prometheus.GaugeVec

	// JSON client fetches, one series per json unit.
	JSONFetchDuration *prometheus.HistogramVec
	JSONFetchNotModified *prometheus.CounterVec
	JSONFetchErrors      *prometheus.CounterVec
}

// New creates and registers every collector against reg. Passing a
// fresh prometheus.NewRegistry() keeps tests isolated from the global
// default registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		GateHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rtrproxy_gate_healthy",
			Help: "1 if the named component's Gate is healthy, 0 if stalled.",
		}, []string{"component"}),
		GateLastPublish: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rtrproxy_gate_last_publish_timestamp_seconds",
			Help: "Unix timestamp of the named component's most recent publication.",
		}, []string{"component"}),
		RTRSessionSerial: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rtrproxy_rtr_session_serial",
			Help: "Current serial number of the named RTR server target's session.",
		}, []string{"target"}),
		RTRConnectedRouters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rtrproxy_rtr_connected_routers",
			Help: "Number of RTR client connections currently open on the named target.",
		}, []string{"target"}),
		RTRHistoryDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rtrproxy_rtr_history_depth",
			Help: "Number of diffs currently retained in the named target's bounded history.",
		}, []string{"target"}),
		JSONFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rtrproxy_json_fetch_duration_seconds",
			Help:    "Duration of the named json unit's upstream fetch requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"unit"}),
		JSONFetchNotModified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtrproxy_json_fetch_not_modified_total",
			Help: "Count of 304 Not Modified responses observed by the named json unit.",
		}, []string{"unit"}),
		JSONFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtrproxy_json_fetch_errors_total",
			Help: "Count of failed fetch or parse attempts by the named json unit.",
		}, []string{"unit"}),
	}
	reg.MustRegister(
		m.GateHealthy, m.GateLastPublish,
		m.RTRSessionSerial, m.RTRConnectedRouters, m.RTRHistoryDepth,
		m.JSONFetchDuration, m.JSONFetchNotModified, m.JSONFetchErrors,
	)
	return m
}
