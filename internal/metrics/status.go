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

package metrics

import (
	"net/http"
	"sync"

	"github.com/USA-RedDragon/rtrproxy/internal/gate"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusRegistry tracks one Link per named component so the /status
// endpoint can summarize the whole graph's health without every
// component having to know about HTTP (rtrtr ships this endpoint;
// spec.md names "HTTP metrics/status endpoints" only as an out-of-scope
// collaborator boundary, so the shape here is additive per spec.md
// section 9's supplemented-features note).
type StatusRegistry struct {
	mu    sync.RWMutex
	links map[string]*gate.Link
	order []string
}

// NewStatusRegistry creates an empty registry.
func NewStatusRegistry() *StatusRegistry {
	return &StatusRegistry{links: make(map[string]*gate.Link)}
}

// Register associates name with link so its current state is included
// in future Snapshot calls.
func (s *StatusRegistry) Register(name string, link *gate.Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.links[name]; !exists {
		s.order = append(s.order, name)
	}
	s.links[name] = link
}

// ComponentStatus is one component's point-in-time summary.
type ComponentStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	HasData bool   `json:"hasData"`
	Origins int    `json:"origins"`
	ASPAs   int    `json:"aspas"`
}

// Snapshot reads every registered Link's Current state without
// suspending.
func (s *StatusRegistry) Snapshot() []ComponentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ComponentStatus, 0, len(s.order))
	for _, name := range s.order {
		p, health, has := s.links[name].Current()
		out = append(out, ComponentStatus{
			Name:    name,
			Healthy: has && health == gate.Healthy,
			HasData: has,
			Origins: len(p.Origins),
			ASPAs:   len(p.ASPAs),
		})
	}
	return out
}

// RegisterHandlers mounts /metrics (promhttp against reg) and /status
// (a JSON dump of status's Snapshot) onto r.
func RegisterHandlers(r *gin.Engine, reg *prometheus.Registry, status *StatusRegistry) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"components": status.Snapshot()})
	})
}
