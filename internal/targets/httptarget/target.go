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

// Package httptarget re-exports a Gate's data as a JSON document over
// HTTP, mirroring the conventional RPKI validator "export" endpoint
// (spec section 4.8).
package httptarget

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/USA-RedDragon/rtrproxy/internal/gate"
	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/gin-gonic/gin"
)

// Target serves the current Payload as JSON at Path, honoring
// conditional GET via the payload's fingerprint as an ETag, and
// returning 503 until the upstream has published a payload, whatever
// its health.
type Target struct {
	Name string
	Path string

	upstream *gate.Link
	log      *slog.Logger

	mu      sync.RWMutex
	current payload.Payload
	health  gate.Health
	has     bool
}

// New creates an HTTP JSON target subscribed to upstream, serving at
// path (default "/json" if empty, per spec section 4.8).
func New(name, path string, upstream *gate.Link, log *slog.Logger) *Target {
	if path == "" {
		path = "/json"
	}
	return &Target{
		Name:     name,
		Path:     path,
		upstream: upstream,
		log:      log.With("target", name, "kind", "http-json"),
	}
}

// Register mounts this target's handler onto an existing gin engine,
// so multiple HTTP targets and /metrics, /status can share one
// http-listen address (spec section 6.1).
func (t *Target) Register(r *gin.Engine) {
	r.GET(t.Path, t.handle)
}

// Run mirrors upstream publications into the target's served snapshot
// until ctx is cancelled.
func (t *Target) Run(ctx context.Context) error {
	for {
		p, health, err := t.upstream.Updated(ctx)
		if err != nil {
			return err
		}
		_, _, published := t.upstream.Current()
		t.mu.Lock()
		t.current = p
		t.health = health
		t.has = published
		t.mu.Unlock()
	}
}

func (t *Target) handle(c *gin.Context) {
	t.mu.RLock()
	p, health, has := t.current, t.health, t.has
	t.mu.RUnlock()

	if !has {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no data published yet"})
		return
	}

	etag := strconv.FormatUint(p.Fingerprint(), 16)
	c.Header("ETag", etag)
	if match := c.GetHeader("If-None-Match"); match == etag {
		c.Status(http.StatusNotModified)
		return
	}
	if health != gate.Healthy {
		c.Header("Warning", fmt.Sprintf("199 rtrproxy %q", t.Name+" upstream is stalled; serving last known data"))
	}
	c.JSON(http.StatusOK, toDocument(p))
}

type jsonROA struct {
	ASN       uint32 `json:"asn"`
	Prefix    string `json:"prefix"`
	MaxLength uint8  `json:"maxLength"`
}

type jsonRouterKey struct {
	SKI  string `json:"SKI"`
	ASN  uint32 `json:"ASN"`
	SPKI string `json:"SPKI"`
}

type jsonASPA struct {
	CustomerASID  uint32   `json:"customer_asid"`
	ProviderASIDs []uint32 `json:"providers"`
}

type jsonDocument struct {
	ROAs       []jsonROA       `json:"roas"`
	RouterKeys []jsonRouterKey `json:"routerKeys"`
	ASPAs      []jsonASPA      `json:"aspas"`
}

func toDocument(p payload.Payload) jsonDocument {
	doc := jsonDocument{
		ROAs:       make([]jsonROA, len(p.Origins)),
		RouterKeys: make([]jsonRouterKey, len(p.RouterKeys)),
		ASPAs:      make([]jsonASPA, len(p.ASPAs)),
	}
	for i, o := range p.Origins {
		doc.ROAs[i] = jsonROA{
			ASN:       o.ASN,
			Prefix:    o.Prefix.String(),
			MaxLength: o.MaxLength,
		}
	}
	for i, k := range p.RouterKeys {
		doc.RouterKeys[i] = jsonRouterKey{
			SKI:  hex.EncodeToString(k.SKI[:]),
			ASN:  k.ASN,
			SPKI: base64.StdEncoding.EncodeToString(k.SPKI),
		}
	}
	for i, a := range p.ASPAs {
		doc.ASPAs[i] = jsonASPA{CustomerASID: a.Customer, ProviderASIDs: a.Providers}
	}
	return doc
}
