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

// Package merge implements the set-union unit: it publishes the
// element-wise union of every currently healthy source (spec section
// 4.6).
package merge

import (
	"context"
	"log/slog"

	"github.com/USA-RedDragon/rtrproxy/internal/gate"
	"github.com/USA-RedDragon/rtrproxy/internal/payload"
)

// Unit subscribes to N source Links and republishes their union.
type Unit struct {
	Name    string
	Sources []*gate.Link
	Out     *gate.Gate

	log *slog.Logger
	last payload.Payload
}

// New creates a merge unit over sources, named for logging.
func New(name string, sources []*gate.Link, log *slog.Logger) *Unit {
	return &Unit{
		Name:    name,
		Sources: sources,
		Out:     gate.New(),
		log:     log.With("unit", name, "kind", "merge"),
	}
}

// Run drives the unit until ctx is cancelled.
func (u *Unit) Run(ctx context.Context) error {
	defer u.Out.Close()
	if len(u.Sources) == 0 {
		u.Out.SetStalled()
		<-ctx.Done()
		return ctx.Err()
	}
	u.evaluate()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := u.waitAny(ctx); err != nil {
			return err
		}
		u.evaluate()
	}
}

func (u *Unit) waitAny(ctx context.Context) error {
	results := make(chan error, len(u.Sources))
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	for _, link := range u.Sources {
		go func(link *gate.Link) {
			_, _, err := link.Updated(subCtx)
			select {
			case results <- err:
			case <-subCtx.Done():
			}
		}(link)
	}
	select {
	case err := <-results:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// evaluate recomputes the union of every healthy source and publishes
// it only if it differs from the last published union. Stalled is
// propagated only when every source is stalled.
func (u *Unit) evaluate() {
	var healthyCount int
	var origins []payload.Origin
	var keys []payload.RouterKey
	var aspas []payload.ASPA

	for _, link := range u.Sources {
		p, health, has := link.Current()
		if !has || health != gate.Healthy {
			continue
		}
		healthyCount++
		origins = append(origins, p.Origins...)
		keys = append(keys, p.RouterKeys...)
		aspas = append(aspas, p.ASPAs...)
	}

	if healthyCount == 0 {
		u.log.Warn("all sources stalled")
		u.Out.SetStalled()
		return
	}

	union := payload.New(origins, keys, aspas)
	u.Out.SetHealthy()
	if union.Equal(u.last) {
		return
	}
	u.Out.Publish(union)
	u.last = union
}
