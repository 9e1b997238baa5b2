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

// Package any implements the failover selector unit: it re-emits
// exactly one healthy source's payload at a time, switching over when
// the selected source stalls (spec section 4.5).
package any

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/USA-RedDragon/rtrproxy/internal/gate"
)

// Unit subscribes to N source Links and republishes the currently
// selected one's payload onto its own Gate.
type Unit struct {
	Name    string
	Random  bool
	Sources []*gate.Link
	Out     *gate.Gate

	log     *slog.Logger
	current int
}

// New creates a failover unit over sources, named for logging.
func New(name string, sources []*gate.Link, random bool, log *slog.Logger) *Unit {
	return &Unit{
		Name:    name,
		Random:  random,
		Sources: sources,
		Out:     gate.New(),
		log:     log.With("unit", name, "kind", "any"),
		current: -1,
	}
}

// Run drives the unit until ctx is cancelled: it waits on whichever
// source has most recently updated and re-evaluates the selection on
// every tick.
func (u *Unit) Run(ctx context.Context) error {
	defer u.Out.Close()
	if len(u.Sources) == 0 {
		u.Out.SetStalled()
		<-ctx.Done()
		return ctx.Err()
	}
	u.evaluate(true)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, _, err := u.waitAny(ctx); err != nil {
			return err
		}
		u.evaluate(false)
	}
}

// waitAny suspends until any one source's Link reports an update.
func (u *Unit) waitAny(ctx context.Context) (int, error) {
	type result struct {
		idx int
		err error
	}
	results := make(chan result, len(u.Sources))
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	for i, link := range u.Sources {
		go func(i int, link *gate.Link) {
			_, _, err := link.Updated(subCtx)
			select {
			case results <- result{idx: i, err: err}:
			case <-subCtx.Done():
			}
		}(i, link)
	}
	select {
	case r := <-results:
		return r.idx, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// evaluate re-selects a healthy source and republishes if needed.
// force skips the "still healthy, just re-publish" fast path and
// always runs full selection; used once at startup.
func (u *Unit) evaluate(force bool) {
	if u.current >= 0 && u.current < len(u.Sources) {
		if _, health, has := u.Sources[u.current].Current(); has && health == gate.Healthy {
			if !force {
				p, _, _ := u.Sources[u.current].Current()
				u.Out.Publish(p)
				return
			}
		}
	}

	healthy := u.healthyIndexes()
	if len(healthy) == 0 {
		u.log.Warn("no healthy source available")
		u.Out.SetStalled()
		u.current = -1
		return
	}

	next := u.pickNext(healthy)
	switched := next != u.current
	u.current = next
	p, _, _ := u.Sources[next].Current()
	u.Out.SetHealthy()
	u.Out.Publish(p)
	if switched {
		u.log.Info("switched active source", "index", next)
	}
}

func (u *Unit) healthyIndexes() []int {
	var out []int
	for i, link := range u.Sources {
		if _, health, has := link.Current(); has && health == gate.Healthy {
			out = append(out, i)
		}
	}
	return out
}

// pickNext chooses among healthy indexes: the first in configured
// order, unless Random is set, in which case it picks uniformly among
// healthy sources excluding the current one when another is available.
func (u *Unit) pickNext(healthy []int) int {
	if !u.Random {
		for _, idx := range healthy {
			return idx
		}
	}
	candidates := healthy
	if len(healthy) > 1 {
		filtered := make([]int, 0, len(healthy)-1)
		for _, idx := range healthy {
			if idx != u.current {
				filtered = append(filtered, idx)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}
	return candidates[rand.IntN(len(candidates))]
}
