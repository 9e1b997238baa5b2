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

package jsonclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/USA-RedDragon/rtrproxy/internal/gate"
	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/go-co-op/gocron/v2"
)

// DefaultRefresh is used when no refresh interval is configured.
const DefaultRefresh = 10 * time.Minute

// Unit periodically fetches a JSON VRP/ASPA document and republishes
// it as a Payload, stalling if no successful fetch has landed within
// two refresh intervals (spec section 4.4).
type Unit struct {
	Name      string
	Refresh   time.Duration
	UserAgent string

	fetcher *Fetcher
	Out     *gate.Gate
	log     *slog.Logger

	last payload.Payload
}

// New creates a JSON client unit fetching from remote (http://,
// https://, or file://).
func New(name, remote string, refresh time.Duration, userAgent string, httpOpts HTTPOptions, log *slog.Logger) (*Unit, error) {
	fetcher, err := NewFetcher(remote, httpOpts)
	if err != nil {
		return nil, fmt.Errorf("jsonclient: %s: %w", name, err)
	}
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return &Unit{
		Name:      name,
		Refresh:   refresh,
		UserAgent: userAgent,
		fetcher:   fetcher,
		Out:       gate.New(),
		log:       log.With("unit", name, "kind", "json-client", "remote", remote),
		last:      payload.Empty,
	}, nil
}

// Run fetches on startup and then on every refresh tick until ctx is
// cancelled.
func (u *Unit) Run(ctx context.Context) error {
	defer u.Out.Close()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("jsonclient: create scheduler: %w", err)
	}

	ticks := make(chan struct{}, 1)
	trigger := func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}
	if _, err := scheduler.NewJob(gocron.DurationJob(u.Refresh), gocron.NewTask(trigger)); err != nil {
		return fmt.Errorf("jsonclient: schedule refresh: %w", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			u.log.Warn("error shutting down jsonclient scheduler", "error", err)
		}
	}()

	stallTimer := time.NewTimer(2 * u.Refresh)
	defer stallTimer.Stop()

	u.fetchAndApply(ctx, stallTimer)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			u.fetchAndApply(ctx, stallTimer)
		case <-stallTimer.C:
			u.log.Warn("no successful fetch within two refresh intervals; stalling")
			u.Out.SetStalled()
		}
	}
}

func (u *Unit) fetchAndApply(ctx context.Context, stallTimer *time.Timer) {
	result, err := u.fetcher.Fetch(ctx, u.UserAgent)
	if err != nil {
		u.log.Error("fetch failed", "error", err)
		return
	}
	if result.NotChanged {
		u.resetStallTimer(stallTimer)
		return
	}

	p, skipped, err := parseDocument(result.Body)
	if err != nil {
		u.log.Error("failed to parse fetched document", "error", err)
		return
	}
	if skipped > 0 {
		u.log.Warn("skipped malformed records while parsing document", "skipped", skipped)
	}

	u.resetStallTimer(stallTimer)
	u.Out.SetHealthy()
	if p.Equal(u.last) {
		return
	}
	u.last = p
	u.Out.Publish(p)
}

func (u *Unit) resetStallTimer(stallTimer *time.Timer) {
	if !stallTimer.Stop() {
		select {
		case <-stallTimer.C:
		default:
		}
	}
	stallTimer.Reset(2 * u.Refresh)
}
