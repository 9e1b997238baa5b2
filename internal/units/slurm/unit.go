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

package slurm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/USA-RedDragon/rtrproxy/internal/gate"
	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
)

// Unit subscribes to one upstream link, applies the local exception
// files' filter-then-assert pipeline to every snapshot, and republishes
// the result (spec section 4.7).
type Unit struct {
	Name          string
	Files         []string
	RecheckPeriod time.Duration

	Upstream *gate.Link
	Out      *gate.Gate

	log *slog.Logger
}

// New creates a SLURM unit reading files, reapplied to upstream on
// every upstream change and on every mtime change or recheck tick.
func New(name string, files []string, recheckPeriod time.Duration, upstream *gate.Link, log *slog.Logger) *Unit {
	return &Unit{
		Name:          name,
		Files:         files,
		RecheckPeriod: recheckPeriod,
		Upstream:      upstream,
		Out:           gate.New(),
		log:           log.With("unit", name, "kind", "slurm"),
	}
}

// Run drives the unit until ctx is cancelled.
func (u *Unit) Run(ctx context.Context) error {
	defer u.Out.Close()

	reload := make(chan struct{}, 1)
	triggerReload := func() {
		select {
		case reload <- struct{}{}:
		default:
		}
	}

	watcher, watchErr := u.startWatcher(ctx, triggerReload)
	if watchErr != nil {
		u.log.Warn("falling back to periodic re-check; filesystem watch unavailable", "error", watchErr)
	}
	if watcher != nil {
		defer watcher.Close()
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("slurm: create scheduler: %w", err)
	}
	if u.RecheckPeriod > 0 {
		if _, err := scheduler.NewJob(
			gocron.DurationJob(u.RecheckPeriod),
			gocron.NewTask(triggerReload),
		); err != nil {
			return fmt.Errorf("slurm: schedule recheck: %w", err)
		}
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			u.log.Warn("error shutting down slurm recheck scheduler", "error", err)
		}
	}()

	doc := u.loadAll()
	if p, health, has := u.Upstream.Current(); has && health == gate.Healthy {
		u.apply(p, doc)
	}

	type upstreamEvent struct {
		payload payload.Payload
		health  gate.Health
		err     error
	}
	updates := make(chan upstreamEvent)
	go func() {
		for {
			p, health, err := u.Upstream.Updated(ctx)
			select {
			case updates <- upstreamEvent{p, health, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reload:
			doc = u.loadAll()
			if p, health, has := u.Upstream.Current(); has && health == gate.Healthy {
				u.apply(p, doc)
			}
		case ev := <-updates:
			if ev.err != nil {
				if ev.err == gate.ErrClosed {
					u.Out.SetStalled()
				}
				return ev.err
			}
			if ev.health != gate.Healthy {
				u.Out.SetStalled()
				continue
			}
			u.apply(ev.payload, doc)
		}
	}
}

func (u *Unit) apply(p payload.Payload, doc Document) {
	out, removed, added := Apply(p, doc)
	if removed > 0 || added > 0 {
		u.log.Info("applied local exceptions", "removed", removed, "added", added)
	}
	u.Out.SetHealthy()
	u.Out.Publish(out)
}

// loadAll parses every configured file, skipping (and logging) any
// file that fails to parse. If every file fails, it returns an empty
// document so the upstream payload passes through unchanged.
func (u *Unit) loadAll() Document {
	var docs []Document
	failed := 0
	for _, path := range u.Files {
		raw, err := os.ReadFile(path)
		if err != nil {
			u.log.Error("failed to read SLURM file; skipping", "file", path, "error", err)
			failed++
			continue
		}
		doc, err := Parse(raw)
		if err != nil {
			u.log.Error("failed to parse SLURM file; skipping", "file", path, "error", err)
			failed++
			continue
		}
		docs = append(docs, doc)
	}
	if len(u.Files) > 0 && failed == len(u.Files) {
		u.log.Warn("all SLURM files failed to load; passing upstream payload through unchanged")
	}
	return Merge(docs)
}

func (u *Unit) startWatcher(ctx context.Context, onChange func()) (*fsnotify.Watcher, error) {
	if len(u.Files) == 0 {
		return nil, nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("slurm: create fsnotify watcher: %w", err)
	}
	for _, path := range u.Files {
		if err := watcher.Add(path); err != nil {
			u.log.Warn("could not watch SLURM file", "file", path, "error", err)
		}
	}
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				u.log.Warn("fsnotify error watching SLURM files", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()
	return watcher, nil
}
