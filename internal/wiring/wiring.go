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

// Package wiring turns a loaded Config into a validated component graph:
// one gate.Gate per named unit, one Link per declared source reference,
// and a gin.Engine per configured http-listen address carrying every
// http target plus the ambient /metrics and /status endpoints. This is
// the only package that knows about every unit/target constructor at
// once; cmd just calls Build then hands the result to graph.Run.
package wiring

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/USA-RedDragon/rtrproxy/internal/config"
	"github.com/USA-RedDragon/rtrproxy/internal/gate"
	"github.com/USA-RedDragon/rtrproxy/internal/graph"
	"github.com/USA-RedDragon/rtrproxy/internal/metrics"
	rtrserveropts "github.com/USA-RedDragon/rtrproxy/internal/rtr/server"
	"github.com/USA-RedDragon/rtrproxy/internal/targets/httptarget"
	"github.com/USA-RedDragon/rtrproxy/internal/targets/rtrserver"
	"github.com/USA-RedDragon/rtrproxy/internal/units/any"
	"github.com/USA-RedDragon/rtrproxy/internal/units/jsonclient"
	"github.com/USA-RedDragon/rtrproxy/internal/units/merge"
	"github.com/USA-RedDragon/rtrproxy/internal/units/rtrclient"
	"github.com/USA-RedDragon/rtrproxy/internal/units/slurm"
	"github.com/gin-contrib/cors"
	ginpprof "github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// slurmDefaultRecheck is used when a slurm unit's refresh interval is
// unset; slurm's primary reload trigger is the fsnotify watcher, this
// is only the periodic fallback (spec section 4.7).
const slurmDefaultRecheck = time.Minute

// Result is everything Build produces: the validated graph ready to
// Run, and one gin.Engine per configured http-listen address that still
// needs an http.Server wrapped around it.
type Result struct {
	Graph   *graph.Graph
	Engines map[string]*gin.Engine
}

// Build resolves every configured unit and target into the component
// graph. Units are constructed in dependency order so that an any/
// merge/slurm unit's sources already have a live Gate to subscribe to;
// Validate() is called before returning so a cyclic or dangling
// configuration is reported before anything starts.
func Build(cfg *config.Config, log *slog.Logger, reg *prometheus.Registry) (*Result, error) {
	g := graph.New(log)
	gates := make(map[string]*gate.Gate, len(cfg.Units))
	status := metrics.NewStatusRegistry()
	metrics.New(reg)

	order, err := topoSortUnits(cfg.Units)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]config.Unit, len(cfg.Units))
	for _, u := range cfg.Units {
		byName[u.Name] = u
	}

	for _, name := range order {
		u := byName[name]
		runnable, out, sources, err := buildUnit(u, gates, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("wiring: unit %q: %w", u.Name, err)
		}
		gates[u.Name] = out
		status.Register(u.Name, out.Subscribe())
		if err := g.AddUnit(u.Name, sources, runnable); err != nil {
			return nil, err
		}
	}

	engines := make(map[string]*gin.Engine, len(cfg.HTTPListen))
	for _, addr := range cfg.HTTPListen {
		e := gin.New()
		e.Use(gin.Recovery(), cors.Default())
		engines[addr] = e
	}
	if cfg.Metrics.Enabled {
		for _, e := range engines {
			metrics.RegisterHandlers(e, reg, status)
		}
	}
	if cfg.Debug {
		for _, e := range engines {
			ginpprof.Register(e)
		}
	}

	for _, t := range cfg.Targets {
		srcGate, ok := gates[t.Unit]
		if !ok {
			return nil, fmt.Errorf("wiring: target %q references unknown unit %q", t.Name, t.Unit)
		}
		if err := buildTarget(t, srcGate, engines, g, log); err != nil {
			return nil, fmt.Errorf("wiring: target %q: %w", t.Name, err)
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	g.Describe()

	return &Result{Graph: g, Engines: engines}, nil
}

// topoSortUnits orders units so that every any/merge/slurm unit appears
// after all of its declared sources. graph.Validate independently
// rejects the same cycle once every unit exists as a node; this pass
// just needs an order to construct in.
func topoSortUnits(units []config.Unit) ([]string, error) {
	sources := make(map[string][]string, len(units))
	known := make(map[string]bool, len(units))
	for _, u := range units {
		known[u.Name] = true
		switch u.Type {
		case config.UnitTypeAny, config.UnitTypeMerge:
			sources[u.Name] = u.Sources
		case config.UnitTypeSLURM:
			sources[u.Name] = []string{u.Source}
		}
	}

	var order []string
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(units))
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("wiring: cycle detected at unit %q", name)
		}
		state[name] = visiting
		for _, src := range sources[name] {
			if !known[src] {
				continue // reported uniformly by graph.Validate below
			}
			if err := visit(src); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, u := range units {
		if err := visit(u.Name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// buildUnit constructs the concrete unit named by u.Type and returns it
// as a graph.Runnable alongside its output Gate (for downstream
// subscriptions) and the names of the units it itself consumes.
func buildUnit(u config.Unit, gates map[string]*gate.Gate, cfg *config.Config, log *slog.Logger) (graph.Runnable, *gate.Gate, []string, error) {
	switch u.Type {
	case config.UnitTypeRTR, config.UnitTypeRTRTLS:
		tlsCfg := rtrclient.TLSConfig{
			Enable:      u.Type == config.UnitTypeRTRTLS,
			CACertFiles: u.CACerts,
		}
		unit, err := rtrclient.New(u.Name, u.Remote, tlsCfg, log)
		if err != nil {
			return nil, nil, nil, err
		}
		return unit, unit.Out, nil, nil

	case config.UnitTypeJSON:
		httpOpts := jsonclient.HTTPOptions{
			UserAgent:    cfg.HTTPFetch.UserAgent,
			BindAddress:  cfg.HTTPFetch.ClientAddr,
			CACertFiles:  cfg.HTTPFetch.RootCerts,
			IdentityFile: u.Identity,
		}
		if len(cfg.HTTPFetch.Proxies) > 0 {
			httpOpts.ProxyURL = cfg.HTTPFetch.Proxies[0]
		}
		unit, err := jsonclient.New(u.Name, u.URI, u.Refresh, httpOpts.UserAgent, httpOpts, log)
		if err != nil {
			return nil, nil, nil, err
		}
		return unit, unit.Out, nil, nil

	case config.UnitTypeAny:
		links, err := subscribeAll(gates, u.Sources)
		if err != nil {
			return nil, nil, nil, err
		}
		unit := any.New(u.Name, links, u.Random, log)
		return unit, unit.Out, u.Sources, nil

	case config.UnitTypeMerge:
		links, err := subscribeAll(gates, u.Sources)
		if err != nil {
			return nil, nil, nil, err
		}
		unit := merge.New(u.Name, links, log)
		return unit, unit.Out, u.Sources, nil

	case config.UnitTypeSLURM:
		srcGate, ok := gates[u.Source]
		if !ok {
			return nil, nil, nil, fmt.Errorf("references unknown source %q", u.Source)
		}
		recheck := u.Refresh
		if recheck <= 0 {
			recheck = slurmDefaultRecheck
		}
		unit := slurm.New(u.Name, u.Files, recheck, srcGate.Subscribe(), log)
		return unit, unit.Out, []string{u.Source}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unrecognized unit type %q", u.Type)
	}
}

func subscribeAll(gates map[string]*gate.Gate, names []string) ([]*gate.Link, error) {
	links := make([]*gate.Link, 0, len(names))
	for _, name := range names {
		srcGate, ok := gates[name]
		if !ok {
			return nil, fmt.Errorf("references unknown source %q", name)
		}
		links = append(links, srcGate.Subscribe())
	}
	return links, nil
}

// buildTarget constructs the concrete target named by t.Type, registers
// it on every relevant gin.Engine (http targets only), and adds it to g.
func buildTarget(t config.Target, srcGate *gate.Gate, engines map[string]*gin.Engine, g *graph.Graph, log *slog.Logger) error {
	switch t.Type {
	case config.TargetTypeRTR, config.TargetTypeRTRTLS:
		opts := rtrserver.Options{
			ListenAddr:   t.Listen,
			HistoryDepth: t.HistorySize,
			ProtoOptions: rtrserveropts.Options{
				Refresh: t.TargetRefresh,
				Retry:   t.TargetRetry,
				Expire:  t.TargetExpire,
			},
		}
		if t.Type == config.TargetTypeRTRTLS {
			cert, err := tls.LoadX509KeyPair(t.Certificate, t.Key)
			if err != nil {
				return fmt.Errorf("load certificate/key: %w", err)
			}
			opts.TLS = &tls.Config{
				MinVersion:   tls.VersionTLS12,
				Certificates: []tls.Certificate{cert},
			}
		}
		target := rtrserver.New(t.Name, srcGate.Subscribe(), opts, log)
		return g.AddTarget(t.Name, []string{t.Unit}, target)

	case config.TargetTypeHTTP:
		target := httptarget.New(t.Name, t.Path, srcGate.Subscribe(), log)
		for _, e := range engines {
			target.Register(e)
		}
		return g.AddTarget(t.Name, []string{t.Unit}, target)

	default:
		return fmt.Errorf("unrecognized target type %q", t.Type)
	}
}
