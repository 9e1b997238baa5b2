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

// Package graph builds and validates the component graph described by a
// configuration: units produce data, targets consume it, and a unit may
// itself consume one or more other units' output (spec.md section 9
// design notes). The graph never lets a target be referenced as a
// source, and rejects reference cycles among units before anything is
// started.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// ErrUnknownSource is returned when a component's configured source
// name does not resolve to any declared unit.
var ErrUnknownSource = errors.New("graph: unknown source")

// ErrTargetAsSource is returned when a component references a target's
// name as one of its own sources; targets are terminal and may not feed
// other components.
var ErrTargetAsSource = errors.New("graph: targets may not be referenced as sources")

// ErrCycle is returned when the unit dependency graph contains a cycle.
var ErrCycle = errors.New("graph: cycle detected among units")

// ErrDuplicateName is returned when two components share a name.
var ErrDuplicateName = errors.New("graph: duplicate component name")

// Runnable is satisfied by every unit and target: a single blocking
// call that drives the component until ctx is cancelled or it fails
// irrecoverably.
type Runnable interface {
	Run(ctx context.Context) error
}

// node is one declared component: its name, the names of the units it
// reads from (empty for a unit with no upstream, e.g. rtrclient or
// jsonclient), whether it is a target (and thus cannot be a source
// itself), and the Runnable that implements it.
type node struct {
	name      string
	sources   []string
	isTarget  bool
	component Runnable
}

// Graph is a validated, name-indexed set of units and targets ready to
// run concurrently.
type Graph struct {
	order []string
	nodes map[string]*node
	log   *slog.Logger
}

// New creates an empty Graph.
func New(log *slog.Logger) *Graph {
	return &Graph{
		nodes: make(map[string]*node),
		log:   log,
	}
}

// AddUnit declares a unit named name, fed by the named sources (empty
// for a unit with no upstream dependency), backed by component.
func (g *Graph) AddUnit(name string, sources []string, component Runnable) error {
	return g.add(name, sources, false, component)
}

// AddTarget declares a target named name, fed by the named sources,
// backed by component. A target may never appear in another
// component's sources list.
func (g *Graph) AddTarget(name string, sources []string, component Runnable) error {
	return g.add(name, sources, true, component)
}

func (g *Graph) add(name string, sources []string, isTarget bool, component Runnable) error {
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	g.nodes[name] = &node{name: name, sources: sources, isTarget: isTarget, component: component}
	g.order = append(g.order, name)
	return nil
}

// Validate checks that every declared source resolves to a known unit
// (never a target), and that the unit dependency graph is acyclic. It
// must be called, and must succeed, before Run.
func (g *Graph) Validate() error {
	for _, name := range g.order {
		n := g.nodes[name]
		for _, src := range n.sources {
			dep, ok := g.nodes[src]
			if !ok {
				return fmt.Errorf("%w: %q references %q", ErrUnknownSource, name, src)
			}
			if dep.isTarget {
				return fmt.Errorf("%w: %q references target %q", ErrTargetAsSource, name, src)
			}
		}
	}
	return g.checkCycles()
}

// checkCycles runs a standard three-color DFS over the sources edges.
func (g *Graph) checkCycles() error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.order))
	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("%w: at %q", ErrCycle, name)
		}
		color[name] = gray
		for _, src := range g.nodes[name].sources {
			if err := visit(src); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}
	for _, name := range g.order {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// Describe logs the resolved topology, one line per component, in
// declaration order. It supplements spec.md's design notes with the
// startup visibility rtrtr's own logging provides but the distilled
// spec does not call out operationally.
func (g *Graph) Describe() {
	for _, name := range g.order {
		n := g.nodes[name]
		kind := "unit"
		if n.isTarget {
			kind = "target"
		}
		g.log.Info("component registered", "component", name, "kind", kind, "sources", n.sources)
	}
}

// Run starts every component concurrently and blocks until ctx is
// cancelled or any component returns a non-nil, non-context error, at
// which point the rest are cancelled via the shared errgroup context.
func (g *Graph) Run(ctx context.Context) error {
	eg, runCtx := errgroup.WithContext(ctx)
	for _, name := range g.order {
		n := g.nodes[name]
		eg.Go(func() error {
			if err := n.component.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("component %q: %w", n.name, err)
			}
			return nil
		})
	}
	return eg.Wait()
}
