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

// Package rtrserver re-exports a Gate's data over RTR: a TCP or TLS
// listener handing each accepted connection to internal/rtr/server,
// backed by a bounded diff history that tracks the Gate's upstream
// (spec sections 2.9, 4.2.3, 7).
package rtrserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"

	"github.com/USA-RedDragon/rtrproxy/internal/gate"
	"github.com/USA-RedDragon/rtrproxy/internal/rtr/server"
)

// DefaultHistoryDepth is the default bounded diff-history window (H in
// spec section 4.2, invariant 8).
const DefaultHistoryDepth = 10

// Options configures the listener and per-connection protocol timers.
type Options struct {
	ListenAddr   string
	TLS          *tls.Config // nil for plaintext
	HistoryDepth int
	ProtoOptions server.Options
}

// Target listens for RTR client connections and serves each one from a
// shared diff history fed by an upstream Gate.
type Target struct {
	Name string
	opts Options

	upstream *gate.Link
	history  *server.Target
	log      *slog.Logger
}

// New creates an rtrserver target subscribed to upstream.
func New(name string, upstream *gate.Link, opts Options, log *slog.Logger) *Target {
	if opts.HistoryDepth <= 0 {
		opts.HistoryDepth = DefaultHistoryDepth
	}
	return &Target{
		Name:     name,
		opts:     opts,
		upstream: upstream,
		history:  server.NewTarget(opts.HistoryDepth),
		log:      log.With("target", name, "kind", "rtr-server", "listen", opts.ListenAddr),
	}
}

// Run accepts connections on the configured listen address until ctx
// is cancelled, concurrently mirroring upstream publications into the
// shared diff history.
func (t *Target) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", t.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("rtrserver: %s: listen: %w", t.Name, err)
	}
	if t.opts.TLS != nil {
		ln = tls.NewListener(ln, t.opts.TLS)
	}
	defer ln.Close()

	go t.mirrorUpstream(ctx)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return fmt.Errorf("rtrserver: %s: accept: %w", t.Name, err)
			}
		}
		t.log.Info("accepted RTR client", "remote", conn.RemoteAddr())
		go func() {
			if err := server.Serve(ctx, conn, t.history, t.opts.ProtoOptions, t.log); err != nil {
				t.log.Debug("RTR client connection ended", "error", err)
			}
		}()
	}
}

// mirrorUpstream republishes every healthy upstream payload into the
// shared diff history until the upstream link ends or ctx is cancelled.
// Stalled updates are skipped, so clients keep the last healthy data.
// The session is never reset: each new payload enters the history as a
// diff against the previous one.
func (t *Target) mirrorUpstream(ctx context.Context) {
	for {
		p, health, err := t.upstream.Updated(ctx)
		if err != nil {
			return
		}
		if health != gate.Healthy {
			continue
		}
		t.history.Publish(p)
	}
}
