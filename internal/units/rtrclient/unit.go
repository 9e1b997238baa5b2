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

// Package rtrclient wires the RTR client state machine to a Gate: one
// unit per configured remote, publishing every installed Payload and
// reflecting the connection's health (spec section 4.3).
package rtrclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"

	"github.com/USA-RedDragon/rtrproxy/internal/gate"
	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/USA-RedDragon/rtrproxy/internal/rtr/client"
)

// TLSConfig names the client certificate trust material for an
// rtrs+tls:// remote (spec section 6.2).
type TLSConfig struct {
	Enable       bool
	CACertFiles  []string
	SkipVerify   bool
	IdentityFile string // optional client certificate + key PEM
}

// Unit runs one RTR client connection against a single remote.
type Unit struct {
	Name   string
	Remote string // host:port

	Out *gate.Gate
	log *slog.Logger

	client *client.Client
}

// New creates an RTR client unit. Set tlsConfig.Enable to dial over TLS.
func New(name, remote string, tlsConfig TLSConfig, log *slog.Logger) (*Unit, error) {
	u := &Unit{
		Name:   name,
		Remote: remote,
		Out:    gate.New(),
		log:    log.With("unit", name, "kind", "rtr-client", "remote", remote),
	}

	var tc *tls.Config
	if tlsConfig.Enable {
		built, err := buildTLSConfig(tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("rtrclient: %s: %w", name, err)
		}
		tc = built
	}

	c := client.New(func(ctx context.Context) (net.Conn, error) {
		dialer := &net.Dialer{}
		if tc != nil {
			return tls.DialWithDialer(dialer, "tcp", remote, tc)
		}
		return dialer.DialContext(ctx, "tcp", remote)
	})
	c.OnPayload = func(p payload.Payload) {
		u.Out.SetHealthy()
		u.Out.Publish(p)
	}
	c.OnStalled = func() {
		u.log.Warn("rtr client stalled")
		u.Out.SetStalled()
	}
	c.OnHealthy = func() {
		u.log.Info("rtr client synchronized")
	}
	u.client = c
	return u, nil
}

func buildTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	pool, err := loadCAPool(cfg.CACertFiles)
	if err != nil {
		return nil, err
	}
	tc := &tls.Config{
		RootCAs:            pool,
		InsecureSkipVerify: cfg.SkipVerify, //nolint:gosec // operator opt-in for lab/self-signed remotes
		MinVersion:         tls.VersionTLS12,
	}
	if cfg.IdentityFile != "" {
		cert, err := loadIdentity(cfg.IdentityFile)
		if err != nil {
			return nil, err
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

// Run connects, negotiates, and streams updates into the unit's Gate
// until ctx is cancelled; failed connections mark the Gate stalled and
// are retried.
func (u *Unit) Run(ctx context.Context) error {
	defer u.Out.Close()
	err := u.client.Run(ctx)
	if err != nil {
		u.log.Warn("rtr client unit stopped", "error", err)
	}
	return err
}
