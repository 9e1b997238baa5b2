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

// Package client implements the RTR client state machine shared by
// the RTR client unit: Disconnected → Connecting → Negotiating →
// Serial|Reset → Processing → Idle → (Notify|timer) → … (spec section
// 4.2.2).
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/USA-RedDragon/rtrproxy/internal/rtr/pdu"
	"github.com/USA-RedDragon/rtrproxy/internal/rtr/session"
	"github.com/philhofer/fwd"
)

// Default and minimum timer values per spec section 4.2.2.
const (
	DefaultRefresh = 3600 * time.Second
	DefaultRetry   = 600 * time.Second
	DefaultExpire  = 7200 * time.Second

	MinRefresh = 1 * time.Second
	MinRetry   = 1 * time.Second
	MinExpire  = 600 * time.Second
)

// ErrVersionsExhausted is returned once every version in the
// negotiation ladder has been rejected by the peer.
var ErrVersionsExhausted = errors.New("rtr client: peer rejected every supported protocol version")

// Dialer opens a transport connection to a remote RTR server. Production
// callers pass a function wrapping net.Dialer.DialContext or
// tls.Dialer.DialContext; tests substitute an in-memory pipe.
type Dialer func(ctx context.Context) (net.Conn, error)

// OnPayload is invoked every time the client atomically installs a new
// Payload after an End of Data PDU.
type OnPayload func(p payload.Payload)

// Client runs one RTR session against a single remote, per spec
// section 4.3.
type Client struct {
	Dial      Dialer
	MaxLength uint32
	OnPayload OnPayload
	OnStalled func()
	OnHealthy func()

	ladder  *session.Ladder
	state   session.State
	hasSess bool

	refresh time.Duration
	retry   time.Duration
	expire  time.Duration

	current payload.Payload
}

// New creates a Client with the given Dialer and a sane MaxLength
// default (spec section 4.4/6.1).
func New(dial Dialer) *Client {
	return &Client{
		Dial:      dial,
		MaxLength: pdu.DefaultMaxLength,
		ladder:    session.NewLadder(),
		refresh:   DefaultRefresh,
		retry:     DefaultRetry,
		expire:    DefaultExpire,
		current:   payload.Empty,
	}
}

// Run drives the client until ctx is cancelled. On every failure (a
// transport error, a peer error, or the peer rejecting even v0) it
// calls OnStalled, waits retry, and reconnects. The current payload is
// retained across reconnects until expire elapses with no successful
// refresh, at which point it is discarded and the next connection
// starts over with a Reset Query.
func (c *Client) Run(ctx context.Context) error {
	expireTimer := time.NewTimer(c.expire)
	defer expireTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.runOnce(ctx, expireTimer)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// ErrVersionsExhausted (v0 rejected too) takes the same path:
		// stall, wait retry, then try again.
		if c.OnStalled != nil {
			c.OnStalled()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retry):
		case <-expireTimer.C:
			c.current = payload.Empty
			c.hasSess = false
		}
	}
}

// runOnce performs one connect → negotiate → process → Idle cycle. A
// background goroutine keeps reading PDUs off the connection for as
// long as it stays open; the foreground select loop answers them and,
// once Idle (a End of Data has been committed), re-issues a Serial
// Query on the *same* connection either when a Serial Notify arrives
// or when the refresh timer expires (spec section 4.2.2). runOnce only
// returns when the connection itself ends, the version ladder
// downshifts, or the peer sends a Cache Reset, all of which warrant a
// fresh Dial from the caller.
func (c *Client) runOnce(ctx context.Context, expireTimer *time.Timer) error {
	conn, err := c.Dial(ctx)
	if err != nil {
		return fmt.Errorf("rtr client: dial: %w", err)
	}
	defer conn.Close()

	w := fwd.NewWriter(conn)
	r := fwd.NewReader(conn)
	version := c.ladder.Current()

	if err := c.sendQuery(w, version); err != nil {
		return err
	}

	pdus := make(chan pdu.PDU)
	readErrs := make(chan error, 1)
	go func() {
		for {
			h, err := pdu.ReadHeader(r, c.MaxLength)
			if err != nil {
				readErrs <- err
				return
			}
			body, err := pdu.Decode(r, h, version)
			if err != nil {
				readErrs <- err
				return
			}
			pdus <- body
		}
	}()

	refreshTimer := time.NewTimer(c.refresh)
	defer refreshTimer.Stop()
	idle := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErrs:
			return fmt.Errorf("rtr client: connection read error: %w", err)
		case body := <-pdus:
			switch m := body.(type) {
			case pdu.ErrorReport:
				if m.Code == pdu.ErrUnsupportedProtocolVersion {
					if !c.ladder.Downshift() {
						return ErrVersionsExhausted
					}
					return nil // caller reconnects at the downshifted version
				}
				return fmt.Errorf("rtr client: peer error %d: %s", m.Code, m.Text)
			case pdu.CacheReset:
				c.hasSess = false
				return nil
			case pdu.CacheResponse:
				c.state.ID = m.SessionID
				base := c.current
				if !c.hasSess {
					base = payload.Empty // the reply to a Reset Query carries the full dataset
				}
				builder := payload.NewBuilder(base)
				if err := c.drainToEndOfData(version, builder, expireTimer, pdus, readErrs); err != nil {
					return err
				}
				idle = true
				resetTimer(refreshTimer, c.refresh)
			case pdu.SerialNotify:
				if err := c.sendQuery(w, version); err != nil {
					return err
				}
				idle = false
			default:
				return fmt.Errorf("rtr client: unexpected PDU %s", body.Type())
			}
		case <-refreshTimer.C:
			if !idle {
				continue
			}
			if err := c.sendQuery(w, version); err != nil {
				return err
			}
			idle = false
			resetTimer(refreshTimer, c.refresh)
		}
	}
}

// sendQuery issues a Reset Query (no prior session) or a Serial Query
// (resuming the last known session/serial) and flushes it.
func (c *Client) sendQuery(w *fwd.Writer, version pdu.Version) error {
	if !c.hasSess {
		if err := (pdu.ResetQuery{}).Encode(w, version); err != nil {
			return err
		}
	} else {
		if err := (pdu.SerialQuery{SessionID: c.state.ID, Serial: c.state.Serial}).Encode(w, version); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("rtr client: flush query: %w", err)
	}
	return nil
}

// drainToEndOfData accumulates add/withdraw PDUs read off pdus/readErrs
// into builder until an End of Data PDU commits them, atomically
// installing the resulting Payload and refreshing the session/timer
// state.
func (c *Client) drainToEndOfData(version pdu.Version, builder *payload.Builder, expireTimer *time.Timer, pdus <-chan pdu.PDU, readErrs <-chan error) error {
	for {
		var body pdu.PDU
		select {
		case err := <-readErrs:
			return fmt.Errorf("rtr client: connection read error: %w", err)
		case body = <-pdus:
		}

		switch m := body.(type) {
		case pdu.IPv4Prefix:
			applyIPv4(builder, m)
		case pdu.IPv6Prefix:
			applyIPv6(builder, m)
		case pdu.RouterKey:
			applyRouterKey(builder, m)
		case pdu.ASPA:
			applyASPA(builder, m)
		case pdu.EndOfData:
			c.state.Serial = m.Serial
			c.hasSess = true
			c.refresh, c.retry, c.expire = normalizeTimers(version, m)
			c.current = builder.Build()
			resetTimer(expireTimer, c.expire)
			if c.OnHealthy != nil {
				c.OnHealthy()
			}
			if c.OnPayload != nil {
				c.OnPayload(c.current)
			}
			return nil
		default:
			return fmt.Errorf("rtr client: unexpected PDU %s mid-delta", body.Type())
		}
	}
}

// resetTimer drains a possibly-already-fired timer before rearming it,
// per the documented time.Timer.Reset caveat.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func normalizeTimers(version pdu.Version, m pdu.EndOfData) (refresh, retry, expire time.Duration) {
	refresh, retry, expire = DefaultRefresh, DefaultRetry, DefaultExpire
	if version == pdu.Version0 {
		return
	}
	if m.Refresh > 0 {
		refresh = time.Duration(m.Refresh) * time.Second
	}
	if m.Retry > 0 {
		retry = time.Duration(m.Retry) * time.Second
	}
	if m.Expire > 0 {
		expire = time.Duration(m.Expire) * time.Second
	}
	if refresh < MinRefresh {
		refresh = MinRefresh
	}
	if retry < MinRetry {
		retry = MinRetry
	}
	if expire < MinExpire {
		expire = MinExpire
	}
	return
}

func applyIPv4(b *payload.Builder, m pdu.IPv4Prefix) {
	addr := netip.AddrFrom4(m.Prefix)
	prefix := netip.PrefixFrom(addr, int(m.PrefixLen))
	o := payload.Origin{Prefix: prefix, MaxLength: m.MaxLen, ASN: m.ASN}
	if m.Flags == pdu.FlagAnnounce {
		b.AddOrigin(o)
	} else {
		b.WithdrawOrigin(o)
	}
}

func applyIPv6(b *payload.Builder, m pdu.IPv6Prefix) {
	addr := netip.AddrFrom16(m.Prefix)
	prefix := netip.PrefixFrom(addr, int(m.PrefixLen))
	o := payload.Origin{Prefix: prefix, MaxLength: m.MaxLen, ASN: m.ASN}
	if m.Flags == pdu.FlagAnnounce {
		b.AddOrigin(o)
	} else {
		b.WithdrawOrigin(o)
	}
}

func applyRouterKey(b *payload.Builder, m pdu.RouterKey) {
	k := payload.RouterKey{SKI: m.SKI, ASN: m.ASN, SPKI: m.SPKI}
	if m.Flags == pdu.FlagAnnounce {
		b.AddRouterKey(k)
	} else {
		b.WithdrawRouterKey(k)
	}
}

func applyASPA(b *payload.Builder, m pdu.ASPA) {
	if m.Flags == pdu.FlagAnnounce {
		b.AddASPA(payload.ASPA{Customer: m.Customer, Providers: m.Providers})
	} else {
		b.WithdrawASPA(m.Customer)
	}
}
