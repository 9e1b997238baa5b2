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

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/USA-RedDragon/rtrproxy/internal/rtr/client"
	"github.com/USA-RedDragon/rtrproxy/internal/rtr/pdu"
	"github.com/USA-RedDragon/rtrproxy/internal/rtr/session"
	"github.com/philhofer/fwd"
)

// Options configures the per-connection timers advertised in every End
// of Data PDU (spec section 4.2.2/6.1's server-imposed values).
type Options struct {
	MaxLength uint32
	Refresh   uint32
	Retry     uint32
	Expire    uint32
}

// DefaultOptions mirrors the client package's own defaults.
func DefaultOptions() Options {
	return Options{
		MaxLength: pdu.DefaultMaxLength,
		Refresh:   uint32(client.DefaultRefresh.Seconds()),
		Retry:     uint32(client.DefaultRetry.Seconds()),
		Expire:    uint32(client.DefaultExpire.Seconds()),
	}
}

// Serve runs one client connection to completion: negotiate the
// protocol version, answer its opening query, then idle until the
// connection closes, ctx is cancelled, or a new query arrives (spec
// section 4.2.3).
func Serve(ctx context.Context, conn net.Conn, target *Target, opts Options, log *slog.Logger) error {
	defer conn.Close()
	w := fwd.NewWriter(conn)
	r := fwd.NewReader(conn)

	h, err := pdu.ReadHeader(r, opts.MaxLength)
	if err != nil {
		return fmt.Errorf("rtr server: read opening query header: %w", err)
	}
	version, ok := session.Negotiate(h.Version)
	if !ok {
		_ = (pdu.ErrorReport{Code: pdu.ErrUnsupportedProtocolVersion, Text: "unsupported protocol version"}).Encode(w, pdu.Version0)
		_ = w.Flush()
		return fmt.Errorf("rtr server: rejected unsupported version %d", h.Version)
	}

	query, err := pdu.Decode(r, h, version)
	if err != nil {
		return fmt.Errorf("rtr server: decode opening query: %w", err)
	}
	if err := answerQuery(w, target, opts, version, query); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("rtr server: flush initial response: %w", err)
	}

	subID, wake := target.subscribe()
	defer target.unsubscribe(subID)

	queries := make(chan pdu.PDU)
	readErrs := make(chan error, 1)
	go func() {
		for {
			h, err := pdu.ReadHeader(r, opts.MaxLength)
			if err != nil {
				readErrs <- err
				return
			}
			body, err := pdu.Decode(r, h, version)
			if err != nil {
				readErrs <- err
				return
			}
			queries <- body
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErrs:
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("rtr server: connection read error: %w", err)
		case q := <-queries:
			if err := answerQuery(w, target, opts, version, q); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("rtr server: flush response: %w", err)
			}
		case <-wake:
			sessionID, serial, _ := target.snapshot()
			if err := (pdu.SerialNotify{SessionID: sessionID, Serial: serial}).Encode(w, version); err != nil {
				return fmt.Errorf("rtr server: encode serial notify: %w", err)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("rtr server: flush serial notify: %w", err)
			}
		}
	}
}

// answerQuery dispatches a Serial Query or Reset Query to its response,
// sending a Cache Reset for anything else (an out-of-place PDU from a
// misbehaving client) rather than tearing down the connection.
func answerQuery(w *fwd.Writer, target *Target, opts Options, version pdu.Version, query pdu.PDU) error {
	switch q := query.(type) {
	case pdu.ResetQuery:
		return sendFullSnapshot(w, target, opts, version)
	case pdu.SerialQuery:
		return sendSerialResponse(w, target, opts, version, q)
	default:
		return (pdu.CacheReset{}).Encode(w, version)
	}
}

func sendFullSnapshot(w *fwd.Writer, target *Target, opts Options, version pdu.Version) error {
	sessionID, serial, p := target.snapshot()
	if err := (pdu.CacheResponse{SessionID: sessionID}).Encode(w, version); err != nil {
		return err
	}
	for _, o := range p.Origins {
		if err := encodeOrigin(w, version, pdu.FlagAnnounce, o); err != nil {
			return err
		}
	}
	if version >= pdu.Version1 {
		for _, k := range p.RouterKeys {
			if err := (pdu.RouterKey{Flags: pdu.FlagAnnounce, SKI: k.SKI, ASN: k.ASN, SPKI: k.SPKI}).Encode(w, version); err != nil {
				return err
			}
		}
	}
	if version >= pdu.Version2 {
		for _, a := range p.ASPAs {
			if err := (pdu.ASPA{Flags: pdu.FlagAnnounce, Customer: a.Customer, Providers: a.Providers}).Encode(w, version); err != nil {
				return err
			}
		}
	}
	return (pdu.EndOfData{SessionID: sessionID, Serial: serial, Refresh: opts.Refresh, Retry: opts.Retry, Expire: opts.Expire}).Encode(w, version)
}

func sendSerialResponse(w *fwd.Writer, target *Target, opts Options, version pdu.Version, q pdu.SerialQuery) error {
	diff, ok := target.diffSince(q.SessionID, q.Serial)
	if !ok {
		return (pdu.CacheReset{}).Encode(w, version)
	}
	sessionID, serial, _ := target.snapshot()
	if err := (pdu.CacheResponse{SessionID: sessionID}).Encode(w, version); err != nil {
		return err
	}
	for _, o := range diff.WithdrawOrigins {
		if err := encodeOrigin(w, version, pdu.FlagWithdraw, o); err != nil {
			return err
		}
	}
	for _, o := range diff.AddOrigins {
		if err := encodeOrigin(w, version, pdu.FlagAnnounce, o); err != nil {
			return err
		}
	}
	if version >= pdu.Version1 {
		for _, k := range diff.WithdrawRouterKeys {
			if err := (pdu.RouterKey{Flags: pdu.FlagWithdraw, SKI: k.SKI, ASN: k.ASN, SPKI: k.SPKI}).Encode(w, version); err != nil {
				return err
			}
		}
		for _, k := range diff.AddRouterKeys {
			if err := (pdu.RouterKey{Flags: pdu.FlagAnnounce, SKI: k.SKI, ASN: k.ASN, SPKI: k.SPKI}).Encode(w, version); err != nil {
				return err
			}
		}
	}
	if version >= pdu.Version2 {
		for _, a := range diff.WithdrawASPAs {
			if err := (pdu.ASPA{Flags: pdu.FlagWithdraw, Customer: a.Customer}).Encode(w, version); err != nil {
				return err
			}
		}
		for _, a := range diff.AddASPAs {
			if err := (pdu.ASPA{Flags: pdu.FlagAnnounce, Customer: a.Customer, Providers: a.Providers}).Encode(w, version); err != nil {
				return err
			}
		}
	}
	return (pdu.EndOfData{SessionID: sessionID, Serial: serial, Refresh: opts.Refresh, Retry: opts.Retry, Expire: opts.Expire}).Encode(w, version)
}

func encodeOrigin(w *fwd.Writer, version pdu.Version, flag pdu.Flag, o payload.Origin) error {
	addr := o.Prefix.Addr()
	if addr.Is4() {
		return (pdu.IPv4Prefix{
			Flags: flag, PrefixLen: uint8(o.Prefix.Bits()), MaxLen: o.MaxLength,
			Prefix: addr.As4(), ASN: o.ASN,
		}).Encode(w, version)
	}
	return (pdu.IPv6Prefix{
		Flags: flag, PrefixLen: uint8(o.Prefix.Bits()), MaxLen: o.MaxLength,
		Prefix: addr.As16(), ASN: o.ASN,
	}).Encode(w, version)
}
