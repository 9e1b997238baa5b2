// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package session_test

import (
	"net/netip"
	"testing"

	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/USA-RedDragon/rtrproxy/internal/rtr/pdu"
	"github.com/USA-RedDragon/rtrproxy/internal/rtr/session"
	"github.com/stretchr/testify/require"
)

func origin(n uint32) payload.Origin {
	return payload.Origin{Prefix: netip.MustParsePrefix("192.0.2.0/24"), MaxLength: 24, ASN: n}
}

func TestLadderDownshiftsToExhaustion(t *testing.T) {
	l := session.NewLadder()
	require.Equal(t, pdu.Version2, l.Current())
	require.True(t, l.Downshift())
	require.Equal(t, pdu.Version1, l.Current())
	require.True(t, l.Downshift())
	require.Equal(t, pdu.Version0, l.Current())
	require.False(t, l.Downshift())
}

func TestNegotiateAcceptsKnownVersions(t *testing.T) {
	v, ok := session.Negotiate(pdu.Version1)
	require.True(t, ok)
	require.Equal(t, pdu.Version1, v)

	_, ok = session.Negotiate(pdu.Version(9))
	require.False(t, ok)
}

func TestHistoryDiffSinceWithinWindow(t *testing.T) {
	h := session.NewHistory(3)
	h.Publish(payload.New([]payload.Origin{origin(1)}, nil, nil))
	h.Publish(payload.New([]payload.Origin{origin(1), origin(2)}, nil, nil))

	d, ok := h.DiffSince(h.SessionID(), 1)
	require.True(t, ok)
	require.Len(t, d.AddOrigins, 1)
}

func TestHistoryEvictsOldestBeyondCapacity(t *testing.T) {
	h := session.NewHistory(2)
	h.Publish(payload.New([]payload.Origin{origin(1)}, nil, nil))
	h.Publish(payload.New([]payload.Origin{origin(1), origin(2)}, nil, nil))
	h.Publish(payload.New([]payload.Origin{origin(1), origin(2), origin(3)}, nil, nil))

	_, ok := h.DiffSince(h.SessionID(), 0)
	require.False(t, ok, "serial 0 should have fallen off a 2-entry window after 3 publications")
}

func TestHistoryRejectsUnknownSession(t *testing.T) {
	h := session.NewHistory(3)
	h.Publish(payload.New([]payload.Origin{origin(1)}, nil, nil))

	_, ok := h.DiffSince(h.SessionID()+1, 0)
	require.False(t, ok)
}

func TestHistorySameSerialIsEmptyDiff(t *testing.T) {
	h := session.NewHistory(3)
	h.Publish(payload.New([]payload.Origin{origin(1)}, nil, nil))

	d, ok := h.DiffSince(h.SessionID(), h.Serial())
	require.True(t, ok)
	require.True(t, d.Empty())
}
