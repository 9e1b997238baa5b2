// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package any_test

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/USA-RedDragon/rtrproxy/internal/gate"
	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/USA-RedDragon/rtrproxy/internal/units/any"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func originPayload(asn uint32) payload.Payload {
	return payload.New([]payload.Origin{{Prefix: netip.MustParsePrefix("192.0.2.0/24"), MaxLength: 24, ASN: asn}}, nil, nil)
}

func TestAnyUnitPrefersFirstHealthySource(t *testing.T) {
	g1, g2 := gate.New(), gate.New()
	g1.Publish(originPayload(1))
	g2.Publish(originPayload(2))

	u := any.New("test", []*gate.Link{g1.Subscribe(), g2.Subscribe()}, false, discardLogger())
	out := u.Out.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	go u.Run(ctx)
	defer cancel()

	p, _, err := out.Updated(waitCtx(t))
	require.NoError(t, err)
	require.True(t, p.Equal(originPayload(1)))
}

func TestAnyUnitSwitchesOverOnStall(t *testing.T) {
	g1, g2 := gate.New(), gate.New()
	g1.Publish(originPayload(1))
	g2.Publish(originPayload(2))

	u := any.New("test", []*gate.Link{g1.Subscribe(), g2.Subscribe()}, false, discardLogger())
	out := u.Out.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	_, _, err := out.Updated(waitCtx(t))
	require.NoError(t, err)

	g1.SetStalled()
	p, _, err := out.Updated(waitCtx(t))
	require.NoError(t, err)
	require.True(t, p.Equal(originPayload(2)))
}

func TestAnyUnitPropagatesStalledWhenNoneHealthy(t *testing.T) {
	g1 := gate.New()
	g1.Publish(originPayload(1))

	u := any.New("test", []*gate.Link{g1.Subscribe()}, false, discardLogger())
	out := u.Out.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	_, _, err := out.Updated(waitCtx(t))
	require.NoError(t, err)

	g1.SetStalled()
	_, health, err := out.Updated(waitCtx(t))
	require.NoError(t, err)
	require.Equal(t, gate.Stalled, health)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}
