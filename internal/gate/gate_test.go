// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package gate_test

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/USA-RedDragon/rtrproxy/internal/gate"
	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/stretchr/testify/require"
)

func testOrigin() payload.Origin {
	return payload.Origin{Prefix: netip.MustParsePrefix("192.0.2.0/24"), MaxLength: 24, ASN: 64496}
}

func TestSubscribeObservesCurrentState(t *testing.T) {
	g := gate.New()
	g.Publish(payload.New([]payload.Origin{testOrigin()}, nil, nil))

	link := g.Subscribe()
	p, health, has := link.Current()
	require.True(t, has)
	require.Equal(t, gate.Healthy, health)
	require.Equal(t, 1, p.Len())
}

func TestUpdatedDeliversNewPublication(t *testing.T) {
	g := gate.New()
	link := g.Subscribe()

	done := make(chan struct{})
	var got payload.Payload
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		p, _, err := link.Updated(ctx)
		require.NoError(t, err)
		got = p
		close(done)
	}()

	g.Publish(payload.New([]payload.Origin{testOrigin()}, nil, nil))
	<-done
	require.Equal(t, 1, got.Len())
}

func TestSlowSubscriberOnlySeesLatest(t *testing.T) {
	g := gate.New()
	link := g.Subscribe()

	a := payload.New([]payload.Origin{testOrigin()}, nil, nil)
	b := payload.New(nil, nil, nil)
	g.Publish(a)
	g.Publish(b)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p, _, err := link.Updated(ctx)
	require.NoError(t, err)
	require.True(t, p.Equal(b), "slow subscriber must observe only the latest publication")
}

func TestSetStalledAndHealthy(t *testing.T) {
	g := gate.New()
	link := g.Subscribe()

	g.SetStalled()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, health, err := link.Updated(ctx)
	require.NoError(t, err)
	require.Equal(t, gate.Stalled, health)

	g.SetHealthy()
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	_, health, err = link.Updated(ctx2)
	require.NoError(t, err)
	require.Equal(t, gate.Healthy, health)
}

func TestCloseUnblocksSubscribers(t *testing.T) {
	g := gate.New()
	link := g.Subscribe()
	g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _, err := link.Updated(ctx)
	require.ErrorIs(t, err, gate.ErrClosed)
}

func TestRequestDeliversCommand(t *testing.T) {
	g := gate.New()
	link := g.Subscribe()
	link.Request(gate.CommandRefresh)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	cmd, err := g.RecvCommand(ctx)
	require.NoError(t, err)
	require.Equal(t, gate.CommandRefresh, cmd)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	g := gate.New()
	link := g.Subscribe()
	link.Unsubscribe()

	g.Publish(payload.New([]payload.Origin{testOrigin()}, nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, _, err := link.Updated(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
