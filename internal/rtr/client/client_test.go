// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package client_test

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/USA-RedDragon/rtrproxy/internal/rtr/client"
	"github.com/USA-RedDragon/rtrproxy/internal/rtr/pdu"
	"github.com/philhofer/fwd"
	"github.com/stretchr/testify/require"
)

// pipeDialer wires a Client directly to one end of an in-memory
// net.Pipe, handing the other end to the test's fake server goroutine.
func pipeDialer(t *testing.T) (client.Dialer, net.Conn) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	return func(ctx context.Context) (net.Conn, error) {
		return clientConn, nil
	}, serverConn
}

func TestClientFullResetSequenceInstallsPayload(t *testing.T) {
	dial, server := pipeDialer(t)
	defer server.Close()

	c := client.New(dial)
	got := make(chan payload.Payload, 1)
	c.OnPayload = func(p payload.Payload) { got <- p }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	w := fwd.NewWriter(server)
	r := fwd.NewReader(server)

	h, err := pdu.ReadHeader(r, 0)
	require.NoError(t, err)
	body, err := pdu.Decode(r, h, pdu.Version2)
	require.NoError(t, err)
	_, ok := body.(pdu.ResetQuery)
	require.True(t, ok)

	require.NoError(t, (pdu.CacheResponse{SessionID: 7}).Encode(w, pdu.Version2))
	require.NoError(t, (pdu.IPv4Prefix{
		Flags: pdu.FlagAnnounce, PrefixLen: 24, MaxLen: 24,
		Prefix: [4]byte{192, 0, 2, 0}, ASN: 64496,
	}).Encode(w, pdu.Version2))
	require.NoError(t, (pdu.EndOfData{SessionID: 7, Serial: 1, Refresh: 3600, Retry: 600, Expire: 7200}).Encode(w, pdu.Version2))
	require.NoError(t, w.Flush())

	select {
	case p := <-got:
		require.Equal(t, 1, p.Len())
		require.Equal(t, uint32(64496), p.Origins[0].ASN)
		require.True(t, p.Origins[0].Prefix.Addr().Is4())
		require.Equal(t, netip.MustParsePrefix("192.0.2.0/24"), p.Origins[0].Prefix)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
	}
}

func TestClientDownshiftsOnUnsupportedVersionError(t *testing.T) {
	// The client closes its connection after a downshift and dials
	// again, so every Dial gets a fresh pipe.
	servers := make(chan net.Conn, 2)
	dial := func(ctx context.Context) (net.Conn, error) {
		clientConn, serverConn := net.Pipe()
		servers <- serverConn
		return clientConn, nil
	}

	c := client.New(dial)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	server := <-servers
	defer server.Close()
	w := fwd.NewWriter(server)
	r := fwd.NewReader(server)

	h, err := pdu.ReadHeader(r, 0)
	require.NoError(t, err)
	_, err = pdu.Decode(r, h, pdu.Version2)
	require.NoError(t, err)
	require.NoError(t, (pdu.ErrorReport{Code: pdu.ErrUnsupportedProtocolVersion, Text: "nope"}).Encode(w, pdu.Version2))
	require.NoError(t, w.Flush())

	redialed := <-servers
	defer redialed.Close()
	h, err = pdu.ReadHeader(fwd.NewReader(redialed), 0)
	require.NoError(t, err)
	require.Equal(t, pdu.Version1, h.Version)
}
