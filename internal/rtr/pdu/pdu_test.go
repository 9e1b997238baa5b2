// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package pdu_test

import (
	"bytes"
	"testing"

	"github.com/USA-RedDragon/rtrproxy/internal/rtr/pdu"
	"github.com/philhofer/fwd"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, version pdu.Version, p pdu.PDU) pdu.PDU {
	t.Helper()
	var buf bytes.Buffer
	w := fwd.NewWriter(&buf)
	require.NoError(t, p.Encode(w, version))
	require.NoError(t, w.Flush())

	r := fwd.NewReader(&buf)
	h, err := pdu.ReadHeader(r, pdu.DefaultMaxLength)
	require.NoError(t, err)
	require.Equal(t, p.Type(), h.PDUType)
	out, err := pdu.Decode(r, h, version)
	require.NoError(t, err)
	return out
}

func TestIPv4PrefixRoundTrip(t *testing.T) {
	p := pdu.IPv4Prefix{Flags: pdu.FlagAnnounce, PrefixLen: 24, MaxLen: 24, Prefix: [4]byte{192, 0, 2, 0}, ASN: 64496}
	out := roundTrip(t, pdu.Version1, p)
	require.Equal(t, p, out)
}

func TestIPv6PrefixRoundTrip(t *testing.T) {
	p := pdu.IPv6Prefix{Flags: pdu.FlagWithdraw, PrefixLen: 32, MaxLen: 48, Prefix: [16]byte{0x20, 0x01, 0x0d, 0xb8}, ASN: 64497}
	out := roundTrip(t, pdu.Version1, p)
	require.Equal(t, p, out)
}

func TestEndOfDataVersion0OmitsIntervals(t *testing.T) {
	p := pdu.EndOfData{SessionID: 7, Serial: 42, Refresh: 3600, Retry: 600, Expire: 7200}
	out := roundTrip(t, pdu.Version0, p).(pdu.EndOfData)
	require.Equal(t, uint32(42), out.Serial)
	require.Zero(t, out.Refresh)
}

func TestEndOfDataVersion1CarriesIntervals(t *testing.T) {
	p := pdu.EndOfData{SessionID: 7, Serial: 42, Refresh: 3600, Retry: 600, Expire: 7200}
	out := roundTrip(t, pdu.Version1, p)
	require.Equal(t, p, out)
}

func TestRouterKeyRoundTrip(t *testing.T) {
	p := pdu.RouterKey{Flags: pdu.FlagAnnounce, SKI: [20]byte{1, 2, 3}, ASN: 64498, SPKI: []byte("public-key-bytes")}
	out := roundTrip(t, pdu.Version1, p)
	require.Equal(t, p, out)
}

func TestASPARoundTrip(t *testing.T) {
	p := pdu.ASPA{Flags: pdu.FlagAnnounce, Customer: 64496, Providers: []uint32{64497, 64498}}
	out := roundTrip(t, pdu.Version2, p)
	require.Equal(t, p, out)
}

func TestASPAWithdrawalHasNoProviders(t *testing.T) {
	p := pdu.ASPA{Flags: pdu.FlagWithdraw, Customer: 64496}
	out := roundTrip(t, pdu.Version2, p).(pdu.ASPA)
	require.Empty(t, out.Providers)
}

func TestErrorReportRoundTrip(t *testing.T) {
	p := pdu.ErrorReport{Code: pdu.ErrUnsupportedProtocolVersion, EncapsulatedPDU: []byte{2, 0, 0, 0, 0, 0, 0, 8}, Text: "unsupported version"}
	out := roundTrip(t, pdu.Version1, p)
	require.Equal(t, p, out)
}

func TestCacheResponseAndReset(t *testing.T) {
	out := roundTrip(t, pdu.Version1, pdu.CacheResponse{SessionID: 99})
	require.Equal(t, pdu.CacheResponse{SessionID: 99}, out)

	out2 := roundTrip(t, pdu.Version1, pdu.CacheReset{})
	require.Equal(t, pdu.CacheReset{}, out2)
}

func TestHeaderRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	w := fwd.NewWriter(&buf)
	require.NoError(t, pdu.ResetQuery{}.Encode(w, pdu.Version1))
	require.NoError(t, w.Flush())

	r := fwd.NewReader(&buf)
	_, err := pdu.ReadHeader(r, 4)
	require.ErrorIs(t, err, pdu.ErrOversized)
}
