// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package payload_test

import (
	"net/netip"
	"testing"

	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/stretchr/testify/require"
)

func origin(prefix string, maxLen int, asn uint32) payload.Origin {
	p := netip.MustParsePrefix(prefix)
	return payload.Origin{Prefix: p, MaxLength: uint8(maxLen), ASN: asn}
}

func TestNewDedupesAndSorts(t *testing.T) {
	a := origin("192.0.2.0/24", 24, 64496)
	b := origin("198.51.100.0/24", 24, 64497)
	p := payload.New([]payload.Origin{b, a, a}, nil, nil)
	require.Len(t, p.Origins, 2)
	require.Equal(t, a, p.Origins[0])
	require.Equal(t, b, p.Origins[1])
}

func TestFingerprintIdempotence(t *testing.T) {
	a := origin("192.0.2.0/24", 24, 64496)
	p1 := payload.New([]payload.Origin{a}, nil, nil)
	p2 := payload.New([]payload.Origin{a}, nil, nil)
	require.Equal(t, p1.Fingerprint(), p2.Fingerprint())
}

func TestFingerprintDiffersOnChange(t *testing.T) {
	a := origin("192.0.2.0/24", 24, 64496)
	b := origin("198.51.100.0/24", 24, 64497)
	p1 := payload.New([]payload.Origin{a}, nil, nil)
	p2 := payload.New([]payload.Origin{a, b}, nil, nil)
	require.NotEqual(t, p1.Fingerprint(), p2.Fingerprint())
}

func TestOriginValid(t *testing.T) {
	o := origin("192.0.2.0/24", 24, 1)
	require.True(t, o.Valid())
	bad := payload.Origin{Prefix: netip.MustParsePrefix("192.0.2.0/24"), MaxLength: 16, ASN: 1}
	require.False(t, bad.Valid())
}

func TestRouterKeyEquality(t *testing.T) {
	k1 := payload.RouterKey{SKI: [20]byte{1}, ASN: 1, SPKI: []byte("a")}
	k2 := payload.RouterKey{SKI: [20]byte{1}, ASN: 1, SPKI: []byte("a")}
	k3 := payload.RouterKey{SKI: [20]byte{2}, ASN: 1, SPKI: []byte("a")}
	require.True(t, k1.Equal(k2))
	require.False(t, k1.Equal(k3))
}

func TestASPAWithdrawal(t *testing.T) {
	withdrawal := payload.ASPA{Customer: 64496}
	require.True(t, withdrawal.IsWithdrawal())
	announced := payload.ASPA{Customer: 64496, Providers: []uint32{64500}}
	require.False(t, announced.IsWithdrawal())
}

func TestBuilderStructuralSharing(t *testing.T) {
	a := origin("192.0.2.0/24", 24, 64496)
	base := payload.New([]payload.Origin{a}, nil, []payload.ASPA{{Customer: 1, Providers: []uint32{2}}})
	b := payload.NewBuilder(base)
	b.AddOrigin(origin("198.51.100.0/24", 24, 64497))
	out := b.Build()
	// Untouched kinds pass through the same backing slice.
	require.Same(t, &base.ASPAs[0], &out.ASPAs[0])
	require.Len(t, out.Origins, 2)
}

func TestPayloadEqual(t *testing.T) {
	a := origin("192.0.2.0/24", 24, 64496)
	p1 := payload.New([]payload.Origin{a}, nil, nil)
	p2 := payload.New([]payload.Origin{a}, nil, nil)
	require.True(t, p1.Equal(p2))
}
