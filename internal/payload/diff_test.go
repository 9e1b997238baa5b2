// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain

package payload_test

import (
	"testing"

	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/stretchr/testify/require"
)

func TestDiffRoundTrip(t *testing.T) {
	a := payload.New([]payload.Origin{
		origin("192.0.2.0/24", 24, 64496),
		origin("198.51.100.0/24", 24, 64497),
	}, nil, nil)
	b := payload.New([]payload.Origin{
		origin("198.51.100.0/24", 24, 64497),
		origin("203.0.113.0/24", 24, 64498),
	}, nil, nil)

	d := payload.DiffPayloads(a, b)
	require.True(t, payload.ApplyDiff(a, d).Equal(b))
}

func TestDiffNoSharedElements(t *testing.T) {
	a := payload.New([]payload.Origin{origin("192.0.2.0/24", 24, 1)}, nil, nil)
	b := payload.New([]payload.Origin{origin("198.51.100.0/24", 24, 2)}, nil, nil)
	d := payload.DiffPayloads(a, b)

	adds := map[payload.Origin]bool{}
	for _, o := range d.AddOrigins {
		adds[o] = true
	}
	for _, o := range d.WithdrawOrigins {
		require.False(t, adds[o], "withdraw and add must not share an element")
	}
}

func TestDiffEmptyOnIdenticalPayloads(t *testing.T) {
	a := payload.New([]payload.Origin{origin("192.0.2.0/24", 24, 1)}, nil, nil)
	d := payload.DiffPayloads(a, a)
	require.True(t, d.Empty())
}

func TestDiffConcatenation(t *testing.T) {
	a := payload.New([]payload.Origin{origin("192.0.2.0/24", 24, 1)}, nil, nil)
	b := payload.New([]payload.Origin{
		origin("192.0.2.0/24", 24, 1),
		origin("198.51.100.0/24", 24, 2),
	}, nil, nil)
	c := payload.New([]payload.Origin{origin("198.51.100.0/24", 24, 2)}, nil, nil)

	dAB := payload.DiffPayloads(a, b)
	dBC := payload.DiffPayloads(b, c)
	dAC := dAB.Concat(dBC)

	require.True(t, payload.ApplyDiff(a, dAC).Equal(c))
}

func TestDiffConcatenationCancelsAddThenWithdraw(t *testing.T) {
	a := payload.New([]payload.Origin{origin("192.0.2.0/24", 24, 1)}, nil, nil)
	added := origin("198.51.100.0/24", 24, 2)
	b := payload.New([]payload.Origin{origin("192.0.2.0/24", 24, 1), added}, nil, nil)

	dAB := payload.DiffPayloads(a, b)
	dBA := payload.DiffPayloads(b, a)
	dAA := dAB.Concat(dBA)

	require.True(t, dAA.Empty(), "adding then withdrawing the same record should cancel out")
}

func TestDiffRoutersAndASPAs(t *testing.T) {
	key := payload.RouterKey{SKI: [20]byte{1}, ASN: 64496, SPKI: []byte("spki")}
	a := payload.New(nil, []payload.RouterKey{key}, []payload.ASPA{{Customer: 64496, Providers: []uint32{64500}}})
	b := payload.New(nil, nil, nil)

	d := payload.DiffPayloads(a, b)
	require.Len(t, d.WithdrawRouterKeys, 1)
	require.Len(t, d.WithdrawASPAs, 1)
	require.True(t, payload.ApplyDiff(a, d).Equal(b))
}
