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

// Package payload holds the immutable, snapshot-based VRP/ASPA data
// model shared across every unit and target in the proxy.
package payload

import (
	"bytes"
	"net/netip"
)

// Family distinguishes the address family of an Origin record.
type Family uint8

const (
	FamilyIPv4 Family = 4
	FamilyIPv6 Family = 6
)

// Origin is a Validated ROA Payload: an assertion that ASN may
// originate Prefix, up to MaxLength bits.
type Origin struct {
	Prefix    netip.Prefix
	MaxLength uint8
	ASN       uint32
}

// Family reports the address family of the record's prefix.
func (o Origin) Family() Family {
	if o.Prefix.Addr().Is4() {
		return FamilyIPv4
	}
	return FamilyIPv6
}

// Valid reports whether the record satisfies the max-length invariant.
func (o Origin) Valid() bool {
	return o.Prefix.IsValid() && int(o.MaxLength) >= o.Prefix.Bits()
}

// Less implements the canonical total order used for origins: family,
// then prefix, then length, then max-length, then origin AS.
func (o Origin) Less(other Origin) bool {
	if o.Family() != other.Family() {
		return o.Family() < other.Family()
	}
	if c := o.Prefix.Addr().Compare(other.Prefix.Addr()); c != 0 {
		return c < 0
	}
	if o.Prefix.Bits() != other.Prefix.Bits() {
		return o.Prefix.Bits() < other.Prefix.Bits()
	}
	if o.MaxLength != other.MaxLength {
		return o.MaxLength < other.MaxLength
	}
	return o.ASN < other.ASN
}

// RouterKey is an (SKI, ASN, SPKI) router certificate record.
type RouterKey struct {
	SKI  [20]byte
	ASN  uint32
	SPKI []byte
}

// Less implements the canonical order for router keys: SKI, then ASN.
func (k RouterKey) Less(other RouterKey) bool {
	if c := bytes.Compare(k.SKI[:], other.SKI[:]); c != 0 {
		return c < 0
	}
	return k.ASN < other.ASN
}

// Equal reports whether two router keys carry identical fields.
func (k RouterKey) Equal(other RouterKey) bool {
	return k.SKI == other.SKI && k.ASN == other.ASN && bytes.Equal(k.SPKI, other.SPKI)
}

// ASPA is an Autonomous System Provider Authorization: Customer may
// only receive routes via the listed Providers. A withdrawal ASPA
// (wire form only) carries an empty Providers set.
type ASPA struct {
	Customer  uint32
	Providers []uint32
}

// Less implements the canonical order for ASPAs: customer AS, then
// the provider set pairwise.
func (a ASPA) Less(other ASPA) bool {
	if a.Customer != other.Customer {
		return a.Customer < other.Customer
	}
	for i := 0; i < len(a.Providers) && i < len(other.Providers); i++ {
		if a.Providers[i] != other.Providers[i] {
			return a.Providers[i] < other.Providers[i]
		}
	}
	return len(a.Providers) < len(other.Providers)
}

// Equal reports whether two ASPA records carry the same customer and
// an identical, order-sensitive provider set.
func (a ASPA) Equal(other ASPA) bool {
	if a.Customer != other.Customer || len(a.Providers) != len(other.Providers) {
		return false
	}
	for i := range a.Providers {
		if a.Providers[i] != other.Providers[i] {
			return false
		}
	}
	return true
}

// IsWithdrawal reports whether the ASPA carries no providers, the
// wire-form withdrawal marker described in spec section 3.1.
func (a ASPA) IsWithdrawal() bool {
	return len(a.Providers) == 0
}
