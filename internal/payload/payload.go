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

package payload

import (
	"sort"

	"github.com/mitchellh/hashstructure/v2"
)

// Payload is an immutable, logically sorted, de-duplicated VRP/ASPA
// snapshot. Once built it is safe to share by reference across any
// number of concurrent readers.
type Payload struct {
	Origins    []Origin
	RouterKeys []RouterKey
	ASPAs      []ASPA
}

// Empty is the zero-value Payload: no records of any kind.
var Empty = Payload{}

// New builds a canonical Payload from unordered, possibly-duplicated
// inputs: it sorts each kind by its canonical order and drops exact
// duplicates. Inputs are not mutated; the returned slices are fresh.
func New(origins []Origin, keys []RouterKey, aspas []ASPA) Payload {
	return Payload{
		Origins:    dedupOrigins(sortedCopy(origins, Origin.Less)),
		RouterKeys: dedupRouterKeys(sortedCopy(keys, RouterKey.Less)),
		ASPAs:      dedupASPAs(sortedCopy(aspas, ASPA.Less)),
	}
}

func sortedCopy[T any](in []T, less func(a, b T) bool) []T {
	out := make([]T, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func dedupOrigins(sorted []Origin) []Origin {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, o := range sorted[1:] {
		if out[len(out)-1] != o {
			out = append(out, o)
		}
	}
	return out
}

func dedupRouterKeys(sorted []RouterKey) []RouterKey {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, k := range sorted[1:] {
		if !out[len(out)-1].Equal(k) {
			out = append(out, k)
		}
	}
	return out
}

func dedupASPAs(sorted []ASPA) []ASPA {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, a := range sorted[1:] {
		if !out[len(out)-1].Equal(a) {
			out = append(out, a)
		}
	}
	return out
}

// Fingerprint returns a monotonically-computed hash of the snapshot's
// contents, used by producers to decide whether a freshly produced
// payload differs from the last one published.
func (p Payload) Fingerprint() uint64 {
	h, err := hashstructure.Hash(struct {
		O []Origin
		K []RouterKey
		A []ASPA
	}{p.Origins, p.RouterKeys, p.ASPAs}, hashstructure.FormatV2, nil)
	if err != nil {
		// hashstructure only errors on unsupported types; our record
		// kinds are plain structs of comparable/slice fields, so this
		// is unreachable in practice. Fall back to zero rather than
		// panicking; every payload that fails to hash then shares the
		// fingerprint 0.
		return 0
	}
	return h
}

// Len returns the total record count across all three kinds.
func (p Payload) Len() int {
	return len(p.Origins) + len(p.RouterKeys) + len(p.ASPAs)
}

// Equal reports whether two payloads carry identical records. This is
// the authoritative equality check; Fingerprint is a cheap pre-filter
// that may theoretically collide.
func (p Payload) Equal(other Payload) bool {
	if len(p.Origins) != len(other.Origins) || len(p.RouterKeys) != len(other.RouterKeys) || len(p.ASPAs) != len(other.ASPAs) {
		return false
	}
	for i := range p.Origins {
		if p.Origins[i] != other.Origins[i] {
			return false
		}
	}
	for i := range p.RouterKeys {
		if !p.RouterKeys[i].Equal(other.RouterKeys[i]) {
			return false
		}
	}
	for i := range p.ASPAs {
		if !p.ASPAs[i].Equal(other.ASPAs[i]) {
			return false
		}
	}
	return true
}

// Builder accumulates adds and withdraws for a single kind while an
// RTR client unit is between a Cache Response and an End of Data PDU,
// then produces the resulting Payload in one shot. It starts from a
// base Payload (the previous snapshot, or Empty on a full reset) and
// shares the base's backing arrays until a record in that kind is
// actually touched, per the structural-sharing design note.
type Builder struct {
	base Payload

	origins       map[Origin]bool // true = present, false = withdrawn
	originTouched bool
	keys          map[routerKeyID]RouterKey // RouterKey has a slice field, so it can't key a map directly
	keysTouched   bool
	aspas         map[uint32]ASPA // keyed by customer AS; absent after withdrawal
	aspasTouched  bool
}

// routerKeyID is the comparable identity of a RouterKey (SKI, ASN),
// used as a map key since RouterKey itself carries a slice (SPKI).
type routerKeyID struct {
	ski [20]byte
	asn uint32
}

func idOf(k RouterKey) routerKeyID { return routerKeyID{ski: k.SKI, asn: k.ASN} }

// NewBuilder starts a Builder from base.
func NewBuilder(base Payload) *Builder {
	return &Builder{base: base}
}

func (b *Builder) ensureOrigins() {
	if b.originTouched {
		return
	}
	b.origins = make(map[Origin]bool, len(b.base.Origins))
	for _, o := range b.base.Origins {
		b.origins[o] = true
	}
	b.originTouched = true
}

func (b *Builder) ensureKeys() {
	if b.keysTouched {
		return
	}
	b.keys = make(map[routerKeyID]RouterKey, len(b.base.RouterKeys))
	for _, k := range b.base.RouterKeys {
		b.keys[idOf(k)] = k
	}
	b.keysTouched = true
}

func (b *Builder) ensureASPAs() {
	if b.aspasTouched {
		return
	}
	b.aspas = make(map[uint32]ASPA, len(b.base.ASPAs))
	for _, a := range b.base.ASPAs {
		b.aspas[a.Customer] = a
	}
	b.aspasTouched = true
}

// AddOrigin records an announced VRP.
func (b *Builder) AddOrigin(o Origin) { b.ensureOrigins(); b.origins[o] = true }

// WithdrawOrigin records a withdrawn VRP.
func (b *Builder) WithdrawOrigin(o Origin) { b.ensureOrigins(); delete(b.origins, o) }

// AddRouterKey records an announced router key.
func (b *Builder) AddRouterKey(k RouterKey) { b.ensureKeys(); b.keys[idOf(k)] = k }

// WithdrawRouterKey records a withdrawn router key.
func (b *Builder) WithdrawRouterKey(k RouterKey) { b.ensureKeys(); delete(b.keys, idOf(k)) }

// AddASPA records an announced (or updated) ASPA.
func (b *Builder) AddASPA(a ASPA) { b.ensureASPAs(); b.aspas[a.Customer] = a }

// WithdrawASPA records a withdrawn ASPA by customer AS.
func (b *Builder) WithdrawASPA(customer uint32) { b.ensureASPAs(); delete(b.aspas, customer) }

// Build materializes the accumulated state into a canonical Payload.
// Untouched kinds are passed through from base without reallocation.
func (b *Builder) Build() Payload {
	out := Payload{Origins: b.base.Origins, RouterKeys: b.base.RouterKeys, ASPAs: b.base.ASPAs}
	if b.originTouched {
		flat := make([]Origin, 0, len(b.origins))
		for o := range b.origins {
			flat = append(flat, o)
		}
		out.Origins = dedupOrigins(sortedCopy(flat, Origin.Less))
	}
	if b.keysTouched {
		flat := make([]RouterKey, 0, len(b.keys))
		for _, k := range b.keys {
			flat = append(flat, k)
		}
		out.RouterKeys = dedupRouterKeys(sortedCopy(flat, RouterKey.Less))
	}
	if b.aspasTouched {
		flat := make([]ASPA, 0, len(b.aspas))
		for _, a := range b.aspas {
			flat = append(flat, a)
		}
		out.ASPAs = dedupASPAs(sortedCopy(flat, ASPA.Less))
	}
	return out
}
