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

// Package slurm implements RFC 8416 (SLURM) local exception filtering:
// removing VRPs/router-keys/ASPAs matched by a prefix or bgpsec filter,
// then adding the synthesized records of every assertion.
package slurm

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/netip"
	"strings"

	"github.com/USA-RedDragon/rtrproxy/internal/payload"
)

// Document is a single parsed SLURM exception file.
type Document struct {
	PrefixFilters    []PrefixFilter    `json:"prefixFilters,omitempty"`
	BGPsecFilters    []BGPsecFilter    `json:"bgpsecFilters,omitempty"`
	PrefixAssertions []PrefixAssertion `json:"prefixAssertions,omitempty"`
	BGPsecAssertions []BGPsecAssertion `json:"bgpsecAssertions,omitempty"`
	ASPAFilters      []ASPAFilter      `json:"aspaFilters,omitempty"`
	ASPAAssertions   []ASPAAssertion   `json:"aspaAssertions,omitempty"`
}

// PrefixFilter matches VRPs to remove. A filter with only Prefix
// matches any origin AS announcing that prefix or a more specific; a
// filter with only ASN matches any prefix from that origin AS; both
// set is a conjunction of the two.
type PrefixFilter struct {
	Prefix  *netip.Prefix `json:"prefix,omitempty"`
	ASN     *uint32       `json:"asn,omitempty"`
	Comment string        `json:"comment,omitempty"`
}

// BGPsecFilter matches router keys to remove, by SKI and/or ASN.
type BGPsecFilter struct {
	SKI     string  `json:"SKI,omitempty"`
	ASN     *uint32 `json:"asn,omitempty"`
	Comment string  `json:"comment,omitempty"`
}

// ASPAFilter matches ASPA records to remove, by customer ASN.
type ASPAFilter struct {
	ASN     uint32 `json:"asn"`
	Comment string `json:"comment,omitempty"`
}

// PrefixAssertion synthesizes one VRP to add unconditionally.
type PrefixAssertion struct {
	Prefix    netip.Prefix `json:"prefix"`
	MaxLength *uint8       `json:"maxPrefixLength,omitempty"`
	ASN       uint32       `json:"asn"`
	Comment   string       `json:"comment,omitempty"`
}

// BGPsecAssertion synthesizes one router key to add unconditionally.
type BGPsecAssertion struct {
	SKI     string `json:"SKI"`
	ASN     uint32 `json:"asn"`
	SPKI    string `json:"routerPublicKey"`
	Comment string `json:"comment,omitempty"`
}

// ASPAAssertion synthesizes one ASPA record to add unconditionally.
type ASPAAssertion struct {
	Customer  uint32   `json:"customerAsid"`
	Providers []uint32 `json:"providers"`
	Comment   string   `json:"comment,omitempty"`
}

// Parse decodes and structurally validates one SLURM document.
func Parse(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("slurm: decode document: %w", err)
	}
	for _, f := range doc.PrefixFilters {
		if f.Prefix == nil && f.ASN == nil {
			return Document{}, fmt.Errorf("slurm: prefix filter must set prefix and/or asn")
		}
	}
	for _, f := range doc.BGPsecFilters {
		if f.SKI == "" && f.ASN == nil {
			return Document{}, fmt.Errorf("slurm: bgpsec filter must set SKI and/or asn")
		}
	}
	return doc, nil
}

// matchesPrefixFilter reports whether an origin is removed by f: a
// prefix-only filter matches the origin's prefix or any more specific
// covered by it; an asn-only filter matches any prefix from that
// origin AS; both set require both conditions.
func matchesPrefixFilter(o payload.Origin, f PrefixFilter) bool {
	prefixMatch := f.Prefix == nil || (o.Prefix.Bits() >= f.Prefix.Bits() && f.Prefix.Contains(o.Prefix.Addr()))
	asnMatch := f.ASN == nil || *f.ASN == o.ASN
	return prefixMatch && asnMatch
}

func matchesKeyFilter(k payload.RouterKey, f BGPsecFilter) bool {
	skiMatch := f.SKI == "" || strings.EqualFold(skiHex(k.SKI), f.SKI)
	asnMatch := f.ASN == nil || *f.ASN == k.ASN
	return skiMatch && asnMatch
}

func skiHex(ski [20]byte) string {
	return hex.EncodeToString(ski[:])
}

func decodeSKI(s string) ([20]byte, error) {
	var out [20]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("slurm: decode SKI: %w", err)
	}
	if len(b) != 20 {
		return out, fmt.Errorf("slurm: SKI must be 20 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// Apply runs the filter pass then the assertion pass of doc against in,
// returning the resulting payload and the counts of removed/added
// records for logging.
func Apply(in payload.Payload, doc Document) (out payload.Payload, removed, added int) {
	b := payload.NewBuilder(in)

	for _, o := range in.Origins {
		for _, f := range doc.PrefixFilters {
			if matchesPrefixFilter(o, f) {
				b.WithdrawOrigin(o)
				removed++
				break
			}
		}
	}
	for _, k := range in.RouterKeys {
		for _, f := range doc.BGPsecFilters {
			if matchesKeyFilter(k, f) {
				b.WithdrawRouterKey(k)
				removed++
				break
			}
		}
	}
	for _, a := range in.ASPAs {
		for _, f := range doc.ASPAFilters {
			if a.Customer == f.ASN {
				b.WithdrawASPA(a.Customer)
				removed++
				break
			}
		}
	}

	for _, a := range doc.PrefixAssertions {
		maxLen := a.Prefix.Bits()
		if a.MaxLength != nil {
			maxLen = int(*a.MaxLength)
		}
		b.AddOrigin(payload.Origin{Prefix: a.Prefix, MaxLength: uint8(maxLen), ASN: a.ASN})
		added++
	}
	for _, a := range doc.BGPsecAssertions {
		ski, err := decodeSKI(a.SKI)
		if err != nil {
			continue
		}
		b.AddRouterKey(payload.RouterKey{SKI: ski, ASN: a.ASN, SPKI: []byte(a.SPKI)})
		added++
	}
	for _, a := range doc.ASPAAssertions {
		b.AddASPA(payload.ASPA{Customer: a.Customer, Providers: a.Providers})
		added++
	}

	return b.Build(), removed, added
}

// Merge combines multiple documents (one per loaded file) into one,
// concatenating all filter and assertion lists. Used when several
// SLURM files are configured (spec section 4.7: "a set of local
// exception files").
func Merge(docs []Document) Document {
	var out Document
	for _, d := range docs {
		out.PrefixFilters = append(out.PrefixFilters, d.PrefixFilters...)
		out.BGPsecFilters = append(out.BGPsecFilters, d.BGPsecFilters...)
		out.PrefixAssertions = append(out.PrefixAssertions, d.PrefixAssertions...)
		out.BGPsecAssertions = append(out.BGPsecAssertions, d.BGPsecAssertions...)
		out.ASPAFilters = append(out.ASPAFilters, d.ASPAFilters...)
		out.ASPAAssertions = append(out.ASPAAssertions, d.ASPAAssertions...)
	}
	return out
}
