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

// Package jsonclient fetches a JSON VRP/ASPA document over http(s) or
// file and republishes it as a Payload (spec sections 4.4, 6.2).
package jsonclient

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/USA-RedDragon/rtrproxy/internal/payload"
)

// document is the on-the-wire JSON VRP/ASPA export format. Two field
// spellings are accepted for ASPA records (the RFC 9582-era
// "customerAsid"/"providerAsids" and the later "customer_asid"/
// "providers"), matching the pair of conventions seen in the wild.
// routerKeys/bgpsecKeys are optional; encoding/json's field matching
// falls back to a case-insensitive match, so "SKI"/"ski" both bind.
type document struct {
	Roas       []roaRecord       `json:"roas"`
	RouterKeys []routerKeyRecord `json:"routerKeys"`
	BGPsecKeys []routerKeyRecord `json:"bgpsecKeys"`
	Aspa       []aspaRecord      `json:"aspas"`
}

type roaRecord struct {
	ASN       asn    `json:"asn"`
	Prefix    string `json:"prefix"`
	MaxLength uint8  `json:"maxLength"`
}

type routerKeyRecord struct {
	SKI  string `json:"SKI"`
	ASN  asn    `json:"ASN"`
	SPKI string `json:"SPKI"`
}

type aspaRecord struct {
	Customer        asn   `json:"customer_asid"`
	Providers       []asn `json:"providers"`
	CustomerLegacy  asn   `json:"customerAsid"`
	ProvidersLegacy []asn `json:"providerAsids"`
}

// asn accepts both a bare JSON number and the "ASnnn" string form.
type asn uint32

func (a *asn) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	s = strings.TrimPrefix(strings.ToUpper(s), "AS")
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return fmt.Errorf("jsonclient: invalid ASN %q: %w", string(b), err)
	}
	*a = asn(n)
	return nil
}

// parseDocument decodes raw JSON bytes into a canonical Payload,
// skipping (and counting) any ROA or router-key record whose prefix,
// SKI or SPKI fails to parse rather than rejecting the whole document
// for one bad entry. An ASN that fails to parse fails the decode of
// the whole document.
func parseDocument(raw []byte) (payload.Payload, int, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return payload.Empty, 0, fmt.Errorf("jsonclient: decode document: %w", err)
	}

	var origins []payload.Origin
	skipped := 0
	for _, r := range doc.Roas {
		o, err := toOrigin(r)
		if err != nil {
			skipped++
			continue
		}
		origins = append(origins, o)
	}

	var routerKeys []payload.RouterKey
	for _, records := range [][]routerKeyRecord{doc.RouterKeys, doc.BGPsecKeys} {
		for _, r := range records {
			k, err := toRouterKey(r)
			if err != nil {
				skipped++
				continue
			}
			routerKeys = append(routerKeys, k)
		}
	}

	var aspas []payload.ASPA
	for _, a := range doc.Aspa {
		customer := a.Customer
		providers := a.Providers
		if customer == 0 {
			customer = a.CustomerLegacy
		}
		if len(providers) == 0 {
			providers = a.ProvidersLegacy
		}
		out := make([]uint32, len(providers))
		for i, p := range providers {
			out[i] = uint32(p)
		}
		aspas = append(aspas, payload.ASPA{Customer: uint32(customer), Providers: out})
	}

	return payload.New(origins, routerKeys, aspas), skipped, nil
}

func toRouterKey(r routerKeyRecord) (payload.RouterKey, error) {
	ski, err := hex.DecodeString(r.SKI)
	if err != nil {
		return payload.RouterKey{}, fmt.Errorf("invalid SKI %q: %w", r.SKI, err)
	}
	if len(ski) != 20 {
		return payload.RouterKey{}, fmt.Errorf("SKI must be 20 bytes, got %d", len(ski))
	}
	spki, err := base64.StdEncoding.DecodeString(r.SPKI)
	if err != nil {
		return payload.RouterKey{}, fmt.Errorf("invalid SPKI %q: %w", r.SPKI, err)
	}
	var key payload.RouterKey
	copy(key.SKI[:], ski)
	key.ASN = uint32(r.ASN)
	key.SPKI = spki
	return key, nil
}

func toOrigin(r roaRecord) (payload.Origin, error) {
	prefix, err := netip.ParsePrefix(r.Prefix)
	if err != nil {
		return payload.Origin{}, fmt.Errorf("invalid prefix %q: %w", r.Prefix, err)
	}
	maxLength := r.MaxLength
	if maxLength == 0 {
		maxLength = uint8(prefix.Bits())
	}
	return payload.Origin{Prefix: prefix, MaxLength: maxLength, ASN: uint32(r.ASN)}, nil
}
