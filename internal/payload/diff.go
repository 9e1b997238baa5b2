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

// Diff is the add/withdraw delta between two Payloads, per kind. Adds
// and withdraws of the same kind never share an element.
type Diff struct {
	AddOrigins      []Origin
	WithdrawOrigins []Origin

	AddRouterKeys      []RouterKey
	WithdrawRouterKeys []RouterKey

	AddASPAs      []ASPA
	WithdrawASPAs []ASPA
}

// Empty reports whether the diff carries no changes at all.
func (d Diff) Empty() bool {
	return len(d.AddOrigins) == 0 && len(d.WithdrawOrigins) == 0 &&
		len(d.AddRouterKeys) == 0 && len(d.WithdrawRouterKeys) == 0 &&
		len(d.AddASPAs) == 0 && len(d.WithdrawASPAs) == 0
}

// DiffPayloads computes the diff that, applied to a, yields b. It is
// bounded O(n log n) in total record count (§5 concurrency model: no
// yielding allowed mid-computation, so callers should only invoke this
// on already-sorted Payload values, which New and Builder.Build always
// produce).
func DiffPayloads(a, b Payload) Diff {
	return Diff{
		AddOrigins:         sliceDiffAdds(a.Origins, b.Origins, Origin.Less),
		WithdrawOrigins:    sliceDiffAdds(b.Origins, a.Origins, Origin.Less),
		AddRouterKeys:      routerKeyDiffAdds(a.RouterKeys, b.RouterKeys),
		WithdrawRouterKeys: routerKeyDiffAdds(b.RouterKeys, a.RouterKeys),
		AddASPAs:           aspaDiffAdds(a.ASPAs, b.ASPAs),
		WithdrawASPAs:      aspaDiffAdds(b.ASPAs, a.ASPAs),
	}
}

// sliceDiffAdds returns the elements of to that are not present in
// from, for record kinds with value equality via ==. Both slices must
// already be sorted by less.
func sliceDiffAdds(from, to []Origin, less func(a, b Origin) bool) []Origin {
	var out []Origin
	i, j := 0, 0
	for i < len(from) && j < len(to) {
		switch {
		case from[i] == to[j]:
			i++
			j++
		case less(from[i], to[j]):
			i++
		default:
			out = append(out, to[j])
			j++
		}
	}
	out = append(out, to[j:]...)
	return out
}

func routerKeyDiffAdds(from, to []RouterKey) []RouterKey {
	var out []RouterKey
	i, j := 0, 0
	for i < len(from) && j < len(to) {
		switch {
		case from[i].Equal(to[j]):
			i++
			j++
		case from[i].Less(to[j]):
			i++
		default:
			out = append(out, to[j])
			j++
		}
	}
	out = append(out, to[j:]...)
	return out
}

func aspaDiffAdds(from, to []ASPA) []ASPA {
	var out []ASPA
	i, j := 0, 0
	for i < len(from) && j < len(to) {
		switch {
		case from[i].Equal(to[j]):
			i++
			j++
		case from[i].Less(to[j]):
			i++
		default:
			out = append(out, to[j])
			j++
		}
	}
	out = append(out, to[j:]...)
	return out
}

// ApplyDiff applies d to a, returning the resulting Payload. Applying
// the diff of a→b to a reproduces b exactly (the round-trip property).
func ApplyDiff(a Payload, d Diff) Payload {
	b := NewBuilder(a)
	for _, o := range d.WithdrawOrigins {
		b.WithdrawOrigin(o)
	}
	for _, o := range d.AddOrigins {
		b.AddOrigin(o)
	}
	for _, k := range d.WithdrawRouterKeys {
		b.WithdrawRouterKey(k)
	}
	for _, k := range d.AddRouterKeys {
		b.AddRouterKey(k)
	}
	for _, asp := range d.WithdrawASPAs {
		b.WithdrawASPA(asp.Customer)
	}
	for _, asp := range d.AddASPAs {
		b.AddASPA(asp)
	}
	return b.Build()
}

// Concat composes d (A→B) with other (B→C) into the diff A→C,
// cancelling any add/withdraw pair that nets to nothing (e.g. an
// element added in d and withdrawn again in other).
func (d Diff) Concat(other Diff) Diff {
	return Diff{
		AddOrigins:         concatOrigins(d.AddOrigins, d.WithdrawOrigins, other.AddOrigins, other.WithdrawOrigins),
		WithdrawOrigins:    concatOrigins(d.WithdrawOrigins, d.AddOrigins, other.WithdrawOrigins, other.AddOrigins),
		AddRouterKeys:      concatRouterKeys(d.AddRouterKeys, d.WithdrawRouterKeys, other.AddRouterKeys, other.WithdrawRouterKeys),
		WithdrawRouterKeys: concatRouterKeys(d.WithdrawRouterKeys, d.AddRouterKeys, other.WithdrawRouterKeys, other.AddRouterKeys),
		AddASPAs:           concatASPAs(d.AddASPAs, d.WithdrawASPAs, other.AddASPAs, other.WithdrawASPAs),
		WithdrawASPAs:      concatASPAs(d.WithdrawASPAs, d.AddASPAs, other.WithdrawASPAs, other.AddASPAs),
	}
}

// concatOrigins computes one side (e.g. the net adds) of a diff
// concatenation: start from mineSame (this diff's adds), drop any that
// get cancelled by the opposite side of the next diff (otherOpposite,
// its withdraws of the same elements), and fold in the next diff's own
// same-direction entries that weren't already present (and so aren't
// cancelled by this diff's opposite side, mineOpposite).
func concatOrigins(mineSame, mineOpposite, otherSame, otherOpposite []Origin) []Origin {
	cancelled := make(map[Origin]bool, len(otherOpposite))
	for _, o := range otherOpposite {
		cancelled[o] = true
	}
	already := make(map[Origin]bool, len(mineOpposite))
	for _, o := range mineOpposite {
		already[o] = true
	}
	seen := make(map[Origin]bool)
	var out []Origin
	for _, o := range mineSame {
		if cancelled[o] {
			continue
		}
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	for _, o := range otherSame {
		if already[o] {
			continue
		}
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	return out
}

func concatRouterKeys(mineSame, mineOpposite, otherSame, otherOpposite []RouterKey) []RouterKey {
	cancelled := make(map[routerKeyID]bool, len(otherOpposite))
	for _, k := range otherOpposite {
		cancelled[idOf(k)] = true
	}
	already := make(map[routerKeyID]bool, len(mineOpposite))
	for _, k := range mineOpposite {
		already[idOf(k)] = true
	}
	seen := make(map[routerKeyID]bool)
	var out []RouterKey
	for _, k := range mineSame {
		if cancelled[idOf(k)] {
			continue
		}
		if !seen[idOf(k)] {
			seen[idOf(k)] = true
			out = append(out, k)
		}
	}
	for _, k := range otherSame {
		if already[idOf(k)] {
			continue
		}
		if !seen[idOf(k)] {
			seen[idOf(k)] = true
			out = append(out, k)
		}
	}
	return out
}

func concatASPAs(mineSame, mineOpposite, otherSame, otherOpposite []ASPA) []ASPA {
	cancelled := make(map[uint32]bool, len(otherOpposite))
	for _, a := range otherOpposite {
		cancelled[a.Customer] = true
	}
	already := make(map[uint32]bool, len(mineOpposite))
	for _, a := range mineOpposite {
		already[a.Customer] = true
	}
	seen := make(map[uint32]bool)
	var out []ASPA
	for _, a := range mineSame {
		if cancelled[a.Customer] {
			continue
		}
		if !seen[a.Customer] {
			seen[a.Customer] = true
			out = append(out, a)
		}
	}
	for _, a := range otherSame {
		if already[a.Customer] {
			continue
		}
		if !seen[a.Customer] {
			seen[a.Customer] = true
			out = append(out, a)
		}
	}
	return out
}
