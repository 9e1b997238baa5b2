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

// Package session tracks RTR session identity, serial bookkeeping, and
// the version-negotiation ladder shared by both client and server
// state machines (spec sections 4.1, 4.2, 8 invariant 3).
package session

import (
	"math/rand/v2"

	"github.com/USA-RedDragon/rtrproxy/internal/rtr/pdu"
)

// State is one side's view of an RTR session: which (session-id,
// serial) pair it last agreed on with its peer.
type State struct {
	ID     uint16
	Serial uint32
}

// NewID picks a fresh, random 16-bit session identifier. Servers
// assign one when a diff history is created and a new one whenever
// that history is reset (forcing every client to re-synchronize).
func NewID() uint16 {
	return uint16(rand.Uint32() & 0xffff)
}

// Ladder walks the version-downshift sequence a client follows after a
// peer rejects its advertised version with an Unsupported Protocol
// Version error: v2 → v1 → v0. Downshift returns false once v0 itself has
// been rejected, at which point the caller must stall and retry later
// (spec scenario S6).
type Ladder struct {
	current pdu.Version
	tried   int
}

// NewLadder starts negotiation at the highest supported version.
func NewLadder() *Ladder {
	return &Ladder{current: pdu.Version2}
}

// Current returns the version currently being offered.
func (l *Ladder) Current() pdu.Version { return l.current }

// Downshift advances to the next lower version after a rejection. It
// reports false once there is nowhere left to downshift to.
func (l *Ladder) Downshift() bool {
	l.tried++
	switch l.current {
	case pdu.Version2:
		l.current = pdu.Version1
		return true
	case pdu.Version1:
		l.current = pdu.Version0
		return true
	default:
		return false
	}
}

// Negotiate picks the version to use in a reply given the version a
// peer offered: the lower of the two if both are supported, or
// signals rejection if the offered version is unsupported outright.
func Negotiate(offered pdu.Version) (pdu.Version, bool) {
	switch offered {
	case pdu.Version0, pdu.Version1, pdu.Version2:
		return offered, true
	default:
		return pdu.Version0, false
	}
}
