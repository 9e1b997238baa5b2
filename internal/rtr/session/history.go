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

package session

import "github.com/USA-RedDragon/rtrproxy/internal/payload"

// entry is one recorded publication: the diff from the previous
// snapshot, and the serial it produced.
type entry struct {
	serial uint32
	diff   payload.Diff
}

// History is a bounded ring of the last H diffs a target has produced,
// used to answer a Serial Query without recomputing from scratch, and
// to detect when a client's serial has fallen off the back of the
// window and must be sent a Cache Reset instead (spec section 4.2,
// invariant 8).
type History struct {
	capacity int
	entries  []entry
	current  payload.Payload
	serial   uint32
	sessions uint16
}

// NewHistory creates an empty history bounded to capacity diffs,
// starting from an empty snapshot at serial 0 under a fresh session.
func NewHistory(capacity int) *History {
	return &History{capacity: capacity, current: payload.Empty, sessions: NewID()}
}

// SessionID returns the session identifier this history's serials are
// relative to.
func (h *History) SessionID() uint16 { return h.sessions }

// Serial returns the current serial number.
func (h *History) Serial() uint32 { return h.serial }

// Current returns the current full snapshot.
func (h *History) Current() payload.Payload { return h.current }

// Publish records a new snapshot, computing and appending its diff
// from the previous one. A republish that carries no actual change is
// a no-op: the serial only increments, and a diff entry is only
// appended, when the diff is non-empty (invariant 2, snapshot
// idempotence). Once the ring exceeds capacity the oldest diff is
// evicted.
func (h *History) Publish(next payload.Payload) {
	d := payload.DiffPayloads(h.current, next)
	if d.Empty() {
		return
	}
	h.serial++
	h.entries = append(h.entries, entry{serial: h.serial, diff: d})
	if len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
	h.current = next
}

// Reset discards all history and assigns a fresh session id, used when
// the history itself becomes unusable (e.g. the server process
// restarts its upstream link entirely). Every connected client must be
// sent Cache Reset after this call.
func (h *History) Reset() {
	h.entries = nil
	h.serial = 0
	h.current = payload.Empty
	h.sessions = NewID()
}

// DiffSince returns the concatenated diff that takes a client from
// serial to the current serial, and true if that serial is still
// within the retained window. If serial equals the current serial the
// returned diff is empty. A serial that has fallen off the back of the
// window, or that belongs to a session other than this history's
// current one, returns ok=false: the caller must issue Cache Reset.
func (h *History) DiffSince(sessionID uint16, serial uint32) (payload.Diff, bool) {
	if sessionID != h.sessions {
		return payload.Diff{}, false
	}
	if serial == h.serial {
		return payload.Diff{}, true
	}
	if len(h.entries) == 0 {
		return payload.Diff{}, false
	}
	oldest := h.entries[0].serial - 1
	if serial < oldest || serial > h.serial {
		return payload.Diff{}, false
	}
	var acc payload.Diff
	started := false
	for _, e := range h.entries {
		if e.serial <= serial {
			continue
		}
		if !started {
			acc = e.diff
			started = true
			continue
		}
		acc = acc.Concat(e.diff)
	}
	return acc, true
}
