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

// Package server implements the RTR server-side per-connection state
// machine: Accept → Negotiate → Idle (spec section 4.2.3), backed by a
// shared Target holding the bounded diff history of the data currently
// being exported.
package server

import (
	"sync"

	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/USA-RedDragon/rtrproxy/internal/rtr/session"
)

// Target is the data a Server exports: a session-scoped diff history
// that every accepted connection reads from, and a fan-out of wakeups
// so idle connections learn about a new serial promptly (spec section
// 4.2.3, Serial Notify on change).
type Target struct {
	mu      sync.Mutex
	history *session.History
	subs    map[uint64]chan struct{}
	nextSub uint64
}

// NewTarget creates a Target with the given bounded diff-history depth.
func NewTarget(historyDepth int) *Target {
	return &Target{
		history: session.NewHistory(historyDepth),
		subs:    make(map[uint64]chan struct{}),
	}
}

// Publish installs a new payload snapshot, recording the diff from the
// previous one, and wakes every idle connection so it can send a Serial
// Notify. A republish that changes nothing leaves the serial untouched
// and wakes no one (session.History.Publish is a no-op in that case).
func (t *Target) Publish(p payload.Payload) {
	t.mu.Lock()
	before := t.history.Serial()
	t.history.Publish(p)
	if t.history.Serial() != before {
		for _, ch := range t.subs {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
	t.mu.Unlock()
}

// Reset discards diff history and assigns a new session id, forcing
// every client to Reset Query on its next contact.
func (t *Target) Reset() {
	t.mu.Lock()
	t.history.Reset()
	t.mu.Unlock()
}

func (t *Target) snapshot() (sessionID uint16, serial uint32, p payload.Payload) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history.SessionID(), t.history.Serial(), t.history.Current()
}

func (t *Target) diffSince(sessionID uint16, serial uint32) (payload.Diff, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history.DiffSince(sessionID, serial)
}

// subscribe registers a wakeup channel, fired once (non-blocking) on
// every Publish, and returns a handle for unsubscribe.
func (t *Target) subscribe() (uint64, <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	ch := make(chan struct{}, 1)
	t.subs[id] = ch
	return id, ch
}

func (t *Target) unsubscribe(id uint64) {
	t.mu.Lock()
	delete(t.subs, id)
	t.mu.Unlock()
}
