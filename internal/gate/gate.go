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

// Package gate implements the Gate/Link broadcast channel that carries
// a producer's latest Payload, health status, and consumer commands to
// any number of subscribers.
package gate

import (
	"context"
	"errors"

	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// Health is a producer's health bit, per spec section 3.4.
type Health int

const (
	Healthy Health = iota
	Stalled
)

// Command is an application-level message a consumer sends upstream to
// its producer: request-on-demand, reconfigure, or terminate.
type Command int

const (
	CommandRefresh Command = iota
	CommandReconfigure
	CommandTerminate
)

// ErrClosed is returned by consumer-side operations once the producer
// has closed the Gate.
var ErrClosed = errors.New("gate: closed")

// state is the value broadcast to every subscriber: the most recent
// payload (if any has been published yet) and the current health.
type state struct {
	payload payload.Payload
	has     bool
	health  Health
}

// Gate is the producer side of the channel: one per unit, owned by
// that unit's goroutine.
type Gate struct {
	subscribers *xsync.Map[uuid.UUID, *subscriber]
	commands    chan Command
	closed      chan struct{}

	current state
}

// subscriber holds one Link's private view: a 1-slot "latest value"
// mailbox so a slow consumer only ever observes the newest publication,
// per spec section 4.1.
type subscriber struct {
	notify chan state
}

// New creates a Gate with no subscribers and no payload yet.
func New() *Gate {
	return &Gate{
		subscribers: xsync.NewMap[uuid.UUID, *subscriber](),
		commands:    make(chan Command, 16),
		closed:      make(chan struct{}),
	}
}

// Publish installs a new current payload and wakes every subscriber.
// Publishing a payload equal to the current one wakes no one. Calling
// Publish after Close is a no-op.
func (g *Gate) Publish(p payload.Payload) {
	g.broadcast(state{payload: p, has: true, health: g.current.health})
}

// SetStalled flips the health bit to Stalled and broadcasts it.
func (g *Gate) SetStalled() {
	g.broadcast(state{payload: g.current.payload, has: g.current.has, health: Stalled})
}

// SetHealthy flips the health bit to Healthy and broadcasts it.
func (g *Gate) SetHealthy() {
	g.broadcast(state{payload: g.current.payload, has: g.current.has, health: Healthy})
}

func (g *Gate) broadcast(s state) {
	select {
	case <-g.closed:
		return
	default:
	}
	if s.has == g.current.has && s.health == g.current.health && s.payload.Equal(g.current.payload) {
		return // nothing changed, so no subscriber is woken
	}
	g.current = s
	g.subscribers.Range(func(_ uuid.UUID, sub *subscriber) bool {
		// Drain-and-refill: a full mailbox only ever holds the latest
		// value, so a slow consumer skips intermediate publications
		// instead of blocking the producer.
		select {
		case <-sub.notify:
		default:
		}
		select {
		case sub.notify <- s:
		default:
		}
		return true
	})
}

// RecvCommand suspends until a downstream consumer sends a command, or
// the Gate is closed.
func (g *Gate) RecvCommand(ctx context.Context) (Command, error) {
	select {
	case cmd := <-g.commands:
		return cmd, nil
	case <-g.closed:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close drops all subscribers; future publishes and command sends are
// no-ops, and every Link observes a terminal state.
func (g *Gate) Close() {
	select {
	case <-g.closed:
		return
	default:
		close(g.closed)
	}
	g.subscribers.Range(func(id uuid.UUID, sub *subscriber) bool {
		close(sub.notify)
		g.subscribers.Delete(id)
		return true
	})
}

// Subscribe allocates a new Link bound to this Gate. The returned Link
// immediately observes the Gate's current state through Current; if a
// payload has been published yet, the first Updated call also returns
// that state without waiting.
func (g *Gate) Subscribe() *Link {
	sub := &subscriber{notify: make(chan state, 1)}
	select {
	case <-g.closed:
		close(sub.notify)
		return &Link{gate: g, sub: sub, last: g.current, closed: true}
	default:
	}
	id := uuid.New()
	g.subscribers.Store(id, sub)
	if g.current.has {
		sub.notify <- g.current
	}
	return &Link{gate: g, id: id, sub: sub, last: g.current}
}

// Link is the consumer side of the channel: one per subscription.
type Link struct {
	gate   *Gate
	id     uuid.UUID
	sub    *subscriber
	last   state
	closed bool
}

// Current performs a non-suspending read of the most recently observed
// payload, if any has arrived yet.
func (l *Link) Current() (payload.Payload, Health, bool) {
	return l.last.payload, l.last.health, l.last.has
}

// Updated suspends until the payload or health status changes, or the
// producer closes its Gate.
func (l *Link) Updated(ctx context.Context) (payload.Payload, Health, error) {
	select {
	case s, ok := <-l.sub.notify:
		if !ok {
			l.closed = true
			return payload.Empty, Stalled, ErrClosed
		}
		l.last = s
		return s.payload, s.health, nil
	case <-ctx.Done():
		return payload.Empty, l.last.health, ctx.Err()
	}
}

// Request sends a command upstream to the producer. It does not wait
// for a reply; the command is dropped silently if the producer's
// command queue is full or the Gate has closed.
func (l *Link) Request(cmd Command) {
	select {
	case l.gate.commands <- cmd:
	default:
	}
}

// Unsubscribe removes this Link from the Gate's subscriber set. After
// Unsubscribe no further publication reaches the Link; Updated returns
// only a state that was already queued before the call, or the
// context's error.
func (l *Link) Unsubscribe() {
	if l.closed {
		return
	}
	l.gate.subscribers.Delete(l.id)
}
