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

package gate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/USA-RedDragon/rtrproxy/internal/payload"
	"github.com/redis/go-redis/v9"
)

// wireState is the JSON envelope published to Redis. The RTR wire codec
// frames PDUs by hand in big-endian binary; here JSON is sufficient since the payload
// only crosses the process boundary at the gate fan-out rate, not at
// line rate.
type wireState struct {
	Origins    []payload.Origin    `json:"origins"`
	RouterKeys []payload.RouterKey `json:"router_keys"`
	ASPAs      []payload.ASPA      `json:"aspas"`
	Health     Health              `json:"health"`
	Has        bool                `json:"has"`
}

// RedisGate is a multi-process Gate: it publishes the same state a
// local Gate would broadcast to an in-memory Link, onto a Redis pub/sub
// channel, so that sibling processes running RedisLink can observe the
// same producer without sharing a goroutine.
type RedisGate struct {
	client  *redis.Client
	channel string
}

// NewRedisGate opens a Redis-backed Gate publishing on channel.
func NewRedisGate(client *redis.Client, channel string) *RedisGate {
	return &RedisGate{client: client, channel: channel}
}

func (g *RedisGate) publish(ctx context.Context, s wireState) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("gate: marshal state: %w", err)
	}
	if err := g.client.Publish(ctx, g.channel, b).Err(); err != nil {
		return fmt.Errorf("gate: publish to redis: %w", err)
	}
	return nil
}

// Publish broadcasts a new payload to every RedisLink subscribed to
// this channel, across every process.
func (g *RedisGate) Publish(ctx context.Context, p payload.Payload, h Health) error {
	return g.publish(ctx, wireState{Origins: p.Origins, RouterKeys: p.RouterKeys, ASPAs: p.ASPAs, Health: h, Has: true})
}

// Close releases the underlying Redis client.
func (g *RedisGate) Close() error {
	if err := g.client.Close(); err != nil {
		return fmt.Errorf("gate: close redis client: %w", err)
	}
	return nil
}

// RedisLink subscribes to a RedisGate's channel from another process.
type RedisLink struct {
	sub  *redis.PubSub
	last wireState
}

// SubscribeRedis opens a new subscription on channel.
func SubscribeRedis(ctx context.Context, client *redis.Client, channel string) *RedisLink {
	return &RedisLink{sub: client.Subscribe(ctx, channel)}
}

// Updated suspends until the next publication arrives on the channel.
func (l *RedisLink) Updated(ctx context.Context) (payload.Payload, Health, error) {
	ch := l.sub.Channel()
	select {
	case msg, ok := <-ch:
		if !ok {
			return payload.Empty, Stalled, ErrClosed
		}
		var s wireState
		if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
			return payload.Empty, Stalled, fmt.Errorf("gate: decode redis message: %w", err)
		}
		l.last = s
		return payload.New(s.Origins, s.RouterKeys, s.ASPAs), s.Health, nil
	case <-ctx.Done():
		return payload.Empty, Stalled, ctx.Err()
	}
}

// Close ends the subscription.
func (l *RedisLink) Close() error {
	if err := l.sub.Close(); err != nil {
		return fmt.Errorf("gate: close redis subscription: %w", err)
	}
	return nil
}
