// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package protocol

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/relaywire/relaywire/internal/metrics"
	"github.com/relaywire/relaywire/pkg/wire"
)

// heartbeatInterval bounds the gap between events on one subscription;
// the app-level heartbeat keeps an idle subscription distinguishable
// from a dead one.
const heartbeatInterval = 30 * time.Second

type subscription struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	lastSent time.Time
}

// startSubscription launches the goroutine that drives one subscription
// for its lifetime: it calls the EventSource, forwards every event as a
// wire.Event, and injects a synthetic heartbeat whenever heartbeatInterval
// elapses without the source emitting anything.
func (s *Session) startSubscription(parent context.Context, sub wire.Subscribe) {
	ctx, cancel := context.WithCancel(parent)
	state := &subscription{id: sub.SubscriptionID, cancel: cancel, done: make(chan struct{}), lastSent: time.Now()}

	s.mu.Lock()
	s.subs[sub.SubscriptionID] = state
	s.mu.Unlock()
	metrics.SubscriptionsActive.Inc()

	go func() {
		defer close(state.done)
		defer metrics.SubscriptionsActive.Dec()
		defer s.forgetSubscription(sub.SubscriptionID)

		_ = s.send(wire.Event{
			Type:           wire.TypeEvent,
			SubscriptionID: sub.SubscriptionID,
			EventType:      "connected",
		})
		state.touch()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		stopHeartbeat := make(chan struct{})
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-stopHeartbeat:
					return
				case <-heartbeat.C:
					if state.idleFor() >= heartbeatInterval {
						_ = s.send(wire.Event{
							Type:           wire.TypeEvent,
							SubscriptionID: sub.SubscriptionID,
							EventType:      "heartbeat",
						})
						state.touch()
					}
				}
			}
		}()
		defer close(stopHeartbeat)

		yield := func(eventType string, eventID *int64, data json.RawMessage) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := s.send(wire.Event{
				Type:           wire.TypeEvent,
				SubscriptionID: sub.SubscriptionID,
				EventType:      eventType,
				EventID:        eventID,
				Data:           data,
			}); err != nil {
				return err
			}
			state.touch()
			return nil
		}

		_ = s.events.Subscribe(ctx, sub.Channel, sub.Params, sub.LastEventID, yield)
	}()
}

func (st *subscription) touch() {
	st.mu.Lock()
	st.lastSent = time.Now()
	st.mu.Unlock()
}

func (st *subscription) idleFor() time.Duration {
	st.mu.Lock()
	defer st.mu.Unlock()
	return time.Since(st.lastSent)
}

func (s *Session) forgetSubscription(id string) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

// stopSubscription cancels a live subscription. ok is false if id is
// unknown, which the caller surfaces as a ProtocolViolation close.
func (s *Session) stopSubscription(id string) (ok bool) {
	s.mu.Lock()
	state, found := s.subs[id]
	s.mu.Unlock()
	if !found {
		return false
	}
	state.cancel()
	<-state.done
	return true
}

// stopAllSubscriptions cancels every live subscription; called on
// connection close.
func (s *Session) stopAllSubscriptions() {
	s.mu.Lock()
	states := make([]*subscription, 0, len(s.subs))
	for _, st := range s.subs {
		states = append(states, st)
	}
	s.mu.Unlock()

	for _, st := range states {
		st.cancel()
		<-st.done
	}
}
