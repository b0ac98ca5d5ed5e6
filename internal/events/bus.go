/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"sync"
	"sync/atomic"
)

// EventType names a topic on the bus.
type EventType string

const (
	EventPlanGenerated    EventType = "plan.generated"
	EventDeviceRegistered EventType = "device.registered"
	EventDeviceRemoved    EventType = "device.removed"
	EventUserRegistered   EventType = "user.registered"
	EventUserLogin        EventType = "auth.login"

	// Published only to be recorded in the audit trail.
	EventAuditAPIKeyCreate EventType = "audit.apikey.create"
	EventAuditAPIKeyRevoke EventType = "audit.apikey.revoke"
)

// SubscriberBuffer is the channel capacity given to each subscriber.
const SubscriberBuffer = 8

// Payload is the loosely typed body of an event.
type Payload map[string]any

// Subscriber receives the payloads of one topic.
type Subscriber chan Payload

// Bus is an in-process, fire-and-forget publish/subscribe hub.
type Bus struct {
	mu      sync.RWMutex
	topics  map[EventType]map[Subscriber]struct{}
	dropped atomic.Uint64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{topics: make(map[EventType]map[Subscriber]struct{})}
}

// Subscribe returns a new buffered channel for eventType.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	sub := make(Subscriber, SubscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.topics[eventType]
	if !ok {
		set = make(map[Subscriber]struct{})
		b.topics[eventType] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Publish offers payload to every subscriber of eventType and reports how
// many accepted it. Full subscribers miss the event. Sends happen under the
// read lock so Unsubscribe never closes a channel mid-send.
func (b *Bus) Publish(eventType EventType, payload Payload) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for sub := range b.topics[eventType] {
		select {
		case sub <- payload:
			delivered++
		default:
			b.dropped.Add(1)
		}
	}
	return delivered
}

// Unsubscribe detaches sub from eventType and closes it. Unknown
// subscribers are ignored.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.topics[eventType]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.topics, eventType)
	}
	close(sub)
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
