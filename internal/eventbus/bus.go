// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package eventbus implements the thread-safe publish/subscribe bus (C1)
// that drives the Global Index's Tier 1 metadata store and Tier 2 cache
// invalidation. Delivery is synchronous and in subscription order; a
// handler that panics or returns an error is logged and removed rather
// than allowed to break fan-out for the remaining subscribers.
package eventbus

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Event is the envelope delivered to subscribers. Type is the routing key
// ("project_indexed", "project_updated", ...); Payload is event-specific.
type Event struct {
	Type    string
	Payload any
}

// Handler processes a delivered event. A returned error counts as a
// delivery error and causes auto-unsubscription (spec §4.1).
type Handler func(Event) error

// Token identifies a subscription for Unsubscribe. Subscribers are
// addressed by this opaque token rather than function identity (spec §9
// "Event subscriber handles"), which sidesteps equality problems with
// closures and bound methods.
type Token int64

type subscription struct {
	token   Token
	evtType string
	handler Handler
}

// Stats holds the bus's monotonic counters (spec §4.1).
type Stats struct {
	Emitted        int64
	Delivered      int64
	DeliveryErrors int64
}

// Bus is a single-lock pub/sub bus. All exported methods are safe for
// concurrent use.
type Bus struct {
	mu      sync.Mutex
	subs    map[string][]subscription
	nextTok int64

	emitted        atomic.Int64
	delivered      atomic.Int64
	deliveryErrors atomic.Int64

	// onDeliveryError is called (outside the lock) whenever a handler is
	// auto-removed after erroring, letting Monitoring (C19) log it.
	onDeliveryError func(evtType string, tok Token, err error)
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// OnDeliveryError registers a callback invoked whenever a subscriber is
// auto-removed after failing. Only one callback is kept; intended for
// wiring Monitoring at construction time.
func (b *Bus) OnDeliveryError(fn func(evtType string, tok Token, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDeliveryError = fn
}

// Subscribe registers handler for evtType and returns an unsubscribe
// token. Subscribers for the same evtType are delivered to in the order
// they subscribed (spec §5 "Event delivery per event_type is FIFO across
// subscribers").
func (b *Bus) Subscribe(evtType string, handler Handler) Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextTok++
	tok := Token(b.nextTok)
	b.subs[evtType] = append(b.subs[evtType], subscription{token: tok, evtType: evtType, handler: handler})
	return tok
}

// Unsubscribe removes the subscription identified by tok, if any.
func (b *Bus) Unsubscribe(tok Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for evtType, list := range b.subs {
		for i, s := range list {
			if s.token == tok {
				b.subs[evtType] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers evt synchronously to every current subscriber of evt.Type,
// in subscription order. A handler that panics or returns an error is
// logged (via onDeliveryError) and removed; delivery continues to the
// remaining subscribers. Emit must complete in microseconds for the
// expected fan-out (spec §4.1 "≲1ms for ≤ dozens of subscribers") —
// handlers must defer heavy work themselves.
func (b *Bus) Emit(evt Event) {
	b.emitted.Add(1)

	b.mu.Lock()
	list := append([]subscription(nil), b.subs[evt.Type]...)
	b.mu.Unlock()

	var failed []Token
	for _, s := range list {
		if err := b.invoke(s, evt); err != nil {
			b.deliveryErrors.Add(1)
			failed = append(failed, s.token)
			if cb := b.callbackSnapshot(); cb != nil {
				cb(evt.Type, s.token, err)
			}
			continue
		}
		b.delivered.Add(1)
	}

	if len(failed) > 0 {
		b.mu.Lock()
		for _, tok := range failed {
			list := b.subs[evt.Type]
			for i, s := range list {
				if s.token == tok {
					b.subs[evt.Type] = append(list[:i], list[i+1:]...)
					break
				}
			}
		}
		b.mu.Unlock()
	}
}

func (b *Bus) callbackSnapshot() func(string, Token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.onDeliveryError
}

// invoke recovers from a handler panic so one bad subscriber cannot take
// down the bus goroutine.
func (b *Bus) invoke(s subscription, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return s.handler(evt)
}

// Stats returns a snapshot of the bus's monotonic counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Emitted:        b.emitted.Load(),
		Delivered:      b.delivered.Load(),
		DeliveryErrors: b.deliveryErrors.Load(),
	}
}
