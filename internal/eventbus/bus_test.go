// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package eventbus

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitDeliversInSubscriptionOrderFIFO(t *testing.T) {
	b := New()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		b.Subscribe("project_indexed", func(Event) error {
			order = append(order, i)
			return nil
		})
	}

	b.Emit(Event{Type: "project_indexed"})

	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
	require.Equal(t, int64(5), b.Stats().Delivered)
}

func TestFailingHandlerIsAutoRemoved(t *testing.T) {
	b := New()
	calls := 0
	b.Subscribe("x", func(Event) error {
		calls++
		return errors.New("boom")
	})

	b.Emit(Event{Type: "x"})
	b.Emit(Event{Type: "x"})

	require.Equal(t, 1, calls, "handler should be removed after first failure")
	require.Equal(t, int64(1), b.Stats().DeliveryErrors)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	tok := b.Subscribe("x", func(Event) error {
		calls++
		return nil
	})
	b.Unsubscribe(tok)
	b.Emit(Event{Type: "x"})
	require.Equal(t, 0, calls)
}

func TestConcurrentEmitIsRaceFree(t *testing.T) {
	b := New()
	var mu sync.Mutex
	total := 0
	b.Subscribe("x", func(Event) error {
		mu.Lock()
		total++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Emit(Event{Type: "x"})
		}()
	}
	wg.Wait()

	require.Equal(t, 50, total)
}
