// Copyright (c) 2022 - The Pulse authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package strategy_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/mocks"
	"github.com/dailydevops/pulse/strategy"
)

func invoke(ctx context.Context, event pulse.Event, h pulse.EventHandler) error {
	return h.HandleEvent(ctx, event)
}

func TestConcurrent(t *testing.T) {
	event := pulse.NewEvent(mocks.EventType, &mocks.EventData{Content: "event1"})

	handler1 := mocks.NewEventHandler("handler1")
	handler2 := mocks.NewEventHandler("handler2")
	handler3 := mocks.NewEventHandler("handler3")
	handler2.Err = errors.New("handler error")

	s := strategy.NewConcurrent()

	err := s.Dispatch(context.Background(), event,
		[]pulse.EventHandler{handler1, handler2, handler3}, invoke)
	if err == nil {
		t.Fatal("there should be an error")
	}

	var aggregate *multierror.Error
	if !errors.As(err, &aggregate) {
		t.Fatal("the error should be an aggregate:", err)
	}

	if len(aggregate.Errors) != 1 {
		t.Error("there should be exactly one inner error:", aggregate.Errors)
	}

	// A failing handler never stops the others.
	for _, h := range []*mocks.EventHandler{handler1, handler3} {
		h.RLock()

		if len(h.Events) != 1 {
			t.Errorf("%s should have handled the event: %v", h.Type, h.Events)
		}

		h.RUnlock()
	}
}

func TestSequentialOrder(t *testing.T) {
	event := pulse.NewEvent(mocks.EventType, nil)

	var mu sync.Mutex
	order := []string{}

	record := func(name string) pulse.EventHandler {
		return pulse.NewEventHandler(pulse.EventHandlerType(name), func(ctx context.Context, e pulse.Event) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()

			if name == "second" {
				return errors.New("handler error")
			}

			return nil
		})
	}

	s := strategy.NewSequential()

	err := s.Dispatch(context.Background(), event,
		[]pulse.EventHandler{record("first"), record("second"), record("third")}, invoke)
	if err == nil {
		t.Fatal("there should be an error")
	}

	expected := []string{"first", "second", "third"}
	for i, name := range expected {
		if order[i] != name {
			t.Fatalf("the order should be %v: %v", expected, order)
		}
	}
}

func TestSequentialCancellation(t *testing.T) {
	event := pulse.NewEvent(mocks.EventType, nil)

	ctx, cancel := context.WithCancel(context.Background())

	handler1 := pulse.NewEventHandler("handler1", func(ctx context.Context, e pulse.Event) error {
		cancel()

		return nil
	})
	handler2 := mocks.NewEventHandler("handler2")

	s := strategy.NewSequential()

	err := s.Dispatch(ctx, event, []pulse.EventHandler{handler1, handler2}, invoke)
	if !errors.Is(err, context.Canceled) {
		t.Error("the error should be the cancellation:", err)
	}

	handler2.RLock()
	defer handler2.RUnlock()

	if len(handler2.Events) != 0 {
		t.Error("the second handler should not have run:", handler2.Events)
	}
}

func TestPriorityOrder(t *testing.T) {
	event := pulse.NewEvent(mocks.EventType, nil)

	// Priorities [5, 1, 5] plus one handler without a priority: the
	// prioritized handlers run lowest first with ties in registration order,
	// and the non-prioritized handler runs last.
	first5 := mocks.NewPrioritizedEventHandler("first5", 5)
	one := mocks.NewPrioritizedEventHandler("one", 1)
	second5 := mocks.NewPrioritizedEventHandler("second5", 5)
	unprioritized := mocks.NewEventHandler("unprioritized")

	var mu sync.Mutex
	order := []pulse.EventHandlerType{}

	recordingInvoke := func(ctx context.Context, e pulse.Event, h pulse.EventHandler) error {
		mu.Lock()
		order = append(order, h.HandlerType())
		mu.Unlock()

		return h.HandleEvent(ctx, e)
	}

	s := strategy.NewPriority()

	err := s.Dispatch(context.Background(), event,
		[]pulse.EventHandler{first5, one, second5, unprioritized}, recordingInvoke)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	expected := []pulse.EventHandlerType{"one", "first5", "second5", "unprioritized"}
	for i, name := range expected {
		if order[i] != name {
			t.Fatalf("the order should be %v: %v", expected, order)
		}
	}
}

func TestBoundedConcurrency(t *testing.T) {
	event := pulse.NewEvent(mocks.EventType, nil)

	var inFlight, maxInFlight int64

	handlers := []pulse.EventHandler{}
	for i := 0; i < 10; i++ {
		handlers = append(handlers, mocks.NewEventHandler(pulse.EventHandlerType(rune('a'+i))))
	}

	gatedInvoke := func(ctx context.Context, e pulse.Event, h pulse.EventHandler) error {
		n := atomic.AddInt64(&inFlight, 1)

		for {
			max := atomic.LoadInt64(&maxInFlight)
			if n <= max || atomic.CompareAndSwapInt64(&maxInFlight, max, n) {
				break
			}
		}

		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)

		return h.HandleEvent(ctx, e)
	}

	s := strategy.NewBounded(3)

	if err := s.Dispatch(context.Background(), event, handlers, gatedInvoke); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if atomic.LoadInt64(&maxInFlight) > 3 {
		t.Error("there should be at most 3 handlers in flight:", maxInFlight)
	}
}

func TestBoundedCancellation(t *testing.T) {
	event := pulse.NewEvent(mocks.EventType, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handler := mocks.NewEventHandler("handler")

	s := strategy.NewBounded(1)

	err := s.Dispatch(ctx, event, []pulse.EventHandler{handler}, invoke)
	if !errors.Is(err, context.Canceled) {
		t.Error("the error should be the cancellation:", err)
	}
}
