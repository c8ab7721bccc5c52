// Copyright (c) 2021 - The Pulse authors.
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

// Package eventbus fans published events out to their registered handlers,
// delegating ordering and concurrency to a pluggable dispatch strategy.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/strategy"
)

var (
	// ErrHandlerAlreadyAdded is when a handler of the same type is already
	// registered for an event type.
	ErrHandlerAlreadyAdded = errors.New("handler is already added")
	// ErrMissingEventType is when a registration is attempted without event
	// types.
	ErrMissingEventType = errors.New("missing event type")
	// ErrMissingStrategy is when a strategy registration is attempted with a
	// nil strategy.
	ErrMissingStrategy = errors.New("missing dispatch strategy")
)

// Bus is an event bus publishing events to all handlers registered for their
// type. Zero registered handlers is valid; publishing then succeeds silently.
type Bus struct {
	handlers       map[pulse.EventType][]pulse.EventHandler
	registered     map[pulse.EventType]map[pulse.EventHandlerType]struct{}
	middleware     []pulse.EventHandlerMiddleware
	strategies     map[pulse.EventType]pulse.DispatchStrategy
	globalStrategy pulse.DispatchStrategy
	clock          pulse.Clock
	mu             sync.RWMutex
}

// Option is an option setter used to configure creation.
type Option func(*Bus)

// WithClock uses a clock other than the system clock to stamp publication
// times, often a fixed clock in tests.
func WithClock(c pulse.Clock) Option {
	return func(b *Bus) {
		b.clock = c
	}
}

// WithStrategy sets the bus-wide dispatch strategy, replacing the concurrent
// default.
func WithStrategy(s pulse.DispatchStrategy) Option {
	return func(b *Bus) {
		b.globalStrategy = s
	}
}

// NewBus creates a Bus.
func NewBus(options ...Option) *Bus {
	b := &Bus{
		handlers:   make(map[pulse.EventType][]pulse.EventHandler),
		registered: make(map[pulse.EventType]map[pulse.EventHandlerType]struct{}),
		strategies: make(map[pulse.EventType]pulse.DispatchStrategy),
		clock:      pulse.SystemClock{},
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		option(b)
	}

	return b
}

// AddHandler subscribes a handler to one or more event types, in registration
// order. Only one handler of each handler type may subscribe to the same
// event type.
func (b *Bus) AddHandler(handler pulse.EventHandler, eventTypes ...pulse.EventType) error {
	if handler == nil {
		return pulse.ErrMissingHandler
	}

	if len(eventTypes) == 0 {
		return ErrMissingEventType
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, eventType := range eventTypes {
		if _, ok := b.registered[eventType][handler.HandlerType()]; ok {
			return ErrHandlerAlreadyAdded
		}
	}

	for _, eventType := range eventTypes {
		if b.registered[eventType] == nil {
			b.registered[eventType] = make(map[pulse.EventHandlerType]struct{})
		}

		b.registered[eventType][handler.HandlerType()] = struct{}{}
		b.handlers[eventType] = append(b.handlers[eventType], handler)
	}

	return nil
}

// UseMiddleware adds middleware around every handler invocation. The
// middleware added last wraps all the others and runs first.
func (b *Bus) UseMiddleware(middleware ...pulse.EventHandlerMiddleware) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.middleware = append(b.middleware, middleware...)
}

// SetStrategy sets the bus-wide dispatch strategy.
func (b *Bus) SetStrategy(s pulse.DispatchStrategy) error {
	if s == nil {
		return ErrMissingStrategy
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.globalStrategy = s

	return nil
}

// SetStrategyFor sets the dispatch strategy for a single event type, taking
// precedence over the bus-wide strategy.
func (b *Bus) SetStrategyFor(eventType pulse.EventType, s pulse.DispatchStrategy) error {
	if s == nil {
		return ErrMissingStrategy
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.strategies[eventType] = s

	return nil
}

// Publish publishes an event to all handlers registered for its type. The
// publication time is stamped before any handler runs. Individual handler
// failures never stop other handlers; after all handlers have been attempted
// the failures are returned as one aggregate error with one entry per failed
// handler.
func (b *Bus) Publish(ctx context.Context, event pulse.Event) error {
	if event == nil {
		return pulse.ErrMissingEvent
	}

	b.mu.RLock()

	if setter, ok := event.(pulse.PublishedAtSetter); ok {
		setter.SetPublishedAt(b.clock.Now())
	}

	handlers := make([]pulse.EventHandler, len(b.handlers[event.EventType()]))
	copy(handlers, b.handlers[event.EventType()])

	middleware := make([]pulse.EventHandlerMiddleware, len(b.middleware))
	copy(middleware, b.middleware)

	dispatch := b.strategyFor(event.EventType())

	b.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	invoke := func(ctx context.Context, event pulse.Event, h pulse.EventHandler) error {
		return pulse.UseEventHandlerMiddleware(h, middleware...).HandleEvent(ctx, event)
	}

	if err := dispatch.Dispatch(ctx, event, handlers, invoke); err != nil {
		return fmt.Errorf("could not publish event %s: %w", event, err)
	}

	return nil
}

// Resolution order: per-type strategy, bus-wide strategy, concurrent default.
// Callers must hold the read lock.
func (b *Bus) strategyFor(eventType pulse.EventType) pulse.DispatchStrategy {
	if s, ok := b.strategies[eventType]; ok {
		return s
	}

	if b.globalStrategy != nil {
		return b.globalStrategy
	}

	return strategy.NewConcurrent()
}
