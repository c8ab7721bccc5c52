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

package pulse

import (
	"context"
	"errors"
)

// ErrMissingHandler is when a registration is attempted with a nil handler.
var ErrMissingHandler = errors.New("missing handler")

// EventHandlerType is the type of an event handler, used to distinguish
// handlers subscribed to the same event type.
type EventHandlerType string

// String implements the String method of the fmt.Stringer interface.
func (ht EventHandlerType) String() string {
	return string(ht)
}

// EventHandler is a handler of events.
type EventHandler interface {
	// HandlerType returns the type of the handler.
	HandlerType() EventHandlerType

	// HandleEvent handles an event.
	HandleEvent(context.Context, Event) error
}

// Prioritized is implemented by event handlers that want to influence their
// execution order under the priority dispatch strategy. A lower priority runs
// earlier; handlers without a priority run after all prioritized ones.
type Prioritized interface {
	// Priority returns the dispatch priority of the handler.
	Priority() int
}

// NewEventHandler creates an EventHandler from a handler type and a function.
func NewEventHandler(handlerType EventHandlerType, fn func(context.Context, Event) error) EventHandler {
	return &eventHandlerFunc{handlerType, fn}
}

type eventHandlerFunc struct {
	handlerType EventHandlerType
	fn          func(context.Context, Event) error
}

// HandlerType implements the HandlerType method of the EventHandler interface.
func (h *eventHandlerFunc) HandlerType() EventHandlerType {
	return h.handlerType
}

// HandleEvent implements the HandleEvent method of the EventHandler interface.
func (h *eventHandlerFunc) HandleEvent(ctx context.Context, event Event) error {
	return h.fn(ctx, event)
}

// EventHandlerMiddleware is a function that middlewares can implement to be
// able to chain. As with request middleware, not calling the inner handler is
// a valid way to short-circuit handling.
type EventHandlerMiddleware func(EventHandler) EventHandler

// UseEventHandlerMiddleware wraps an EventHandler in one or more middleware.
// The middleware added last wraps all the others and runs first.
func UseEventHandlerMiddleware(h EventHandler, middleware ...EventHandlerMiddleware) EventHandler {
	for _, m := range middleware {
		h = m(h)
	}

	return h
}
