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

// Package requestbus routes commands and queries to their single registered
// handler, running the configured middleware around each invocation.
package requestbus

import (
	"context"
	"errors"
	"sync"

	"github.com/dailydevops/pulse"
)

var (
	// ErrHandlerAlreadySet is when a handler is already registered for a
	// request type.
	ErrHandlerAlreadySet = errors.New("handler is already set")
	// ErrHandlerNotFound is when no handler is registered for a request
	// type. This is a configuration error, surfaced at dispatch time and
	// never retried.
	ErrHandlerNotFound = errors.New("no handler for request")
)

// Bus is a request bus dispatching each request to the single handler
// registered for its type. The registry is written at startup and read-only
// at dispatch time.
type Bus struct {
	handlers       map[pulse.RequestType]pulse.RequestHandler
	middleware     []pulse.RequestHandlerMiddleware
	typeMiddleware map[pulse.RequestType][]pulse.RequestHandlerMiddleware
	mu             sync.RWMutex
}

// NewBus creates a Bus.
func NewBus() *Bus {
	return &Bus{
		handlers:       make(map[pulse.RequestType]pulse.RequestHandler),
		typeMiddleware: make(map[pulse.RequestType][]pulse.RequestHandlerMiddleware),
	}
}

// SetHandler adds a handler for a specific request type. Only one handler per
// type is allowed; a second registration returns ErrHandlerAlreadySet.
func (b *Bus) SetHandler(handler pulse.RequestHandler, requestType pulse.RequestType) error {
	if handler == nil {
		return pulse.ErrMissingHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handlers[requestType]; ok {
		return ErrHandlerAlreadySet
	}

	b.handlers[requestType] = handler

	return nil
}

// UseMiddleware adds middleware around every dispatched request. The
// middleware added last wraps all the others, including any per-type
// middleware, and runs first.
func (b *Bus) UseMiddleware(middleware ...pulse.RequestHandlerMiddleware) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.middleware = append(b.middleware, middleware...)
}

// UseMiddlewareFor adds middleware around requests of a specific type only,
// running inside the bus-wide middleware.
func (b *Bus) UseMiddlewareFor(requestType pulse.RequestType, middleware ...pulse.RequestHandlerMiddleware) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.typeMiddleware[requestType] = append(b.typeMiddleware[requestType], middleware...)
}

// Send dispatches a command to its registered handler and returns the
// response. Handler and middleware errors propagate unmodified; retrying is
// middleware policy, never bus behavior.
func (b *Bus) Send(ctx context.Context, cmd pulse.Command) (interface{}, error) {
	if cmd == nil {
		return nil, pulse.ErrMissingRequest
	}

	return b.dispatch(ctx, cmd)
}

// Execute dispatches a command whose response carries no meaning, discarding
// the response value.
func (b *Bus) Execute(ctx context.Context, cmd pulse.Command) error {
	_, err := b.Send(ctx, cmd)

	return err
}

// Query dispatches a query to its registered handler and returns the
// response.
func (b *Bus) Query(ctx context.Context, query pulse.Query) (interface{}, error) {
	if query == nil {
		return nil, pulse.ErrMissingRequest
	}

	return b.dispatch(ctx, query)
}

func (b *Bus) dispatch(ctx context.Context, req pulse.Request) (interface{}, error) {
	b.mu.RLock()

	handler, ok := b.handlers[req.RequestType()]
	if !ok {
		b.mu.RUnlock()

		return nil, ErrHandlerNotFound
	}

	middleware := make([]pulse.RequestHandlerMiddleware, 0,
		len(b.typeMiddleware[req.RequestType()])+len(b.middleware))
	middleware = append(middleware, b.typeMiddleware[req.RequestType()]...)
	middleware = append(middleware, b.middleware...)

	b.mu.RUnlock()

	return pulse.UseRequestHandlerMiddleware(handler, middleware...).HandleRequest(ctx, req)
}
