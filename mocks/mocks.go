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

// Package mocks provides mocked core types, useful in testing.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/outbox"
	"github.com/dailydevops/pulse/uuid"
)

func init() {
	pulse.RegisterEventData(EventType, func() pulse.EventData { return &EventData{} })
}

const (
	// EventType is the type for Event.
	EventType pulse.EventType = "Event"
	// EventOtherType is the type for EventOther.
	EventOtherType pulse.EventType = "EventOther"

	// CommandType is the type for Command.
	CommandType pulse.RequestType = "Command"
	// QueryType is the type for Query.
	QueryType pulse.RequestType = "Query"
)

// EventData is mocked event data, useful in testing.
type EventData struct {
	Content string
}

// Command is a mocked pulse.Command, useful in testing.
type Command struct {
	Content     string
	Correlation uuid.UUID
}

// RequestType implements the RequestType method of the pulse.Request interface.
func (c Command) RequestType() pulse.RequestType { return CommandType }

// CorrelationID implements the CorrelationID method of the pulse.Request interface.
func (c Command) CorrelationID() uuid.UUID { return c.Correlation }

// IsCommand implements the IsCommand method of the pulse.Command interface.
func (c Command) IsCommand() {}

// Query is a mocked pulse.Query, useful in testing.
type Query struct {
	Content     string
	Correlation uuid.UUID
}

// RequestType implements the RequestType method of the pulse.Request interface.
func (q Query) RequestType() pulse.RequestType { return QueryType }

// CorrelationID implements the CorrelationID method of the pulse.Request interface.
func (q Query) CorrelationID() uuid.UUID { return q.Correlation }

// IsQuery implements the IsQuery method of the pulse.Query interface.
func (q Query) IsQuery() {}

// RequestHandler is a mocked pulse.RequestHandler, useful in testing.
type RequestHandler struct {
	sync.Mutex
	Requests []pulse.Request
	Context  context.Context
	// Resp is the response to return from HandleRequest.
	Resp interface{}
	// Err is an error to return from HandleRequest.
	Err error
}

// HandleRequest implements the HandleRequest method of the
// pulse.RequestHandler interface.
func (h *RequestHandler) HandleRequest(ctx context.Context, req pulse.Request) (interface{}, error) {
	h.Lock()
	defer h.Unlock()

	if h.Err != nil {
		return nil, h.Err
	}

	h.Requests = append(h.Requests, req)
	h.Context = ctx

	return h.Resp, nil
}

// EventHandler is a mocked pulse.EventHandler, useful in testing.
type EventHandler struct {
	sync.RWMutex
	Type    pulse.EventHandlerType
	Events  []pulse.Event
	Context context.Context
	Recv    chan pulse.Event
	// Err is an error to return from HandleEvent.
	Err error
	// Sleep is a duration to wait before handling, to exercise concurrency.
	Sleep time.Duration
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(handlerType pulse.EventHandlerType) *EventHandler {
	return &EventHandler{
		Type:   handlerType,
		Events: []pulse.Event{},
		Recv:   make(chan pulse.Event, 10),
	}
}

// HandlerType implements the HandlerType method of the pulse.EventHandler
// interface.
func (h *EventHandler) HandlerType() pulse.EventHandlerType {
	return h.Type
}

// HandleEvent implements the HandleEvent method of the pulse.EventHandler
// interface.
func (h *EventHandler) HandleEvent(ctx context.Context, event pulse.Event) error {
	if h.Sleep > 0 {
		select {
		case <-time.After(h.Sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	h.Lock()

	if h.Err != nil {
		h.Unlock()

		return h.Err
	}

	h.Events = append(h.Events, event)
	h.Context = ctx
	h.Unlock()

	select {
	case h.Recv <- event:
	default:
	}

	return nil
}

// Wait is a helper to wait until an event has been handled, with a timeout.
func (h *EventHandler) Wait(timeout time.Duration) bool {
	select {
	case <-h.Recv:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Reset resets the mock state.
func (h *EventHandler) Reset() {
	h.Lock()
	defer h.Unlock()

	h.Events = []pulse.Event{}
	h.Context = nil
	h.Err = nil
}

// PrioritizedEventHandler is an EventHandler with a dispatch priority.
type PrioritizedEventHandler struct {
	*EventHandler
	Prio int
}

// NewPrioritizedEventHandler creates a new PrioritizedEventHandler.
func NewPrioritizedEventHandler(handlerType pulse.EventHandlerType, priority int) *PrioritizedEventHandler {
	return &PrioritizedEventHandler{NewEventHandler(handlerType), priority}
}

// Priority implements the Priority method of the pulse.Prioritized interface.
func (h *PrioritizedEventHandler) Priority() int {
	return h.Prio
}

// Clock is a mocked pulse.Clock with a settable time, useful in testing.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock creates a Clock set to a time.
func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

// Now implements the Now method of the pulse.Clock interface.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}

// Transport is a mocked outbox.Transport, with optional batch support and a
// scriptable health state, useful in testing.
type Transport struct {
	sync.Mutex
	Sent    []*outbox.Message
	Batches [][]*outbox.Message
	// Err is an error to return from Send.
	Err error
	// BatchErr is an error to return from SendBatch.
	BatchErr error
	// Unhealthy makes IsHealthy report false.
	Unhealthy bool
	// WithoutBatch disables the BatchSender capability.
	WithoutBatch bool
	// FailFirst fails the first FailFirst sends, then succeeds.
	FailFirst int
	attempts  int
}

// NewTransport creates a new Transport.
func NewTransport() *Transport {
	return &Transport{}
}

// Send implements the Send method of the outbox.Transport interface.
func (t *Transport) Send(ctx context.Context, msg *outbox.Message) error {
	t.Lock()
	defer t.Unlock()

	t.attempts++
	if t.Err != nil {
		return t.Err
	}

	if t.attempts <= t.FailFirst {
		return context.DeadlineExceeded
	}

	t.Sent = append(t.Sent, msg)

	return nil
}

// SendBatch implements the SendBatch method of the outbox.BatchSender
// interface. It records the batch as atomic: either all messages or none.
func (t *Transport) SendBatch(ctx context.Context, msgs []*outbox.Message) error {
	t.Lock()
	defer t.Unlock()

	if t.WithoutBatch {
		// Callers check the interface before calling, so reaching this is a
		// test setup error.
		panic("mocks: SendBatch called on transport without batch support")
	}

	if t.BatchErr != nil {
		return t.BatchErr
	}

	t.Batches = append(t.Batches, msgs)
	t.Sent = append(t.Sent, msgs...)

	return nil
}

// IsHealthy implements the IsHealthy method of the outbox.HealthChecker
// interface.
func (t *Transport) IsHealthy(ctx context.Context) bool {
	t.Lock()
	defer t.Unlock()

	return !t.Unhealthy
}

// Attempts returns the number of Send calls, including failed ones.
func (t *Transport) Attempts() int {
	t.Lock()
	defer t.Unlock()

	return t.attempts
}
