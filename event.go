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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dailydevops/pulse/uuid"
)

// ErrMissingEvent is when a publish is attempted with a nil event.
var ErrMissingEvent = errors.New("missing event")

// ErrEventDataNotRegistered is when no event data factory was registered for
// an event type.
var ErrEventDataNotRegistered = errors.New("event data not registered")

// EventType is the type of an event, used as its unique identifier. It is
// also the tag stored alongside serialized events in the outbox.
type EventType string

// String implements the String method of the fmt.Stringer interface.
func (et EventType) String() string {
	return string(et)
}

// EventData is any additional data for an event.
type EventData interface{}

// Event is an immutable notification broadcast to zero or more handlers.
//
// An event name should be in past tense and contain the intent
// (OrderCreated vs NewOrder).
type Event interface {
	// ID returns the stable identifier of the event.
	ID() uuid.UUID

	// EventType returns the type of the event.
	EventType() EventType

	// Data returns the data attached to the event.
	Data() EventData

	// CorrelationID returns the ID used to correlate the event across
	// systems. May be uuid.Nil.
	CorrelationID() uuid.UUID

	// PublishedAt returns the time the event began publication, or the zero
	// time if it has not been published yet.
	PublishedAt() time.Time

	// Metadata is app-specific metadata such as the originating user.
	Metadata() map[string]interface{}

	// A string representation of the event.
	String() string
}

// PublishedAtSetter is implemented by events whose publication time can be
// stamped. The time is set exactly once, by the event bus, the moment
// publication begins.
type PublishedAtSetter interface {
	// SetPublishedAt stamps the publication time if it is not already set and
	// reports whether it stamped.
	SetPublishedAt(time.Time) bool
}

// EventOption is an option to use when creating events.
type EventOption func(*event)

// ForID uses a pre-existing event ID instead of generating a new one, for
// example when recreating an event from a serialized form.
func ForID(id uuid.UUID) EventOption {
	return func(e *event) {
		e.id = id
	}
}

// WithCorrelationID sets the correlation ID of the event.
func WithCorrelationID(id uuid.UUID) EventOption {
	return func(e *event) {
		e.correlationID = id
	}
}

// WithMetadata adds metadata to the event.
func WithMetadata(metadata map[string]interface{}) EventOption {
	return func(e *event) {
		if e.metadata == nil {
			e.metadata = map[string]interface{}{}
		}

		for k, v := range metadata {
			e.metadata[k] = v
		}
	}
}

// NewEvent creates a new event, with options for correlation and metadata.
func NewEvent(eventType EventType, data EventData, options ...EventOption) Event {
	e := &event{
		id:        uuid.New(),
		eventType: eventType,
		data:      data,
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		option(e)
	}

	return e
}

// event is the internal representation of an event, created by NewEvent and
// by codecs when recreating events from payloads.
type event struct {
	id            uuid.UUID
	eventType     EventType
	data          EventData
	correlationID uuid.UUID
	publishedAt   time.Time
	metadata      map[string]interface{}
}

// ID implements the ID method of the Event interface.
func (e *event) ID() uuid.UUID {
	return e.id
}

// EventType implements the EventType method of the Event interface.
func (e *event) EventType() EventType {
	return e.eventType
}

// Data implements the Data method of the Event interface.
func (e *event) Data() EventData {
	return e.data
}

// CorrelationID implements the CorrelationID method of the Event interface.
func (e *event) CorrelationID() uuid.UUID {
	return e.correlationID
}

// PublishedAt implements the PublishedAt method of the Event interface.
func (e *event) PublishedAt() time.Time {
	return e.publishedAt
}

// SetPublishedAt implements the SetPublishedAt method of the
// PublishedAtSetter interface.
func (e *event) SetPublishedAt(t time.Time) bool {
	if !e.publishedAt.IsZero() {
		return false
	}

	e.publishedAt = t

	return true
}

// Metadata implements the Metadata method of the Event interface.
func (e *event) Metadata() map[string]interface{} {
	return e.metadata
}

// String implements the String method of the fmt.Stringer interface.
func (e *event) String() string {
	return fmt.Sprintf("%s(%s)", e.eventType, e.id)
}

var eventDataFactories = make(map[EventType]func() EventData)
var eventDataFactoriesMu sync.RWMutex

// RegisterEventData registers an event data factory for a type. The factory
// is used by codecs and transports to create concrete event data when
// recreating an event from its serialized form. Panics if the type is empty
// or already registered, both of which are programming errors that should be
// caught at startup.
func RegisterEventData(eventType EventType, factory func() EventData) {
	if eventType == EventType("") {
		panic("pulse: attempt to register empty event type")
	}

	eventDataFactoriesMu.Lock()
	defer eventDataFactoriesMu.Unlock()

	if _, ok := eventDataFactories[eventType]; ok {
		panic(fmt.Sprintf("pulse: registering duplicate types for %q", eventType))
	}

	eventDataFactories[eventType] = factory
}

// UnregisterEventData removes the registration of the event data factory for
// a type. This is mainly useful in maintenance and test situations where the
// event data type needs to be switched at runtime.
func UnregisterEventData(eventType EventType) {
	if eventType == EventType("") {
		panic("pulse: attempt to unregister empty event type")
	}

	eventDataFactoriesMu.Lock()
	defer eventDataFactoriesMu.Unlock()

	if _, ok := eventDataFactories[eventType]; !ok {
		panic(fmt.Sprintf("pulse: unregister of non-registered type %q", eventType))
	}

	delete(eventDataFactories, eventType)
}

// CreateEventData creates event data of a type using the factory registered
// with RegisterEventData. Returns ErrEventDataNotRegistered for unknown
// types, which is a configuration error and never retried.
func CreateEventData(eventType EventType) (EventData, error) {
	eventDataFactoriesMu.RLock()
	defer eventDataFactoriesMu.RUnlock()

	if factory, ok := eventDataFactories[eventType]; ok {
		return factory(), nil
	}

	return nil, ErrEventDataNotRegistered
}
