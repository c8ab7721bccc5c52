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
	"testing"
	"time"

	"github.com/dailydevops/pulse/uuid"
)

func TestNewEvent(t *testing.T) {
	data := &struct{ Content string }{"data"}
	event := NewEvent("TestEvent", data)

	if event.EventType() != EventType("TestEvent") {
		t.Error("the event type should be correct:", event.EventType())
	}

	if event.Data() != data {
		t.Error("the data should be correct:", event.Data())
	}

	if event.ID() == uuid.Nil {
		t.Error("there should be an event ID")
	}

	if event.CorrelationID() != uuid.Nil {
		t.Error("the correlation ID should be empty:", event.CorrelationID())
	}

	if !event.PublishedAt().IsZero() {
		t.Error("the published time should not be set:", event.PublishedAt())
	}

	id := uuid.New()
	correlationID := uuid.New()
	event = NewEvent("TestEvent", nil,
		ForID(id),
		WithCorrelationID(correlationID),
		WithMetadata(map[string]interface{}{"meta": "data"}),
		WithMetadata(map[string]interface{}{"num": 42}),
	)

	if event.ID() != id {
		t.Error("the ID should be correct:", event.ID())
	}

	if event.CorrelationID() != correlationID {
		t.Error("the correlation ID should be correct:", event.CorrelationID())
	}

	if len(event.Metadata()) != 2 {
		t.Error("the metadata should be merged:", event.Metadata())
	}
}

func TestEventSetPublishedAt(t *testing.T) {
	event := NewEvent("TestEvent", nil)

	setter, ok := event.(PublishedAtSetter)
	if !ok {
		t.Fatal("the event should support publication stamping")
	}

	first := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)
	if !setter.SetPublishedAt(first) {
		t.Error("the first stamp should succeed")
	}

	// A second stamp is ignored.
	if setter.SetPublishedAt(first.Add(time.Hour)) {
		t.Error("the second stamp should be rejected")
	}

	if !event.PublishedAt().Equal(first) {
		t.Error("the published time should be the first stamp:", event.PublishedAt())
	}
}

func TestCreateEventData(t *testing.T) {
	type testEventData struct{ Content string }

	eventType := EventType("TestCreateEventData")

	if _, err := CreateEventData(eventType); !errors.Is(err, ErrEventDataNotRegistered) {
		t.Error("the error should be correct:", err)
	}

	RegisterEventData(eventType, func() EventData { return &testEventData{} })
	defer UnregisterEventData(eventType)

	data, err := CreateEventData(eventType)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if _, ok := data.(*testEventData); !ok {
		t.Error("the data should be of the registered type")
	}
}

func TestRegisterEventDataEmptyType(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("there should be a panic")
		}
	}()

	RegisterEventData("", func() EventData { return nil })
}

func TestRegisterEventDataTwice(t *testing.T) {
	eventType := EventType("TestRegisterEventDataTwice")

	RegisterEventData(eventType, func() EventData { return nil })
	defer UnregisterEventData(eventType)

	defer func() {
		if recover() == nil {
			t.Error("there should be a panic")
		}
	}()

	RegisterEventData(eventType, func() EventData { return nil })
}
