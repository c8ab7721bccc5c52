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

package local_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/codec/json"
	"github.com/dailydevops/pulse/eventbus"
	"github.com/dailydevops/pulse/mocks"
	"github.com/dailydevops/pulse/outbox"
	"github.com/dailydevops/pulse/outbox/memory"
	"github.com/dailydevops/pulse/transport/local"
	"github.com/dailydevops/pulse/uuid"
)

func TestNewTransport(t *testing.T) {
	if _, err := local.NewTransport(nil); !errors.Is(err, local.ErrMissingBus) {
		t.Error("there should be a missing bus error:", err)
	}

	bus := eventbus.NewBus()

	transport, err := local.NewTransport(bus)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if transport == nil {
		t.Fatal("there should be a transport")
	}
}

func TestTransportSend(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.NewBus()
	handler := mocks.NewEventHandler("handler")

	if err := bus.AddHandler(handler, mocks.EventType); err != nil {
		t.Fatal("there should be no error:", err)
	}

	transport, err := local.NewTransport(bus)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := transport.Send(ctx, nil); !errors.Is(err, outbox.ErrMissingMessage) {
		t.Error("there should be a missing message error:", err)
	}

	event := pulse.NewEvent(mocks.EventType, &mocks.EventData{Content: "event1"})

	payload, err := (&json.EventCodec{}).MarshalEvent(ctx, event)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	msg := &outbox.Message{
		ID:        uuid.New(),
		EventType: mocks.EventType,
		Payload:   payload,
	}

	if err := transport.Send(ctx, msg); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if !handler.Wait(time.Second) {
		t.Fatal("the handler should have received the event")
	}

	handler.RLock()
	defer handler.RUnlock()

	if len(handler.Events) != 1 {
		t.Fatal("the handler should have handled one event:", len(handler.Events))
	}

	data, ok := handler.Events[0].Data().(*mocks.EventData)
	if !ok || data.Content != "event1" {
		t.Error("the event data should be correct:", handler.Events[0].Data())
	}
}

func TestTransportSendTypeMismatch(t *testing.T) {
	ctx := context.Background()

	transport, err := local.NewTransport(eventbus.NewBus())
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	event := pulse.NewEvent(mocks.EventType, &mocks.EventData{Content: "event1"})

	payload, err := (&json.EventCodec{}).MarshalEvent(ctx, event)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	msg := &outbox.Message{
		ID:        uuid.New(),
		EventType: mocks.EventOtherType,
		Payload:   payload,
	}

	if err := transport.Send(ctx, msg); err == nil {
		t.Error("there should be an event type mismatch error")
	}
}

// Full loop: events stored by the publisher reach a bus handler through the
// processor.
func TestTransportEndToEnd(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepo()
	bus := eventbus.NewBus()
	handler := mocks.NewEventHandler("handler")

	if err := bus.AddHandler(handler, mocks.EventType); err != nil {
		t.Fatal("there should be no error:", err)
	}

	transport, err := local.NewTransport(bus)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	publisher, err := outbox.NewPublisher(repo, &json.EventCodec{})
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	processor, err := outbox.NewProcessor(repo, transport)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	event := pulse.NewEvent(mocks.EventType, &mocks.EventData{Content: "event1"})
	if err := publisher.Publish(ctx, event); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := processor.ProcessOnce(ctx); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if !handler.Wait(time.Second) {
		t.Fatal("the handler should have received the event")
	}

	handler.RLock()
	defer handler.RUnlock()

	if len(handler.Events) != 1 {
		t.Fatal("the handler should have handled one event:", len(handler.Events))
	}

	if handler.Events[0].ID() != event.ID() {
		t.Error("the event ID should survive the round trip:", handler.Events[0].ID())
	}
}
