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

package logging

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/mocks"
)

func TestMiddleware(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	inner := mocks.NewEventHandler("inner")
	h := pulse.UseEventHandlerMiddleware(inner, NewMiddleware(logger))

	if h.HandlerType() != "inner" {
		t.Error("the handler type should be preserved:", h.HandlerType())
	}

	event := pulse.NewEvent(mocks.EventType, &mocks.EventData{Content: "event1"})
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Error("there should be no error:", err)
	}

	entries := logs.TakeAll()
	if len(entries) != 1 {
		t.Fatal("there should be one log entry:", len(entries))
	}

	if entries[0].Message != "event handled" {
		t.Error("the log message should be correct:", entries[0].Message)
	}

	fields := entries[0].ContextMap()
	if fields["event_type"] != mocks.EventType.String() {
		t.Error("the event type field should be correct:", fields["event_type"])
	}

	if fields["handler_type"] != "inner" {
		t.Error("the handler type field should be correct:", fields["handler_type"])
	}
}

func TestMiddlewareError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	handlerErr := errors.New("handler error")
	inner := mocks.NewEventHandler("inner")
	inner.Err = handlerErr

	h := pulse.UseEventHandlerMiddleware(inner, NewMiddleware(logger))

	event := pulse.NewEvent(mocks.EventType, &mocks.EventData{Content: "event1"})
	if err := h.HandleEvent(context.Background(), event); !errors.Is(err, handlerErr) {
		t.Error("the handler error should be returned:", err)
	}

	entries := logs.TakeAll()
	if len(entries) != 1 {
		t.Fatal("there should be one log entry:", len(entries))
	}

	if entries[0].Level != zap.WarnLevel {
		t.Error("the log level should be warn:", entries[0].Level)
	}
}
