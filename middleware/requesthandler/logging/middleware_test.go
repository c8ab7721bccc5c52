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

	inner := &mocks.RequestHandler{Resp: "ok"}
	h := pulse.UseRequestHandlerMiddleware(inner, NewMiddleware(logger))

	resp, err := h.HandleRequest(context.Background(), mocks.Command{Content: "cmd"})
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if resp != "ok" {
		t.Error("the response should be correct:", resp)
	}

	entries := logs.TakeAll()
	if len(entries) != 1 {
		t.Fatal("there should be one log entry:", len(entries))
	}

	if entries[0].Message != "request handled" {
		t.Error("the log message should be correct:", entries[0].Message)
	}

	fields := entries[0].ContextMap()
	if fields["request_type"] != mocks.CommandType.String() {
		t.Error("the request type field should be correct:", fields["request_type"])
	}
}

func TestMiddlewareError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	handlerErr := errors.New("handler error")
	inner := &mocks.RequestHandler{Err: handlerErr}
	h := pulse.UseRequestHandlerMiddleware(inner, NewMiddleware(logger))

	if _, err := h.HandleRequest(context.Background(), mocks.Command{}); !errors.Is(err, handlerErr) {
		t.Error("the handler error should be returned:", err)
	}

	entries := logs.TakeAll()
	if len(entries) != 1 {
		t.Fatal("there should be one log entry:", len(entries))
	}

	if entries[0].Message != "request failed" {
		t.Error("the log message should be correct:", entries[0].Message)
	}

	if entries[0].Level != zap.WarnLevel {
		t.Error("the log level should be warn:", entries[0].Level)
	}
}
