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

package tracing

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/dailydevops/pulse"
)

// NewEventHandlerMiddleware returns an event handler middleware that adds
// tracing spans.
func NewEventHandlerMiddleware() pulse.EventHandlerMiddleware {
	return pulse.EventHandlerMiddleware(func(h pulse.EventHandler) pulse.EventHandler {
		return &eventHandler{h}
	})
}

type eventHandler struct {
	pulse.EventHandler
}

// InnerHandler returns the wrapped handler.
func (h *eventHandler) InnerHandler() pulse.EventHandler {
	return h.EventHandler
}

// HandleEvent implements the HandleEvent method of the pulse.EventHandler
// interface.
func (h *eventHandler) HandleEvent(ctx context.Context, event pulse.Event) error {
	opName := fmt.Sprintf("%s.Event(%s)", h.HandlerType(), event.EventType())
	sp, ctx := opentracing.StartSpanFromContext(ctx, opName)

	err := h.EventHandler.HandleEvent(ctx, event)
	if err != nil {
		ext.LogError(sp, err)
	}

	sp.SetTag("pulse.event_type", event.EventType())
	sp.SetTag("pulse.event_id", event.ID())
	sp.SetTag("pulse.correlation_id", event.CorrelationID())

	sp.Finish()

	return err
}
