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

// Package logging provides an event handler middleware logging every handled
// event with its outcome.
package logging

import (
	"context"

	"go.uber.org/zap"

	"github.com/dailydevops/pulse"
)

// NewMiddleware returns a new event logging middleware using the logger.
func NewMiddleware(logger *zap.Logger) pulse.EventHandlerMiddleware {
	return pulse.EventHandlerMiddleware(func(h pulse.EventHandler) pulse.EventHandler {
		return &eventHandler{h, logger}
	})
}

type eventHandler struct {
	pulse.EventHandler
	logger *zap.Logger
}

// InnerHandler returns the wrapped handler.
func (h *eventHandler) InnerHandler() pulse.EventHandler {
	return h.EventHandler
}

// HandleEvent implements the HandleEvent method of the pulse.EventHandler
// interface.
func (h *eventHandler) HandleEvent(ctx context.Context, event pulse.Event) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType().String()),
		zap.String("event_id", event.ID().String()),
		zap.String("handler_type", h.HandlerType().String()),
	}

	if err := h.EventHandler.HandleEvent(ctx, event); err != nil {
		h.logger.Warn("event handling failed", append(fields, zap.Error(err))...)

		return err
	}

	h.logger.Debug("event handled", fields...)

	return nil
}
