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

// Package local provides a transport delivering outbox messages to an
// in-process event bus. It closes the loop for single-process deployments:
// events stored by the outbox publisher re-enter the bus once their
// transaction has committed.
package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/codec/json"
	"github.com/dailydevops/pulse/outbox"
)

// ErrMissingBus is when a transport is created without an event bus.
var ErrMissingBus = errors.New("missing event bus")

// EventPublisher is the in-process destination of delivered messages,
// implemented by eventbus.Bus.
type EventPublisher interface {
	Publish(ctx context.Context, event pulse.Event) error
}

// Transport delivers outbox messages by decoding the stored payload and
// publishing the event in process.
type Transport struct {
	bus   EventPublisher
	codec pulse.EventCodec
}

var _ outbox.Transport = (*Transport)(nil)

// Option is an option setter used to configure creation.
type Option func(*Transport)

// WithCodec uses the specified codec for decoding stored events, defaulting
// to JSON.
func WithCodec(codec pulse.EventCodec) Option {
	return func(t *Transport) {
		t.codec = codec
	}
}

// NewTransport creates a Transport publishing to an in-process event bus.
func NewTransport(bus EventPublisher, options ...Option) (*Transport, error) {
	if bus == nil {
		return nil, ErrMissingBus
	}

	t := &Transport{
		bus:   bus,
		codec: &json.EventCodec{},
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		option(t)
	}

	return t, nil
}

// Send implements the Send method of the outbox.Transport interface.
func (t *Transport) Send(ctx context.Context, msg *outbox.Message) error {
	if msg == nil {
		return outbox.ErrMissingMessage
	}

	event, err := t.codec.UnmarshalEvent(ctx, msg.Payload)
	if err != nil {
		return fmt.Errorf("could not unmarshal event: %w", err)
	}

	// The envelope type is authoritative; a mismatch with the message tag
	// means the stored payload is corrupt or was written with another codec.
	if event.EventType() != msg.EventType {
		return fmt.Errorf("event type mismatch: %s != %s", event.EventType(), msg.EventType)
	}

	if err := t.bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("could not publish event: %w", err)
	}

	return nil
}
