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

package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/uuid"
)

// Publisher is the transactional side of the outbox: instead of invoking
// handlers it serializes the event and stores it as a Pending message, to be
// delivered later by the Processor. Run the repository Add inside the same
// transaction as the business write to make "business fact + intent to
// publish" atomic.
//
// Publisher is a pulse.EventHandler, so it can be subscribed to an event bus
// like any other handler.
type Publisher struct {
	repo   Repository
	codec  pulse.EventCodec
	clock  pulse.Clock
	logger *zap.Logger
}

// PublisherOption is an option setter used to configure creation.
type PublisherOption func(*Publisher)

// WithPublisherClock uses a clock other than the system clock for creation
// timestamps.
func WithPublisherClock(c pulse.Clock) PublisherOption {
	return func(p *Publisher) {
		p.clock = c
	}
}

// WithPublisherLogger uses a logger for stored messages, defaulting to a nop
// logger.
func WithPublisherLogger(l *zap.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = l
	}
}

// NewPublisher creates a Publisher storing events through a repository,
// serialized with a codec.
func NewPublisher(repo Repository, codec pulse.EventCodec, options ...PublisherOption) (*Publisher, error) {
	if repo == nil {
		return nil, ErrMissingRepository
	}

	if codec == nil {
		return nil, ErrMissingCodec
	}

	p := &Publisher{
		repo:   repo,
		codec:  codec,
		clock:  pulse.SystemClock{},
		logger: zap.NewNop(),
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		option(p)
	}

	return p, nil
}

// HandlerType implements the HandlerType method of the pulse.EventHandler
// interface.
func (p *Publisher) HandlerType() pulse.EventHandlerType {
	return "outbox"
}

// HandleEvent implements the HandleEvent method of the pulse.EventHandler
// interface.
func (p *Publisher) HandleEvent(ctx context.Context, event pulse.Event) error {
	return p.Publish(ctx, event)
}

// Publish stores an event as a Pending outbox message. Once stored, delivery
// failures are invisible to the caller; they are observable only through the
// message status and error text.
func (p *Publisher) Publish(ctx context.Context, event pulse.Event) error {
	if event == nil {
		return pulse.ErrMissingEvent
	}

	b, err := p.codec.MarshalEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("could not marshal event: %w", err)
	}

	now := p.clock.Now()
	msg := &Message{
		ID:            uuid.New(),
		EventType:     event.EventType(),
		Payload:       b,
		CorrelationID: event.CorrelationID(),
		CreatedAt:     now,
		UpdatedAt:     now,
		Status:        StatusPending,
	}

	if err := p.repo.Add(ctx, msg); err != nil {
		return fmt.Errorf("could not store outbox message: %w", err)
	}

	p.logger.Debug("stored outbox message",
		zap.String("message_id", msg.ID.String()),
		zap.String("event_type", msg.EventType.String()),
	)

	return nil
}
