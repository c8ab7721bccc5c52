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

package bson

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/uuid"
)

// EventCodec is a codec for marshaling and unmarshaling events
// to and from bytes in BSON format.
type EventCodec struct{}

// MarshalEvent marshals an event into bytes in BSON format.
func (c *EventCodec) MarshalEvent(ctx context.Context, event pulse.Event) ([]byte, error) {
	e := evt{
		ID:            event.ID().String(),
		EventType:     event.EventType(),
		CorrelationID: event.CorrelationID().String(),
		PublishedAt:   event.PublishedAt(),
		Metadata:      event.Metadata(),
	}

	// Marshal event data if there is any.
	if event.Data() != nil {
		raw, err := bson.Marshal(event.Data())
		if err != nil {
			return nil, fmt.Errorf("could not marshal event data: %w", err)
		}

		e.RawData = bson.Raw(raw)
	}

	b, err := bson.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("could not marshal event: %w", err)
	}

	return b, nil
}

// UnmarshalEvent unmarshals an event from bytes in BSON format.
func (c *EventCodec) UnmarshalEvent(ctx context.Context, b []byte) (pulse.Event, error) {
	// Decode the raw BSON event data.
	var e evt
	if err := bson.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("could not unmarshal event: %w", err)
	}

	// Create an event of the correct type and decode from raw BSON.
	if len(e.RawData) > 0 {
		var err error
		if e.data, err = pulse.CreateEventData(e.EventType); err != nil {
			return nil, fmt.Errorf("could not create event data: %w", err)
		}

		if err := bson.Unmarshal(e.RawData, e.data); err != nil {
			return nil, fmt.Errorf("could not unmarshal event data: %w", err)
		}

		e.RawData = nil
	}

	// Build the event.
	id, err := uuid.Parse(e.ID)
	if err != nil {
		id = uuid.Nil
	}

	correlationID, err := uuid.Parse(e.CorrelationID)
	if err != nil {
		correlationID = uuid.Nil
	}

	event := pulse.NewEvent(
		e.EventType,
		e.data,
		pulse.ForID(id),
		pulse.WithCorrelationID(correlationID),
		pulse.WithMetadata(e.Metadata),
	)

	if s, ok := event.(pulse.PublishedAtSetter); ok && !e.PublishedAt.IsZero() {
		s.SetPublishedAt(e.PublishedAt)
	}

	return event, nil
}

// evt is the internal event used on the wire only.
type evt struct {
	ID            string                 `bson:"_id"`
	EventType     pulse.EventType        `bson:"event_type"`
	RawData       bson.Raw               `bson:"data,omitempty"`
	data          pulse.EventData        `bson:"-"`
	CorrelationID string                 `bson:"correlation_id"`
	PublishedAt   time.Time              `bson:"published_at"`
	Metadata      map[string]interface{} `bson:"metadata"`
}
