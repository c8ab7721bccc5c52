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

package json

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/uuid"
)

// EventCodec is a codec for marshaling and unmarshaling events
// to and from bytes in JSON format.
type EventCodec struct{}

// MarshalEvent marshals an event into bytes in JSON format.
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
		var err error
		if e.RawData, err = json.Marshal(event.Data()); err != nil {
			return nil, fmt.Errorf("could not marshal event data: %w", err)
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("could not marshal event: %w", err)
	}

	return b, nil
}

// UnmarshalEvent unmarshals an event from bytes in JSON format.
func (c *EventCodec) UnmarshalEvent(ctx context.Context, b []byte) (pulse.Event, error) {
	// Decode the raw JSON event data.
	var e evt
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("could not unmarshal event: %w", err)
	}

	// Create an event of the correct type and decode from raw JSON.
	if len(e.RawData) > 0 {
		var err error
		if e.data, err = pulse.CreateEventData(e.EventType); err != nil {
			return nil, fmt.Errorf("could not create event data: %w", err)
		}

		if err := json.Unmarshal(e.RawData, e.data); err != nil {
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
	ID            string                 `json:"id"`
	EventType     pulse.EventType        `json:"event_type"`
	RawData       json.RawMessage        `json:"data,omitempty"`
	data          pulse.EventData        `json:"-"`
	CorrelationID string                 `json:"correlation_id"`
	PublishedAt   time.Time              `json:"published_at"`
	Metadata      map[string]interface{} `json:"metadata"`
}
