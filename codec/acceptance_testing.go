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

package codec

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/kr/pretty"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/uuid"
)

func init() {
	pulse.RegisterEventData(EventType, func() pulse.EventData { return &EventData{} })
}

// EventType is the type for Event.
const EventType pulse.EventType = "CodecEvent"

// EventCodecAcceptanceTest is the acceptance test that all implementations of
// EventCodec should pass. It should manually be called from a test case in
// each implementation:
//
//	func TestEventCodec(t *testing.T) {
//	    c := &EventCodec{}
//	    codec.EventCodecAcceptanceTest(t, c)
//	}
func EventCodecAcceptanceTest(t *testing.T, c pulse.EventCodec) {
	ctx := context.Background()
	id := uuid.MustParse("10a7ec0f-7f2b-46f5-bca1-877b6e33c9fd")
	correlationID := uuid.MustParse("b67c84b5-c46e-4f19-a5dd-b98a71bc2ddb")
	// Millisecond precision so codecs with coarser time encodings round-trip
	// without loss.
	publishedAt := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)
	eventData := EventData{
		Bool:   true,
		String: "string",
		Number: 42.0,
		Slice:  []string{"a", "b"},
		Map:    map[string]interface{}{"key": "value"}, // NOTE: Just one key to avoid compare issues.
		Time:   publishedAt,
		Struct: Nested{
			Bool:   true,
			String: "string",
			Number: 42.0,
		},
	}
	event := pulse.NewEvent(EventType, &eventData,
		pulse.ForID(id),
		pulse.WithCorrelationID(correlationID),
		pulse.WithMetadata(map[string]interface{}{"str": "meta"}), // NOTE: Just one key to avoid compare issues.
	)

	if s, ok := event.(pulse.PublishedAtSetter); ok {
		s.SetPublishedAt(publishedAt)
	}

	b, err := c.MarshalEvent(ctx, event)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	decoded, err := c.UnmarshalEvent(ctx, b)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if decoded.ID() != event.ID() {
		t.Error("the decoded ID should be correct:", decoded.ID())
	}

	if decoded.EventType() != event.EventType() {
		t.Error("the decoded event type should be correct:", decoded.EventType())
	}

	if decoded.CorrelationID() != event.CorrelationID() {
		t.Error("the decoded correlation ID should be correct:", decoded.CorrelationID())
	}

	if !decoded.PublishedAt().Equal(publishedAt) {
		t.Error("the decoded published time should be correct:", decoded.PublishedAt())
	}

	if !reflect.DeepEqual(decoded.Metadata(), event.Metadata()) {
		t.Error("the decoded metadata should be correct:", pretty.Sprint(decoded.Metadata()))
	}

	decodedData, ok := decoded.Data().(*EventData)
	if !ok {
		t.Fatal("the decoded data should be of the correct type:", decoded.Data())
	}

	// Times are compared by instant; DeepEqual is too strict about their
	// internal representation after a round trip.
	if !decodedData.Time.Equal(eventData.Time) {
		t.Error("the decoded data time should be correct:", decodedData.Time)
	}

	got, want := *decodedData, eventData
	got.Time, want.Time = time.Time{}, time.Time{}

	if !reflect.DeepEqual(got, want) {
		t.Error("the decoded data should be correct:", pretty.Diff(want, got))
	}
}

// EventData is a mocked event data, useful in testing.
type EventData struct {
	Bool   bool
	String string
	Number float64
	Slice  []string
	Map    map[string]interface{}
	Time   time.Time
	Struct Nested
}

// Nested is nested event data.
type Nested struct {
	Bool   bool
	String string
	Number float64
}
