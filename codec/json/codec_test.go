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
	"errors"
	"testing"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/codec"
)

func TestEventCodec(t *testing.T) {
	c := &EventCodec{}

	codec.EventCodecAcceptanceTest(t, c)
}

func TestEventCodecUnregisteredData(t *testing.T) {
	c := &EventCodec{}

	b := []byte(`{"event_type": "UnknownCodecEvent", "data": {"Content": "data"}}`)

	if _, err := c.UnmarshalEvent(context.Background(), b); !errors.Is(err, pulse.ErrEventDataNotRegistered) {
		t.Error("there should be an event data not registered error:", err)
	}
}
