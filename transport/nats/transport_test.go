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

package nats

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"testing"
	"time"

	natsio "github.com/nats-io/nats.go"

	"github.com/dailydevops/pulse/mocks"
	"github.com/dailydevops/pulse/outbox"
	"github.com/dailydevops/pulse/uuid"
)

func TestTransportIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	// Connect to localhost if not running inside docker
	addr := os.Getenv("NATS_ADDR")
	if addr == "" {
		addr = "localhost:4222"
	}

	url := "nats://" + addr

	// Get a random app ID.
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		t.Fatal(err)
	}

	appID := "app-" + hex.EncodeToString(b)
	subject := appID + "_outbox"

	t.Logf("using subject: %s", subject)

	transport, err := NewTransport(url, appID)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	defer transport.Close()

	ctx := context.Background()

	if !transport.IsHealthy(ctx) {
		t.Fatal("the transport should be healthy")
	}

	// Subscribe before sending to observe the delivery.
	conn, err := natsio.Connect(url)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	defer conn.Close()

	recv := make(chan *natsio.Msg, 1)

	sub, err := conn.Subscribe(subject, func(msg *natsio.Msg) {
		recv <- msg
	})
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	defer sub.Unsubscribe()

	msg := &outbox.Message{
		ID:        uuid.New(),
		EventType: mocks.EventType,
		Payload:   []byte("payload"),
	}

	if err := transport.Send(ctx, msg); err != nil {
		t.Fatal("there should be no error:", err)
	}

	select {
	case m := <-recv:
		if string(m.Data) != "payload" {
			t.Error("the payload should be correct:", string(m.Data))
		}

		if m.Header.Get("event_type") != mocks.EventType.String() {
			t.Error("the event type header should be correct:", m.Header.Get("event_type"))
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("did not receive message on %s in time", subject)
	}
}
