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

package gcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"testing"

	"github.com/dailydevops/pulse/mocks"
	"github.com/dailydevops/pulse/outbox"
	"github.com/dailydevops/pulse/uuid"
)

func TestTransportIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	// Needs a Pub/Sub emulator.
	if os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
		os.Setenv("PUBSUB_EMULATOR_HOST", "localhost:8793")
	}

	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	if projectID == "" {
		projectID = "test-project"
	}

	// Get a random app ID.
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		t.Fatal(err)
	}

	appID := "app-" + hex.EncodeToString(b)

	t.Logf("using topic: %s_outbox", appID)

	transport, err := NewTransport(projectID, appID)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	defer transport.Close()

	ctx := context.Background()

	if !transport.IsHealthy(ctx) {
		t.Fatal("the transport should be healthy")
	}

	msg := &outbox.Message{
		ID:        uuid.New(),
		EventType: mocks.EventType,
		Payload:   []byte("payload"),
	}

	if err := transport.Send(ctx, msg); err != nil {
		t.Fatal("there should be no error:", err)
	}
}
