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

// Package gcp provides an outbox transport delivering messages to a GCP
// Cloud Pub/Sub topic. Pub/Sub has no atomic multi-publish, so this
// transport deliberately offers no batch sending.
package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/dailydevops/pulse/outbox"
)

const (
	eventTypeAttribute     = "event_type"
	correlationIDAttribute = "correlation_id"
)

// Transport delivers outbox messages to a Pub/Sub topic named after the app
// ID.
type Transport struct {
	appID  string
	client *pubsub.Client
	topic  *pubsub.Topic
}

var (
	_ outbox.Transport     = (*Transport)(nil)
	_ outbox.HealthChecker = (*Transport)(nil)
)

// NewTransport creates a Transport, creating the topic if needed.
func NewTransport(projectID, appID string) (*Transport, error) {
	ctx := context.Background()

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("could not create Pub/Sub client: %w", err)
	}

	// Get or create the topic.
	name := appID + "_outbox"
	topic := client.Topic(name)

	if ok, err := topic.Exists(ctx); err != nil {
		return nil, fmt.Errorf("could not check Pub/Sub topic: %w", err)
	} else if !ok {
		if topic, err = client.CreateTopic(ctx, name); err != nil {
			return nil, fmt.Errorf("could not create Pub/Sub topic: %w", err)
		}
	}

	return &Transport{
		appID:  appID,
		client: client,
		topic:  topic,
	}, nil
}

// Send implements the Send method of the outbox.Transport interface.
func (t *Transport) Send(ctx context.Context, msg *outbox.Message) error {
	if msg == nil {
		return outbox.ErrMissingMessage
	}

	res := t.topic.Publish(ctx, &pubsub.Message{
		Data: msg.Payload,
		Attributes: map[string]string{
			eventTypeAttribute:     msg.EventType.String(),
			correlationIDAttribute: msg.CorrelationID.String(),
		},
	})

	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("could not publish message: %w", err)
	}

	return nil
}

// IsHealthy implements the IsHealthy method of the outbox.HealthChecker
// interface.
func (t *Transport) IsHealthy(ctx context.Context) bool {
	ok, err := t.topic.Exists(ctx)

	return err == nil && ok
}

// Close stops the topic's publish goroutines and closes the client.
func (t *Transport) Close() error {
	t.topic.Stop()

	return t.client.Close()
}
