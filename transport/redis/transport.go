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

// Package redis provides an outbox transport delivering messages to a Redis
// stream. Batches are appended through a transactional pipeline, so a batch
// is visible to readers either whole or not at all.
package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/dailydevops/pulse/outbox"
)

const (
	eventTypeKey     = "event_type"
	correlationIDKey = "correlation_id"
	dataKey          = "data"
)

// Transport delivers outbox messages to a Redis stream named after the app
// ID.
type Transport struct {
	appID      string
	streamName string
	client     *redis.Client
	clientOpts *redis.Options
}

var (
	_ outbox.Transport     = (*Transport)(nil)
	_ outbox.BatchSender   = (*Transport)(nil)
	_ outbox.HealthChecker = (*Transport)(nil)
)

// Option is an option setter used to configure creation.
type Option func(*Transport) error

// WithRedisOptions uses the Redis options for the underlying client, instead
// of the defaults.
func WithRedisOptions(opts *redis.Options) Option {
	return func(t *Transport) error {
		t.clientOpts = opts

		return nil
	}
}

// NewTransport creates a Transport publishing to a Redis server.
func NewTransport(addr, appID string, options ...Option) (*Transport, error) {
	t := &Transport{
		appID:      appID,
		streamName: appID + "_outbox",
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		if err := option(t); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	// Default client options.
	if t.clientOpts == nil {
		t.clientOpts = &redis.Options{
			Addr: addr,
		}
	}

	// Create client and check connection.
	t.client = redis.NewClient(t.clientOpts)
	if res, err := t.client.Ping(context.Background()).Result(); err != nil || res != "PONG" {
		return nil, fmt.Errorf("could not check Redis server: %w", err)
	}

	return t, nil
}

// Send implements the Send method of the outbox.Transport interface.
func (t *Transport) Send(ctx context.Context, msg *outbox.Message) error {
	if msg == nil {
		return outbox.ErrMissingMessage
	}

	if _, err := t.client.XAdd(ctx, xAddArgs(t.streamName, msg)).Result(); err != nil {
		return fmt.Errorf("could not publish message: %w", err)
	}

	return nil
}

// SendBatch implements the SendBatch method of the outbox.BatchSender
// interface using a transactional pipeline.
func (t *Transport) SendBatch(ctx context.Context, msgs []*outbox.Message) error {
	pipe := t.client.TxPipeline()

	for _, msg := range msgs {
		if msg == nil {
			return outbox.ErrMissingMessage
		}

		pipe.XAdd(ctx, xAddArgs(t.streamName, msg))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("could not publish batch: %w", err)
	}

	return nil
}

// IsHealthy implements the IsHealthy method of the outbox.HealthChecker
// interface.
func (t *Transport) IsHealthy(ctx context.Context) bool {
	return t.client.Ping(ctx).Err() == nil
}

// Close closes the underlying client.
func (t *Transport) Close() error {
	return t.client.Close()
}

func xAddArgs(stream string, msg *outbox.Message) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			eventTypeKey:     msg.EventType.String(),
			correlationIDKey: msg.CorrelationID.String(),
			dataKey:          msg.Payload,
		},
	}
}
