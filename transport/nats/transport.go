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

// Package nats provides an outbox transport delivering messages to a NATS
// subject.
package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/dailydevops/pulse/outbox"
)

const (
	eventTypeHeader     = "event_type"
	correlationIDHeader = "correlation_id"
)

// Transport delivers outbox messages to a NATS subject named after the app
// ID. Every send is flushed, so an acked send has left the client.
type Transport struct {
	appID    string
	subject  string
	conn     *nats.Conn
	connOpts []nats.Option
}

var (
	_ outbox.Transport     = (*Transport)(nil)
	_ outbox.HealthChecker = (*Transport)(nil)
)

// Option is an option setter used to configure creation.
type Option func(*Transport) error

// WithNATSOptions adds the NATS options to the underlying client.
func WithNATSOptions(opts ...nats.Option) Option {
	return func(t *Transport) error {
		t.connOpts = opts

		return nil
	}
}

// NewTransport creates a Transport publishing to a NATS server.
func NewTransport(url, appID string, options ...Option) (*Transport, error) {
	t := &Transport{
		appID:   appID,
		subject: appID + "_outbox",
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		if err := option(t); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	var err error

	t.conn, err = nats.Connect(url, t.connOpts...)
	if err != nil {
		return nil, fmt.Errorf("could not connect to NATS: %w", err)
	}

	return t, nil
}

// Send implements the Send method of the outbox.Transport interface.
func (t *Transport) Send(ctx context.Context, msg *outbox.Message) error {
	if msg == nil {
		return outbox.ErrMissingMessage
	}

	m := &nats.Msg{
		Subject: t.subject,
		Data:    msg.Payload,
		Header: nats.Header{
			eventTypeHeader:     []string{msg.EventType.String()},
			correlationIDHeader: []string{msg.CorrelationID.String()},
		},
	}

	if err := t.conn.PublishMsg(m); err != nil {
		return fmt.Errorf("could not publish message: %w", err)
	}

	if err := t.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("could not flush message: %w", err)
	}

	return nil
}

// IsHealthy implements the IsHealthy method of the outbox.HealthChecker
// interface.
func (t *Transport) IsHealthy(ctx context.Context) bool {
	return t.conn.Status() == nats.CONNECTED
}

// Close closes the underlying connection.
func (t *Transport) Close() error {
	t.conn.Close()

	return nil
}
