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

// Package kafka provides an outbox transport delivering messages to a Kafka
// topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dailydevops/pulse/outbox"
)

const (
	eventTypeHeader     = "event_type"
	correlationIDHeader = "correlation_id"
)

// Transport delivers outbox messages to a Kafka topic named after the app
// ID. Batches go out in a single write, which Kafka acknowledges as a unit.
type Transport struct {
	// TODO: Support multiple brokers.
	addr   string
	appID  string
	topic  string
	writer *kafka.Writer
}

var (
	_ outbox.Transport     = (*Transport)(nil)
	_ outbox.BatchSender   = (*Transport)(nil)
	_ outbox.HealthChecker = (*Transport)(nil)
)

// NewTransport creates a Transport, creating the topic if needed.
func NewTransport(addr, appID string) (*Transport, error) {
	topic := appID + "_outbox"
	t := &Transport{
		addr:  addr,
		appID: appID,
		topic: topic,
	}

	// Get or create the topic.
	client := &kafka.Client{
		Addr: kafka.TCP(addr),
	}

	var resp *kafka.CreateTopicsResponse

	var err error

	for i := 0; i < 10; i++ {
		resp, err = client.CreateTopics(context.Background(), &kafka.CreateTopicsRequest{
			Topics: []kafka.TopicConfig{{
				Topic:             topic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			}},
		})
		if errors.Is(err, kafka.BrokerNotAvailable) {
			time.Sleep(5 * time.Second)

			continue
		} else if err != nil {
			return nil, fmt.Errorf("error creating Kafka topic: %w", err)
		}

		break
	}

	if resp == nil {
		return nil, fmt.Errorf("could not get/create Kafka topic in time: %w", err)
	}

	if topicErr, ok := resp.Errors[topic]; ok && topicErr != nil {
		if !errors.Is(topicErr, kafka.TopicAlreadyExists) {
			return nil, fmt.Errorf("invalid Kafka topic: %w", topicErr)
		}
	}

	t.writer = &kafka.Writer{
		Addr:         kafka.TCP(addr),
		Topic:        topic,
		BatchSize:    1,                // Write every message without delay.
		RequiredAcks: kafka.RequireOne, // Stronger consistency.
	}

	return t, nil
}

// Send implements the Send method of the outbox.Transport interface.
func (t *Transport) Send(ctx context.Context, msg *outbox.Message) error {
	if msg == nil {
		return outbox.ErrMissingMessage
	}

	if err := t.writer.WriteMessages(ctx, toKafkaMessage(msg)); err != nil {
		return fmt.Errorf("could not publish message: %w", err)
	}

	return nil
}

// SendBatch implements the SendBatch method of the outbox.BatchSender
// interface.
func (t *Transport) SendBatch(ctx context.Context, msgs []*outbox.Message) error {
	kafkaMsgs := make([]kafka.Message, 0, len(msgs))

	for _, msg := range msgs {
		if msg == nil {
			return outbox.ErrMissingMessage
		}

		kafkaMsgs = append(kafkaMsgs, toKafkaMessage(msg))
	}

	if err := t.writer.WriteMessages(ctx, kafkaMsgs...); err != nil {
		return fmt.Errorf("could not publish batch: %w", err)
	}

	return nil
}

// IsHealthy implements the IsHealthy method of the outbox.HealthChecker
// interface by dialing the broker.
func (t *Transport) IsHealthy(ctx context.Context) bool {
	conn, err := kafka.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return false
	}

	conn.Close()

	return true
}

// Close closes the underlying writer.
func (t *Transport) Close() error {
	return t.writer.Close()
}

func toKafkaMessage(msg *outbox.Message) kafka.Message {
	return kafka.Message{
		Key:   []byte(msg.ID.String()),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{
				Key:   eventTypeHeader,
				Value: []byte(msg.EventType.String()),
			},
			{
				Key:   correlationIDHeader,
				Value: []byte(msg.CorrelationID.String()),
			},
		},
	}
}
