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

package outbox

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

// Transport delivers a claimed message to its destination: an in-process
// event bus, a message broker, a webhook. Transports must be idempotent as
// redelivery is possible.
type Transport interface {
	// Send delivers a single message.
	Send(ctx context.Context, msg *Message) error
}

// BatchSender is implemented by transports that can deliver a batch of
// messages atomically: either every message is delivered or none is.
type BatchSender interface {
	// SendBatch delivers all messages in one atomic operation.
	SendBatch(ctx context.Context, msgs []*Message) error
}

// HealthChecker is implemented by transports that can report their health.
// The processor skips whole cycles while the transport is unhealthy.
type HealthChecker interface {
	// IsHealthy reports whether the transport can currently deliver.
	IsHealthy(ctx context.Context) bool
}

// SendAll sends messages one by one through a plain transport. It is the
// explicitly non-atomic batch fallback: a partial failure leaves the earlier
// messages delivered. All failures are collected into one aggregate error.
func SendAll(ctx context.Context, t Transport, msgs []*Message) error {
	var result *multierror.Error

	for _, msg := range msgs {
		if err := t.Send(ctx, msg); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// Healthy reports the transport health, defaulting to healthy for transports
// without a health check.
func Healthy(ctx context.Context, t Transport) bool {
	if hc, ok := t.(HealthChecker); ok {
		return hc.IsHealthy(ctx)
	}

	return true
}
