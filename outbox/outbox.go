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

// Package outbox implements reliable at-least-once delivery of events: a
// publisher persists events as pending messages, co-located with the business
// write that produced them, and a background processor claims and delivers
// them through a transport, with retry accounting and dead-lettering.
//
// Delivery is at-least-once, never exactly-once: a process restart can
// redeliver a message that was in flight, so handlers and transports must be
// idempotent.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/uuid"
)

var (
	// ErrMissingMessage is when an operation is attempted with a nil message.
	ErrMissingMessage = errors.New("missing message")
	// ErrMessageNotFound is when no message in the expected state exists for
	// an ID.
	ErrMessageNotFound = errors.New("message not found")
	// ErrMissingRepository is when a component is created without a
	// repository.
	ErrMissingRepository = errors.New("missing repository")
	// ErrMissingTransport is when a processor is created without a transport.
	ErrMissingTransport = errors.New("missing transport")
	// ErrMissingCodec is when a publisher is created without a codec.
	ErrMissingCodec = errors.New("missing codec")
)

// Status is the lifecycle state of an outbox message.
type Status int

const (
	// StatusPending is the initial state of a stored message, awaiting its
	// first delivery attempt.
	StatusPending Status = iota
	// StatusProcessing is a message claimed by a processor. The claim is
	// exclusive across concurrent processor instances.
	StatusProcessing
	// StatusCompleted is a delivered message. Terminal.
	StatusCompleted
	// StatusFailed is a message whose delivery attempt failed and that still
	// has retry budget.
	StatusFailed
	// StatusDeadLetter is a message that exhausted its retry budget.
	// Terminal.
	StatusDeadLetter
)

// String implements the String method of the fmt.Stringer interface.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusDeadLetter:
		return "dead_letter"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether the status is terminal. Terminal messages are
// owned by retention cleanup, never by the processor.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDeadLetter
}

// CanTransitionTo reports whether the state machine allows moving from s to
// next:
//
//	Pending    -> Processing                 (claim)
//	Processing -> Completed                  (delivered)
//	Processing -> Failed                     (delivery failed, budget left)
//	Processing -> DeadLetter                 (delivery failed, budget spent)
//	Failed     -> Processing                 (re-claim for retry)
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed || next == StatusDeadLetter
	case StatusFailed:
		return next == StatusProcessing
	default:
		return false
	}
}

// Message is the unit of durable at-least-once delivery. It is created by the
// publishing transaction and owned by the outbox until it reaches a terminal
// state.
type Message struct {
	// ID is the unique identifier of the message.
	ID uuid.UUID
	// EventType is the tag used to locate a deserializer for the payload.
	EventType pulse.EventType
	// Payload is the serialized event.
	Payload []byte
	// CorrelationID is the optional correlation ID of the event.
	CorrelationID uuid.UUID
	// CreatedAt is the time the message was stored.
	CreatedAt time.Time
	// UpdatedAt is the time of the last state transition.
	UpdatedAt time.Time
	// ProcessedAt is the time the message completed, if it has.
	ProcessedAt *time.Time
	// RetryCount is the number of failed delivery attempts so far.
	RetryCount int
	// LastError is the text of the most recent delivery error.
	LastError string
	// Status is the lifecycle state of the message.
	Status Status
}

// Repository is the durable store of outbox messages. Implementations must
// make every claim operation atomic with its read (a read-and-mark, not a
// read-then-write), as the claim is the only mutual exclusion between
// concurrent processor instances.
type Repository interface {
	// Add inserts a new message in the Pending state. It should participate
	// in the same transaction as the business write that produced the event.
	Add(ctx context.Context, msg *Message) error

	// ClaimPending atomically selects up to batchSize oldest Pending
	// messages, transitions them to Processing and returns the claimed set.
	// No message is ever returned by two concurrent claims.
	ClaimPending(ctx context.Context, batchSize int) ([]*Message, error)

	// MarkCompleted transitions a Processing message to Completed and stamps
	// its processed time.
	MarkCompleted(ctx context.Context, id uuid.UUID) error

	// MarkFailed transitions a Processing message to Failed, increments its
	// retry count and records the error text.
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error

	// MarkDeadLetter transitions a Processing message to DeadLetter and
	// records the error text. Used when the retry budget is exhausted.
	MarkDeadLetter(ctx context.Context, id uuid.UUID, cause error) error

	// ClaimFailedForRetry atomically re-claims up to batchSize Failed
	// messages that still have retry budget (retry count not past maxRetry)
	// into Processing.
	ClaimFailedForRetry(ctx context.Context, maxRetry, batchSize int) ([]*Message, error)

	// ReclaimStale atomically re-claims up to batchSize Processing messages
	// untouched since olderThan, recovering messages stranded by a processor
	// that stopped mid-flight.
	ReclaimStale(ctx context.Context, olderThan time.Time, batchSize int) ([]*Message, error)

	// DeleteCompleted purges Completed messages processed before olderThan
	// and returns the number removed. Retention is an explicit maintenance
	// operation, never automatic.
	DeleteCompleted(ctx context.Context, olderThan time.Time) (int64, error)
}
