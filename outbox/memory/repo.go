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

// Package memory provides an in-memory outbox repository, mainly useful in
// tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/outbox"
	"github.com/dailydevops/pulse/uuid"
)

// Repo implements an outbox.Repository backed by a map. All claim operations
// run under one mutex, which makes them trivially atomic.
type Repo struct {
	db    map[uuid.UUID]*outbox.Message
	dbMu  sync.Mutex
	clock pulse.Clock
}

// Option is an option setter used to configure creation.
type Option func(*Repo)

// WithClock uses a clock other than the system clock for transition
// timestamps.
func WithClock(c pulse.Clock) Option {
	return func(r *Repo) {
		r.clock = c
	}
}

// NewRepo creates a Repo.
func NewRepo(options ...Option) *Repo {
	r := &Repo{
		db:    map[uuid.UUID]*outbox.Message{},
		clock: pulse.SystemClock{},
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		option(r)
	}

	return r
}

// Add implements the Add method of the outbox.Repository interface.
func (r *Repo) Add(ctx context.Context, msg *outbox.Message) error {
	if msg == nil {
		return outbox.ErrMissingMessage
	}

	r.dbMu.Lock()
	defer r.dbMu.Unlock()

	stored, err := copyMessage(msg)
	if err != nil {
		return err
	}

	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}

	now := r.clock.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}

	stored.Status = outbox.StatusPending
	r.db[stored.ID] = stored

	return nil
}

// ClaimPending implements the ClaimPending method of the outbox.Repository
// interface.
func (r *Repo) ClaimPending(ctx context.Context, batchSize int) ([]*outbox.Message, error) {
	r.dbMu.Lock()
	defer r.dbMu.Unlock()

	return r.claim(batchSize, func(m *outbox.Message) bool {
		return m.Status == outbox.StatusPending
	})
}

// ClaimFailedForRetry implements the ClaimFailedForRetry method of the
// outbox.Repository interface.
func (r *Repo) ClaimFailedForRetry(ctx context.Context, maxRetry, batchSize int) ([]*outbox.Message, error) {
	r.dbMu.Lock()
	defer r.dbMu.Unlock()

	return r.claim(batchSize, func(m *outbox.Message) bool {
		return m.Status == outbox.StatusFailed && m.RetryCount <= maxRetry
	})
}

// ReclaimStale implements the ReclaimStale method of the outbox.Repository
// interface.
func (r *Repo) ReclaimStale(ctx context.Context, olderThan time.Time, batchSize int) ([]*outbox.Message, error) {
	r.dbMu.Lock()
	defer r.dbMu.Unlock()

	return r.claim(batchSize, func(m *outbox.Message) bool {
		return m.Status == outbox.StatusProcessing && m.UpdatedAt.Before(olderThan)
	})
}

// Marks all matching messages as processing and returns copies, oldest
// first. Callers must hold the lock.
func (r *Repo) claim(batchSize int, eligible func(*outbox.Message) bool) ([]*outbox.Message, error) {
	candidates := []*outbox.Message{}

	for _, m := range r.db {
		if eligible(m) {
			candidates = append(candidates, m)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	if len(candidates) > batchSize {
		candidates = candidates[:batchSize]
	}

	now := r.clock.Now()
	claimed := make([]*outbox.Message, 0, len(candidates))

	for _, m := range candidates {
		m.Status = outbox.StatusProcessing
		m.UpdatedAt = now

		c, err := copyMessage(m)
		if err != nil {
			return nil, err
		}

		claimed = append(claimed, c)
	}

	return claimed, nil
}

// MarkCompleted implements the MarkCompleted method of the outbox.Repository
// interface.
func (r *Repo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	r.dbMu.Lock()
	defer r.dbMu.Unlock()

	m, ok := r.db[id]
	if !ok || m.Status != outbox.StatusProcessing {
		return outbox.ErrMessageNotFound
	}

	now := r.clock.Now()
	m.Status = outbox.StatusCompleted
	m.UpdatedAt = now
	m.ProcessedAt = &now

	return nil
}

// MarkFailed implements the MarkFailed method of the outbox.Repository
// interface.
func (r *Repo) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	r.dbMu.Lock()
	defer r.dbMu.Unlock()

	m, ok := r.db[id]
	if !ok || m.Status != outbox.StatusProcessing {
		return outbox.ErrMessageNotFound
	}

	m.Status = outbox.StatusFailed
	m.UpdatedAt = r.clock.Now()
	m.RetryCount++

	if cause != nil {
		m.LastError = cause.Error()
	}

	return nil
}

// MarkDeadLetter implements the MarkDeadLetter method of the
// outbox.Repository interface.
func (r *Repo) MarkDeadLetter(ctx context.Context, id uuid.UUID, cause error) error {
	r.dbMu.Lock()
	defer r.dbMu.Unlock()

	m, ok := r.db[id]
	if !ok || m.Status != outbox.StatusProcessing {
		return outbox.ErrMessageNotFound
	}

	m.Status = outbox.StatusDeadLetter
	m.UpdatedAt = r.clock.Now()

	if cause != nil {
		m.LastError = cause.Error()
	}

	return nil
}

// DeleteCompleted implements the DeleteCompleted method of the
// outbox.Repository interface.
func (r *Repo) DeleteCompleted(ctx context.Context, olderThan time.Time) (int64, error) {
	r.dbMu.Lock()
	defer r.dbMu.Unlock()

	var count int64

	for id, m := range r.db {
		if m.Status != outbox.StatusCompleted {
			continue
		}

		if m.ProcessedAt != nil && m.ProcessedAt.Before(olderThan) {
			delete(r.db, id)
			count++
		}
	}

	return count, nil
}

// All returns a copy of every stored message, useful for inspection in
// tests.
func (r *Repo) All() ([]*outbox.Message, error) {
	r.dbMu.Lock()
	defer r.dbMu.Unlock()

	msgs := make([]*outbox.Message, 0, len(r.db))

	for _, m := range r.db {
		c, err := copyMessage(m)
		if err != nil {
			return nil, err
		}

		msgs = append(msgs, c)
	}

	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})

	return msgs, nil
}

// copyMessage duplicates a message so callers can never mutate stored state.
func copyMessage(m *outbox.Message) (*outbox.Message, error) {
	var c outbox.Message
	if err := copier.CopyWithOption(&c, m, copier.Option{DeepCopy: true}); err != nil {
		return nil, err
	}

	return &c, nil
}
