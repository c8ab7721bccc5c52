// Copyright (c) 2022 - The Pulse authors.
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
	"fmt"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"

	"github.com/dailydevops/pulse"
)

// Cleaner is the retention maintenance job: on a cron schedule it purges
// Completed messages older than the retention period. Cleanup is its own
// explicit job so that delivery and retention can be operated independently.
type Cleaner struct {
	repo      Repository
	schedule  *cronexpr.Expression
	retention time.Duration
	clock     pulse.Clock
	logger    *zap.Logger
	cctx      context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// CleanerOption is an option setter used to configure creation.
type CleanerOption func(*Cleaner)

// WithCleanerClock uses a clock other than the system clock for the
// retention cutoff.
func WithCleanerClock(c pulse.Clock) CleanerOption {
	return func(cl *Cleaner) {
		cl.clock = c
	}
}

// WithCleanerLogger uses a logger for cleanup runs, defaulting to a nop
// logger.
func WithCleanerLogger(l *zap.Logger) CleanerOption {
	return func(cl *Cleaner) {
		cl.logger = l
	}
}

// NewCleaner creates a Cleaner purging completed messages older than
// retention on a cron schedule, e.g. "0 3 * * *" for a daily run at 03:00.
func NewCleaner(repo Repository, schedule string, retention time.Duration, options ...CleanerOption) (*Cleaner, error) {
	if repo == nil {
		return nil, ErrMissingRepository
	}

	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("could not parse schedule: %w", err)
	}

	if retention <= 0 {
		return nil, fmt.Errorf("invalid retention: %s", retention)
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Cleaner{
		repo:      repo,
		schedule:  expr,
		retention: retention,
		clock:     pulse.SystemClock{},
		logger:    zap.NewNop(),
		cctx:      ctx,
		cancel:    cancel,
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		option(c)
	}

	return c, nil
}

// Start starts the schedule loop until Close is called.
func (c *Cleaner) Start() {
	c.wg.Add(1)

	go c.run()
}

// Close stops the schedule loop and waits for a running cleanup to finish.
func (c *Cleaner) Close() error {
	c.cancel()
	c.wg.Wait()

	return nil
}

func (c *Cleaner) run() {
	defer c.wg.Done()

	for {
		next := c.schedule.Next(time.Now())
		if next.IsZero() {
			c.logger.Warn("schedule has no next run, stopping cleaner")

			return
		}

		select {
		case <-time.After(time.Until(next)):
		case <-c.cctx.Done():
			return
		}

		if err := c.RunOnce(c.cctx); err != nil {
			c.logger.Warn("cleanup failed", zap.Error(err))
		}
	}
}

// RunOnce purges completed messages older than the retention period.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	cutoff := c.clock.Now().Add(-c.retention)

	count, err := c.repo.DeleteCompleted(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("could not delete completed messages: %w", err)
	}

	c.logger.Info("purged completed outbox messages",
		zap.Int64("count", count),
		zap.Time("cutoff", cutoff),
	)

	return nil
}
