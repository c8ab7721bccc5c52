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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/dailydevops/pulse"
)

const (
	// DefaultBatchSize is the default number of messages claimed per cycle.
	DefaultBatchSize = 20
	// DefaultPollingInterval is the default delay between poll cycles.
	DefaultPollingInterval = 5 * time.Second
	// DefaultMaxRetryCount is the default number of failed attempts before a
	// message is dead-lettered.
	DefaultMaxRetryCount = 3
	// DefaultProcessingTimeout is the default per-message and per-batch
	// delivery budget. It also bounds how long a Processing message can sit
	// untouched before the stale sweep re-claims it.
	DefaultProcessingTimeout = 30 * time.Second
)

// Processor is the long-running poll loop draining the outbox: each cycle it
// checks transport health, claims a batch of messages and attempts delivery,
// advancing each message through the state machine. One poll cycle runs at a
// time per processor; coordination between processor instances happens
// entirely through the repository's atomic claims.
type Processor struct {
	repo               Repository
	transport          Transport
	batchSize          int
	pollingInterval    time.Duration
	maxRetryCount      int
	processingTimeout  time.Duration
	enableBatchSending bool
	clock              pulse.Clock
	logger             *zap.Logger
	boff               *backoff.Backoff
	errCh              chan error
	cctx               context.Context
	cancel             context.CancelFunc
	wg                 sync.WaitGroup
	cycleMu            sync.Mutex
}

// ProcessorOption is an option setter used to configure creation.
type ProcessorOption func(*Processor) error

// WithBatchSize sets the number of messages claimed per poll cycle.
func WithBatchSize(n int) ProcessorOption {
	return func(p *Processor) error {
		if n < 1 {
			return fmt.Errorf("invalid batch size: %d", n)
		}

		p.batchSize = n

		return nil
	}
}

// WithPollingInterval sets the delay between poll cycles.
func WithPollingInterval(d time.Duration) ProcessorOption {
	return func(p *Processor) error {
		if d <= 0 {
			return fmt.Errorf("invalid polling interval: %s", d)
		}

		p.pollingInterval = d

		return nil
	}
}

// WithMaxRetryCount sets the number of failed delivery attempts after which
// a message is dead-lettered instead of retried.
func WithMaxRetryCount(n int) ProcessorOption {
	return func(p *Processor) error {
		if n < 0 {
			return fmt.Errorf("invalid max retry count: %d", n)
		}

		p.maxRetryCount = n

		return nil
	}
}

// WithProcessingTimeout sets the per-message and per-batch delivery budget.
func WithProcessingTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) error {
		if d <= 0 {
			return fmt.Errorf("invalid processing timeout: %s", d)
		}

		p.processingTimeout = d

		return nil
	}
}

// WithBatchSending toggles atomic batch delivery for transports that support
// it. With batch sending off, messages are delivered individually.
func WithBatchSending(enabled bool) ProcessorOption {
	return func(p *Processor) error {
		p.enableBatchSending = enabled

		return nil
	}
}

// WithClock uses a clock other than the system clock, often a fixed clock in
// tests.
func WithClock(c pulse.Clock) ProcessorOption {
	return func(p *Processor) error {
		p.clock = c

		return nil
	}
}

// WithLogger uses a logger for cycle activity, defaulting to a nop logger.
func WithLogger(l *zap.Logger) ProcessorOption {
	return func(p *Processor) error {
		p.logger = l

		return nil
	}
}

// NewProcessor creates a Processor draining a repository through a transport.
func NewProcessor(repo Repository, transport Transport, options ...ProcessorOption) (*Processor, error) {
	if repo == nil {
		return nil, ErrMissingRepository
	}

	if transport == nil {
		return nil, ErrMissingTransport
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Processor{
		repo:              repo,
		transport:         transport,
		batchSize:         DefaultBatchSize,
		pollingInterval:   DefaultPollingInterval,
		maxRetryCount:     DefaultMaxRetryCount,
		processingTimeout: DefaultProcessingTimeout,
		clock:             pulse.SystemClock{},
		logger:            zap.NewNop(),
		errCh:             make(chan error, 100),
		cctx:              ctx,
		cancel:            cancel,
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		if err := option(p); err != nil {
			cancel()

			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	p.boff = &backoff.Backoff{
		Min:    p.pollingInterval,
		Max:    10 * p.pollingInterval,
		Factor: 2,
		Jitter: true,
	}

	return p, nil
}

// Start starts the poll loop until Close is called.
func (p *Processor) Start() {
	p.wg.Add(1)

	go p.run()
}

// Close stops the poll loop and waits for the current cycle to finish.
// In-flight state transitions already committed are not rolled back; a
// message left in Processing is recovered later by the stale sweep.
func (p *Processor) Close() error {
	p.cancel()
	p.wg.Wait()

	return nil
}

// Errors returns an error channel where repository and cycle errors are sent.
// Individual delivery failures are not errors; they are retry bookkeeping.
func (p *Processor) Errors() <-chan error {
	return p.errCh
}

func (p *Processor) run() {
	defer p.wg.Done()

	for {
		delay := p.pollingInterval

		if err := p.ProcessOnce(p.cctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}

			// Repository trouble: back off instead of hammering it.
			delay = p.boff.Duration()

			select {
			case p.errCh <- err:
			default:
				p.logger.Warn("missed error in outbox processing", zap.Error(err))
			}
		} else {
			p.boff.Reset()
		}

		select {
		case <-time.After(delay):
		case <-p.cctx.Done():
			return
		}
	}
}

// ProcessOnce runs a single poll cycle: health gate, claim, deliver, advance
// state. It returns an error only for repository-level failures; delivery
// failures of individual messages are absorbed into retry accounting.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	// An unhealthy transport skips the whole cycle; attempting partial work
	// would only burn retry budgets on a known-bad destination.
	if !Healthy(ctx, p.transport) {
		p.logger.Info("transport unhealthy, skipping cycle")

		return nil
	}

	msgs, err := p.claim(ctx)
	if err != nil {
		return err
	}

	if len(msgs) == 0 {
		return nil
	}

	if p.enableBatchSending {
		if bs, ok := p.transport.(BatchSender); ok {
			return p.processBatch(ctx, bs, msgs)
		}
	}

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}

		p.processMessage(ctx, msg)
	}

	return nil
}

// Claims pending messages first, tops the batch up with retry-eligible failed
// messages, and re-claims Processing messages stranded past the processing
// timeout.
func (p *Processor) claim(ctx context.Context) ([]*Message, error) {
	msgs, err := p.repo.ClaimPending(ctx, p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("could not claim pending messages: %w", err)
	}

	if remaining := p.batchSize - len(msgs); remaining > 0 {
		retries, err := p.repo.ClaimFailedForRetry(ctx, p.maxRetryCount, remaining)
		if err != nil {
			return nil, fmt.Errorf("could not claim failed messages: %w", err)
		}

		msgs = append(msgs, retries...)
	}

	if remaining := p.batchSize - len(msgs); remaining > 0 {
		stale, err := p.repo.ReclaimStale(ctx, p.clock.Now().Add(-p.processingTimeout), remaining)
		if err != nil {
			return nil, fmt.Errorf("could not reclaim stale messages: %w", err)
		}

		msgs = append(msgs, stale...)
	}

	return msgs, nil
}

// Delivers a whole batch atomically: all messages complete or all fail. There
// is deliberately no per-message fallback after a batch failure, so a
// systemic transport outage is not misread as a per-message problem.
func (p *Processor) processBatch(ctx context.Context, bs BatchSender, msgs []*Message) error {
	sendCtx, cancel := context.WithTimeout(ctx, p.processingTimeout)
	defer cancel()

	if sendErr := bs.SendBatch(sendCtx, msgs); sendErr != nil {
		p.logger.Warn("batch delivery failed",
			zap.Int("batch_size", len(msgs)),
			zap.Error(sendErr),
		)

		for _, msg := range msgs {
			if err := p.repo.MarkFailed(ctx, msg.ID, sendErr); err != nil {
				p.report(fmt.Errorf("could not mark message %s failed: %w", msg.ID, err))
			}
		}

		return nil
	}

	for _, msg := range msgs {
		if err := p.repo.MarkCompleted(ctx, msg.ID); err != nil {
			p.report(fmt.Errorf("could not mark message %s completed: %w", msg.ID, err))
		}
	}

	p.logger.Debug("batch delivered", zap.Int("batch_size", len(msgs)))

	return nil
}

// Delivers a single message within the processing timeout and advances its
// state. A message that has already spent its retry budget is dead-lettered
// instead of being marked failed again.
func (p *Processor) processMessage(ctx context.Context, msg *Message) {
	sendCtx, cancel := context.WithTimeout(ctx, p.processingTimeout)
	sendErr := p.transport.Send(sendCtx, msg)
	cancel()

	if sendErr == nil {
		if err := p.repo.MarkCompleted(ctx, msg.ID); err != nil {
			p.report(fmt.Errorf("could not mark message %s completed: %w", msg.ID, err))
		}

		return
	}

	if msg.RetryCount >= p.maxRetryCount {
		p.logger.Warn("message dead-lettered",
			zap.String("message_id", msg.ID.String()),
			zap.String("event_type", msg.EventType.String()),
			zap.Int("retry_count", msg.RetryCount),
			zap.Error(sendErr),
		)

		if err := p.repo.MarkDeadLetter(ctx, msg.ID, sendErr); err != nil {
			p.report(fmt.Errorf("could not mark message %s dead-lettered: %w", msg.ID, err))
		}

		return
	}

	p.logger.Debug("message delivery failed",
		zap.String("message_id", msg.ID.String()),
		zap.Int("retry_count", msg.RetryCount),
		zap.Error(sendErr),
	)

	if err := p.repo.MarkFailed(ctx, msg.ID, sendErr); err != nil {
		p.report(fmt.Errorf("could not mark message %s failed: %w", msg.ID, err))
	}
}

func (p *Processor) report(err error) {
	select {
	case p.errCh <- err:
	default:
		p.logger.Warn("missed error in outbox processing", zap.Error(err))
	}
}
