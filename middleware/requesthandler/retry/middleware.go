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

// Package retry provides a request handler middleware retrying failed
// requests with exponential backoff. It is meant for transient failures;
// handlers must be safe to run more than once.
package retry

import (
	"context"
	"time"

	"github.com/jpillora/backoff"

	"github.com/dailydevops/pulse"
)

const (
	// DefaultMaxAttempts is the default number of attempts per request.
	DefaultMaxAttempts = 3
	// DefaultMinBackoff is the default delay before the first retry.
	DefaultMinBackoff = 100 * time.Millisecond
	// DefaultMaxBackoff is the default upper bound on the retry delay.
	DefaultMaxBackoff = 5 * time.Second
)

type settings struct {
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
}

// Option is an option setter used to configure creation.
type Option func(*settings)

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff sets the delay bounds between attempts.
func WithBackoff(min, max time.Duration) Option {
	return func(s *settings) {
		if min > 0 {
			s.minBackoff = min
		}

		if max >= min {
			s.maxBackoff = max
		}
	}
}

// NewMiddleware returns a new retrying middleware.
func NewMiddleware(options ...Option) pulse.RequestHandlerMiddleware {
	s := &settings{
		maxAttempts: DefaultMaxAttempts,
		minBackoff:  DefaultMinBackoff,
		maxBackoff:  DefaultMaxBackoff,
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		option(s)
	}

	return pulse.RequestHandlerMiddleware(func(h pulse.RequestHandler) pulse.RequestHandler {
		return pulse.RequestHandlerFunc(func(ctx context.Context, req pulse.Request) (interface{}, error) {
			boff := &backoff.Backoff{
				Min:    s.minBackoff,
				Max:    s.maxBackoff,
				Factor: 2,
				Jitter: true,
			}

			var resp interface{}

			var err error

			for attempt := 0; attempt < s.maxAttempts; attempt++ {
				if attempt > 0 {
					select {
					case <-time.After(boff.Duration()):
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				}

				if resp, err = h.HandleRequest(ctx, req); err == nil {
					return resp, nil
				}
			}

			return resp, err
		})
	})
}
