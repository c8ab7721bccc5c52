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

// Package strategy provides the dispatch strategies an event bus can use:
// concurrent (the default), sequential, priority ordered and concurrency
// bounded. All strategies attempt every handler and aggregate the failures;
// none of them stops on the first error.
package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/dailydevops/pulse"
)

// Concurrent is the default dispatch strategy, running all handlers
// concurrently with no ordering guarantee. Handlers must not assume they
// observe each other's side effects in any particular order.
type Concurrent struct{}

// NewConcurrent creates a Concurrent strategy.
func NewConcurrent() *Concurrent {
	return &Concurrent{}
}

// Dispatch implements the Dispatch method of the pulse.DispatchStrategy
// interface. It returns only after every handler has finished.
func (s *Concurrent) Dispatch(ctx context.Context, event pulse.Event, handlers []pulse.EventHandler, invoke pulse.EventInvoker) error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)

	for _, h := range handlers {
		wg.Add(1)

		go func(h pulse.EventHandler) {
			defer wg.Done()

			if err := invoke(ctx, event, h); err != nil {
				mu.Lock()
				result = multierror.Append(result, handlerError(h, err))
				mu.Unlock()
			}
		}(h)
	}

	wg.Wait()

	return result.ErrorOrNil()
}

func handlerError(h pulse.EventHandler, err error) error {
	return fmt.Errorf("could not handle event (%s): %w", h.HandlerType(), err)
}
