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

package strategy

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"

	"github.com/dailydevops/pulse"
)

// Bounded is a dispatch strategy running handlers concurrently with at most
// N in flight at once, protecting downstream systems from a thundering herd
// of fan-out handlers.
type Bounded struct {
	limit int64
}

// NewBounded creates a Bounded strategy admitting up to limit concurrent
// handler invocations. A limit below one is treated as one.
func NewBounded(limit int) *Bounded {
	if limit < 1 {
		limit = 1
	}

	return &Bounded{limit: int64(limit)}
}

// Dispatch implements the Dispatch method of the pulse.DispatchStrategy
// interface. Admission waits honor cancellation; handlers not yet admitted
// when the context is cancelled are not run.
func (s *Bounded) Dispatch(ctx context.Context, event pulse.Event, handlers []pulse.EventHandler, invoke pulse.EventInvoker) error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)

	sem := semaphore.NewWeighted(s.limit)

	for _, h := range handlers {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result = multierror.Append(result, err)
			mu.Unlock()

			break
		}

		wg.Add(1)

		go func(h pulse.EventHandler) {
			defer wg.Done()
			defer sem.Release(1)

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
