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
	"math"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/dailydevops/pulse"
)

// Priority is a dispatch strategy running handlers sequentially in priority
// order. Handlers implement pulse.Prioritized to expose a priority; a lower
// value runs earlier. Handlers without a priority run after all prioritized
// ones, and ties keep registration order.
type Priority struct{}

// NewPriority creates a Priority strategy.
func NewPriority() *Priority {
	return &Priority{}
}

// Dispatch implements the Dispatch method of the pulse.DispatchStrategy
// interface.
func (s *Priority) Dispatch(ctx context.Context, event pulse.Event, handlers []pulse.EventHandler, invoke pulse.EventInvoker) error {
	ordered := make([]pulse.EventHandler, len(handlers))
	copy(ordered, handlers)

	// Stable sort keeps registration order for equal priorities.
	sort.SliceStable(ordered, func(i, j int) bool {
		return priorityOf(ordered[i]) < priorityOf(ordered[j])
	})

	var result *multierror.Error

	for _, h := range ordered {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, err)

			break
		}

		if err := invoke(ctx, event, h); err != nil {
			result = multierror.Append(result, handlerError(h, err))
		}
	}

	return result.ErrorOrNil()
}

func priorityOf(h pulse.EventHandler) int {
	if p, ok := h.(pulse.Prioritized); ok {
		return p.Priority()
	}

	return math.MaxInt
}
