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

	"github.com/hashicorp/go-multierror"

	"github.com/dailydevops/pulse"
)

// Sequential is a dispatch strategy running handlers one at a time in
// registration order. A failing handler does not block subsequent ones.
type Sequential struct{}

// NewSequential creates a Sequential strategy.
func NewSequential() *Sequential {
	return &Sequential{}
}

// Dispatch implements the Dispatch method of the pulse.DispatchStrategy
// interface. Cancellation is checked between handler invocations; handlers
// already completed are not undone.
func (s *Sequential) Dispatch(ctx context.Context, event pulse.Event, handlers []pulse.EventHandler, invoke pulse.EventInvoker) error {
	var result *multierror.Error

	for _, h := range handlers {
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
