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

package pulse

import (
	"context"
)

// EventInvoker invokes a single handler for an event, applying the
// middleware chain configured on the event bus.
type EventInvoker func(ctx context.Context, event Event, h EventHandler) error

// DispatchStrategy is the policy governing ordering and concurrency of event
// handler execution. A failing handler must not prevent other handlers from
// running; every failure is collected and returned as one aggregate error
// after all handlers have been attempted.
type DispatchStrategy interface {
	// Dispatch runs all handlers for an event through the invoker.
	Dispatch(ctx context.Context, event Event, handlers []EventHandler, invoke EventInvoker) error
}
