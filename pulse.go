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

// Package pulse is an in-process request/event mediator with a transactional
// outbox for reliable at-least-once delivery of events.
//
// The root package holds the core contracts: requests (commands and queries),
// events, handlers, middleware and the clock abstraction. Dispatching lives in
// the requestbus and eventbus packages, durable delivery in the outbox package
// with interchangeable repository and transport backends.
package pulse
