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
	"time"
)

// Clock is the time source used for all timestamping (event publication
// times, outbox processed times). Injecting it keeps dispatch and outbox
// behavior deterministic under test; production code uses SystemClock.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is a Clock reading the system time.
type SystemClock struct{}

// Now implements the Now method of the Clock interface.
func (SystemClock) Now() time.Time {
	return time.Now()
}
