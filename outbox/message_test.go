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
	"testing"
)

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusPending:    "pending",
		StatusProcessing: "processing",
		StatusCompleted:  "completed",
		StatusFailed:     "failed",
		StatusDeadLetter: "dead_letter",
		Status(42):       "unknown(42)",
	}

	for status, expected := range cases {
		if s := status.String(); s != expected {
			t.Error("the status string should be correct:", s)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, status := range []Status{StatusPending, StatusProcessing, StatusFailed} {
		if status.Terminal() {
			t.Error("the status should not be terminal:", status)
		}
	}

	for _, status := range []Status{StatusCompleted, StatusDeadLetter} {
		if !status.Terminal() {
			t.Error("the status should be terminal:", status)
		}
	}
}

func TestStatusCanTransitionTo(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:    {StatusProcessing},
		StatusProcessing: {StatusCompleted, StatusFailed, StatusDeadLetter},
		StatusFailed:     {StatusProcessing},
	}

	all := []Status{
		StatusPending,
		StatusProcessing,
		StatusCompleted,
		StatusFailed,
		StatusDeadLetter,
	}

	for _, from := range all {
		for _, to := range all {
			expected := false

			for _, next := range allowed[from] {
				if next == to {
					expected = true
				}
			}

			if got := from.CanTransitionTo(to); got != expected {
				t.Errorf("transition %s -> %s should be %v", from, to, expected)
			}
		}
	}
}
