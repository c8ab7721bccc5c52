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

package memory

import (
	"context"
	"testing"

	"github.com/dailydevops/pulse/outbox"
)

func TestRepo(t *testing.T) {
	repo := NewRepo()
	if repo == nil {
		t.Fatal("there should be a repository")
	}

	outbox.AcceptanceTest(t, repo, context.Background())
}

func TestRepoConcurrency(t *testing.T) {
	repo := NewRepo()
	if repo == nil {
		t.Fatal("there should be a repository")
	}

	outbox.ConcurrencyTest(t, repo, context.Background())
}
