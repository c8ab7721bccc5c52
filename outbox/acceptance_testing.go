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
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kr/pretty"

	"github.com/dailydevops/pulse/uuid"
)

// AcceptanceTest is the acceptance test that all implementations of
// Repository should pass. It should manually be called from a test case in
// each implementation:
//
//	func TestRepo(t *testing.T) {
//	    r := NewRepo()
//	    outbox.AcceptanceTest(t, r, context.Background())
//	}
func AcceptanceTest(t *testing.T, repo Repository, ctx context.Context) {
	// Adding a nil message is an argument error.
	if err := repo.Add(ctx, nil); !errors.Is(err, ErrMissingMessage) {
		t.Error("the error should be correct:", err)
	}

	// A claimed message is returned exactly once.
	msg := acceptanceMessage("claim-once")
	if err := repo.Add(ctx, msg); err != nil {
		t.Fatal("there should be no error:", err)
	}

	claimed, err := repo.ClaimPending(ctx, 10)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if len(claimed) != 1 {
		t.Fatal("there should be one claimed message:", pretty.Sprint(claimed))
	}

	if claimed[0].ID != msg.ID {
		t.Error("the claimed message should be correct:", pretty.Sprint(claimed[0]))
	}

	if claimed[0].Status != StatusProcessing {
		t.Error("the claimed message should be processing:", claimed[0].Status)
	}

	if claimed[0].EventType != msg.EventType ||
		!bytes.Equal(claimed[0].Payload, msg.Payload) ||
		claimed[0].CorrelationID != msg.CorrelationID {
		t.Errorf("the claimed message should round-trip: %v", pretty.Diff(msg, claimed[0]))
	}

	again, err := repo.ClaimPending(ctx, 10)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if len(again) != 0 {
		t.Error("the message should not be claimed twice:", pretty.Sprint(again))
	}

	if err := repo.MarkCompleted(ctx, msg.ID); err != nil {
		t.Fatal("there should be no error:", err)
	}

	// Completing a message that is not processing is an error.
	if err := repo.MarkCompleted(ctx, msg.ID); !errors.Is(err, ErrMessageNotFound) {
		t.Error("the error should be correct:", err)
	}

	if err := repo.MarkCompleted(ctx, uuid.New()); !errors.Is(err, ErrMessageNotFound) {
		t.Error("the error should be correct:", err)
	}

	// Claims come oldest first and respect the batch size.
	first := acceptanceMessage("oldest")
	second := acceptanceMessage("newer")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	second.UpdatedAt = second.CreatedAt

	for _, m := range []*Message{first, second} {
		if err := repo.Add(ctx, m); err != nil {
			t.Fatal("there should be no error:", err)
		}
	}

	claimed, err = repo.ClaimPending(ctx, 1)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if len(claimed) != 1 || claimed[0].ID != first.ID {
		t.Error("the oldest message should be claimed first:", pretty.Sprint(claimed))
	}

	// Failed messages carry their retry accounting and stay eligible for
	// retry until the budget is spent.
	if err := repo.MarkFailed(ctx, first.ID, errors.New("delivery error")); err != nil {
		t.Fatal("there should be no error:", err)
	}

	retries, err := repo.ClaimFailedForRetry(ctx, 2, 10)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if len(retries) != 1 || retries[0].ID != first.ID {
		t.Fatal("the failed message should be re-claimed:", pretty.Sprint(retries))
	}

	if retries[0].RetryCount != 1 {
		t.Error("the retry count should be incremented:", retries[0].RetryCount)
	}

	if retries[0].LastError != "delivery error" {
		t.Error("the last error should be recorded:", retries[0].LastError)
	}

	for i := 0; i < 2; i++ {
		if err := repo.MarkFailed(ctx, first.ID, errors.New("delivery error")); err != nil {
			t.Fatal("there should be no error:", err)
		}

		retries, err = repo.ClaimFailedForRetry(ctx, 2, 10)
		if err != nil {
			t.Fatal("there should be no error:", err)
		}

		if i == 0 {
			// Retry count 2 is still within a budget of 2.
			if len(retries) != 1 {
				t.Fatal("the failed message should be re-claimed:", pretty.Sprint(retries))
			}
		} else if len(retries) != 0 {
			// Retry count 3 is past the budget.
			t.Error("the message should not be eligible for retry:", pretty.Sprint(retries))
		}
	}

	// A processor that stops mid-flight leaves messages stuck in processing;
	// the stale sweep re-claims them.
	claimed, err = repo.ClaimPending(ctx, 10)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if len(claimed) != 1 || claimed[0].ID != second.ID {
		t.Fatal("the remaining pending message should be claimed:", pretty.Sprint(claimed))
	}

	stale, err := repo.ReclaimStale(ctx, time.Now().Add(time.Hour), 10)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if len(stale) != 1 || stale[0].ID != second.ID {
		t.Fatal("the stuck processing message should be re-claimed:", pretty.Sprint(stale))
	}

	if err := repo.MarkDeadLetter(ctx, second.ID, errors.New("gave up")); err != nil {
		t.Fatal("there should be no error:", err)
	}

	// Dead-lettered messages are terminal: no claim ever returns them.
	for name, claim := range map[string]func() ([]*Message, error){
		"pending": func() ([]*Message, error) { return repo.ClaimPending(ctx, 10) },
		"failed":  func() ([]*Message, error) { return repo.ClaimFailedForRetry(ctx, 100, 10) },
		"stale":   func() ([]*Message, error) { return repo.ReclaimStale(ctx, time.Now().Add(time.Hour), 10) },
	} {
		msgs, err := claim()
		if err != nil {
			t.Fatal("there should be no error:", err)
		}

		for _, m := range msgs {
			if m.ID == second.ID {
				t.Errorf("the dead-lettered message should not be claimed by the %s sweep", name)
			}
		}
	}

	// Retention cleanup removes completed messages only.
	count, err := repo.DeleteCompleted(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if count != 1 {
		t.Error("one completed message should be deleted:", count)
	}

	count, err = repo.DeleteCompleted(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if count != 0 {
		t.Error("there should be nothing left to delete:", count)
	}
}

// ConcurrencyTest verifies that concurrent claims never return the same
// message twice, which is the mutual exclusion point of the whole outbox.
func ConcurrencyTest(t *testing.T, repo Repository, ctx context.Context) {
	const total = 50

	for i := 0; i < total; i++ {
		if err := repo.Add(ctx, acceptanceMessage(fmt.Sprintf("concurrent-%d", i))); err != nil {
			t.Fatal("there should be no error:", err)
		}
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[uuid.UUID]int{}
	)

	for i := 0; i < 5; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for {
				claimed, err := repo.ClaimPending(ctx, 3)
				if err != nil {
					t.Error("there should be no error:", err)

					return
				}

				if len(claimed) == 0 {
					return
				}

				mu.Lock()
				for _, m := range claimed {
					seen[m.ID]++
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if len(seen) != total {
		t.Error("every message should be claimed:", len(seen))
	}

	for id, n := range seen {
		if n != 1 {
			t.Errorf("message %s should be claimed exactly once: %d", id, n)
		}
	}
}

func acceptanceMessage(content string) *Message {
	now := time.Now().Round(time.Millisecond).UTC()

	return &Message{
		ID:            uuid.New(),
		EventType:     "Event",
		Payload:       []byte(fmt.Sprintf(`{"content":%q}`, content)),
		CorrelationID: uuid.New(),
		CreatedAt:     now,
		UpdatedAt:     now,
		Status:        StatusPending,
	}
}
