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

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dailydevops/pulse"
	"github.com/dailydevops/pulse/mocks"
)

func TestMiddleware(t *testing.T) {
	attempts := 0
	inner := pulse.RequestHandlerFunc(func(ctx context.Context, req pulse.Request) (interface{}, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient error")
		}

		return "ok", nil
	})

	h := pulse.UseRequestHandlerMiddleware(inner, NewMiddleware(
		WithMaxAttempts(3),
		WithBackoff(time.Millisecond, 2*time.Millisecond),
	))

	resp, err := h.HandleRequest(context.Background(), mocks.Command{})
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if resp != "ok" {
		t.Error("the response should be correct:", resp)
	}

	if attempts != 3 {
		t.Error("there should be three attempts:", attempts)
	}
}

func TestMiddlewareExhausted(t *testing.T) {
	handlerErr := errors.New("permanent error")
	attempts := 0
	inner := pulse.RequestHandlerFunc(func(ctx context.Context, req pulse.Request) (interface{}, error) {
		attempts++

		return nil, handlerErr
	})

	h := pulse.UseRequestHandlerMiddleware(inner, NewMiddleware(
		WithMaxAttempts(2),
		WithBackoff(time.Millisecond, 2*time.Millisecond),
	))

	if _, err := h.HandleRequest(context.Background(), mocks.Command{}); !errors.Is(err, handlerErr) {
		t.Error("the handler error should be returned:", err)
	}

	if attempts != 2 {
		t.Error("there should be two attempts:", attempts)
	}
}

func TestMiddlewareCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	inner := pulse.RequestHandlerFunc(func(ctx context.Context, req pulse.Request) (interface{}, error) {
		cancel()

		return nil, errors.New("transient error")
	})

	h := pulse.UseRequestHandlerMiddleware(inner, NewMiddleware(
		WithBackoff(time.Minute, time.Minute),
	))

	if _, err := h.HandleRequest(ctx, mocks.Command{}); !errors.Is(err, context.Canceled) {
		t.Error("there should be a context canceled error:", err)
	}
}
