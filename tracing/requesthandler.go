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

// Package tracing provides request and event handler middleware adding
// OpenTracing spans around handling.
package tracing

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/dailydevops/pulse"
)

// NewRequestHandlerMiddleware returns a request handler middleware that adds
// tracing spans.
func NewRequestHandlerMiddleware() pulse.RequestHandlerMiddleware {
	return pulse.RequestHandlerMiddleware(func(h pulse.RequestHandler) pulse.RequestHandler {
		return pulse.RequestHandlerFunc(func(ctx context.Context, req pulse.Request) (interface{}, error) {
			opName := fmt.Sprintf("Request(%s)", req.RequestType())
			sp, ctx := opentracing.StartSpanFromContext(ctx, opName)

			resp, err := h.HandleRequest(ctx, req)

			sp.SetTag("pulse.request_type", req.RequestType())
			sp.SetTag("pulse.correlation_id", req.CorrelationID())

			if err != nil {
				ext.LogError(sp, err)
			}

			sp.Finish()

			return resp, err
		})
	})
}
