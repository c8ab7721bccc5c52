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

// Package logging provides a request handler middleware logging every
// dispatched request with its outcome and duration.
package logging

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dailydevops/pulse"
)

// NewMiddleware returns a new request logging middleware using the logger.
func NewMiddleware(logger *zap.Logger) pulse.RequestHandlerMiddleware {
	return pulse.RequestHandlerMiddleware(func(h pulse.RequestHandler) pulse.RequestHandler {
		return pulse.RequestHandlerFunc(func(ctx context.Context, req pulse.Request) (interface{}, error) {
			start := time.Now()

			resp, err := h.HandleRequest(ctx, req)

			fields := []zap.Field{
				zap.String("request_type", req.RequestType().String()),
				zap.String("correlation_id", req.CorrelationID().String()),
				zap.Duration("took", time.Since(start)),
			}

			if err != nil {
				logger.Warn("request failed", append(fields, zap.Error(err))...)

				return resp, err
			}

			logger.Debug("request handled", fields...)

			return resp, nil
		})
	})
}
