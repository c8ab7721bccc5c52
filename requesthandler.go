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

package pulse

import (
	"context"
)

// RequestHandler is a handler of requests, producing a response.
type RequestHandler interface {
	// HandleRequest handles a request and returns its response.
	HandleRequest(context.Context, Request) (interface{}, error)
}

// RequestHandlerFunc is a function that can be used as a request handler.
type RequestHandlerFunc func(context.Context, Request) (interface{}, error)

// HandleRequest implements the HandleRequest method of the RequestHandler.
func (f RequestHandlerFunc) HandleRequest(ctx context.Context, req Request) (interface{}, error) {
	return f(ctx, req)
}

// RequestHandlerMiddleware is a function that middlewares can implement to be
// able to chain. A middleware that never calls the inner handler
// short-circuits the pipeline, which is valid (cache hits, validation
// rejections).
type RequestHandlerMiddleware func(RequestHandler) RequestHandler

// UseRequestHandlerMiddleware wraps a RequestHandler in one or more middleware.
// The middleware added last wraps all the others and runs first.
func UseRequestHandlerMiddleware(h RequestHandler, middleware ...RequestHandlerMiddleware) RequestHandler {
	for _, m := range middleware {
		h = m(h)
	}

	return h
}
