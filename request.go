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
	"errors"

	"github.com/dailydevops/pulse/uuid"
)

// ErrMissingRequest is when a dispatch is attempted with a nil request.
var ErrMissingRequest = errors.New("missing request")

// RequestType is the type of a request, used as its unique identifier for
// handler resolution.
type RequestType string

// String implements the String method of the fmt.Stringer interface.
func (rt RequestType) String() string {
	return string(rt)
}

// Request is a typed operation dispatched to exactly one handler.
//
// A request name should contain the intent: CreateOrder is a command,
// OrderByID is a query.
type Request interface {
	// RequestType returns the type of the request.
	RequestType() RequestType

	// CorrelationID returns the ID used to correlate the request across
	// systems. May be uuid.Nil if the caller does not trace it.
	CorrelationID() uuid.UUID
}

// Command is a request that changes state. Its response is often Unit.
type Command interface {
	Request

	// IsCommand is a marker method to distinguish commands from queries.
	IsCommand()
}

// Query is a request that reads state without side effects.
type Query interface {
	Request

	// IsQuery is a marker method to distinguish queries from commands.
	IsQuery()
}

// Unit is the response of a command without a meaningful response value, so
// that "fire and act" commands share the dispatch pipeline with
// value-returning ones.
type Unit struct{}
