// Copyright 2024 Hedera Hashgraph, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mirror

import (
	"encoding/json"
	"fmt"
)

// Error is a non-2xx mirror node response. Status carries the first
// _status message when the body had one; Data carries its hex payload
// (contract revert return data).
type Error struct {
	StatusCode int
	Status     string
	Detail     string
	Data       string
	Body       string
}

// Error implements error.
func (e *Error) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("mirror node returned %d: %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("mirror node returned %d", e.StatusCode)
}

// IsRateLimit reports whether the mirror node throttled the request.
func (e *Error) IsRateLimit() bool {
	return e.StatusCode == 429
}

// IsNotSupported reports whether the mirror node does not implement the
// requested operation.
func (e *Error) IsNotSupported() bool {
	return e.StatusCode == 501
}

// statusEnvelope is the error body shape of the mirror node REST API.
type statusEnvelope struct {
	Status struct {
		Messages []struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
			Data    string `json:"data"`
		} `json:"messages"`
	} `json:"_status"`
}

func newError(statusCode int, body []byte) *Error {
	e := &Error{StatusCode: statusCode, Body: string(body)}
	var envelope statusEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Status.Messages) > 0 {
		first := envelope.Status.Messages[0]
		e.Status = first.Message
		e.Detail = first.Detail
		e.Data = first.Data
	}
	return e
}
