// Copyright (c) 2025 The Deedpipe Project and its Contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package llm

import (
	"fmt"
)

// indicates that an extractor was requested for an unconfigured backend
type UnknownBackendError struct {
	Backend string
}

func (e UnknownBackendError) Error() string {
	return fmt.Sprintf("No structured extractor is available for backend '%s'.", e.Backend)
}

// indicates that no API key was available for a backend
type MissingApiKeyError struct {
	Backend string
}

func (e MissingApiKeyError) Error() string {
	return fmt.Sprintf("No API key was configured for the %s backend.", e.Backend)
}

// indicates that an extraction exceeded its time budget
type TimeoutError struct {
	Message string
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("Structured extraction timed out: %s", e.Message)
}

// indicates that the backend refused the call because of rate limiting
type RateLimitedError struct {
	Message string
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("The model backend rate-limited the extraction: %s", e.Message)
}

// indicates that the model's response could not be parsed as JSON
type ParseError struct {
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("Couldn't parse the model response: %s", e.Message)
}

// indicates that the model's response parsed but doesn't fit the record schema
type InvalidShapeError struct {
	Message string
}

func (e InvalidShapeError) Error() string {
	return fmt.Sprintf("The model response doesn't match the record schema: %s", e.Message)
}

// indicates a transport-level failure talking to the backend
type RequestError struct {
	Message string
}

func (e RequestError) Error() string {
	return fmt.Sprintf("The model request failed: %s", e.Message)
}
