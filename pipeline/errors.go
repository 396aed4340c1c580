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

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/propregistry/deedpipe/extract"
	"github.com/propregistry/deedpipe/filestore"
	"github.com/propregistry/deedpipe/llm"
	"github.com/propregistry/deedpipe/store"
	"github.com/propregistry/deedpipe/validate"
)

// An ErrorKind names one of the closed set of ways a document can fail.
// Kinds are persisted with each failure row and reported to clients.
type ErrorKind string

const (
	KindIo              ErrorKind = "io_error"
	KindOcr             ErrorKind = "ocr_error"
	KindLlmTimeout      ErrorKind = "llm_timeout"
	KindLlmRateLimited  ErrorKind = "llm_rate_limited"
	KindLlmParse        ErrorKind = "llm_parse"
	KindLlmInvalidShape ErrorKind = "llm_invalid_shape"
	KindValidation      ErrorKind = "validation_error"
	KindCancelled       ErrorKind = "cancelled"
)

// maps an error from a collaborator onto its kind; transport and storage
// failures both land on io_error
func classifyError(err error) ErrorKind {
	var (
		ocrErr      *extract.OcrError
		shortText   *extract.InsufficientTextError
		ioErr       *filestore.IOError
		timeoutErr  *llm.TimeoutError
		rateErr     *llm.RateLimitedError
		parseErr    *llm.ParseError
		shapeErr    *llm.InvalidShapeError
		validErr    *validate.ValidationError
		databaseErr *store.DatabaseError
	)
	switch {
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return KindLlmTimeout
	case errors.As(err, &rateErr):
		return KindLlmRateLimited
	case errors.As(err, &parseErr):
		return KindLlmParse
	case errors.As(err, &shapeErr):
		return KindLlmInvalidShape
	case errors.As(err, &ocrErr), errors.As(err, &shortText):
		return KindOcr
	case errors.As(err, &validErr):
		return KindValidation
	case errors.As(err, &ioErr), errors.As(err, &databaseErr):
		return KindIo
	default:
		return KindIo
	}
}

// This error type indicates a Start call while a batch is already active.
type AlreadyRunningError struct{}

func (e AlreadyRunningError) Error() string {
	return "a batch is already running"
}

// This error type indicates an operation that is only legal while the
// engine is idle.
type BusyError struct {
	Op string
}

func (e BusyError) Error() string {
	return fmt.Sprintf("cannot %s while a batch is running", e.Op)
}

// This error type indicates an out-of-range run configuration value.
type InvalidConfigError struct {
	Message string
}

func (e InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid run configuration: %s", e.Message)
}
