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

// This package contains testing utilities for the deed processing service.
package deedtest

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/propregistry/deedpipe/deeds"
	"github.com/propregistry/deedpipe/extract"
	"github.com/propregistry/deedpipe/filestore"
	"github.com/propregistry/deedpipe/llm"
)

// Enables DEBUG log messages for the service's structured log (slog).
func EnableDebugLogging() {
	logLevel := new(slog.LevelVar)
	logLevel.Set(slog.LevelDebug)
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(h))
}

//--------------------------
// Extractor Test Fixtures
//--------------------------

// This type implements a TextExtractor test fixture. It returns
// "text-<document id>" after the configured delay, or a canned error for
// documents named in Failures.
type TextExtractor struct {
	Delay    time.Duration
	Failures map[string]error // keyed by document id
}

func (e *TextExtractor) Extract(ctx context.Context, path string) (extract.Result, error) {
	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			return extract.Result{}, ctx.Err()
		}
	}
	documentId := filestore.DocumentId(path)
	if err, ok := e.Failures[documentId]; ok {
		return extract.Result{}, err
	}
	return extract.Result{
		Text:      "text-" + documentId,
		PageCount: 1,
		Elapsed:   e.Delay,
	}, nil
}

// This type implements a StructuredExtractor test fixture. It returns the
// configured Record (or a minimal valid one) after the configured delay, or
// a canned error for texts named in Failures. Calls are recorded for
// inspection.
type StructuredExtractor struct {
	Delay    time.Duration
	Record   *deeds.Record
	Failures map[string]error // keyed by the extracted text

	mutex sync.Mutex
	calls []string
}

func (e *StructuredExtractor) Parse(ctx context.Context, text string) (deeds.Record, error) {
	e.mutex.Lock()
	e.calls = append(e.calls, text)
	failure := e.Failures[text]
	e.mutex.Unlock()

	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			// the real backends report an exhausted budget as a TimeoutError
			if ctx.Err() == context.DeadlineExceeded {
				return deeds.Record{}, &llm.TimeoutError{Message: "deadline exceeded"}
			}
			return deeds.Record{}, ctx.Err()
		}
	}
	if failure != nil {
		return deeds.Record{}, failure
	}
	if e.Record != nil {
		return e.Record.Copy(), nil
	}
	return deeds.Record{
		TransactionDate: "2024-03-15",
		Buyers:          []deeds.Party{{Name: "Asha Rao"}},
		Sellers:         []deeds.Party{{Name: "Vikram Shetty", PropertyShare: "100%"}},
	}, nil
}

// Returns the texts the fixture has been asked to parse, in call order.
func (e *StructuredExtractor) Calls() []string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return append([]string{}, e.calls...)
}
