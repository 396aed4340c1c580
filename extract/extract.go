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

// Package extract turns a PDF file into page text (Stage 1 of the pipeline).
// Two extractors are built in: "embedded" reads the text layer of digital
// PDFs, "ocr" rasterizes scanned pages and runs them through Tesseract.
// Additional extractors (test fixtures, notably) can be registered by mode
// name.
package extract

import (
	"context"
	"time"
)

// the result of extracting text from a single document
type Result struct {
	// the concatenated page text
	Text string
	// the number of pages read
	PageCount int
	// wall time spent extracting
	Elapsed time.Duration
}

// A TextExtractor turns a PDF file into text. Extraction is a pure function
// of the file: calling it twice on the same path yields the same text.
// Implementations must honor ctx cancellation at their blocking points.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// a function that creates a text extractor for a registered mode
type Provider func() (TextExtractor, error)

// we maintain a table of extractor providers, identified by mode name
var allProviders map[string]Provider = make(map[string]Provider)

// Registers a provider under the given mode name, overriding any built-in
// with that name (tests use this to install fixtures).
func RegisterProvider(mode string, provider Provider) {
	allProviders[mode] = provider
}

// Creates a text extractor for the given mode ("embedded", "ocr", or a
// registered name).
func NewExtractor(mode string) (TextExtractor, error) {
	if provider, found := allProviders[mode]; found {
		return provider()
	}
	switch mode {
	case "embedded":
		return NewEmbeddedExtractor(), nil
	case "ocr":
		return NewOcrExtractor(), nil
	}
	return nil, &UnknownModeError{Mode: mode}
}
