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

// Package llm extracts a structured deed record from OCR text (Stage 2 of
// the pipeline) by calling a remote model. Two backends are built in, Gemini
// and Claude, selected by the llm.backend config key.
package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/propregistry/deedpipe/config"
	"github.com/propregistry/deedpipe/deeds"
)

// A StructuredExtractor parses deed text into a structured record. The
// caller bounds each call with a deadline; implementations surface a
// deadline expiry as a TimeoutError.
type StructuredExtractor interface {
	Parse(ctx context.Context, text string) (deeds.Record, error)
}

// Creates a structured extractor for the configured backend.
func NewExtractor() (StructuredExtractor, error) {
	switch config.Llm.Backend {
	case "gemini":
		return NewGeminiExtractor()
	case "claude":
		return NewClaudeExtractor()
	}
	return nil, &UnknownBackendError{Backend: config.Llm.Backend}
}

// decodeRecord turns a model response into a Record. Models wrap JSON in
// markdown fences often enough that we cut the payload out between the first
// '{' and the last '}' before decoding.
func decodeRecord(response string) (deeds.Record, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return deeds.Record{}, &ParseError{Message: "response contains no JSON object"}
	}
	payload := response[start : end+1]

	var record deeds.Record
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		if _, isType := err.(*json.UnmarshalTypeError); isType {
			return deeds.Record{}, &InvalidShapeError{Message: err.Error()}
		}
		return deeds.Record{}, &ParseError{Message: err.Error()}
	}

	// a record naming no parties and no property is not a deed extraction
	if len(record.Buyers) == 0 && len(record.Sellers) == 0 &&
		record.Property == (deeds.Property{}) {
		return deeds.Record{}, &InvalidShapeError{
			Message: "response names no parties and no property",
		}
	}
	return record, nil
}
