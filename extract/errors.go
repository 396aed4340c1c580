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

package extract

import (
	"fmt"
)

// indicates that an extractor was requested for an unregistered mode
type UnknownModeError struct {
	Mode string
}

func (e UnknownModeError) Error() string {
	return fmt.Sprintf("No text extractor is registered for mode '%s'.", e.Mode)
}

// indicates that text extraction failed for a document
type OcrError struct {
	Path    string
	Message string
}

func (e OcrError) Error() string {
	return fmt.Sprintf("Text extraction failed for %s: %s", e.Path, e.Message)
}

// indicates that extraction produced too little text to be usable
type InsufficientTextError struct {
	Path   string
	Length int
}

func (e InsufficientTextError) Error() string {
	return fmt.Sprintf("Text extraction for %s returned insufficient text (%d characters).",
		e.Path, e.Length)
}
