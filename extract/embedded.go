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
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/propregistry/deedpipe/config"
)

// An embeddedExtractor reads the text layer of a digital PDF using Poppler's
// pdftotext. It is fast and cheap but useless for scanned documents.
type embeddedExtractor struct {
	maxPages      int
	minTextLength int
}

// Creates an extractor for PDFs carrying embedded text.
func NewEmbeddedExtractor() TextExtractor {
	return &embeddedExtractor{
		maxPages:      config.Ocr.MaxPages,
		minTextLength: config.Ocr.MinTextLength,
	}
}

func (e *embeddedExtractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	pages, err := pageCount(ctx, path)
	if err != nil {
		return Result{}, err
	}
	if pages > e.maxPages {
		pages = e.maxPages
	}

	cmd := exec.CommandContext(ctx, "pdftotext",
		"-f", "1", "-l", strconv.Itoa(pages), "-layout", path, "-")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, &OcrError{Path: path, Message: firstLine(stderr.String(), err)}
	}

	text := out.String()
	if len(text) < e.minTextLength {
		return Result{}, &InsufficientTextError{Path: path, Length: len(text)}
	}
	return Result{
		Text:      text,
		PageCount: pages,
		Elapsed:   time.Since(start),
	}, nil
}

// asks pdfinfo how many pages the document has
func pageCount(ctx context.Context, path string) (int, error) {
	cmd := exec.CommandContext(ctx, "pdfinfo", path)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &OcrError{Path: path, Message: firstLine(stderr.String(), err)}
	}
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "Pages:") {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
			if err == nil && n > 0 {
				return n, nil
			}
		}
	}
	return 0, &OcrError{Path: path, Message: "pdfinfo reported no page count"}
}

// picks a one-line diagnostic out of a subprocess's stderr, falling back to
// the exec error
func firstLine(stderr string, err error) string {
	if line, _, found := strings.Cut(strings.TrimSpace(stderr), "\n"); found || line != "" {
		return line
	}
	return err.Error()
}
