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
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// installs a fake command-line tool ahead of the real one on PATH
func stubTool(t *testing.T, dir, name, script string) {
	path := filepath.Join(dir, name)
	assert.Nil(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755))
}

// a trivial extractor fixture
type staticExtractor struct {
	text string
}

func (e *staticExtractor) Extract(ctx context.Context, path string) (Result, error) {
	return Result{Text: e.text, PageCount: 1, Elapsed: time.Millisecond}, nil
}

func TestNewExtractorRejectsUnknownMode(t *testing.T) {
	_, err := NewExtractor("telepathy")
	assert.NotNil(t, err)
	_, isUnknown := err.(*UnknownModeError)
	assert.True(t, isUnknown)
}

func TestRegisteredProviderWins(t *testing.T) {
	RegisterProvider("static", func() (TextExtractor, error) {
		return &staticExtractor{text: "deed text"}, nil
	})
	extractor, err := NewExtractor("static")
	assert.Nil(t, err)

	result, err := extractor.Extract(context.Background(), "ignored.pdf")
	assert.Nil(t, err)
	assert.Equal(t, "deed text", result.Text)
	assert.Equal(t, 1, result.PageCount)
}

func TestBuiltinModesConstruct(t *testing.T) {
	for _, mode := range []string{"embedded", "ocr"} {
		extractor, err := NewExtractor(mode)
		assert.Nil(t, err, "mode %s", mode)
		assert.NotNil(t, extractor, "mode %s", mode)
	}
}

// A failing page must not wedge the page feeder: the erroring sub-worker
// cancels the others, and the feeder has to notice instead of blocking on a
// send nobody will receive.
func TestParallelPageErrorDoesNotHang(t *testing.T) {
	stubs := t.TempDir()
	stubTool(t, stubs, "pdftoppm", `sleep 0.05
echo "stub: page render failed" >&2
exit 1`)
	t.Setenv("PATH", stubs+string(os.PathListSeparator)+os.Getenv("PATH"))

	e := &ocrExtractor{
		languages:    "eng",
		dpi:          72,
		maxPages:     30,
		pageParallel: true,
		pageWorkers:  2,
	}
	pageTexts := make([]string, 6)

	done := make(chan error, 1)
	go func() {
		done <- e.extractPagesParallel(context.Background(), "scan.pdf",
			t.TempDir(), pageTexts)
	}()

	select {
	case err := <-done:
		assert.NotNil(t, err)
		var ocrErr *OcrError
		assert.True(t, errors.As(err, &ocrErr))
	case <-time.After(5 * time.Second):
		t.Fatal("extractPagesParallel did not return after a page error")
	}
}
