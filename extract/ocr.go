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
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/propregistry/deedpipe/config"
)

// An ocrExtractor rasterizes each page with Poppler's pdftoppm and runs
// Tesseract over the image. This is the CPU- and memory-heavy path used for
// scanned deeds (mixed English/Kannada). When page parallelism is enabled the
// extractor fans pages out over its own sub-pool; those sub-workers belong to
// the extractor, not to the pipeline's Stage-1 pool.
type ocrExtractor struct {
	languages     string
	dpi           int
	maxPages      int
	minTextLength int
	pageParallel  bool
	pageWorkers   int
}

// Creates an OCR extractor for scanned PDFs.
func NewOcrExtractor() TextExtractor {
	return &ocrExtractor{
		languages:     config.Ocr.Languages,
		dpi:           config.Ocr.Dpi,
		maxPages:      config.Ocr.MaxPages,
		minTextLength: config.Ocr.MinTextLength,
		pageParallel:  config.Pipeline.EnablePageParallelOcr,
		pageWorkers:   config.Pipeline.OcrPageWorkers,
	}
}

func (e *ocrExtractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	pages, err := pageCount(ctx, path)
	if err != nil {
		return Result{}, err
	}
	if pages > e.maxPages {
		pages = e.maxPages
	}

	// page images go into a scratch directory that lives only for this call
	scratch, err := os.MkdirTemp("", "deedpipe-ocr-")
	if err != nil {
		return Result{}, &OcrError{Path: path, Message: err.Error()}
	}
	defer os.RemoveAll(scratch)

	pageTexts := make([]string, pages)
	if e.pageParallel && e.pageWorkers > 1 {
		err = e.extractPagesParallel(ctx, path, scratch, pageTexts)
	} else {
		err = e.extractPagesSequential(ctx, path, scratch, pageTexts)
	}
	if err != nil {
		return Result{}, err
	}

	text := strings.Join(pageTexts, "\n")
	if len(text) < e.minTextLength {
		return Result{}, &InsufficientTextError{Path: path, Length: len(text)}
	}
	return Result{
		Text:      text,
		PageCount: pages,
		Elapsed:   time.Since(start),
	}, nil
}

// processes pages one at a time within the calling worker
func (e *ocrExtractor) extractPagesSequential(ctx context.Context, path,
	scratch string, pageTexts []string) error {
	for page := range pageTexts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		text, err := e.extractPage(ctx, path, scratch, page+1)
		if err != nil {
			return err
		}
		pageTexts[page] = text
	}
	return nil
}

// fans pages out over the extractor's sub-pool; the first error wins and
// cancels the remaining pages
func (e *ocrExtractor) extractPagesParallel(ctx context.Context, path,
	scratch string, pageTexts []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pageNumbers := make(chan int)
	errs := make(chan error, e.pageWorkers)
	var wg sync.WaitGroup
	for i := 0; i < e.pageWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range pageNumbers {
				text, err := e.extractPage(ctx, path, scratch, page)
				if err != nil {
					errs <- err
					cancel()
					return
				}
				pageTexts[page-1] = text
			}
		}()
	}

	// the send must yield to cancellation: after a page error the sub-workers
	// all exit, and an unguarded send would block forever
feed:
	for page := 1; page <= len(pageTexts); page++ {
		select {
		case pageNumbers <- page:
		case <-ctx.Done():
			break feed
		}
	}
	close(pageNumbers)
	wg.Wait()

	select {
	case err := <-errs:
		return err
	default:
	}
	return ctx.Err()
}

// rasterizes a single page and runs Tesseract over the image
func (e *ocrExtractor) extractPage(ctx context.Context, path, scratch string,
	page int) (string, error) {
	pageStr := strconv.Itoa(page)
	imageStem := filepath.Join(scratch, fmt.Sprintf("page-%04d", page))

	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-f", pageStr, "-l", pageStr,
		"-r", strconv.Itoa(e.dpi), "-gray", "-singlefile",
		path, imageStem)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &OcrError{Path: path, Message: firstLine(stderr.String(), err)}
	}

	cmd = exec.CommandContext(ctx, "tesseract",
		imageStem+".pgm", "-", "-l", e.languages, "--oem", "1", "--psm", "4")
	var out bytes.Buffer
	stderr.Reset()
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &OcrError{Path: path, Message: firstLine(stderr.String(), err)}
	}
	os.Remove(imageStem + ".pgm")
	return out.String(), nil
}
