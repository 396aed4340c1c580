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

// Package pipeline implements the two-stage document processing engine.
// Stage 1 workers pull documents off a mutex-guarded work list and run text
// extraction; Stage 2 workers receive the extracted text over a bounded
// channel, call the language model, clean the result, persist it, and route
// the source file. The channel's capacity is the only backpressure
// mechanism: when the LLM pool falls behind, OCR workers block on the send
// and resident memory stays bounded.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/propregistry/deedpipe/config"
	"github.com/propregistry/deedpipe/deeds"
	"github.com/propregistry/deedpipe/extract"
	"github.com/propregistry/deedpipe/filestore"
	"github.com/propregistry/deedpipe/llm"
	"github.com/propregistry/deedpipe/store"
	"github.com/propregistry/deedpipe/validate"
)

// A StageResult carries one document's extracted text from Stage 1 to
// Stage 2.
type StageResult struct {
	DocumentId   string
	BatchId      string
	SourcePath   string
	Text         string
	OcrElapsed   time.Duration
	OcrPageCount int
}

// A RunCoordinator selects the batch a run processes and records its
// terminal status.
type RunCoordinator interface {
	// claims the next batch: marks it running and returns its admitted
	// documents
	BeginRun(ctx context.Context) (string, []filestore.Admission, error)
	// marks the batch completed or cancelled and records its final counts
	EndRun(ctx context.Context, batchId, status string, succeeded, failed, cancelled int) error
}

// A RecordStore persists extracted records and per-document failures.
type RecordStore interface {
	SaveRecord(ctx context.Context, record deeds.Record,
		ocrElapsed time.Duration, ocrPageCount int) error
	RecordFailure(ctx context.Context, failure store.Failure) error
}

// A RunConfig holds the worker and queue settings for one run.
type RunConfig struct {
	OcrWorkers            int
	LlmWorkers            int
	QueueSize             int
	EnablePageParallelOcr bool
	OcrPageWorkers        int
	LlmTimeout            time.Duration
}

// the run configuration given by the service configuration file
func DefaultRunConfig() RunConfig {
	return RunConfig{
		OcrWorkers:            config.Pipeline.OcrWorkers,
		LlmWorkers:            config.Pipeline.LlmWorkers,
		QueueSize:             config.Pipeline.QueueSize,
		EnablePageParallelOcr: config.Pipeline.EnablePageParallelOcr,
		OcrPageWorkers:        config.Pipeline.OcrPageWorkers,
		LlmTimeout:            time.Duration(config.Llm.Timeout) * time.Second,
	}
}

func (c RunConfig) validate() error {
	if c.OcrWorkers < 1 || c.OcrWorkers > 20 {
		return &InvalidConfigError{
			Message: fmt.Sprintf("ocr workers: %d (must be 1-20)", c.OcrWorkers)}
	}
	if c.LlmWorkers < 1 || c.LlmWorkers > 20 {
		return &InvalidConfigError{
			Message: fmt.Sprintf("llm workers: %d (must be 1-20)", c.LlmWorkers)}
	}
	if c.QueueSize < 1 || c.QueueSize > 10 {
		return &InvalidConfigError{
			Message: fmt.Sprintf("queue size: %d (must be 1-10)", c.QueueSize)}
	}
	if c.OcrPageWorkers < 1 || c.OcrPageWorkers > 8 {
		return &InvalidConfigError{
			Message: fmt.Sprintf("ocr page workers: %d (must be 1-8)", c.OcrPageWorkers)}
	}
	if c.LlmTimeout <= 0 {
		return &InvalidConfigError{
			Message: fmt.Sprintf("llm timeout: %s (must be positive)", c.LlmTimeout)}
	}
	return nil
}

// An Engine runs batches through the two processing stages. One engine per
// process; at most one batch runs at a time.
type Engine struct {
	coordinator RunCoordinator
	files       *filestore.Store
	records     RecordStore

	mutex         sync.Mutex // guards the fields below
	extractor     extract.TextExtractor
	parser        llm.StructuredExtractor
	running       bool
	stopRequested bool
	cancel        context.CancelFunc
	done          chan struct{}
	batchId       string

	stats statistics
}

// Creates an engine. The extractor and parser are the Stage-1 and Stage-2
// implementations; both can be swapped while the engine is idle.
func NewEngine(coordinator RunCoordinator, files *filestore.Store,
	records RecordStore, extractor extract.TextExtractor,
	parser llm.StructuredExtractor) *Engine {
	return &Engine{
		coordinator: coordinator,
		files:       files,
		records:     records,
		extractor:   extractor,
		parser:      parser,
	}
}

// Claims the next pending batch and launches the worker pools against it.
// Returns as soon as the pools are running; processing continues in the
// background. Fails with AlreadyRunningError while a batch is active.
func (e *Engine) Start(conf RunConfig) error {
	if err := conf.validate(); err != nil {
		return err
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.running {
		return &AlreadyRunningError{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	batchId, docs, err := e.coordinator.BeginRun(ctx)
	if err != nil {
		cancel()
		return err
	}

	e.running = true
	e.stopRequested = false
	e.cancel = cancel
	e.done = make(chan struct{})
	e.batchId = batchId
	e.stats.reset(len(docs))

	slog.Info(fmt.Sprintf("Batch %s: starting %d document(s) (%d OCR / %d LLM workers, queue %d)",
		batchId, len(docs), conf.OcrWorkers, conf.LlmWorkers, conf.QueueSize))
	go e.run(ctx, conf, batchId, docs, e.extractor, e.parser)
	return nil
}

// Requests cooperative cancellation and waits for the pools to wind down.
// Every document not yet in processed/ is routed to failed/ so the batch
// can be retried. Returns the number of documents that did not succeed;
// calling Stop while idle is a no-op returning 0.
func (e *Engine) Stop() int {
	e.mutex.Lock()
	if !e.running {
		e.mutex.Unlock()
		return 0
	}
	e.stopRequested = true
	cancel := e.cancel
	done := e.done
	e.mutex.Unlock()

	cancel()
	<-done

	snapshot := e.stats.read()
	return snapshot.Total - snapshot.Succeeded
}

// Returns a consistent snapshot of the live counters. Safe to poll from
// any goroutine at any rate.
func (e *Engine) Stats() Snapshot {
	return e.stats.read()
}

// Swaps the Stage-1 extractor between the embedded-text and OCR
// implementations. Rejected with BusyError while a batch is active.
func (e *Engine) ToggleEmbeddedOcr(enabled bool) error {
	mode := "ocr"
	if enabled {
		mode = "embedded"
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.running {
		return &BusyError{Op: "toggle extractor"}
	}
	extractor, err := extract.NewExtractor(mode)
	if err != nil {
		return err
	}
	e.extractor = extractor
	slog.Info(fmt.Sprintf("Text extractor switched to %s mode", mode))
	return nil
}

//-----------
// Internals
//-----------

// a mutex-guarded FIFO cursor over the run's work list; dispatch order is
// the filesystem enumeration order of the claim
type workCursor struct {
	mutex sync.Mutex
	docs  []filestore.Admission
	next  int
}

func (c *workCursor) take() (filestore.Admission, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.next >= len(c.docs) {
		return filestore.Admission{}, false
	}
	doc := c.docs[c.next]
	c.next++
	return doc, true
}

func (e *Engine) run(ctx context.Context, conf RunConfig, batchId string,
	docs []filestore.Admission, extractor extract.TextExtractor,
	parser llm.StructuredExtractor) {
	results := make(chan StageResult, conf.QueueSize)
	cursor := &workCursor{docs: docs}

	// last Stage-1 worker out closes the channel
	ocrRemaining := int32(conf.OcrWorkers)
	for i := 0; i < conf.OcrWorkers; i++ {
		go func() {
			e.ocrWorker(ctx, cursor, extractor, results)
			if atomic.AddInt32(&ocrRemaining, -1) == 0 {
				close(results)
			}
		}()
	}

	var llmPool sync.WaitGroup
	for i := 0; i < conf.LlmWorkers; i++ {
		llmPool.Add(1)
		go func() {
			defer llmPool.Done()
			e.llmWorker(ctx, conf, parser, results)
		}()
	}

	llmPool.Wait()
	e.finishRun(batchId)
}

func (e *Engine) ocrWorker(ctx context.Context, cursor *workCursor,
	extractor extract.TextExtractor, results chan<- StageResult) {
	for {
		doc, ok := cursor.take()
		if !ok {
			return
		}
		if ctx.Err() != nil {
			e.cancelDocument(doc.DocumentId, doc.Path)
			continue
		}

		e.stats.update(func(s *Snapshot) {
			s.OcrActive++
			s.CurrentFile = filepath.Base(doc.Path)
		})
		result, err := extractor.Extract(ctx, doc.Path)
		e.stats.update(func(s *Snapshot) { s.OcrActive-- })

		if ctx.Err() != nil {
			e.cancelDocument(doc.DocumentId, doc.Path)
			continue
		}
		if err != nil {
			e.failDocument(doc.DocumentId, doc.Path, classifyError(err), err)
			continue
		}

		// the send blocks while the queue is full, throttling this worker
		// until Stage 2 catches up
		select {
		case results <- StageResult{
			DocumentId:   doc.DocumentId,
			BatchId:      e.batchId,
			SourcePath:   doc.Path,
			Text:         result.Text,
			OcrElapsed:   result.Elapsed,
			OcrPageCount: result.PageCount,
		}:
			e.stats.update(func(s *Snapshot) { s.InQueue++ })
		case <-ctx.Done():
			e.cancelDocument(doc.DocumentId, doc.Path)
		}
	}
}

func (e *Engine) llmWorker(ctx context.Context, conf RunConfig,
	parser llm.StructuredExtractor, results <-chan StageResult) {
	// after cancellation the loop keeps draining buffered items, marking
	// each cancelled, until Stage 1 closes the channel
	for sr := range results {
		e.stats.update(func(s *Snapshot) { s.InQueue-- })
		if ctx.Err() != nil {
			e.cancelDocument(sr.DocumentId, sr.SourcePath)
			continue
		}

		e.stats.update(func(s *Snapshot) {
			s.LlmActive++
			s.CurrentFile = filepath.Base(sr.SourcePath)
		})
		e.processResult(ctx, conf, parser, sr)
		e.stats.update(func(s *Snapshot) { s.LlmActive-- })
	}
}

func (e *Engine) processResult(ctx context.Context, conf RunConfig,
	parser llm.StructuredExtractor, sr StageResult) {
	llmCtx, release := context.WithTimeout(ctx, conf.LlmTimeout)
	record, err := parser.Parse(llmCtx, sr.Text)
	release()
	if err != nil {
		if ctx.Err() != nil {
			e.cancelDocument(sr.DocumentId, sr.SourcePath)
			return
		}
		e.failDocument(sr.DocumentId, sr.SourcePath, classifyError(err), err)
		return
	}

	record.DocumentId = sr.DocumentId
	record.BatchId = sr.BatchId
	cleaned, err := validate.Clean(record)
	if err != nil {
		e.failDocument(sr.DocumentId, sr.SourcePath, classifyError(err), err)
		return
	}

	if err := e.records.SaveRecord(ctx, cleaned, sr.OcrElapsed, sr.OcrPageCount); err != nil {
		if ctx.Err() != nil {
			e.cancelDocument(sr.DocumentId, sr.SourcePath)
			return
		}
		e.failDocument(sr.DocumentId, sr.SourcePath, classifyError(err), err)
		return
	}

	if err := e.files.Route(sr.SourcePath, filestore.Succeeded); err != nil {
		e.failDocument(sr.DocumentId, sr.SourcePath, KindIo, err)
		return
	}

	e.stats.update(func(s *Snapshot) {
		s.Succeeded++
		s.Processed++
	})
	slog.Debug(fmt.Sprintf("Document %s: processed (%d page(s), OCR %d ms)",
		sr.DocumentId, sr.OcrPageCount, sr.OcrElapsed.Milliseconds()))
}

// records a failure and routes the source file to failed/
func (e *Engine) failDocument(documentId, sourcePath string, kind ErrorKind, cause error) {
	slog.Error(fmt.Sprintf("Document %s: %s: %s", documentId, kind, cause.Error()))
	err := e.records.RecordFailure(context.Background(), store.Failure{
		BatchId:    e.batchId,
		DocumentId: documentId,
		Kind:       string(kind),
		Message:    cause.Error(),
	})
	if err != nil {
		slog.Error(fmt.Sprintf("Document %s: recording failure: %s", documentId, err.Error()))
	}
	if err := e.files.Route(sourcePath, filestore.Failed); err != nil {
		slog.Error(fmt.Sprintf("Document %s: routing to failed: %s", documentId, err.Error()))
	}
	e.stats.update(func(s *Snapshot) {
		s.Failed++
		s.Processed++
	})
}

// routes an unfinished document to failed/ so a retry can pick it up; a
// cancellation is not an error, so no failure row is written
func (e *Engine) cancelDocument(documentId, sourcePath string) {
	if err := e.files.Route(sourcePath, filestore.Cancelled); err != nil {
		slog.Error(fmt.Sprintf("Document %s: routing after cancellation: %s",
			documentId, err.Error()))
	}
	e.stats.update(func(s *Snapshot) {
		s.Cancelled++
		s.Processed++
	})
}

func (e *Engine) finishRun(batchId string) {
	e.mutex.Lock()
	stopped := e.stopRequested
	e.mutex.Unlock()

	status := store.BatchCompleted
	if stopped {
		status = store.BatchCancelled
	}
	snapshot := e.stats.read()
	err := e.coordinator.EndRun(context.Background(), batchId, status,
		snapshot.Succeeded, snapshot.Failed, snapshot.Cancelled)
	if err != nil {
		slog.Error(fmt.Sprintf("Batch %s: recording terminal status: %s",
			batchId, err.Error()))
	}
	slog.Info(fmt.Sprintf("Batch %s: %s (%d succeeded, %d failed, %d cancelled of %d)",
		batchId, status, snapshot.Succeeded, snapshot.Failed, snapshot.Cancelled,
		snapshot.Total))

	e.stats.update(func(s *Snapshot) { s.IsRunning = false })
	e.mutex.Lock()
	e.running = false
	done := e.done
	e.mutex.Unlock()
	close(done)
}
