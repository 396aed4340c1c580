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

// Package batch tracks batch identity and lifecycle. A Coordinator admits
// uploaded files into the inbox under a fresh batch id, hands the oldest
// pending batch to the pipeline when a run starts, records terminal status,
// and re-admits failed documents for retry.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/propregistry/deedpipe/filestore"
	"github.com/propregistry/deedpipe/store"
)

// A Coordinator mediates between the file store and the repository for
// everything batch-shaped.
type Coordinator struct {
	files *filestore.Store
	repo  *store.Repository
}

func NewCoordinator(files *filestore.Store, repo *store.Repository) *Coordinator {
	return &Coordinator{files: files, repo: repo}
}

// batch ids are sortable by creation time and globally unique
func newBatchId() string {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	return fmt.Sprintf("BATCH-%s-%s", stamp, uuid.NewString()[:8])
}

// Admits a set of uploaded files as a new pending batch and returns its id.
// The batch name, used for display only, is the first document's stem.
func (c *Coordinator) NewBatch(ctx context.Context, sourcePaths []string) (string, error) {
	if len(sourcePaths) == 0 {
		return "", &EmptyBatchError{}
	}

	batchId := newBatchId()
	batchName := filestore.DocumentId(sourcePaths[0])
	if err := c.repo.CreateBatch(ctx, batchId, batchName, len(sourcePaths)); err != nil {
		return "", err
	}
	admissions, err := c.files.Admit(batchId, sourcePaths)
	if err != nil {
		return "", err
	}

	slog.Info(fmt.Sprintf("Batch %s: admitted %d document(s)", batchId, len(admissions)))
	return batchId, nil
}

// Claims the oldest pending batch that still has documents in the inbox,
// marks it running, and returns its id and admitted documents. Pending
// batches whose inbox turns out empty are closed out on the way past.
// Returns a store.NotFoundError when no batch is waiting.
func (c *Coordinator) BeginRun(ctx context.Context) (string, []filestore.Admission, error) {
	for {
		pending, err := c.repo.OldestPendingBatch(ctx)
		if err != nil {
			return "", nil, err
		}
		if err := c.repo.UpdateBatchStatus(ctx, pending.Id, store.BatchRunning); err != nil {
			return "", nil, err
		}

		paths, err := c.files.Claim(pending.Id)
		if err != nil {
			return "", nil, err
		}
		if len(paths) == 0 {
			// nothing to do for this batch; close it and keep looking
			slog.Info(fmt.Sprintf("Batch %s: empty inbox, completing", pending.Id))
			if err := c.repo.UpdateBatchStatus(ctx, pending.Id, store.BatchCompleted); err != nil {
				return "", nil, err
			}
			continue
		}

		docs := make([]filestore.Admission, len(paths))
		for i, path := range paths {
			docs[i] = filestore.Admission{
				DocumentId: filestore.DocumentId(path),
				Path:       path,
			}
		}
		return pending.Id, docs, nil
	}
}

// Records a run's terminal status and final counts.
func (c *Coordinator) EndRun(ctx context.Context, batchId, status string,
	succeeded, failed, cancelled int) error {
	if err := c.repo.UpdateBatchStatus(ctx, batchId, status); err != nil {
		return err
	}
	return c.repo.RecordBatchCounts(ctx, batchId, succeeded, failed, cancelled)
}

// Moves a batch's failed documents back into the inbox under a new pending
// batch and returns the new id. The original batch keeps its terminal
// status and counts, so progress across retries stays observable.
func (c *Coordinator) RetryBatch(ctx context.Context, batchId string) (string, error) {
	if _, err := c.repo.GetBatch(ctx, batchId); err != nil {
		return "", err
	}
	failedPaths, err := c.files.CollectFailed(batchId)
	if err != nil {
		return "", err
	}
	if len(failedPaths) == 0 {
		return "", &NothingToRetryError{BatchId: batchId}
	}

	newId := newBatchId()
	batchName := filestore.DocumentId(failedPaths[0])
	if err := c.repo.CreateBatch(ctx, newId, batchName, len(failedPaths)); err != nil {
		return "", err
	}
	// Admit strips the old batch prefix, so each document keeps its
	// identity (and its failure history) across retries
	if _, err := c.files.Admit(newId, failedPaths); err != nil {
		return "", err
	}

	slog.Info(fmt.Sprintf("Batch %s: %d failed document(s) re-admitted as %s",
		batchId, len(failedPaths), newId))
	return newId, nil
}

// Returns every batch's persisted state, oldest first.
func (c *Coordinator) ListBatches(ctx context.Context) ([]store.Batch, error) {
	return c.repo.ListBatches(ctx)
}

// Groups the failures on record by batch, for the retry surface.
func (c *Coordinator) FailedByBatch(ctx context.Context) (map[string][]store.Failure, error) {
	failures, err := c.repo.FailuresByBatch(ctx, "")
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]store.Failure)
	for _, failure := range failures {
		grouped[failure.BatchId] = append(grouped[failure.BatchId], failure)
	}
	return grouped, nil
}

// Reports whether an error from BeginRun just means no batch was waiting.
func IsNoPendingBatch(err error) bool {
	var notFound *store.NotFoundError
	return errors.As(err, &notFound)
}
