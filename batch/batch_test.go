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

package batch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/propregistry/deedpipe/filestore"
	"github.com/propregistry/deedpipe/store"
)

// a temporary directory holding test file stores and databases
var TESTING_DIR string

func setup() {
	var err error
	TESTING_DIR, err = os.MkdirTemp(os.TempDir(), "deedpipe-batch-tests-")
	if err != nil {
		log.Panicf("Couldn't create testing directory: %s", err)
	}
}

func breakdown() {
	if TESTING_DIR != "" {
		os.RemoveAll(TESTING_DIR)
	}
}

func TestMain(m *testing.M) {
	setup()
	status := m.Run()
	breakdown()
	os.Exit(status)
}

type fixture struct {
	coordinator *Coordinator
	files       *filestore.Store
	repo        *store.Repository
	staging     string
}

func newFixture(t *testing.T) fixture {
	dataDir, err := os.MkdirTemp(TESTING_DIR, "data-")
	assert.Nil(t, err)
	files, err := filestore.NewStore(dataDir)
	assert.Nil(t, err)
	repo, err := store.Open(filepath.Join(dataDir, "deeds.db"))
	assert.Nil(t, err)
	t.Cleanup(func() { repo.Close() })

	staging, err := os.MkdirTemp(TESTING_DIR, "staging-")
	assert.Nil(t, err)
	return fixture{
		coordinator: NewCoordinator(files, repo),
		files:       files,
		repo:        repo,
		staging:     staging,
	}
}

func (f fixture) stage(t *testing.T, names ...string) []string {
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(f.staging, name)
		assert.Nil(t, os.WriteFile(paths[i], []byte("%PDF-1.4 "+name), 0644))
	}
	return paths
}

func TestNewBatchAdmitsFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batchId, err := f.coordinator.NewBatch(ctx, f.stage(t, "deed-a.pdf", "deed-b.pdf"))
	assert.Nil(t, err)
	assert.True(t, strings.HasPrefix(batchId, "BATCH-"))

	created, err := f.repo.GetBatch(ctx, batchId)
	assert.Nil(t, err)
	assert.Equal(t, store.BatchPending, created.Status)
	assert.Equal(t, "deed-a", created.Name)
	assert.Equal(t, 2, created.Total)

	claimed, err := f.files.Claim(batchId)
	assert.Nil(t, err)
	assert.Len(t, claimed, 2)
}

func TestNewBatchRejectsEmpty(t *testing.T) {
	f := newFixture(t)
	_, err := f.coordinator.NewBatch(context.Background(), nil)
	assert.NotNil(t, err)
	_, isEmpty := err.(*EmptyBatchError)
	assert.True(t, isEmpty)
}

func TestBeginRunClaimsPendingBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batchId, err := f.coordinator.NewBatch(ctx, f.stage(t, "deed-a.pdf"))
	assert.Nil(t, err)

	claimedId, docs, err := f.coordinator.BeginRun(ctx)
	assert.Nil(t, err)
	assert.Equal(t, batchId, claimedId)
	assert.Len(t, docs, 1)
	assert.Equal(t, "deed-a", docs[0].DocumentId)

	running, err := f.repo.GetBatch(ctx, batchId)
	assert.Nil(t, err)
	assert.Equal(t, store.BatchRunning, running.Status)

	// the claimed batch is no longer pending, so a second run finds nothing
	_, _, err = f.coordinator.BeginRun(ctx)
	assert.NotNil(t, err)
	assert.True(t, IsNoPendingBatch(err))
}

func TestBeginRunCompletesEmptyBatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// a pending batch whose inbox files have vanished
	assert.Nil(t, f.repo.CreateBatch(ctx, "BATCH-GHOST", "ghost", 0))

	_, _, err := f.coordinator.BeginRun(ctx)
	assert.NotNil(t, err)
	assert.True(t, IsNoPendingBatch(err))

	ghost, err := f.repo.GetBatch(ctx, "BATCH-GHOST")
	assert.Nil(t, err)
	assert.Equal(t, store.BatchCompleted, ghost.Status)
}

func TestEndRunRecordsStatusAndCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batchId, err := f.coordinator.NewBatch(ctx, f.stage(t, "deed-a.pdf", "deed-b.pdf"))
	assert.Nil(t, err)
	_, _, err = f.coordinator.BeginRun(ctx)
	assert.Nil(t, err)

	assert.Nil(t, f.coordinator.EndRun(ctx, batchId, store.BatchCompleted, 1, 1, 0))

	finished, err := f.repo.GetBatch(ctx, batchId)
	assert.Nil(t, err)
	assert.Equal(t, store.BatchCompleted, finished.Status)
	assert.Equal(t, 1, finished.Succeeded)
	assert.Equal(t, 1, finished.Failed)
	assert.NotNil(t, finished.FinishedAt)
}

func TestRetryBatchReadmitsFailedDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batchId, err := f.coordinator.NewBatch(ctx, f.stage(t, "deed-a.pdf"))
	assert.Nil(t, err)
	claimedId, docs, err := f.coordinator.BeginRun(ctx)
	assert.Nil(t, err)
	assert.Equal(t, batchId, claimedId)

	// the document fails and the run ends
	assert.Nil(t, f.files.Route(docs[0].Path, filestore.Failed))
	assert.Nil(t, f.coordinator.EndRun(ctx, batchId, store.BatchCompleted, 0, 1, 0))

	newId, err := f.coordinator.RetryBatch(ctx, batchId)
	assert.Nil(t, err)
	assert.NotEqual(t, batchId, newId)

	// the document is back in the inbox under the new batch, keeping its id
	claimed, err := f.files.Claim(newId)
	assert.Nil(t, err)
	assert.Len(t, claimed, 1)
	assert.Equal(t, "deed-a", filestore.DocumentId(claimed[0]))

	// the original batch's record is untouched
	original, err := f.repo.GetBatch(ctx, batchId)
	assert.Nil(t, err)
	assert.Equal(t, store.BatchCompleted, original.Status)
	assert.Equal(t, 1, original.Failed)
}

func TestRetryBatchWithNothingFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batchId, err := f.coordinator.NewBatch(ctx, f.stage(t, "deed-a.pdf"))
	assert.Nil(t, err)

	_, err = f.coordinator.RetryBatch(ctx, batchId)
	assert.NotNil(t, err)
	_, isNothing := err.(*NothingToRetryError)
	assert.True(t, isNothing)
}
