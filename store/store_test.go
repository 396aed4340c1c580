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

package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/propregistry/deedpipe/deeds"
)

// a temporary directory holding test databases
var TESTING_DIR string

func setup() {
	var err error
	TESTING_DIR, err = os.MkdirTemp(os.TempDir(), "deedpipe-store-tests-")
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

var dbCounter int

func openTestRepository(t *testing.T) *Repository {
	dbCounter++
	repo, err := Open(filepath.Join(TESTING_DIR, fmt.Sprintf("test-%d.db", dbCounter)))
	assert.Nil(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testRecord(documentId, batchId string) deeds.Record {
	area := 1200.0
	return deeds.Record{
		DocumentId:         documentId,
		BatchId:            batchId,
		TransactionDate:    "2024-03-15",
		RegistrationOffice: "Hebbal",
		Property: deeds.Property{
			ScheduleBArea:     &area,
			SaleConsideration: "Rs.28,62,413/-",
			RegistrationFee:   "28,624",
			GuidanceValue:     "Rs.28,62,400/-",
			State:             "Karnataka",
		},
		Buyers: []deeds.Party{
			{Name: "Asha Rao", AadhaarNumber: "123456789012"},
		},
		Sellers: []deeds.Party{
			{Name: "Vikram Shetty", FatherName: "Raghav Shetty", PropertyShare: "100%"},
		},
	}
}

func TestBatchLifecycle(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	assert.Nil(t, repo.CreateBatch(ctx, "BATCH-1", "deed-roll", 3))
	batch, err := repo.GetBatch(ctx, "BATCH-1")
	assert.Nil(t, err)
	assert.Equal(t, BatchPending, batch.Status)
	assert.Equal(t, "deed-roll", batch.Name)
	assert.Equal(t, 3, batch.Total)
	assert.Nil(t, batch.ProcessingStartedAt)
	assert.Nil(t, batch.FinishedAt)

	assert.Nil(t, repo.UpdateBatchStatus(ctx, "BATCH-1", BatchRunning))
	batch, err = repo.GetBatch(ctx, "BATCH-1")
	assert.Nil(t, err)
	assert.NotNil(t, batch.ProcessingStartedAt)
	assert.Nil(t, batch.FinishedAt)

	assert.Nil(t, repo.UpdateBatchStatus(ctx, "BATCH-1", BatchCompleted))
	assert.Nil(t, repo.RecordBatchCounts(ctx, "BATCH-1", 2, 1, 0))

	batch, err = repo.GetBatch(ctx, "BATCH-1")
	assert.Nil(t, err)
	assert.Equal(t, BatchCompleted, batch.Status)
	assert.NotNil(t, batch.FinishedAt)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, 0, batch.Cancelled)
}

func TestBatchStatusNeverRepeats(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	assert.Nil(t, repo.CreateBatch(ctx, "BATCH-1", "deed-roll", 3))
	assert.Nil(t, repo.UpdateBatchStatus(ctx, "BATCH-1", BatchRunning))

	// running -> running is not a transition
	err := repo.UpdateBatchStatus(ctx, "BATCH-1", BatchRunning)
	assert.NotNil(t, err)
	_, isTransition := err.(*StateTransitionError)
	assert.True(t, isTransition)

	// a terminal state is terminal
	assert.Nil(t, repo.UpdateBatchStatus(ctx, "BATCH-1", BatchCancelled))
	err = repo.UpdateBatchStatus(ctx, "BATCH-1", BatchCompleted)
	assert.NotNil(t, err)
}

func TestBatchCannotSkipRunning(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	assert.Nil(t, repo.CreateBatch(ctx, "BATCH-1", "deed-roll", 3))
	err := repo.UpdateBatchStatus(ctx, "BATCH-1", BatchCompleted)
	assert.NotNil(t, err)
	_, isTransition := err.(*StateTransitionError)
	assert.True(t, isTransition)
}

func TestOldestPendingBatch(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	_, err := repo.OldestPendingBatch(ctx)
	assert.NotNil(t, err)
	_, isNotFound := err.(*NotFoundError)
	assert.True(t, isNotFound)

	assert.Nil(t, repo.CreateBatch(ctx, "BATCH-A", "first", 1))
	assert.Nil(t, repo.CreateBatch(ctx, "BATCH-B", "second", 1))

	batch, err := repo.OldestPendingBatch(ctx)
	assert.Nil(t, err)
	assert.Equal(t, "BATCH-A", batch.Id)

	assert.Nil(t, repo.UpdateBatchStatus(ctx, "BATCH-A", BatchRunning))
	batch, err = repo.OldestPendingBatch(ctx)
	assert.Nil(t, err)
	assert.Equal(t, "BATCH-B", batch.Id)
}

func TestSaveAndGetRecord(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	record := testRecord("DEED-001", "BATCH-1")
	assert.Nil(t, repo.SaveRecord(ctx, record, 4200*time.Millisecond, 12))

	saved, err := repo.GetRecord(ctx, "DEED-001")
	assert.Nil(t, err)
	assert.Equal(t, "BATCH-1", saved.BatchId)
	assert.Equal(t, "2024-03-15", saved.TransactionDate)
	assert.Equal(t, "Hebbal", saved.RegistrationOffice)
	assert.NotNil(t, saved.Property.ScheduleBArea)
	assert.Equal(t, 1200.0, *saved.Property.ScheduleBArea)
	assert.Equal(t, "Rs.28,62,413/-", saved.Property.SaleConsideration)
	assert.Len(t, saved.Buyers, 1)
	assert.Equal(t, "Asha Rao", saved.Buyers[0].Name)
	assert.Len(t, saved.Sellers, 1)
	assert.Equal(t, "Raghav Shetty", saved.Sellers[0].FatherName)
	assert.Empty(t, saved.ConfirmingParties)
}

func TestSaveRecordIsIdempotent(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	record := testRecord("DEED-001", "BATCH-1")
	assert.Nil(t, repo.SaveRecord(ctx, record, time.Second, 12))

	// a retried document replaces its rows instead of duplicating them
	record.BatchId = "BATCH-2"
	record.Buyers[0].Name = "Asha R"
	assert.Nil(t, repo.SaveRecord(ctx, record, 2*time.Second, 12))

	saved, err := repo.GetRecord(ctx, "DEED-001")
	assert.Nil(t, err)
	assert.Equal(t, "BATCH-2", saved.BatchId)
	assert.Len(t, saved.Buyers, 1)
	assert.Equal(t, "Asha R", saved.Buyers[0].Name)
	assert.Len(t, saved.Sellers, 1)
}

func TestGetRecordNotFound(t *testing.T) {
	repo := openTestRepository(t)
	_, err := repo.GetRecord(context.Background(), "NOPE")
	assert.NotNil(t, err)
	_, isNotFound := err.(*NotFoundError)
	assert.True(t, isNotFound)
}

func TestFailures(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	assert.Nil(t, repo.RecordFailure(ctx, Failure{
		BatchId: "BATCH-1", DocumentId: "DEED-001",
		Kind: "llm_timeout", Message: "deadline exceeded",
	}))
	assert.Nil(t, repo.RecordFailure(ctx, Failure{
		BatchId: "BATCH-2", DocumentId: "DEED-001",
		Kind: "llm_rate_limited",
	}))
	assert.Nil(t, repo.RecordFailure(ctx, Failure{
		BatchId: "BATCH-2", DocumentId: "DEED-002",
		Kind: "ocr_error", Message: "tesseract exited 1",
	}))

	all, err := repo.FailuresByBatch(ctx, "")
	assert.Nil(t, err)
	assert.Len(t, all, 3)

	batch2, err := repo.FailuresByBatch(ctx, "BATCH-2")
	assert.Nil(t, err)
	assert.Len(t, batch2, 2)
	assert.Equal(t, "llm_rate_limited", batch2[0].Kind)
	assert.False(t, batch2[0].FailedAt.IsZero())

	// attempts number each document's failures independently
	assert.Equal(t, 1, all[0].Attempt)
	assert.Equal(t, 2, batch2[0].Attempt)
	assert.Equal(t, 1, batch2[1].Attempt)

	count, err := repo.FailureCount(ctx, "DEED-001")
	assert.Nil(t, err)
	assert.Equal(t, 2, count)
}
