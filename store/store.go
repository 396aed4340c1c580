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

// Package store persists batches, extracted deed records, and per-document
// failures in a SQLite database. A Repository is safe for concurrent use by
// the pipeline workers; each call takes a connection from a pool for its
// duration.
package store

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/propregistry/deedpipe/deeds"
)

// batch lifecycle states
const (
	BatchPending   = "pending"
	BatchRunning   = "running"
	BatchCompleted = "completed"
	BatchCancelled = "cancelled"
)

// legal batch state transitions (a DAG, so no state ever repeats)
var batchTransitions = map[string][]string{
	BatchRunning:   {BatchPending},
	BatchCompleted: {BatchRunning},
	BatchCancelled: {BatchRunning},
}

// A Batch is one admitted set of documents moving through the pipeline.
type Batch struct {
	Id     string `json:"batch_id"`
	Name   string `json:"batch_name"`
	Status string `json:"status"`

	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`

	CreatedAt           time.Time  `json:"created_at"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	FinishedAt          *time.Time `json:"finished_at,omitempty"`
}

// A Failure records one document that a run could not process.
type Failure struct {
	BatchId    string `json:"batch_id"`
	DocumentId string `json:"document_id"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	// which attempt at this document failed (1 on first admission,
	// incrementing with each retry)
	Attempt  int       `json:"attempt"`
	FailedAt time.Time `json:"failed_at"`
}

// A Repository stores pipeline state in a SQLite database.
type Repository struct {
	pool *sqlitex.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	batch_id              TEXT PRIMARY KEY,
	batch_name            TEXT NOT NULL,
	status                TEXT NOT NULL,
	total                 INTEGER NOT NULL DEFAULT 0,
	succeeded             INTEGER NOT NULL DEFAULT 0,
	failed                INTEGER NOT NULL DEFAULT 0,
	cancelled             INTEGER NOT NULL DEFAULT 0,
	created_at            TEXT NOT NULL,
	processing_started_at TEXT,
	finished_at           TEXT
);

CREATE TABLE IF NOT EXISTS documents (
	document_id         TEXT PRIMARY KEY,
	batch_id            TEXT NOT NULL,
	transaction_date    TEXT,
	registration_office TEXT,
	ocr_elapsed_ms      INTEGER,
	ocr_page_count      INTEGER,
	created_at          TEXT NOT NULL,
	updated_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS properties (
	document_id                 TEXT PRIMARY KEY
	                            REFERENCES documents(document_id) ON DELETE CASCADE,
	schedule_b_area             REAL,
	schedule_c_property_name    TEXT,
	schedule_c_property_address TEXT,
	schedule_c_property_area    REAL,
	paid_in_cash_mode           TEXT,
	pincode                     TEXT,
	state                       TEXT,
	sale_consideration          TEXT,
	stamp_duty_fee              TEXT,
	registration_fee            TEXT,
	total_fee                   TEXT,
	guidance_value              TEXT,
	remarks                     TEXT
);

CREATE TABLE IF NOT EXISTS buyers (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id            TEXT NOT NULL
	                       REFERENCES documents(document_id) ON DELETE CASCADE,
	name                   TEXT,
	gender                 TEXT,
	father_name            TEXT,
	date_of_birth          TEXT,
	aadhaar_number         TEXT,
	pan_card_number        TEXT,
	address                TEXT,
	pincode                TEXT,
	state                  TEXT,
	phone_number           TEXT,
	secondary_phone_number TEXT,
	email                  TEXT,
	property_share         TEXT
);

CREATE TABLE IF NOT EXISTS sellers (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id            TEXT NOT NULL
	                       REFERENCES documents(document_id) ON DELETE CASCADE,
	name                   TEXT,
	gender                 TEXT,
	father_name            TEXT,
	date_of_birth          TEXT,
	aadhaar_number         TEXT,
	pan_card_number        TEXT,
	address                TEXT,
	pincode                TEXT,
	state                  TEXT,
	phone_number           TEXT,
	secondary_phone_number TEXT,
	email                  TEXT,
	property_share         TEXT
);

CREATE TABLE IF NOT EXISTS confirming_parties (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id            TEXT NOT NULL
	                       REFERENCES documents(document_id) ON DELETE CASCADE,
	name                   TEXT,
	gender                 TEXT,
	father_name            TEXT,
	date_of_birth          TEXT,
	aadhaar_number         TEXT,
	pan_card_number        TEXT,
	address                TEXT,
	pincode                TEXT,
	state                  TEXT,
	phone_number           TEXT,
	secondary_phone_number TEXT,
	email                  TEXT,
	property_share         TEXT
);

CREATE TABLE IF NOT EXISTS failures (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id    TEXT NOT NULL,
	document_id TEXT NOT NULL,
	kind        TEXT NOT NULL,
	message     TEXT,
	attempt     INTEGER NOT NULL DEFAULT 1,
	failed_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_batch ON documents(batch_id);
CREATE INDEX IF NOT EXISTS idx_failures_batch ON failures(batch_id);
`

// Opens (creating if necessary) the repository database at the given path.
func Open(path string) (*Repository, error) {
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		Flags:    sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenWAL,
		PoolSize: 8,
	})
	if err != nil {
		return nil, &DatabaseError{Op: "open", Message: err.Error()}
	}

	repo := &Repository{pool: pool}
	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, &DatabaseError{Op: "open", Message: err.Error()}
	}
	defer pool.Put(conn)
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		pool.Close()
		return nil, &DatabaseError{Op: "migrate", Message: err.Error()}
	}
	return repo, nil
}

func (r *Repository) Close() error {
	return r.pool.Close()
}

// Inserts a batch in the pending state. The id must be new.
func (r *Repository) CreateBatch(ctx context.Context, id, name string, total int) error {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return &DatabaseError{Op: "create batch", Message: err.Error()}
	}
	defer r.pool.Put(conn)

	now := time.Now().UTC().Format(time.RFC3339)
	err = sqlitex.Execute(conn,
		`INSERT INTO batches (batch_id, batch_name, status, total, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{id, name, BatchPending, total, now}})
	if err != nil {
		return &DatabaseError{Op: "create batch", Message: err.Error()}
	}
	return nil
}

// Advances a batch to the given state, enforcing the lifecycle: pending ->
// running -> completed or cancelled. An illegal transition (including a
// repeat of the current state) returns a StateTransitionError.
func (r *Repository) UpdateBatchStatus(ctx context.Context, id, status string) error {
	priors, known := batchTransitions[status]
	if !known {
		return &StateTransitionError{BatchId: id, Status: status,
			Message: fmt.Sprintf("unknown status: %s", status)}
	}

	conn, err := r.pool.Take(ctx)
	if err != nil {
		return &DatabaseError{Op: "update batch", Message: err.Error()}
	}
	defer r.pool.Put(conn)

	// entering the running state stamps processing_started_at, and the
	// terminal states stamp finished_at
	stampColumn := "finished_at"
	if status == BatchRunning {
		stampColumn = "processing_started_at"
	}

	// the prior-state guard makes the transition atomic even with
	// concurrent callers
	args := []any{status, time.Now().UTC().Format(time.RFC3339), id}
	placeholders := ""
	for _, prior := range priors {
		if placeholders != "" {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, prior)
	}
	err = sqlitex.Execute(conn,
		`UPDATE batches SET status = ?, `+stampColumn+` = ?
		 WHERE batch_id = ? AND status IN (`+placeholders+`)`,
		&sqlitex.ExecOptions{Args: args})
	if err != nil {
		return &DatabaseError{Op: "update batch", Message: err.Error()}
	}
	if conn.Changes() == 0 {
		return &StateTransitionError{BatchId: id, Status: status,
			Message: "batch is missing or not in a prior state"}
	}
	return nil
}

// Fetches a single batch by id.
func (r *Repository) GetBatch(ctx context.Context, id string) (Batch, error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return Batch{}, &DatabaseError{Op: "get batch", Message: err.Error()}
	}
	defer r.pool.Put(conn)

	var batch Batch
	found := false
	err = sqlitex.Execute(conn,
		`SELECT `+batchColumns+` FROM batches WHERE batch_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				batch = scanBatch(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return Batch{}, &DatabaseError{Op: "get batch", Message: err.Error()}
	}
	if !found {
		return Batch{}, &NotFoundError{Kind: "batch", Id: id}
	}
	return batch, nil
}

// Lists all batches, oldest first.
func (r *Repository) ListBatches(ctx context.Context) ([]Batch, error) {
	return r.listBatches(ctx, "", nil)
}

// Returns the oldest batch still in the pending state, or a NotFoundError
// when none is waiting.
func (r *Repository) OldestPendingBatch(ctx context.Context) (Batch, error) {
	batches, err := r.listBatches(ctx, "WHERE status = ?", []any{BatchPending})
	if err != nil {
		return Batch{}, err
	}
	if len(batches) == 0 {
		return Batch{}, &NotFoundError{Kind: "pending batch", Id: ""}
	}
	return batches[0], nil
}

func (r *Repository) listBatches(ctx context.Context, where string, args []any) ([]Batch, error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return nil, &DatabaseError{Op: "list batches", Message: err.Error()}
	}
	defer r.pool.Put(conn)

	var batches []Batch
	err = sqlitex.Execute(conn,
		`SELECT `+batchColumns+` FROM batches `+where+` ORDER BY created_at, batch_id`,
		&sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				batches = append(batches, scanBatch(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, &DatabaseError{Op: "list batches", Message: err.Error()}
	}
	return batches, nil
}

const batchColumns = `batch_id, batch_name, status, total, succeeded, failed,
	cancelled, created_at, processing_started_at, finished_at`

func scanBatch(stmt *sqlite.Stmt) Batch {
	created, _ := time.Parse(time.RFC3339, stmt.ColumnText(7))
	return Batch{
		Id:                  stmt.ColumnText(0),
		Name:                stmt.ColumnText(1),
		Status:              stmt.ColumnText(2),
		Total:               int(stmt.ColumnInt64(3)),
		Succeeded:           int(stmt.ColumnInt64(4)),
		Failed:              int(stmt.ColumnInt64(5)),
		Cancelled:           int(stmt.ColumnInt64(6)),
		CreatedAt:           created,
		ProcessingStartedAt: columnTime(stmt, 8),
		FinishedAt:          columnTime(stmt, 9),
	}
}

func columnTime(stmt *sqlite.Stmt, col int) *time.Time {
	if stmt.ColumnType(col) == sqlite.TypeNull {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, stmt.ColumnText(col))
	if err != nil {
		return nil
	}
	return &parsed
}

// Writes a batch's final outcome counters. Counts only grow, so the guard
// keeps a late writer from shrinking them.
func (r *Repository) RecordBatchCounts(ctx context.Context, id string,
	succeeded, failed, cancelled int) error {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return &DatabaseError{Op: "record batch counts", Message: err.Error()}
	}
	defer r.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE batches SET succeeded = MAX(succeeded, ?),
		   failed = MAX(failed, ?), cancelled = MAX(cancelled, ?)
		 WHERE batch_id = ?`,
		&sqlitex.ExecOptions{Args: []any{succeeded, failed, cancelled, id}})
	if err != nil {
		return &DatabaseError{Op: "record batch counts", Message: err.Error()}
	}
	return nil
}

// Writes a cleaned record and its OCR metadata in a single transaction.
// Re-saving a document replaces its property and party rows, so retried
// documents never accumulate duplicates.
func (r *Repository) SaveRecord(ctx context.Context, record deeds.Record,
	ocrElapsed time.Duration, ocrPageCount int) (err error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return &DatabaseError{Op: "save record", Message: err.Error()}
	}
	defer r.pool.Put(conn)

	endFn := sqlitex.Transaction(conn)
	defer endFn(&err)

	now := time.Now().UTC().Format(time.RFC3339)
	err = sqlitex.Execute(conn,
		`INSERT INTO documents (document_id, batch_id, transaction_date,
		   registration_office, ocr_elapsed_ms, ocr_page_count, created_at,
		   updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET
		   batch_id = excluded.batch_id,
		   transaction_date = excluded.transaction_date,
		   registration_office = excluded.registration_office,
		   ocr_elapsed_ms = excluded.ocr_elapsed_ms,
		   ocr_page_count = excluded.ocr_page_count,
		   updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{Args: []any{
			record.DocumentId, record.BatchId,
			nullable(record.TransactionDate), nullable(record.RegistrationOffice),
			ocrElapsed.Milliseconds(), ocrPageCount, now, now,
		}})
	if err != nil {
		return &DatabaseError{Op: "save record", Message: err.Error()}
	}

	// delete-then-insert keeps the children consistent with this save
	for _, table := range []string{"properties", "buyers", "sellers", "confirming_parties"} {
		err = sqlitex.Execute(conn,
			"DELETE FROM "+table+" WHERE document_id = ?",
			&sqlitex.ExecOptions{Args: []any{record.DocumentId}})
		if err != nil {
			return &DatabaseError{Op: "save record", Message: err.Error()}
		}
	}

	p := record.Property
	err = sqlitex.Execute(conn,
		`INSERT INTO properties (document_id, schedule_b_area,
		   schedule_c_property_name, schedule_c_property_address,
		   schedule_c_property_area, paid_in_cash_mode, pincode, state,
		   sale_consideration, stamp_duty_fee, registration_fee, total_fee,
		   guidance_value, remarks)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			record.DocumentId, nullableFloat(p.ScheduleBArea),
			nullable(p.ScheduleCPropertyName), nullable(p.ScheduleCPropertyAddress),
			nullableFloat(p.ScheduleCPropertyArea), nullable(p.PaidInCashMode),
			nullable(p.Pincode), nullable(p.State),
			nullable(p.SaleConsideration), nullable(p.StampDutyFee),
			nullable(p.RegistrationFee), nullable(p.TotalFee),
			nullable(p.GuidanceValue), nullable(p.Remarks),
		}})
	if err != nil {
		return &DatabaseError{Op: "save record", Message: err.Error()}
	}

	for table, parties := range map[string][]deeds.Party{
		"buyers":             record.Buyers,
		"sellers":            record.Sellers,
		"confirming_parties": record.ConfirmingParties,
	} {
		for _, party := range parties {
			if err = insertParty(conn, table, record.DocumentId, party); err != nil {
				return err
			}
		}
	}
	return nil
}

func insertParty(conn *sqlite.Conn, table, documentId string, p deeds.Party) error {
	err := sqlitex.Execute(conn,
		`INSERT INTO `+table+` (document_id, name, gender, father_name,
		   date_of_birth, aadhaar_number, pan_card_number, address, pincode,
		   state, phone_number, secondary_phone_number, email, property_share)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			documentId, nullable(p.Name), nullable(p.Gender),
			nullable(p.FatherName), nullable(p.DateOfBirth),
			nullable(p.AadhaarNumber), nullable(p.PanCardNumber),
			nullable(p.Address), nullable(p.Pincode), nullable(p.State),
			nullable(p.PhoneNumber), nullable(p.SecondaryPhoneNumber),
			nullable(p.Email), nullable(p.PropertyShare),
		}})
	if err != nil {
		return &DatabaseError{Op: "save record", Message: err.Error()}
	}
	return nil
}

// Reads a saved record back out of the repository.
func (r *Repository) GetRecord(ctx context.Context, documentId string) (deeds.Record, error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return deeds.Record{}, &DatabaseError{Op: "get record", Message: err.Error()}
	}
	defer r.pool.Put(conn)

	var record deeds.Record
	found := false
	err = sqlitex.Execute(conn,
		`SELECT document_id, batch_id, transaction_date, registration_office
		 FROM documents WHERE document_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{documentId},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record.DocumentId = stmt.ColumnText(0)
				record.BatchId = stmt.ColumnText(1)
				record.TransactionDate = stmt.ColumnText(2)
				record.RegistrationOffice = stmt.ColumnText(3)
				found = true
				return nil
			},
		})
	if err != nil {
		return deeds.Record{}, &DatabaseError{Op: "get record", Message: err.Error()}
	}
	if !found {
		return deeds.Record{}, &NotFoundError{Kind: "document", Id: documentId}
	}

	err = sqlitex.Execute(conn,
		`SELECT schedule_b_area, schedule_c_property_name,
		   schedule_c_property_address, schedule_c_property_area,
		   paid_in_cash_mode, pincode, state, sale_consideration,
		   stamp_duty_fee, registration_fee, total_fee, guidance_value, remarks
		 FROM properties WHERE document_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{documentId},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record.Property = deeds.Property{
					ScheduleBArea:            columnFloat(stmt, 0),
					ScheduleCPropertyName:    stmt.ColumnText(1),
					ScheduleCPropertyAddress: stmt.ColumnText(2),
					ScheduleCPropertyArea:    columnFloat(stmt, 3),
					PaidInCashMode:           stmt.ColumnText(4),
					Pincode:                  stmt.ColumnText(5),
					State:                    stmt.ColumnText(6),
					SaleConsideration:        stmt.ColumnText(7),
					StampDutyFee:             stmt.ColumnText(8),
					RegistrationFee:          stmt.ColumnText(9),
					TotalFee:                 stmt.ColumnText(10),
					GuidanceValue:            stmt.ColumnText(11),
					Remarks:                  stmt.ColumnText(12),
				}
				return nil
			},
		})
	if err != nil {
		return deeds.Record{}, &DatabaseError{Op: "get record", Message: err.Error()}
	}

	for table, target := range map[string]*[]deeds.Party{
		"buyers":             &record.Buyers,
		"sellers":            &record.Sellers,
		"confirming_parties": &record.ConfirmingParties,
	} {
		err = sqlitex.Execute(conn,
			`SELECT name, gender, father_name, date_of_birth, aadhaar_number,
			   pan_card_number, address, pincode, state, phone_number,
			   secondary_phone_number, email, property_share
			 FROM `+table+` WHERE document_id = ? ORDER BY id`,
			&sqlitex.ExecOptions{
				Args: []any{documentId},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					*target = append(*target, deeds.Party{
						Name:                 stmt.ColumnText(0),
						Gender:               stmt.ColumnText(1),
						FatherName:           stmt.ColumnText(2),
						DateOfBirth:          stmt.ColumnText(3),
						AadhaarNumber:        stmt.ColumnText(4),
						PanCardNumber:        stmt.ColumnText(5),
						Address:              stmt.ColumnText(6),
						Pincode:              stmt.ColumnText(7),
						State:                stmt.ColumnText(8),
						PhoneNumber:          stmt.ColumnText(9),
						SecondaryPhoneNumber: stmt.ColumnText(10),
						Email:                stmt.ColumnText(11),
						PropertyShare:        stmt.ColumnText(12),
					})
					return nil
				},
			})
		if err != nil {
			return deeds.Record{}, &DatabaseError{Op: "get record", Message: err.Error()}
		}
	}
	return record, nil
}

// Records a document failure. A document may fail more than once across
// retries; each failure gets its own row, numbered with the attempt that
// produced it (computed from the document's prior failures when the caller
// leaves Attempt at zero).
func (r *Repository) RecordFailure(ctx context.Context, failure Failure) error {
	attempt := failure.Attempt
	if attempt == 0 {
		previous, err := r.FailureCount(ctx, failure.DocumentId)
		if err != nil {
			return err
		}
		attempt = previous + 1
	}

	conn, err := r.pool.Take(ctx)
	if err != nil {
		return &DatabaseError{Op: "record failure", Message: err.Error()}
	}
	defer r.pool.Put(conn)

	failedAt := failure.FailedAt
	if failedAt.IsZero() {
		failedAt = time.Now().UTC()
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO failures (batch_id, document_id, kind, message, attempt,
		   failed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			failure.BatchId, failure.DocumentId, failure.Kind,
			nullable(failure.Message), attempt, failedAt.Format(time.RFC3339),
		}})
	if err != nil {
		return &DatabaseError{Op: "record failure", Message: err.Error()}
	}
	return nil
}

// Lists the failures recorded for a batch ("" for all batches), most
// recent last.
func (r *Repository) FailuresByBatch(ctx context.Context, batchId string) ([]Failure, error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return nil, &DatabaseError{Op: "list failures", Message: err.Error()}
	}
	defer r.pool.Put(conn)

	query := `SELECT batch_id, document_id, kind, message, attempt, failed_at
	          FROM failures`
	var args []any
	if batchId != "" {
		query += " WHERE batch_id = ?"
		args = append(args, batchId)
	}
	query += " ORDER BY id"

	var failures []Failure
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			failedAt, _ := time.Parse(time.RFC3339, stmt.ColumnText(5))
			failures = append(failures, Failure{
				BatchId:    stmt.ColumnText(0),
				DocumentId: stmt.ColumnText(1),
				Kind:       stmt.ColumnText(2),
				Message:    stmt.ColumnText(3),
				Attempt:    int(stmt.ColumnInt64(4)),
				FailedAt:   failedAt,
			})
			return nil
		},
	})
	if err != nil {
		return nil, &DatabaseError{Op: "list failures", Message: err.Error()}
	}
	return failures, nil
}

// Counts the failures recorded for one document, across all batches it has
// appeared in. RecordFailure numbers a new failure as this count plus one.
func (r *Repository) FailureCount(ctx context.Context, documentId string) (int, error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return 0, &DatabaseError{Op: "count failures", Message: err.Error()}
	}
	defer r.pool.Put(conn)

	count := 0
	err = sqlitex.Execute(conn,
		`SELECT COUNT(*) FROM failures WHERE document_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{documentId},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = int(stmt.ColumnInt64(0))
				return nil
			},
		})
	if err != nil {
		return 0, &DatabaseError{Op: "count failures", Message: err.Error()}
	}
	return count, nil
}

// empty strings persist as NULL
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func columnFloat(stmt *sqlite.Stmt, col int) *float64 {
	if stmt.ColumnType(col) == sqlite.TypeNull {
		return nil
	}
	value := stmt.ColumnFloat(col)
	return &value
}
