package services

import (
	"context"

	"github.com/propregistry/deedpipe/store"
)

// this type encodes a JSON object for responding to root queries
type ServiceInfoResponse struct {
	Name          string `json:"name" example:"deedpipe" doc:"The name of the service API"`
	Version       string `json:"version" example:"1.0.0" doc:"The version string (major.minor.patch)"`
	Uptime        int    `json:"uptime" example:"345600" doc:"The time the service has been up (seconds)"`
	Documentation string `json:"documentation" example:"/docs" doc:"The OpenAPI documentation endpoint"`
}

// a request admitting uploaded files as a new batch (POST)
type BatchRequest struct {
	// absolute paths of uploaded PDF files awaiting admission
	SourcePaths []string `json:"source_paths" doc:"absolute paths of uploaded PDF files to admit"`
}

// a response naming a batch (POST)
type BatchCreatedResponse struct {
	BatchId string `json:"batch_id" example:"BATCH-20250815T101500Z-1a2b3c4d" doc:"the new batch's identifier"`
}

// a response for a pipeline stop request (POST)
type StopResponse struct {
	// number of documents that had not succeeded when the run wound down
	Stopped int `json:"stopped"`
}

// a response for an extractor toggle request (POST)
type ExtractorResponse struct {
	// the text extraction mode now in effect
	Mode string `json:"mode" example:"embedded"`
}

// a response grouping recorded failures by batch (GET)
type FailuresResponse struct {
	Failures map[string][]store.Failure `json:"failures" doc:"recorded document failures, grouped by batch id"`
}

// DeedService defines the interface for the deed processing service.
type DeedService interface {
	// Starts the service on the selected port, returning an error that indicates
	// success or failure.
	Start(port int) error
	// Gracefully shuts down the service without interrupting active connections.
	Shutdown(ctx context.Context) error
	// Closes down the service, freeing all resources.
	Close()
}
