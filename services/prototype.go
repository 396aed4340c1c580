package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humamux"
	"github.com/gorilla/mux"
	"golang.org/x/net/netutil"

	"github.com/propregistry/deedpipe/batch"
	"github.com/propregistry/deedpipe/config"
	"github.com/propregistry/deedpipe/deeds"
	"github.com/propregistry/deedpipe/pipeline"
	"github.com/propregistry/deedpipe/store"
)

// Version numbers
var majorVersion = 0
var minorVersion = 1
var patchVersion = 0

// Version string
var version = fmt.Sprintf("%d.%d.%d", majorVersion, minorVersion, patchVersion)

// This type implements the DeedService interface, exposing the processing
// pipeline, batch lifecycle, and extracted records over REST.
type prototype struct {
	// name of the service
	Name string
	// service version identifier
	Version string
	// time which the service was started
	StartTime time.Time
	// port on which the service currently runs
	Port int
	// router for REST endpoints
	Router *mux.Router
	// API wrapper
	API huma.API
	// HTTP server.
	Server *http.Server

	// the processing engine and its collaborators
	Engine      *pipeline.Engine
	Coordinator *batch.Coordinator
	Repo        *store.Repository
}

// maps collaborator errors onto HTTP status codes
func apiError(err error) error {
	var (
		notFound       *store.NotFoundError
		alreadyRunning *pipeline.AlreadyRunningError
		busy           *pipeline.BusyError
		invalidConfig  *pipeline.InvalidConfigError
		emptyBatch     *batch.EmptyBatchError
		nothingFailed  *batch.NothingToRetryError
	)
	switch {
	case errors.As(err, &notFound):
		return huma.Error404NotFound(err.Error())
	case errors.As(err, &alreadyRunning), errors.As(err, &busy),
		errors.As(err, &nothingFailed):
		return huma.Error409Conflict(err.Error())
	case errors.As(err, &invalidConfig), errors.As(err, &emptyBatch):
		return huma.Error400BadRequest(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}

type ServiceInfoOutput struct {
	Body ServiceInfoResponse `doc:"information about the service itself"`
}

// handler method for root
func (service *prototype) getRoot(ctx context.Context,
	input *struct{}) (*ServiceInfoOutput, error) {

	slog.Info("Querying root endpoint...")
	return &ServiceInfoOutput{
		Body: ServiceInfoResponse{
			Name:          service.Name,
			Version:       service.Version,
			Uptime:        int(service.uptime()),
			Documentation: "/docs",
		},
	}, nil
}

type BatchCreatedOutput struct {
	Body   BatchCreatedResponse `doc:"the identifier of the newly created batch"`
	Status int
}

// handler method for admitting uploaded files as a new batch
func (service *prototype) createBatch(ctx context.Context,
	input *struct {
		Body        BatchRequest `doc:"The body of a POST request for a new batch"`
		ContentType string       `header:"Content-Type" doc:"Content-Type header (must be application/json)"`
	}) (*BatchCreatedOutput, error) {

	batchId, err := service.Coordinator.NewBatch(ctx, input.Body.SourcePaths)
	if err != nil {
		return nil, apiError(err)
	}
	return &BatchCreatedOutput{
		Body:   BatchCreatedResponse{BatchId: batchId},
		Status: http.StatusCreated,
	}, nil
}

type BatchesOutput struct {
	Body []store.Batch `doc:"A list of all batches, oldest first"`
}

// handler method for querying all batches
func (service *prototype) getBatches(ctx context.Context,
	input *struct{}) (*BatchesOutput, error) {

	slog.Info("Querying batches...")
	batches, err := service.Coordinator.ListBatches(ctx)
	if err != nil {
		return nil, apiError(err)
	}
	if batches == nil {
		batches = make([]store.Batch, 0)
	}
	return &BatchesOutput{Body: batches}, nil
}

type BatchOutput struct {
	Body store.Batch `doc:"The persisted state of the requested batch"`
}

// handler method for querying a single batch
func (service *prototype) getBatch(ctx context.Context,
	input *struct {
		Id string `path:"id" example:"BATCH-20250815T101500Z-1a2b3c4d" doc:"a batch identifier"`
	}) (*BatchOutput, error) {

	slog.Info(fmt.Sprintf("Querying batch %s...", input.Id))
	persisted, err := service.Repo.GetBatch(ctx, input.Id)
	if err != nil {
		return nil, apiError(err)
	}
	return &BatchOutput{Body: persisted}, nil
}

// handler method for re-admitting a batch's failed documents
func (service *prototype) retryBatch(ctx context.Context,
	input *struct {
		Id string `path:"id" example:"BATCH-20250815T101500Z-1a2b3c4d" doc:"a batch identifier"`
	}) (*BatchCreatedOutput, error) {

	newId, err := service.Coordinator.RetryBatch(ctx, input.Id)
	if err != nil {
		return nil, apiError(err)
	}
	return &BatchCreatedOutput{
		Body:   BatchCreatedResponse{BatchId: newId},
		Status: http.StatusCreated,
	}, nil
}

type StatsOutput struct {
	Body pipeline.Snapshot `doc:"A consistent snapshot of the pipeline's live counters"`
}

// handler method for starting a run against the oldest pending batch; worker
// counts and the queue capacity may be overridden per request
func (service *prototype) startPipeline(ctx context.Context,
	input *struct {
		OcrWorkers int `query:"ocr_workers" example:"4" doc:"(Optional) overrides the configured Stage 1 worker count"`
		LlmWorkers int `query:"llm_workers" example:"8" doc:"(Optional) overrides the configured Stage 2 worker count"`
		QueueSize  int `query:"queue_size" example:"2" doc:"(Optional) overrides the configured cross-stage queue capacity"`
	}) (*StatsOutput, error) {

	runConfig := pipeline.DefaultRunConfig()
	if input.OcrWorkers != 0 {
		runConfig.OcrWorkers = input.OcrWorkers
	}
	if input.LlmWorkers != 0 {
		runConfig.LlmWorkers = input.LlmWorkers
	}
	if input.QueueSize != 0 {
		runConfig.QueueSize = input.QueueSize
	}
	if err := service.Engine.Start(runConfig); err != nil {
		return nil, apiError(err)
	}
	return &StatsOutput{Body: service.Engine.Stats()}, nil
}

type StopOutput struct {
	Body StopResponse `doc:"The number of documents the stop left unprocessed"`
}

// handler method for stopping the active run
func (service *prototype) stopPipeline(ctx context.Context,
	input *struct{}) (*StopOutput, error) {

	stopped := service.Engine.Stop()
	return &StopOutput{Body: StopResponse{Stopped: stopped}}, nil
}

// handler method for polling run statistics
func (service *prototype) getStats(ctx context.Context,
	input *struct{}) (*StatsOutput, error) {
	return &StatsOutput{Body: service.Engine.Stats()}, nil
}

type ExtractorOutput struct {
	Body ExtractorResponse `doc:"The text extraction mode now in effect"`
}

// handler method for switching between the embedded-text and OCR extractors
// (only legal while the pipeline is idle)
func (service *prototype) setExtractor(ctx context.Context,
	input *struct {
		Body struct {
			Embedded bool `json:"embedded" doc:"true for the embedded-text extractor, false for OCR"`
		} `doc:"The body of a PUT request for the text extraction mode"`
		ContentType string `header:"Content-Type" doc:"Content-Type header (must be application/json)"`
	}) (*ExtractorOutput, error) {

	if err := service.Engine.ToggleEmbeddedOcr(input.Body.Embedded); err != nil {
		return nil, apiError(err)
	}
	mode := "ocr"
	if input.Body.Embedded {
		mode = "embedded"
	}
	return &ExtractorOutput{Body: ExtractorResponse{Mode: mode}}, nil
}

type FailuresOutput struct {
	Body FailuresResponse `doc:"Recorded document failures, grouped by batch"`
}

// handler method for listing recorded failures, optionally for one batch
func (service *prototype) getFailures(ctx context.Context,
	input *struct {
		Batch string `query:"batch" example:"BATCH-20250815T101500Z-1a2b3c4d" doc:"(Optional) restricts the listing to one batch"`
	}) (*FailuresOutput, error) {

	if input.Batch != "" {
		failures, err := service.Repo.FailuresByBatch(ctx, input.Batch)
		if err != nil {
			return nil, apiError(err)
		}
		return &FailuresOutput{
			Body: FailuresResponse{
				Failures: map[string][]store.Failure{input.Batch: failures},
			},
		}, nil
	}

	grouped, err := service.Coordinator.FailedByBatch(ctx)
	if err != nil {
		return nil, apiError(err)
	}
	return &FailuresOutput{Body: FailuresResponse{Failures: grouped}}, nil
}

type RecordOutput struct {
	Body deeds.Record `doc:"The extracted record for the requested document"`
}

// handler method for fetching one document's extracted record
func (service *prototype) getRecord(ctx context.Context,
	input *struct {
		Id string `path:"id" example:"deed-2024-0117" doc:"a document identifier"`
	}) (*RecordOutput, error) {

	record, err := service.Repo.GetRecord(ctx, input.Id)
	if err != nil {
		return nil, apiError(err)
	}
	return &RecordOutput{Body: record}, nil
}

// returns the uptime for the service in seconds
func (service *prototype) uptime() float64 {
	return time.Since(service.StartTime).Seconds()
}

// constructs a deed processing service around a pipeline engine and its
// collaborators, given our configuration
func NewDeedService(engine *pipeline.Engine, coordinator *batch.Coordinator,
	repo *store.Repository) (DeedService, error) {

	// validate our configuration
	if config.Service.DataDirectory == "" {
		return nil, fmt.Errorf("No data directory was specified.")
	}

	service := new(prototype)
	service.Name = "deedpipe"
	service.Version = version
	service.Port = -1
	service.Engine = engine
	service.Coordinator = coordinator
	service.Repo = repo

	// set up routing
	service.Router = mux.NewRouter()
	api := humamux.New(service.Router, huma.DefaultConfig(service.Name, service.Version))
	huma.Get(api, "/", service.getRoot)
	AddDocEndpoints(service.Router)

	// API v1
	huma.Post(api, "/api/v1/batches", service.createBatch)
	huma.Get(api, "/api/v1/batches", service.getBatches)
	huma.Get(api, "/api/v1/batches/{id}", service.getBatch)
	huma.Post(api, "/api/v1/batches/{id}/retry", service.retryBatch)
	huma.Post(api, "/api/v1/pipeline/start", service.startPipeline)
	huma.Post(api, "/api/v1/pipeline/stop", service.stopPipeline)
	huma.Get(api, "/api/v1/pipeline/stats", service.getStats)
	huma.Put(api, "/api/v1/pipeline/extractor", service.setExtractor)
	huma.Get(api, "/api/v1/failures", service.getFailures)
	huma.Get(api, "/api/v1/documents/{id}", service.getRecord)

	return service, nil
}

// starts the deed processing service
func (service *prototype) Start(port int) error {
	slog.Info(fmt.Sprintf("Starting %s service on port %d...", service.Name, port))
	slog.Info(fmt.Sprintf("(Accepting up to %d connections)", config.Service.MaxConnections))

	service.StartTime = time.Now()

	// create a listener that limits the number of incoming connections
	service.Port = port
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return err
	}
	defer listener.Close()
	listener = netutil.LimitListener(listener, config.Service.MaxConnections)

	// start the server
	service.Server = &http.Server{
		Handler: service.Router}
	err = service.Server.Serve(listener)

	// we don't report the server closing as an error
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

// gracefully shuts down the service without interrupting active connections;
// an active run is stopped and its unfinished documents routed for retry
func (service *prototype) Shutdown(ctx context.Context) error {
	service.Engine.Stop()
	if service.Server != nil {
		return service.Server.Shutdown(ctx)
	}
	return nil
}

// closes down the service abruptly, freeing all resources
func (service *prototype) Close() {
	service.Engine.Stop()
	if service.Server != nil {
		service.Server.Close()
	}
}
