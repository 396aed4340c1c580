package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/propregistry/deedpipe/batch"
	"github.com/propregistry/deedpipe/config"
	"github.com/propregistry/deedpipe/extract"
	"github.com/propregistry/deedpipe/filestore"
	"github.com/propregistry/deedpipe/llm"
	"github.com/propregistry/deedpipe/pipeline"
	"github.com/propregistry/deedpipe/services"
	"github.com/propregistry/deedpipe/store"
)

//go:generate mkdir -p services/docs
//go:generate redoc-cli bundle docs/openapi.yaml
//go:generate cp docs/openapi.yaml services/docs/openapi.yaml
//go:generate mv redoc-static.html services/docs/index.html

// The above logic generates openapi_doc.go as part of the docs package, and
// gives it an endpoint prefix of "docs". To enable these endpoints, you must
// use the "docs" build: go build -tags docs

// Prints usage info.
func usage() {
	fmt.Fprintf(os.Stderr, "%s: usage:\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "%s <config_file>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "See README.md for details on config files.\n")
	os.Exit(1)
}

func main() {

	// The only argument is the configuration filename.
	if len(os.Args) < 2 {
		usage()
	}
	configFile := os.Args[1]

	// Read the configuration file.
	log.Printf("Reading configuration from '%s'...\n", configFile)
	b, err := os.ReadFile(configFile)
	if err != nil {
		log.Panicf("Couldn't read %s: %s\n", configFile, err.Error())
	}

	// Initialize our configuration.
	initErr := config.Init(b)
	if initErr != nil {
		log.Panicf("Couldn't initialize the configuration: %s\n", initErr.Error())
	}
	if config.Service.Debug {
		logLevel := new(slog.LevelVar)
		logLevel.Set(slog.LevelDebug)
		handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
		slog.SetDefault(slog.New(handler))
	}

	// Assemble the processing pipeline.
	files, err := filestore.NewStore(config.Service.DataDirectory)
	if err != nil {
		log.Panicf("Couldn't create the file store: %s\n", err.Error())
	}
	repo, err := store.Open(filepath.Join(config.Service.DataDirectory, "deeds.db"))
	if err != nil {
		log.Panicf("Couldn't open the deed repository: %s\n", err.Error())
	}
	defer repo.Close()
	extractor, err := extract.NewExtractor(config.Ocr.Mode)
	if err != nil {
		log.Panicf("Couldn't create the text extractor: %s\n", err.Error())
	}
	parser, err := llm.NewExtractor()
	if err != nil {
		log.Panicf("Couldn't create the structured extractor: %s\n", err.Error())
	}
	coordinator := batch.NewCoordinator(files, repo)
	engine := pipeline.NewEngine(coordinator, files, repo, extractor, parser)

	// Create the service.
	service, err := services.NewDeedService(engine, coordinator, repo)
	if err != nil {
		log.Panicf("Couldn't create the service: %s\n", err.Error())
	}

	// Start the service in a goroutine so it doesn't block.
	go func() {
		err = service.Start(config.Service.Port)
		if err != nil {
			log.Println(err.Error())
		}
	}()

	// Intercept the SIGINT, SIGHUP, SIGTERM, and SIGQUIT signals, shutting down
	// the service as gracefully as possible if they are encountered.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	// Block till we receive one of the above signals.
	<-sigChan

	// Create a deadline to wait for.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Wait for connections to close until the deadline elapses. Any active run
	// is stopped first, routing its unfinished documents for retry.
	service.Shutdown(ctx)
	log.Println("Shutting down")
	os.Exit(0)
}
