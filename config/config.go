package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// a type with service configuration parameters
type serviceConfig struct {
	// port on which the service listens
	Port int `yaml:"port"`
	// maximum number of allowed incoming connections
	MaxConnections int `yaml:"max_connections"`
	// directory under which the pipeline's working folders live
	// (inbox, processed, failed, retry_fee, plus the database file)
	DataDirectory string `yaml:"data_dir"`
	// emit DEBUG log messages if true
	Debug bool `yaml:"debug"`
}

// a type with parameters for the two-stage processing pipeline
type pipelineConfig struct {
	// number of Stage 1 (OCR) workers (1-20)
	OcrWorkers int `yaml:"ocr_workers"`
	// number of Stage 2 (LLM) workers (1-20)
	LlmWorkers int `yaml:"llm_workers"`
	// capacity of the bounded queue between the stages (1-10)
	QueueSize int `yaml:"queue_size"`
	// allow Stage 1 to fan pages out within a single document
	EnablePageParallelOcr bool `yaml:"enable_page_parallel_ocr"`
	// per-document page sub-pool size when the above flag is on (1-8)
	OcrPageWorkers int `yaml:"ocr_page_workers"`
}

// a type with parameters for the structured (LLM) extraction backend
type llmConfig struct {
	// which backend to use ("gemini" or "claude")
	Backend string `yaml:"backend"`
	// the model identifier passed to the backend
	Model string `yaml:"model"`
	// API key (usually supplied via ${GEMINI_API_KEY} etc)
	ApiKey string `yaml:"api_key"`
	// sampling temperature
	Temperature float64 `yaml:"temperature"`
	// maximum tokens generated per extraction
	MaxTokens int `yaml:"max_tokens"`
	// per-document extraction budget in seconds
	Timeout int `yaml:"timeout"`
}

// a type with parameters for page text extraction (Stage 1)
type ocrConfig struct {
	// which extractor to use ("embedded" for digital PDFs, "ocr" for scans)
	Mode string `yaml:"mode"`
	// languages passed to the OCR engine (e.g. "eng+kan")
	Languages string `yaml:"languages"`
	// rasterization resolution for scanned pages
	Dpi int `yaml:"dpi"`
	// read at most this many pages per document
	MaxPages int `yaml:"max_pages"`
	// extractions yielding fewer characters than this fail
	MinTextLength int `yaml:"min_text_length"`
}

// global config variables
var Service serviceConfig
var Pipeline pipelineConfig
var Llm llmConfig
var Ocr ocrConfig

// This struct performs the unmarshalling from the YAML config file and then
// copies its fields to the globals above.
type configFile struct {
	Service  serviceConfig  `yaml:"service"`
	Pipeline pipelineConfig `yaml:"pipeline"`
	Llm      llmConfig      `yaml:"llm"`
	Ocr      ocrConfig      `yaml:"ocr"`
}

// This helper reads configuration data, returning an error indicating success
// or failure. All environment variables of the form ${ENV_VAR} are expanded.
func readConfig(bytes []byte) error {
	// Before we do anything else, expand any provided environment variables.
	bytes = []byte(os.ExpandEnv(string(bytes)))

	var conf configFile
	conf.Service.Port = 8080
	conf.Service.MaxConnections = 100
	conf.Pipeline.OcrWorkers = 2
	conf.Pipeline.LlmWorkers = 8
	conf.Pipeline.QueueSize = 2
	conf.Pipeline.OcrPageWorkers = 4
	conf.Llm.Backend = "gemini"
	conf.Llm.Temperature = 0.6
	conf.Llm.MaxTokens = 16384
	conf.Llm.Timeout = 300
	conf.Ocr.Mode = "ocr"
	conf.Ocr.Languages = "eng+kan"
	conf.Ocr.Dpi = 300
	conf.Ocr.MaxPages = 30
	conf.Ocr.MinTextLength = 100
	err := yaml.Unmarshal(bytes, &conf)
	if err != nil {
		log.Printf("Couldn't parse configuration data: %s\n", err)
		return err
	}

	// copy the config data into place
	Service = conf.Service
	Pipeline = conf.Pipeline
	Llm = conf.Llm
	Ocr = conf.Ocr

	return err
}

// This helper validates the given service parameters, returning an
// error indicating success or failure.
func validateServiceParameters(params serviceConfig) error {
	if params.Port < 0 || params.Port > 65535 {
		return fmt.Errorf("Invalid port: %d (must be 0-65535)", params.Port)
	}
	if params.MaxConnections <= 0 {
		return fmt.Errorf("Invalid max_connections: %d (must be positive)",
			params.MaxConnections)
	}
	if params.DataDirectory == "" {
		return fmt.Errorf("No data directory was specified!")
	}
	return nil
}

// This helper validates the given pipeline parameters, returning an error
// indicating success or failure. The ranges here are contractual: the queue
// capacity bounds resident OCR text memory.
func validatePipelineParameters(params pipelineConfig) error {
	if params.OcrWorkers < 1 || params.OcrWorkers > 20 {
		return fmt.Errorf("Invalid ocr_workers: %d (must be 1-20)", params.OcrWorkers)
	}
	if params.LlmWorkers < 1 || params.LlmWorkers > 20 {
		return fmt.Errorf("Invalid llm_workers: %d (must be 1-20)", params.LlmWorkers)
	}
	if params.QueueSize < 1 || params.QueueSize > 10 {
		return fmt.Errorf("Invalid queue_size: %d (must be 1-10)", params.QueueSize)
	}
	if params.OcrPageWorkers < 1 || params.OcrPageWorkers > 8 {
		return fmt.Errorf("Invalid ocr_page_workers: %d (must be 1-8)",
			params.OcrPageWorkers)
	}
	return nil
}

// This helper validates the whole configuration, returning an error that
// indicates success or failure.
func validateConfig() error {
	err := validateServiceParameters(Service)
	if err != nil {
		return err
	}
	err = validatePipelineParameters(Pipeline)
	if err != nil {
		return err
	}

	switch Llm.Backend {
	case "gemini", "claude":
	default:
		return fmt.Errorf("Invalid llm backend: %s (must be \"gemini\" or \"claude\")",
			Llm.Backend)
	}
	if Llm.Timeout <= 0 {
		return fmt.Errorf("Invalid llm timeout: %d (must be positive)", Llm.Timeout)
	}

	switch Ocr.Mode {
	case "embedded", "ocr":
	default:
		return fmt.Errorf("Invalid ocr mode: %s (must be \"embedded\" or \"ocr\")",
			Ocr.Mode)
	}
	if Ocr.MaxPages <= 0 {
		return fmt.Errorf("Invalid ocr max_pages: %d (must be positive)", Ocr.MaxPages)
	}
	return nil
}

// Initializes the deed processing service configuration using the given YAML
// byte data.
func Init(yamlData []byte) error {

	// Read the configuration from our YAML file.
	err := readConfig(yamlData)
	if err != nil {
		return err
	}

	// Validate the configuration.
	err = validateConfig()
	return err
}
