package config

// These tests verify that we can properly configure the deed processing
// service with YAML input.
import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// a valid service config entry
const VALID_SERVICE string = `
service:
  port: 8080
  max_connections: 100
  data_dir: /tmp/deedpipe
`

// a valid pipeline config entry
const VALID_PIPELINE string = `
pipeline:
  ocr_workers: 2
  llm_workers: 8
  queue_size: 2
  enable_page_parallel_ocr: true
  ocr_page_workers: 4
`

// a valid llm config entry
const VALID_LLM string = `
llm:
  backend: gemini
  model: gemini-2.5-flash-lite
  api_key: ${GEMINI_API_KEY}
  timeout: 300
`

// tests whether config.Init reports an error for blank input
func TestInitRejectsBlankInput(t *testing.T) {
	b := []byte("")
	err := Init(b)
	assert.NotNil(t, err, "Blank config didn't trigger an error.")
}

// tests whether config.Init reports an error for an invalid port
func TestInitRejectsBadPort(t *testing.T) {
	yaml := "service:\n  port: -1\n  data_dir: /tmp/deedpipe\n" + VALID_PIPELINE
	err := Init([]byte(yaml))
	assert.NotNil(t, err, "Config with bad port didn't trigger an error.")
	yaml = "service:\n  port: 1000000\n  data_dir: /tmp/deedpipe\n" + VALID_PIPELINE
	err = Init([]byte(yaml))
	assert.NotNil(t, err, "Config with bad port didn't trigger an error.")
}

// tests whether config.Init rejects worker counts outside 1-20 and queue
// sizes outside 1-10
func TestInitRejectsBadPipelineParameters(t *testing.T) {
	yaml := VALID_SERVICE + "pipeline:\n  ocr_workers: 0\n"
	err := Init([]byte(yaml))
	assert.NotNil(t, err, "Config with 0 OCR workers didn't trigger an error.")

	yaml = VALID_SERVICE + "pipeline:\n  llm_workers: 21\n"
	err = Init([]byte(yaml))
	assert.NotNil(t, err, "Config with 21 LLM workers didn't trigger an error.")

	yaml = VALID_SERVICE + "pipeline:\n  queue_size: 11\n"
	err = Init([]byte(yaml))
	assert.NotNil(t, err, "Config with queue size 11 didn't trigger an error.")

	yaml = VALID_SERVICE + "pipeline:\n  ocr_page_workers: 9\n"
	err = Init([]byte(yaml))
	assert.NotNil(t, err, "Config with 9 page workers didn't trigger an error.")
}

// tests whether config.Init rejects unknown llm backends and ocr modes
func TestInitRejectsBadModes(t *testing.T) {
	yaml := VALID_SERVICE + VALID_PIPELINE + "llm:\n  backend: carrier-pigeon\n"
	err := Init([]byte(yaml))
	assert.NotNil(t, err, "Config with bad llm backend didn't trigger an error.")

	yaml = VALID_SERVICE + VALID_PIPELINE + "ocr:\n  mode: telepathy\n"
	err = Init([]byte(yaml))
	assert.NotNil(t, err, "Config with bad ocr mode didn't trigger an error.")
}

// tests whether a valid config is accepted and its defaults applied
func TestInitAcceptsValidInput(t *testing.T) {
	err := Init([]byte(VALID_SERVICE + VALID_PIPELINE + VALID_LLM))
	assert.Nil(t, err, "Valid config triggered an error.")
	assert.Equal(t, 8080, Service.Port)
	assert.Equal(t, 2, Pipeline.OcrWorkers)
	assert.Equal(t, 8, Pipeline.LlmWorkers)
	assert.Equal(t, 2, Pipeline.QueueSize)
	assert.True(t, Pipeline.EnablePageParallelOcr)
	assert.Equal(t, "gemini", Llm.Backend)
	assert.Equal(t, 300, Llm.Timeout)
	// defaults for sections we didn't specify
	assert.Equal(t, "ocr", Ocr.Mode)
	assert.Equal(t, 30, Ocr.MaxPages)
	assert.Equal(t, 100, Ocr.MinTextLength)
}
