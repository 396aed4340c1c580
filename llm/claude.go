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

package llm

import (
	"context"
	"errors"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/propregistry/deedpipe/config"
	"github.com/propregistry/deedpipe/deeds"
)

// the model used when the config names none
const defaultClaudeModel = "claude-3-5-haiku-latest"

// A claudeExtractor parses deed text using the Anthropic API.
type claudeExtractor struct {
	client anthropic.Client
	model  anthropic.Model
}

// Creates a Claude-backed structured extractor. The API key comes from the
// config, falling back to ANTHROPIC_API_KEY.
func NewClaudeExtractor() (StructuredExtractor, error) {
	apiKey := config.Llm.ApiKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, &MissingApiKeyError{Backend: "claude"}
	}

	model := config.Llm.Model
	if model == "" {
		model = defaultClaudeModel
	}
	return &claudeExtractor{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}, nil
}

func (e *claudeExtractor) Parse(ctx context.Context, text string) (deeds.Record, error) {
	maxTokens := int64(config.Llm.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     e.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: extractionPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
		Temperature: anthropic.Float(config.Llm.Temperature),
	}

	resp, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return deeds.Record{}, classifyClaudeError(ctx, err)
	}

	var response string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			response += variant.Text
		}
	}
	return decodeRecord(response)
}

// maps Anthropic API failures onto our error kinds
func classifyClaudeError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Message: err.Error()}
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
		return &RateLimitedError{Message: apiErr.Error()}
	}
	return &RequestError{Message: err.Error()}
}
