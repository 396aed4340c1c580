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

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/propregistry/deedpipe/config"
	"github.com/propregistry/deedpipe/deeds"
)

// the model used when the config names none
const defaultGeminiModel = "gemini-2.5-flash-lite"

// A geminiExtractor parses deed text using the Google AI API.
type geminiExtractor struct {
	client *genai.Client
	model  string
}

// Creates a Gemini-backed structured extractor. The API key comes from the
// config, falling back to GEMINI_API_KEY.
func NewGeminiExtractor() (StructuredExtractor, error) {
	apiKey := config.Llm.ApiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, &MissingApiKeyError{Backend: "gemini"}
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, &RequestError{Message: err.Error()}
	}

	model := config.Llm.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &geminiExtractor{client: client, model: model}, nil
}

func (e *geminiExtractor) Parse(ctx context.Context, text string) (deeds.Record, error) {
	model := e.client.GenerativeModel(e.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(extractionPrompt)},
	}
	temperature := float32(config.Llm.Temperature)
	model.Temperature = &temperature
	if config.Llm.MaxTokens > 0 {
		maxTokens := int32(config.Llm.MaxTokens)
		model.MaxOutputTokens = &maxTokens
	}
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return deeds.Record{}, classifyGeminiError(ctx, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return deeds.Record{}, &ParseError{Message: "the model returned no candidates"}
	}
	var response string
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			response += string(textPart)
		}
	}
	return decodeRecord(response)
}

// maps Google AI API failures onto our error kinds
func classifyGeminiError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Message: err.Error()}
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return &RateLimitedError{Message: apiErr.Message}
	}
	return &RequestError{Message: err.Error()}
}
