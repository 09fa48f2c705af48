// Gemini HTTP adapter.
// GeminiProvider calls the Generative Language REST API.
// Endpoints used:
//   - POST /models/{model}:generateContent — image + prompt, JSON-schema output
//   - GET  /models/{model}                 — health check (validates key and model)
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

const (
	// DefaultGeminiBaseURL is the v1beta Generative Language API root.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultGeminiModel is used when no model is configured.
	DefaultGeminiModel = "gemini-2.5-flash"

	headerGoogAPIKey = "x-goog-api-key"
	defaultImageMIME = "image/jpeg"
)

// GeminiProvider implements VisionProvider against the Gemini API.
type GeminiProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewGeminiProvider creates a GeminiProvider. A zero timeout falls back to 60s
// (image requests are slower than text chat).
func NewGeminiProvider(baseURL, apiKey, model string, timeout time.Duration) *GeminiProvider {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ─── internal Gemini JSON types ──────────────────────────────────────────────

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSchema struct {
	Type        string                   `json:"type"`
	Description string                   `json:"description,omitempty"`
	Properties  map[string]*geminiSchema `json:"properties,omitempty"`
	Items       *geminiSchema            `json:"items,omitempty"`
	Required    []string                 `json:"required,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string        `json:"responseMimeType,omitempty"`
	ResponseSchema   *geminiSchema `json:"responseSchema,omitempty"`
	Temperature      *float32      `json:"temperature,omitempty"`
	MaxOutputTokens  int           `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// ─── VisionProvider implementation ──────────────────────────────────────────

// Generate calls generateContent with the prompt followed by each image as inline data.
// A response without candidates (e.g. a safety block) is an apperr.ErrDecomposition.
func (p *GeminiProvider) Generate(ctx context.Context, req VisionRequest) (*VisionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	parts := make([]geminiPart, 0, len(req.Images)+1)
	parts = append(parts, geminiPart{Text: req.Prompt})
	for _, img := range req.Images {
		mime := img.MimeType
		if mime == "" {
			mime = defaultImageMIME
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}

	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: buildGenerationConfig(req),
	})
	if err != nil {
		return nil, err
	}

	respBody, postErr := p.doPost(ctx, "/models/"+model+":generateContent", body)
	if postErr != nil {
		return nil, postErr
	}
	defer respBody.Close() //nolint:errcheck

	var gr geminiResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&gr); decodeErr != nil {
		return nil, apperr.Upstream("gemini", fmt.Errorf("decode generateContent response: %w", decodeErr))
	}
	if len(gr.Candidates) == 0 {
		reason := "no candidates"
		if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
			reason = "blocked: " + gr.PromptFeedback.BlockReason
		}
		return nil, fmt.Errorf("%w: gemini returned %s", apperr.ErrDecomposition, reason)
	}

	cand := gr.Candidates[0]
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		text.WriteString(part.Text)
	}
	return &VisionResponse{
		Content:    text.String(),
		StopReason: cand.FinishReason,
		Tokens:     gr.UsageMetadata.TotalTokenCount,
	}, nil
}

// buildGenerationConfig maps VisionRequest knobs onto generationConfig; nil when unset.
func buildGenerationConfig(req VisionRequest) *geminiGenerationConfig {
	cfg := &geminiGenerationConfig{MaxOutputTokens: req.MaxTokens}
	if req.Temperature != nil {
		t := *req.Temperature
		cfg.Temperature = &t
	}
	if req.Schema != nil {
		cfg.ResponseMimeType = "application/json"
		cfg.ResponseSchema = toGeminiSchema(req.Schema)
	}
	if cfg.ResponseSchema == nil && cfg.Temperature == nil && cfg.MaxOutputTokens == 0 {
		return nil
	}
	return cfg
}

// toGeminiSchema converts JSON-schema type names to Gemini's OpenAPI enum ("object" -> "OBJECT").
func toGeminiSchema(s *Schema) *geminiSchema {
	if s == nil {
		return nil
	}
	out := &geminiSchema{
		Type:        strings.ToUpper(s.Type),
		Description: s.Description,
		Items:       toGeminiSchema(s.Items),
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*geminiSchema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = toGeminiSchema(v)
		}
	}
	return out
}

// ModelInfo returns static metadata for this provider/model.
func (p *GeminiProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.model, Provider: "gemini"}
}

// HealthCheck calls GET /models/{model}; a bad key or unknown model fails.
func (p *GeminiProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models/"+p.model, nil)
	if err != nil {
		return fmt.Errorf("gemini healthcheck: build request: %w", err)
	}
	req.Header.Set(headerGoogAPIKey, p.apiKey)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperr.Upstream("gemini", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return apperr.Upstream("gemini", fmt.Errorf("healthcheck status %d", resp.StatusCode))
	}
	return nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// doPost sends an authenticated POST and returns the body of a 2xx response.
// Caller is responsible for closing the returned ReadCloser.
func (p *GeminiProvider) doPost(ctx context.Context, path string, body []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini post %s: build request: %w", path, err)
	}
	req.Header.Set(headerContentType, mimeJSON)
	req.Header.Set(headerGoogAPIKey, p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream("gemini", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close() //nolint:errcheck
		return nil, apperr.Upstream("gemini", fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, apiErrorMessage(resp.Body)))
	}
	return resp.Body, nil
}

// apiErrorMessage extracts error.message from a Google API error body, falling back to raw text.
func apiErrorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
