// Ollama HTTP adapter — local vision models (llava, llama3.2-vision, qwen2.5vl).
// Endpoints used:
//   - POST /api/chat — non-streaming chat with base64 images and a JSON-schema `format`
//   - GET  /api/tags — health check (lists available models)
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
	mimeJSON          = "application/json"
	headerContentType = "Content-Type"

	// DefaultOllamaModel is a vision-capable model available in the Ollama library.
	DefaultOllamaModel = "llama3.2-vision"
)

// OllamaProvider implements VisionProvider against a running Ollama instance.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaProvider creates an OllamaProvider. A zero timeout falls back to 120s;
// local vision inference on CPU is slow.
func NewOllamaProvider(baseURL, model string, timeout time.Duration) *OllamaProvider {
	if model == "" {
		model = DefaultOllamaModel
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ─── internal Ollama JSON types ──────────────────────────────────────────────

type ollamaChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   *Schema             `json:"format,omitempty"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	DoneReason      string            `json:"done_reason"`
	Done            bool              `json:"done"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}

// ─── VisionProvider implementation ──────────────────────────────────────────

// Generate performs a non-streaming chat via POST /api/chat with the images attached
// to a single user message. Ollama's `format` accepts a plain JSON schema.
func (p *OllamaProvider) Generate(ctx context.Context, req VisionRequest) (*VisionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	images := make([]string, len(req.Images))
	for i, img := range req.Images {
		images[i] = base64.StdEncoding.EncodeToString(img.Data)
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    model,
		Messages: []ollamaChatMessage{{Role: "user", Content: req.Prompt, Images: images}},
		Stream:   false,
		Format:   req.Schema,
		Options:  buildChatOptions(req),
	})
	if err != nil {
		return nil, err
	}

	respBody, postErr := p.doPost(ctx, "/api/chat", body)
	if postErr != nil {
		return nil, postErr
	}
	defer respBody.Close() //nolint:errcheck

	var ollamaResp ollamaChatResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&ollamaResp); decodeErr != nil {
		return nil, apperr.Upstream("ollama", fmt.Errorf("decode chat response: %w", decodeErr))
	}
	return &VisionResponse{
		Content:    ollamaResp.Message.Content,
		StopReason: ollamaResp.DoneReason,
		Tokens:     ollamaResp.PromptEvalCount + ollamaResp.EvalCount,
	}, nil
}

// buildChatOptions converts VisionRequest fields into the Ollama options map.
func buildChatOptions(req VisionRequest) map[string]any {
	opts := map[string]any{}
	if req.Temperature != nil {
		opts["temperature"] = *req.Temperature
	}
	if req.MaxTokens != 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

// ModelInfo returns static metadata for this provider/model.
func (p *OllamaProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.model, Provider: "ollama"}
}

// HealthCheck calls GET /api/tags — returns nil if Ollama is reachable.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperr.Upstream("ollama", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return apperr.Upstream("ollama", fmt.Errorf("healthcheck status %d", resp.StatusCode))
	}
	return nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// doPost sends a POST request to baseURL+path and returns the response body.
// Caller is responsible for closing the returned ReadCloser.
func (p *OllamaProvider) doPost(ctx context.Context, path string, body []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama post %s: build request: %w", path, err)
	}
	req.Header.Set(headerContentType, mimeJSON)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream("ollama", fmt.Errorf("post %s: %w", path, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close() //nolint:errcheck
		return nil, apperr.Upstream("ollama", fmt.Errorf("post %s: status %d", path, resp.StatusCode))
	}
	return resp.Body, nil
}
