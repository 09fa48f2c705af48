// Unit tests for OllamaProvider.
// Uses httptest.NewServer to mock the Ollama HTTP API — no real Ollama needed.
package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

// ============================================================================
// Generate tests
// ============================================================================

func TestOllamaProvider_Generate_Success(t *testing.T) {
	t.Parallel()

	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ollamaChatResponse{ //nolint:errcheck
			Message:         ollamaChatMessage{Role: "assistant", Content: `{"dish_name":"Rice"}`},
			DoneReason:      "stop",
			Done:            true,
			PromptEvalCount: 10,
			EvalCount:       5,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llava", 0)
	resp, err := p.Generate(context.Background(), VisionRequest{
		Prompt: "what is this",
		Images: []Image{{Data: []byte("img-bytes")}},
		Schema: &Schema{Type: "object", Properties: map[string]*Schema{"dish_name": {Type: "string"}}},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Content != `{"dish_name":"Rice"}` {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.StopReason != "stop" || resp.Tokens != 15 {
		t.Errorf("unexpected stop/tokens: %q %d", resp.StopReason, resp.Tokens)
	}

	if got.Model != "llava" || got.Stream {
		t.Errorf("unexpected model/stream: %q %v", got.Model, got.Stream)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "what is this" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
	if len(got.Messages[0].Images) != 1 || got.Messages[0].Images[0] != base64.StdEncoding.EncodeToString([]byte("img-bytes")) {
		t.Errorf("image not base64-encoded in message: %+v", got.Messages[0].Images)
	}
	if got.Format == nil || got.Format.Type != "object" {
		t.Errorf("schema not forwarded as format: %+v", got.Format)
	}
}

func TestOllamaProvider_Generate_ModelOverride(t *testing.T) {
	t.Parallel()

	var model string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		model = req.Model
		json.NewEncoder(w).Encode(ollamaChatResponse{Done: true}) //nolint:errcheck
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llava", 0)
	if _, err := p.Generate(context.Background(), VisionRequest{Model: "qwen2.5vl", Prompt: "x"}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if model != "qwen2.5vl" {
		t.Errorf("expected request model override, got %q", model)
	}
}

func TestOllamaProvider_Generate_ServerError_ReturnsUpstream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llava", 0)
	_, err := p.Generate(context.Background(), VisionRequest{Prompt: "x"})
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}

func TestOllamaProvider_Generate_BadJSON_ReturnsUpstream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json")) //nolint:errcheck
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llava", 0)
	_, err := p.Generate(context.Background(), VisionRequest{Prompt: "x"})
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}

// ============================================================================
// HealthCheck tests
// ============================================================================

func TestOllamaProvider_HealthCheck_Healthy(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"models": []any{}}) //nolint:errcheck
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llava", 0)
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy, got error: %v", err)
	}
}

func TestOllamaProvider_HealthCheck_Down_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	srv.Close() // Closed before the health check call.

	p := NewOllamaProvider(srv.URL, "llava", 0)
	if err := p.HealthCheck(context.Background()); err == nil {
		t.Error("expected error when server is down, got nil")
	}
}

// ============================================================================
// ModelInfo and defaults
// ============================================================================

func TestOllamaProvider_ModelInfo_ReturnsMetadata(t *testing.T) {
	t.Parallel()

	p := NewOllamaProvider("http://localhost:11434", "", 0)
	meta := p.ModelInfo()
	if meta.ID != DefaultOllamaModel {
		t.Errorf("expected default model %q, got %q", DefaultOllamaModel, meta.ID)
	}
	if meta.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", meta.Provider)
	}
}

// ============================================================================
// buildChatOptions tests
// ============================================================================

func TestBuildChatOptions_WithTemperature(t *testing.T) {
	t.Parallel()

	opts := buildChatOptions(VisionRequest{Temperature: f32(0.7)})
	if opts == nil {
		t.Fatal("expected non-nil opts map when Temperature is set")
	}
	if temp := opts["temperature"]; temp != float32(0.7) {
		t.Errorf("expected temperature 0.7, got %v", temp)
	}
}

func TestBuildChatOptions_WithMaxTokens(t *testing.T) {
	t.Parallel()

	opts := buildChatOptions(VisionRequest{MaxTokens: 256})
	if opts == nil {
		t.Fatal("expected non-nil opts map when MaxTokens is set")
	}
	if predict := opts["num_predict"]; predict != 256 {
		t.Errorf("expected num_predict 256, got %v", predict)
	}
}

func TestBuildChatOptions_ZeroTemperatureIsSent(t *testing.T) {
	t.Parallel()

	opts := buildChatOptions(VisionRequest{Temperature: f32(0)})
	temp, ok := opts["temperature"]
	if !ok || temp != float32(0) {
		t.Errorf("expected explicit temperature 0, got %v (present=%v)", temp, ok)
	}
}

func TestBuildChatOptions_BothZero_ReturnsNil(t *testing.T) {
	t.Parallel()

	if opts := buildChatOptions(VisionRequest{Prompt: "hi"}); opts != nil {
		t.Errorf("expected nil opts when both Temperature and MaxTokens are unset, got %v", opts)
	}
}

func f32(v float32) *float32 { return &v }
