package llm

import "context"

// VisionProvider is implemented by every vision-model adapter (Gemini, Ollama) so the
// decomposer is never coupled to a specific vendor.
type VisionProvider interface {
	// Generate sends the prompt and images and returns the model text.
	// Transport failures and non-2xx responses wrap apperr.ErrUpstream.
	Generate(ctx context.Context, req VisionRequest) (*VisionResponse, error)

	// ModelInfo returns static metadata about the provider/model.
	ModelInfo() ModelMeta

	// HealthCheck returns nil if the provider is reachable and the credentials work.
	HealthCheck(ctx context.Context) error
}
