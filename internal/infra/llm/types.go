// Package llm defines the vendor-agnostic vision-language model abstraction.
// All types here are shared between the provider interface and its adapters.
package llm

// Image is one inline image attached to a request.
type Image struct {
	Data     []byte
	MimeType string // e.g. "image/jpeg"; adapters default to image/jpeg when empty
}

// Schema is the JSON-schema subset used to constrain structured model output.
// Types are lowercase JSON-schema names ("object", "array", "string", "number");
// adapters translate them to vendor dialects.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// VisionRequest is the input for a single, non-streaming image+text generation.
type VisionRequest struct {
	// Model overrides the provider default when non-empty.
	Model  string
	Prompt string
	Images []Image
	// Schema, when set, asks the provider for JSON output validated against it.
	Schema *Schema
	// Temperature is left to the provider default when nil; 0 asks for greedy decoding.
	Temperature *float32
	MaxTokens   int
}

// VisionResponse is the raw model output. Content is JSON text when a Schema was sent.
type VisionResponse struct {
	Content    string
	StopReason string // vendor finish reason, e.g. "STOP" | "stop" | "MAX_TOKENS"
	Tokens     int    // total tokens consumed when the vendor reports it
}

// ModelMeta describes the model / provider identity.
type ModelMeta struct {
	ID       string // e.g. "gemini-2.5-flash", "llava:13b"
	Provider string // e.g. "gemini", "ollama"
}
