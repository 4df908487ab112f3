// Package llm — Provider interface.
// Adapters (Ollama, OpenAI, etc.) implement this interface so the application
// is never coupled to a specific LLM vendor.
package llm

import "context"

// Provider is the model-agnostic interface for LLM operations.
type Provider interface {
	// ChatCompletion performs a non-streaming chat completion.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Embed computes dense vector representations for a batch of texts.
	// Embeddings[i] corresponds to Texts[i]; any failure aborts the whole
	// call — partial results are never returned.
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error)

	// ModelInfo returns static metadata about the provider/model.
	ModelInfo() ModelMeta

	// HealthCheck returns nil if the provider is reachable and operational.
	HealthCheck(ctx context.Context) error
}
