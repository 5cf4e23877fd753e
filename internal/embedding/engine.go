// Package embedding generates vector embeddings for exported FAQ documents.
// Two backends are supported: Google GenAI (cloud) and Ollama (local).
package embedding

import (
	"context"
	"fmt"

	"faqforge/internal/config"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one vector per
	// input in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int

	// Name identifies the backend and model.
	Name() string
}

// FromConfig builds the engine selected by the embedding.* section. An
// absent section or provider "none" disables embedding and returns a nil
// Engine with no error.
func FromConfig(ctx context.Context, doc *config.Document) (Engine, error) {
	provider := doc.StringDefault("embedding.provider", "none")
	switch provider {
	case "none", "":
		return nil, nil
	case "genai":
		apiKey, err := doc.Secret("gemini_api_key")
		if err != nil {
			return nil, err
		}
		return NewGenAIEngine(ctx, GenAIOptions{
			APIKey:   apiKey,
			Model:    doc.StringDefault("embedding.model", DefaultGenAIModel),
			TaskType: doc.StringDefault("embedding.task_type", DefaultTaskType),
		})
	case "ollama":
		return NewOllamaEngine(
			doc.StringDefault("embedding.endpoint", DefaultOllamaEndpoint),
			doc.StringDefault("embedding.model", DefaultOllamaModel),
		), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}
