package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAI defaults. RETRIEVAL_DOCUMENT matches the vector search export: the
// exported lines are the documents a retrieval query runs against.
const (
	DefaultGenAIModel = "gemini-embedding-001"
	DefaultTaskType   = "RETRIEVAL_DOCUMENT"

	genAIDimensions = 768
)

// GenAIOptions configure the cloud embedding backend.
type GenAIOptions struct {
	APIKey   string
	Model    string
	TaskType string
}

// GenAIEngine generates embeddings through the Gemini embedding API.
type GenAIEngine struct {
	client   *genai.Client
	model    string
	taskType string
}

// NewGenAIEngine creates the cloud backend. The API key is required.
func NewGenAIEngine(ctx context.Context, opts GenAIOptions) (*GenAIEngine, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if opts.Model == "" {
		opts.Model = DefaultGenAIModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: opts.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIEngine{
		client:   client,
		model:    opts.Model,
		taskType: normalizeTaskType(opts.TaskType),
	}, nil
}

// normalizeTaskType maps the configured value onto the task types the
// embedding API accepts, defaulting unknown values to document retrieval.
func normalizeTaskType(taskType string) string {
	switch taskType {
	case "RETRIEVAL_QUERY", "SEMANTIC_SIMILARITY", "CLASSIFICATION",
		"CLUSTERING", "QUESTION_ANSWERING", "FACT_VERIFICATION":
		return taskType
	default:
		return DefaultTaskType
	}
}

// Embed generates an embedding for a single text.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts. The Gemini API has
// native batch support.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: e.taskType,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("GenAI returned %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Dimensions returns the vector dimensionality of the default model.
func (e *GenAIEngine) Dimensions() int {
	return genAIDimensions
}

// Name returns the backend and model identifier.
func (e *GenAIEngine) Name() string {
	return fmt.Sprintf("genai:%s", e.model)
}
