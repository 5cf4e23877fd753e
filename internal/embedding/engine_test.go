package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faqforge/internal/config"
)

func resolveConfig(t *testing.T, yaml string) *config.Document {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	doc, err := config.NewResolver(dir).Resolve("development")
	require.NoError(t, err)
	return doc
}

func TestFromConfig_NoneDisablesEmbedding(t *testing.T) {
	doc := resolveConfig(t, "app:\n  name: faqforge\n")

	engine, err := FromConfig(context.Background(), doc)
	require.NoError(t, err)
	assert.Nil(t, engine)

	doc = resolveConfig(t, "embedding:\n  provider: none\n")
	engine, err = FromConfig(context.Background(), doc)
	require.NoError(t, err)
	assert.Nil(t, engine)
}

func TestFromConfig_UnknownProvider(t *testing.T) {
	doc := resolveConfig(t, "embedding:\n  provider: pinecone\n")

	_, err := FromConfig(context.Background(), doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinecone")
}

func TestFromConfig_GenAIRequiresSecret(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	doc := resolveConfig(t, "embedding:\n  provider: genai\n")

	_, err := FromConfig(context.Background(), doc)
	require.Error(t, err)

	var missing *config.SecretMissingError
	assert.ErrorAs(t, err, &missing)
}

func TestFromConfig_Ollama(t *testing.T) {
	doc := resolveConfig(t, "embedding:\n  provider: ollama\n  model: nomic-embed-text\n")

	engine, err := FromConfig(context.Background(), doc)
	require.NoError(t, err)
	require.NotNil(t, engine)
	assert.Equal(t, "ollama:nomic-embed-text", engine.Name())
}

func TestOllamaEngine_EmbedBatch(t *testing.T) {
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "embeddinggemma", req.Model)
		prompts = append(prompts, req.Prompt)

		json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embedding: []float32{float32(len(prompts)), 0.25},
		})
	}))
	defer srv.Close()

	engine := NewOllamaEngine(srv.URL, "")
	vectors, err := engine.EmbedBatch(context.Background(), []string{"first doc", "second doc"})
	require.NoError(t, err)

	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0.25}, vectors[0])
	assert.Equal(t, []float32{2, 0.25}, vectors[1])
	assert.Equal(t, []string{"first doc", "second doc"}, prompts)
}

func TestOllamaEngine_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	engine := NewOllamaEngine(srv.URL, "")
	_, err := engine.Embed(context.Background(), "doc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestNormalizeTaskType(t *testing.T) {
	assert.Equal(t, "RETRIEVAL_DOCUMENT", normalizeTaskType(""))
	assert.Equal(t, "RETRIEVAL_DOCUMENT", normalizeTaskType("RETRIEVAL_DOCUMENT"))
	assert.Equal(t, "RETRIEVAL_QUERY", normalizeTaskType("RETRIEVAL_QUERY"))
	assert.Equal(t, "SEMANTIC_SIMILARITY", normalizeTaskType("SEMANTIC_SIMILARITY"))
	assert.Equal(t, "RETRIEVAL_DOCUMENT", normalizeTaskType("something_else"))
}
