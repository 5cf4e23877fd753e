package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faqforge/internal/config"
)

func docFromYAML(t *testing.T, content string) *config.Document {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))
	doc, err := config.NewResolver(dir).Resolve("dev")
	require.NoError(t, err)
	return doc
}

func TestRender_PlainTemplate(t *testing.T) {
	doc := docFromYAML(t, `
prompts:
  generate_faqs: "Generate {count} FAQs for {category}."
`)
	engine := NewEngine(doc)

	out, err := engine.Render("generate_faqs", map[string]interface{}{
		"count":    15,
		"category": "Online Banking",
	})
	require.NoError(t, err)
	assert.Equal(t, "Generate 15 FAQs for Online Banking.", out)
}

func TestRender_Idempotent(t *testing.T) {
	doc := docFromYAML(t, `
prompts:
  generate_faqs: "Generate {count} FAQs for {category}."
`)
	engine := NewEngine(doc)
	params := map[string]interface{}{"count": 5, "category": "Loans"}

	first, err := engine.Render("generate_faqs", params)
	require.NoError(t, err)
	second, err := engine.Render("generate_faqs", params)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRender_DeclaredDefaults(t *testing.T) {
	doc := docFromYAML(t, `
prompts:
  batch_generate:
    template: "Batch {batch} of {total}: {count} FAQs for {category}."
    defaults:
      total: 1
      batch: 1
`)
	engine := NewEngine(doc)

	out, err := engine.Render("batch_generate", map[string]interface{}{
		"count":    10,
		"category": "Retirement Planning",
	})
	require.NoError(t, err)
	assert.Equal(t, "Batch 1 of 1: 10 FAQs for Retirement Planning.", out)
}

func TestRender_ParamsOverrideDefaults(t *testing.T) {
	doc := docFromYAML(t, `
prompts:
  batch_generate:
    template: "Batch {batch}."
    defaults:
      batch: 1
`)
	engine := NewEngine(doc)

	out, err := engine.Render("batch_generate", map[string]interface{}{"batch": 3})
	require.NoError(t, err)
	assert.Equal(t, "Batch 3.", out)
}

func TestRender_TemplateNotFound(t *testing.T) {
	doc := docFromYAML(t, "prompts: {}\n")
	engine := NewEngine(doc)

	_, err := engine.Render("nope", nil)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.Name)
}

func TestRender_MissingParameter(t *testing.T) {
	doc := docFromYAML(t, `
prompts:
  generate_faqs: "Generate {count} FAQs."
`)
	engine := NewEngine(doc)

	_, err := engine.Render("generate_faqs", map[string]interface{}{})
	var pe *ParameterError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "generate_faqs", pe.Template)
	assert.Equal(t, "count", pe.Parameter)
}

func TestRender_EscapedBraces(t *testing.T) {
	doc := docFromYAML(t, `
prompts:
  json_shape: 'Return JSON: [{{"question": "...", "count": {count}}}]'
`)
	engine := NewEngine(doc)

	out, err := engine.Render("json_shape", map[string]interface{}{"count": 2})
	require.NoError(t, err)
	assert.Equal(t, `Return JSON: [{"question": "...", "count": 2}]`, out)
}
