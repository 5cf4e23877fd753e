package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestResolve_BaseOnly(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
model:
  name: gemini-1.5-pro
generation:
  batch_size: 10
`)

	doc, err := NewResolver(dir).Resolve("dev")
	require.NoError(t, err)

	name, err := doc.GetString("model.name")
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-pro", name)
	assert.Equal(t, 10, doc.IntDefault("generation.batch_size", 0))
	assert.Equal(t, "dev", doc.Environment())
}

func TestResolve_BaseMissing(t *testing.T) {
	_, err := NewResolver(t.TempDir()).Resolve("dev")
	require.Error(t, err)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, nf.Path, "config.yaml")
}

func TestResolve_OverlayOverridesScalar(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
model:
  name: "A"
  temperature: 0.7
`)
	writeConfig(t, dir, "config.prod.yaml", `
model:
  name: "B"
`)

	doc, err := NewResolver(dir).Resolve("prod")
	require.NoError(t, err)

	// Override wins on the shared key.
	name, err := doc.GetString("model.name")
	require.NoError(t, err)
	assert.Equal(t, "B", name)

	// Sibling key from the base survives.
	assert.InDelta(t, 0.7, doc.FloatDefault("model.temperature", 0), 1e-9)
}

func TestResolve_SiblingKeysUnion(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
categories:
  "X": 10
`)
	writeConfig(t, dir, "config.staging.yaml", `
categories:
  "Y": 5
`)

	doc, err := NewResolver(dir).Resolve("staging")
	require.NoError(t, err)

	cats, err := doc.Map("categories")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"X": 10, "Y": 5}, cats)
}

func TestResolve_SequencesReplaceNotConcat(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
export:
  formats: [csv, json]
`)
	writeConfig(t, dir, "config.prod.yaml", `
export:
  formats: [jsonl]
`)

	doc, err := NewResolver(dir).Resolve("prod")
	require.NoError(t, err)

	formats, err := doc.Get("export.formats")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"jsonl"}, formats)
}

func TestResolve_MissingOverlayFallsBackToBase(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
model:
  name: "A"
`)

	doc, err := NewResolver(dir).Resolve("nosuchenv")
	require.NoError(t, err)
	assert.Equal(t, "A", doc.StringDefault("model.name", ""))
}

func TestResolve_SecretsWinOverBothLayers(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
secrets:
  gemini_api_key: from-base
`)
	writeConfig(t, dir, "config.dev.yaml", `
secrets:
  gemini_api_key: from-overlay
`)
	t.Setenv("GEMINI_API_KEY", "from-env")

	doc, err := NewResolver(dir).Resolve("dev")
	require.NoError(t, err)

	key, err := doc.GetString("secrets.gemini_api_key")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	secret, err := doc.Secret("gemini_api_key")
	require.NoError(t, err)
	assert.Equal(t, "from-env", secret)
}

func TestResolve_SecretMissingIsLazy(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "model: {name: A}\n")
	t.Setenv("GEMINI_API_KEY", "")

	// Resolution succeeds even though the secret is absent.
	doc, err := NewResolver(dir).Resolve("dev")
	require.NoError(t, err)

	// The failure surfaces only when the secret is read.
	_, err = doc.Secret("gemini_api_key")
	var sm *SecretMissingError
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, "gemini_api_key", sm.Name)
}

func TestResolve_CustomSecretBinding(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "model: {name: A}\n")
	t.Setenv("SF_USERNAME", "alice@example.com")

	doc, err := NewResolver(dir, WithSecretBinding("sf_username", "SF_USERNAME")).Resolve("dev")
	require.NoError(t, err)

	v, err := doc.Secret("sf_username")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", v)
}

func TestResolve_DotEnvSeedsSecrets(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "model: {name: A}\n")
	writeConfig(t, dir, ".env", "FAQFORGE_TEST_DOTENV=dotenv-value\n")

	doc, err := NewResolver(dir, WithSecretBinding("dotenv_test", "FAQFORGE_TEST_DOTENV")).Resolve("dev")
	require.NoError(t, err)
	t.Cleanup(func() { os.Unsetenv("FAQFORGE_TEST_DOTENV") })

	v, err := doc.Secret("dotenv_test")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-value", v)
}

func TestDocument_Get(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
quality:
  min_answer_length: 100
nested:
  deep:
    value: here
list: [1, 2, 3]
`)

	doc, err := NewResolver(dir).Resolve("dev")
	require.NoError(t, err)

	t.Run("bare Get fails closed on missing path", func(t *testing.T) {
		_, err := doc.Get("quality.max_answer_length")
		var km *KeyMissingError
		require.ErrorAs(t, err, &km)
		assert.Equal(t, "quality.max_answer_length", km.Path)
	})

	t.Run("GetDefault returns default without failing", func(t *testing.T) {
		assert.Equal(t, 2000, doc.IntDefault("quality.max_answer_length", 2000))
		assert.Equal(t, 100, doc.IntDefault("quality.min_answer_length", 0))
	})

	t.Run("deep path", func(t *testing.T) {
		v, err := doc.Get("nested.deep.value")
		require.NoError(t, err)
		assert.Equal(t, "here", v)
	})

	t.Run("paths never navigate sequences", func(t *testing.T) {
		_, err := doc.Get("list.0")
		var km *KeyMissingError
		require.ErrorAs(t, err, &km)
	})

	t.Run("keys are case-sensitive", func(t *testing.T) {
		_, err := doc.Get("Quality.min_answer_length")
		require.Error(t, err)
	})
}

func TestDeepMerge_DoesNotMutateInputs(t *testing.T) {
	base := map[string]interface{}{
		"a": map[string]interface{}{"x": 1},
	}
	override := map[string]interface{}{
		"a": map[string]interface{}{"y": 2},
	}

	merged := deepMerge(base, override)

	assert.Equal(t, map[string]interface{}{"x": 1, "y": 2}, merged["a"])
	assert.Equal(t, map[string]interface{}{"x": 1}, base["a"])
	assert.Equal(t, map[string]interface{}{"y": 2}, override["a"])
}
