// Package config resolves layered YAML configuration into a single immutable
// document. Three layers are merged in precedence order: the base document,
// an optional per-environment overlay, and secret bindings from the process
// environment (optionally seeded from an untracked .env file). Higher layers
// win on key collision; non-overlapping keys are unioned.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Default secret bindings: secret name -> environment variable.
var defaultBindings = map[string]string{
	"gemini_api_key": "GEMINI_API_KEY",
}

// Resolver loads and merges configuration layers for a named environment.
type Resolver struct {
	dir      string
	bindings map[string]string
	logger   *zap.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for resolution warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithSecretBinding registers an additional secret name bound to an
// environment variable.
func WithSecretBinding(name, envVar string) Option {
	return func(r *Resolver) { r.bindings[name] = envVar }
}

// NewResolver creates a Resolver rooted at dir. The base document is
// dir/config.yaml and overlays are dir/config.<env>.yaml.
func NewResolver(dir string, opts ...Option) *Resolver {
	r := &Resolver{
		dir:      dir,
		bindings: make(map[string]string, len(defaultBindings)),
		logger:   zap.NewNop(),
	}
	for name, envVar := range defaultBindings {
		r.bindings[name] = envVar
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve merges the base document, the overlay for env, and secret bindings
// into one immutable Document. A missing base document fails with
// NotFoundError. A missing overlay is a warning only; resolution falls back
// to base plus secrets. Absent secrets do not fail here; they surface as
// SecretMissingError when read.
func (r *Resolver) Resolve(env string) (*Document, error) {
	basePath := filepath.Join(r.dir, "config.yaml")
	base, err := loadYAML(basePath)
	if err != nil {
		return nil, err
	}

	overlayPath := filepath.Join(r.dir, fmt.Sprintf("config.%s.yaml", env))
	overlay, err := loadYAML(overlayPath)
	if err != nil {
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			return nil, err
		}
		r.logger.Warn("environment overlay not found, using base configuration",
			zap.String("environment", env),
			zap.String("path", overlayPath))
		overlay = map[string]interface{}{}
	}

	merged := deepMerge(base, overlay)

	// .env seeds the process environment for local runs; values already in
	// the environment are not overwritten by godotenv.Load.
	_ = godotenv.Load(filepath.Join(r.dir, ".env"))

	secrets := make(map[string]string, len(r.bindings))
	secretLayer := make(map[string]interface{})
	for name, envVar := range r.bindings {
		if v := os.Getenv(envVar); v != "" {
			secrets[name] = v
			secretLayer[name] = v
		}
	}
	if len(secretLayer) > 0 {
		merged = deepMerge(merged, map[string]interface{}{"secrets": secretLayer})
	}

	return &Document{env: env, values: merged, secrets: secrets}, nil
}

func loadYAML(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	values := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return values, nil
}
