package config

import (
	"strings"
	"time"
)

// Document is an immutable, queryable configuration resolved from the merge
// of the base document, an optional environment overlay, and secret bindings.
// Keys are case-sensitive; dot paths navigate nested mappings only, never
// sequences.
type Document struct {
	env     string
	values  map[string]interface{}
	secrets map[string]string
}

// Environment returns the environment name this document was resolved for.
func (d *Document) Environment() string {
	return d.env
}

// Values returns a shallow copy of the merged configuration tree, for
// inspection. Nested mappings are shared with the document and must not be
// mutated.
func (d *Document) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// Get returns the value at the dotted key path. A missing path fails with
// KeyMissingError; use GetDefault when absence is acceptable.
func (d *Document) Get(path string) (interface{}, error) {
	v, ok := d.lookup(path)
	if !ok {
		return nil, &KeyMissingError{Path: path}
	}
	return v, nil
}

// GetDefault returns the value at the dotted key path, or def when the path
// is absent. It never fails.
func (d *Document) GetDefault(path string, def interface{}) interface{} {
	v, ok := d.lookup(path)
	if !ok {
		return def
	}
	return v
}

// Has reports whether the dotted key path is present.
func (d *Document) Has(path string) bool {
	_, ok := d.lookup(path)
	return ok
}

// GetString returns the string at path, failing with KeyMissingError or
// TypeError as appropriate.
func (d *Document) GetString(path string) (string, error) {
	v, err := d.Get(path)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Path: path, Want: "string", Got: v}
	}
	return s, nil
}

// StringDefault returns the string at path or def when absent or non-string.
func (d *Document) StringDefault(path, def string) string {
	v, ok := d.lookup(path)
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

// IntDefault returns the integer at path or def when absent or non-numeric.
// YAML scalars decode as int or float64 depending on notation; both are
// accepted.
func (d *Document) IntDefault(path string, def int) int {
	v, ok := d.lookup(path)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

// FloatDefault returns the float at path or def when absent or non-numeric.
func (d *Document) FloatDefault(path string, def float64) float64 {
	v, ok := d.lookup(path)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

// BoolDefault returns the bool at path or def when absent or non-bool.
func (d *Document) BoolDefault(path string, def bool) bool {
	v, ok := d.lookup(path)
	if !ok {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// DurationDefault parses the string at path as a duration, falling back to
// def when absent or unparseable.
func (d *Document) DurationDefault(path string, def time.Duration) time.Duration {
	s, ok := d.lookup(path)
	if !ok {
		return def
	}
	str, ok := s.(string)
	if !ok {
		return def
	}
	dur, err := time.ParseDuration(str)
	if err != nil {
		return def
	}
	return dur
}

// Map returns the mapping at path, failing with KeyMissingError or TypeError.
func (d *Document) Map(path string) (map[string]interface{}, error) {
	v, err := d.Get(path)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, &TypeError{Path: path, Want: "mapping", Got: v}
	}
	return m, nil
}

// Secret returns the named secret binding. Absence is reported with
// SecretMissingError at this read, never at resolve time.
func (d *Document) Secret(name string) (string, error) {
	v, ok := d.secrets[name]
	if !ok || v == "" {
		return "", &SecretMissingError{Name: name}
	}
	return v, nil
}

// lookup walks the dot path through nested mappings.
func (d *Document) lookup(path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	var current interface{} = d.values
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
