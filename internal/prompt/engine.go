// Package prompt resolves named prompt templates from configuration and
// substitutes named parameters. Rendering is a pure function of the
// configuration and the supplied parameters.
package prompt

import (
	"fmt"
	"strings"

	"faqforge/internal/config"
)

// NotFoundError indicates the named template is absent from configuration.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("prompt template not found: %s", e.Name)
}

// ParameterError indicates a placeholder referenced by the template is
// unbound and has no declared default.
type ParameterError struct {
	Template  string
	Parameter string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("prompt template %s: missing parameter %q", e.Template, e.Parameter)
}

// Engine renders templates declared under prompts.<name> in configuration.
// A template is either a plain string or a mapping with a "template" string
// and an optional "defaults" mapping of parameter fallbacks.
type Engine struct {
	doc *config.Document
}

// NewEngine creates an Engine over the resolved configuration.
func NewEngine(doc *config.Document) *Engine {
	return &Engine{doc: doc}
}

// Render resolves the named template and substitutes params into its
// {placeholder} references. Doubled braces escape literals: {{ renders as {
// and }} as }. An unbound placeholder without a declared default fails with
// ParameterError.
func (e *Engine) Render(name string, params map[string]interface{}) (string, error) {
	raw, err := e.doc.Get("prompts." + name)
	if err != nil {
		return "", &NotFoundError{Name: name}
	}

	text, defaults, uerr := unpackTemplate(name, raw)
	if uerr != nil {
		return "", uerr
	}
	return substitute(name, text, params, defaults)
}

// Has reports whether the named template is declared.
func (e *Engine) Has(name string) bool {
	return e.doc.Has("prompts." + name)
}

func unpackTemplate(name string, raw interface{}) (string, map[string]interface{}, error) {
	switch v := raw.(type) {
	case string:
		return v, nil, nil
	case map[string]interface{}:
		text, ok := v["template"].(string)
		if !ok {
			return "", nil, &NotFoundError{Name: name}
		}
		defaults, _ := v["defaults"].(map[string]interface{})
		return text, defaults, nil
	default:
		return "", nil, &NotFoundError{Name: name}
	}
}

func substitute(name, text string, params, defaults map[string]interface{}) (string, error) {
	var out strings.Builder
	out.Grow(len(text))

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '{' && i+1 < len(text) && text[i+1] == '{':
			out.WriteByte('{')
			i++
		case c == '}' && i+1 < len(text) && text[i+1] == '}':
			out.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(text[i:], '}')
			if end < 0 {
				return "", &ParameterError{Template: name, Parameter: text[i+1:]}
			}
			key := text[i+1 : i+end]
			value, ok := params[key]
			if !ok {
				value, ok = defaults[key]
			}
			if !ok {
				return "", &ParameterError{Template: name, Parameter: key}
			}
			fmt.Fprintf(&out, "%v", value)
			i += end
		default:
			out.WriteByte(c)
		}
	}

	return out.String(), nil
}
