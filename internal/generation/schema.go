package generation

import (
	"encoding/json"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

// candidateSchema screens raw candidate objects before they are mapped into
// records. It checks structure only (field types); content thresholds are
// the validator's concern.
const candidateSchema = `{
  "type": "object",
  "required": ["question", "answer"],
  "properties": {
    "question": {"type": "string", "minLength": 1},
    "answer": {"type": "string", "minLength": 1},
    "keywords": {"type": "array", "items": {"type": "string"}},
    "difficulty": {"type": "string"},
    "segment": {"type": "string"},
    "category": {"type": "string"},
    "subcategory": {"type": "string"}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
)

func candidateSchemaCompiled() *jsonschema.Schema {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		schema, err := compiler.Compile([]byte(candidateSchema))
		if err != nil {
			// The schema is a compile-time constant; failing to compile it
			// is a programming error.
			panic("generation: invalid candidate schema: " + err.Error())
		}
		compiledSchema = schema
	})
	return compiledSchema
}

// screenCandidate reports whether a raw candidate object has the expected
// structure. Failing candidates are dropped from the parse, not errors.
func screenCandidate(obj map[string]interface{}) bool {
	data, err := json.Marshal(obj)
	if err != nil {
		return false
	}
	result := candidateSchemaCompiled().ValidateJSON(data)
	return result.IsValid()
}
