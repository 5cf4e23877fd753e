package generation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseRecords turns the model's textual output into record candidates. The
// text may be wrapped in markdown code fences and may be a single object or
// an array. Candidates that fail structural screening or lack a question and
// answer are dropped; an unparseable body fails with MalformedResponseError.
func ParseRecords(text string) ([]Record, error) {
	cleaned := stripCodeFences(text)

	var raw interface{}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, &MalformedResponseError{Snippet: snippet([]byte(cleaned)), Err: err}
	}

	var candidates []interface{}
	switch v := raw.(type) {
	case []interface{}:
		candidates = v
	case map[string]interface{}:
		candidates = []interface{}{v}
	default:
		return nil, &MalformedResponseError{
			Snippet: snippet([]byte(cleaned)),
			Err:     fmt.Errorf("expected JSON object or array, got %T", raw),
		}
	}

	records := make([]Record, 0, len(candidates))
	for _, candidate := range candidates {
		obj, ok := candidate.(map[string]interface{})
		if !ok || !screenCandidate(obj) {
			continue
		}

		rec := Record{
			Question:    stringField(obj, "question"),
			Answer:      stringField(obj, "answer"),
			Keywords:    stringSliceField(obj, "keywords"),
			Difficulty:  stringField(obj, "difficulty"),
			Segment:     stringField(obj, "segment"),
			Category:    stringField(obj, "category"),
			Subcategory: stringField(obj, "subcategory"),
		}
		if rec.Question == "" || rec.Answer == "" {
			continue
		}
		if rec.Keywords == nil {
			rec.Keywords = []string{}
		}
		if rec.Difficulty == "" {
			rec.Difficulty = DifficultyBasic
		}
		if rec.Segment == "" {
			rec.Segment = SegmentRetail
		}
		records = append(records, rec)
	}

	return records, nil
}

// stripCodeFences removes a markdown ``` wrapper, including a json language
// tag, returning the fenced content. Text without fences passes through.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "```") {
		return text
	}

	parts := strings.Split(text, "```")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if cut, ok := strings.CutPrefix(part, "json"); ok {
			return strings.TrimSpace(cut)
		}
		if strings.HasPrefix(part, "[") || strings.HasPrefix(part, "{") {
			return part
		}
	}
	return text
}

func stringField(obj map[string]interface{}, key string) string {
	if s, ok := obj[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func stringSliceField(obj map[string]interface{}, key string) []string {
	raw, ok := obj[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
