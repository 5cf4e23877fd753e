// Package quality applies structural and threshold rules to generated
// records. Rules are data, not code: tagged variants that can be loaded from
// configuration and tested independently of the engine. Violations of
// hard-fail rules exclude a record from the accepted set; warnings are
// recorded but non-exclusionary. Data-quality problems are never errors.
package quality

import (
	"fmt"

	"faqforge/internal/config"
	"faqforge/internal/generation"
)

// Severity of a rule violation.
type Severity int

const (
	// SeverityHard excludes the record from the accepted set.
	SeverityHard Severity = iota
	// SeverityWarning is recorded but does not exclude the record.
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "hard"
}

// RuleKind tags the predicate family of a rule.
type RuleKind string

const (
	// KindLengthBound bounds the character length of a text field.
	KindLengthBound RuleKind = "length_bound"
	// KindSetSizeBound bounds the element count of a set field.
	KindSetSizeBound RuleKind = "set_size_bound"
	// KindEnumMembership requires a field value from a closed set.
	KindEnumMembership RuleKind = "enum_membership"
	// KindNonEmpty requires a non-empty text field.
	KindNonEmpty RuleKind = "non_empty"
	// KindEndsWith requires a text field to end with a suffix.
	KindEndsWith RuleKind = "ends_with"
	// KindRepetition flags text with a high duplicate-sentence ratio.
	KindRepetition RuleKind = "repetition"
)

// Field names a record field a rule applies to.
type Field string

const (
	FieldQuestion    Field = "question"
	FieldAnswer      Field = "answer"
	FieldKeywords    Field = "keywords"
	FieldDifficulty  Field = "difficulty"
	FieldSegment     Field = "segment"
	FieldCategory    Field = "category"
	FieldSubcategory Field = "subcategory"
)

// Rule is one named predicate over a record field. Only the variant fields
// matching Kind are meaningful: Min/Max for bounds, Allowed for enum
// membership, Suffix for ends-with, Ratio for repetition.
type Rule struct {
	Name     string
	Kind     RuleKind
	Field    Field
	Severity Severity

	Min     int
	Max     int
	Allowed []string
	Suffix  string
	Ratio   float64
}

// RuleError indicates a malformed rule definition. It is surfaced when the
// validator is constructed, before any record is processed.
type RuleError struct {
	Rule   string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("invalid validation rule %s: %s", e.Rule, e.Reason)
}

// Default thresholds, matching the documented quality policy.
const (
	DefaultMinQuestionLength = 10
	DefaultMaxQuestionLength = 500
	DefaultMinAnswerLength   = 100
	DefaultMaxAnswerLength   = 2000
	DefaultMaxKeywords       = 10
	DefaultRepetitionRatio   = 0.3
)

// DefaultRules returns the built-in rule set with default thresholds.
func DefaultRules() []Rule {
	return rulesWithThresholds(
		DefaultMinQuestionLength, DefaultMaxQuestionLength,
		DefaultMinAnswerLength, DefaultMaxAnswerLength,
		DefaultMaxKeywords,
	)
}

// RulesFromConfig returns the built-in rule set with thresholds taken from
// the quality.* section of the resolved configuration, falling back to
// defaults for absent keys.
func RulesFromConfig(doc *config.Document) []Rule {
	return rulesWithThresholds(
		doc.IntDefault("quality.min_question_length", DefaultMinQuestionLength),
		doc.IntDefault("quality.max_question_length", DefaultMaxQuestionLength),
		doc.IntDefault("quality.min_answer_length", DefaultMinAnswerLength),
		doc.IntDefault("quality.max_answer_length", DefaultMaxAnswerLength),
		doc.IntDefault("quality.max_keywords", DefaultMaxKeywords),
	)
}

func rulesWithThresholds(minQ, maxQ, minA, maxA, maxKeywords int) []Rule {
	return []Rule{
		{
			Name: "question_length", Kind: KindLengthBound, Field: FieldQuestion,
			Min: minQ, Max: maxQ, Severity: SeverityHard,
		},
		{
			Name: "question_ends_with_question_mark", Kind: KindEndsWith, Field: FieldQuestion,
			Suffix: "?", Severity: SeverityWarning,
		},
		{
			Name: "answer_length", Kind: KindLengthBound, Field: FieldAnswer,
			Min: minA, Max: maxA, Severity: SeverityHard,
		},
		{
			Name: "keywords_required", Kind: KindSetSizeBound, Field: FieldKeywords,
			Min: 1, Max: 0, Severity: SeverityHard,
		},
		{
			Name: "keywords_maximum", Kind: KindSetSizeBound, Field: FieldKeywords,
			Min: 0, Max: maxKeywords, Severity: SeverityWarning,
		},
		{
			Name: "difficulty_declared", Kind: KindEnumMembership, Field: FieldDifficulty,
			Allowed: generation.Difficulties, Severity: SeverityHard,
		},
		{
			Name: "segment_declared", Kind: KindEnumMembership, Field: FieldSegment,
			Allowed: generation.Segments, Severity: SeverityWarning,
		},
		{
			Name: "category_present", Kind: KindNonEmpty, Field: FieldCategory,
			Severity: SeverityHard,
		},
		{
			Name: "subcategory_present", Kind: KindNonEmpty, Field: FieldSubcategory,
			Severity: SeverityHard,
		},
		{
			Name: "answer_not_repetitive", Kind: KindRepetition, Field: FieldAnswer,
			Ratio: DefaultRepetitionRatio, Severity: SeverityWarning,
		},
	}
}

// checkRule validates a rule definition. Called once at validator
// construction.
func checkRule(r Rule) error {
	if r.Name == "" {
		return &RuleError{Rule: "(unnamed)", Reason: "rule name required"}
	}
	switch r.Kind {
	case KindLengthBound, KindSetSizeBound:
		if r.Min < 0 || r.Max < 0 {
			return &RuleError{Rule: r.Name, Reason: "bounds must be non-negative"}
		}
		if r.Min == 0 && r.Max == 0 {
			return &RuleError{Rule: r.Name, Reason: "at least one bound required"}
		}
		if r.Min > 0 && r.Max > 0 && r.Min > r.Max {
			return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("min %d exceeds max %d", r.Min, r.Max)}
		}
	case KindEnumMembership:
		if len(r.Allowed) == 0 {
			return &RuleError{Rule: r.Name, Reason: "allowed values required"}
		}
	case KindEndsWith:
		if r.Suffix == "" {
			return &RuleError{Rule: r.Name, Reason: "suffix required"}
		}
	case KindRepetition:
		if r.Ratio <= 0 || r.Ratio >= 1 {
			return &RuleError{Rule: r.Name, Reason: "ratio must be in (0, 1)"}
		}
	case KindNonEmpty:
		// No parameters.
	default:
		return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("unknown rule kind %q", r.Kind)}
	}

	switch r.Field {
	case FieldQuestion, FieldAnswer, FieldKeywords, FieldDifficulty, FieldSegment, FieldCategory, FieldSubcategory:
		return nil
	default:
		return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("unknown field %q", r.Field)}
	}
}
