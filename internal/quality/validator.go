package quality

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"faqforge/internal/generation"
)

// Violation is one rule breach on one record.
type Violation struct {
	Rule     string   `json:"rule"`
	Reason   string   `json:"reason"`
	Severity Severity `json:"-"`
	Detail   string   `json:"detail,omitempty"`
}

// RecordResult is the outcome of validating a single record.
type RecordResult struct {
	Record     generation.Record
	Violations []Violation
	Accepted   bool
}

// HardReasons returns the reasons of hard-fail violations.
func (r *RecordResult) HardReasons() []string {
	var reasons []string
	for _, v := range r.Violations {
		if v.Severity == SeverityHard {
			reasons = append(reasons, v.Reason)
		}
	}
	return reasons
}

// WarningReasons returns the reasons of warning violations.
func (r *RecordResult) WarningReasons() []string {
	var reasons []string
	for _, v := range r.Violations {
		if v.Severity == SeverityWarning {
			reasons = append(reasons, v.Reason)
		}
	}
	return reasons
}

// Report is the accept/reject partition of a validated record set. Rejected
// records are retained with their violated rule names for diagnostics.
type Report struct {
	Total   int
	Results []RecordResult
}

// Accepted returns the records with zero hard-fail violations.
func (r *Report) Accepted() []generation.Record {
	out := make([]generation.Record, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Accepted {
			out = append(out, res.Record)
		}
	}
	return out
}

// Rejected returns the results for records excluded by hard-fail rules.
func (r *Report) Rejected() []RecordResult {
	var out []RecordResult
	for _, res := range r.Results {
		if !res.Accepted {
			out = append(out, res)
		}
	}
	return out
}

// WarningCount returns the total number of warning violations.
func (r *Report) WarningCount() int {
	n := 0
	for _, res := range r.Results {
		for _, v := range res.Violations {
			if v.Severity == SeverityWarning {
				n++
			}
		}
	}
	return n
}

// Validator applies a fixed rule set to records. Construction fails with
// RuleError on a malformed rule definition, before any record is seen.
type Validator struct {
	rules []Rule
}

// New creates a Validator, checking every rule definition up front.
func New(rules []Rule) (*Validator, error) {
	for _, r := range rules {
		if err := checkRule(r); err != nil {
			return nil, err
		}
	}
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &Validator{rules: copied}, nil
}

// Validate applies every rule to every record independently. It never
// mutates input records and is deterministic: identical inputs yield an
// identical partition.
func (v *Validator) Validate(records []generation.Record) *Report {
	report := &Report{
		Total:   len(records),
		Results: make([]RecordResult, 0, len(records)),
	}

	for _, rec := range records {
		result := RecordResult{Record: rec, Accepted: true}
		for _, rule := range v.rules {
			if violation := applyRule(rule, rec); violation != nil {
				result.Violations = append(result.Violations, *violation)
				if violation.Severity == SeverityHard {
					result.Accepted = false
				}
			}
		}
		report.Results = append(report.Results, result)
	}

	return report
}

// applyRule evaluates one rule against one record, returning nil when the
// rule is satisfied.
func applyRule(rule Rule, rec generation.Record) *Violation {
	switch rule.Kind {
	case KindLengthBound:
		length := utf8.RuneCountInString(strings.TrimSpace(textField(rec, rule.Field)))
		if rule.Min > 0 && length < rule.Min {
			return violation(rule, fmt.Sprintf("%s_length_below_minimum", rule.Field),
				fmt.Sprintf("%d chars, minimum %d", length, rule.Min))
		}
		if rule.Max > 0 && length > rule.Max {
			return violation(rule, fmt.Sprintf("%s_length_above_maximum", rule.Field),
				fmt.Sprintf("%d chars, maximum %d", length, rule.Max))
		}

	case KindSetSizeBound:
		size := len(rec.Keywords)
		if rule.Min > 0 && size < rule.Min {
			return violation(rule, fmt.Sprintf("%s_below_minimum", rule.Field),
				fmt.Sprintf("%d elements, minimum %d", size, rule.Min))
		}
		if rule.Max > 0 && size > rule.Max {
			return violation(rule, fmt.Sprintf("%s_above_maximum", rule.Field),
				fmt.Sprintf("%d elements, maximum %d", size, rule.Max))
		}

	case KindEnumMembership:
		value := textField(rec, rule.Field)
		for _, allowed := range rule.Allowed {
			if value == allowed {
				return nil
			}
		}
		return violation(rule, fmt.Sprintf("%s_invalid", rule.Field),
			fmt.Sprintf("%q not in %v", value, rule.Allowed))

	case KindNonEmpty:
		if strings.TrimSpace(textField(rec, rule.Field)) == "" {
			return violation(rule, fmt.Sprintf("%s_empty", rule.Field), "")
		}

	case KindEndsWith:
		value := strings.TrimSpace(textField(rec, rule.Field))
		if !strings.HasSuffix(value, rule.Suffix) {
			return violation(rule, fmt.Sprintf("%s_missing_suffix", rule.Field),
				fmt.Sprintf("expected trailing %q", rule.Suffix))
		}

	case KindRepetition:
		if hasRepetitiveContent(textField(rec, rule.Field), rule.Ratio) {
			return violation(rule, fmt.Sprintf("%s_repetitive_content", rule.Field), "")
		}
	}
	return nil
}

func violation(rule Rule, reason, detail string) *Violation {
	return &Violation{Rule: rule.Name, Reason: reason, Severity: rule.Severity, Detail: detail}
}

func textField(rec generation.Record, field Field) string {
	switch field {
	case FieldQuestion:
		return rec.Question
	case FieldAnswer:
		return rec.Answer
	case FieldDifficulty:
		return rec.Difficulty
	case FieldSegment:
		return rec.Segment
	case FieldCategory:
		return rec.Category
	case FieldSubcategory:
		return rec.Subcategory
	}
	return ""
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// hasRepetitiveContent reports whether any single sentence makes up more
// than ratio of the text, a copy-paste signal in generated answers. The
// ratio is over all split segments, including the empty segment after a
// final terminator; texts splitting into fewer than three segments are
// never flagged.
func hasRepetitiveContent(text string, ratio float64) bool {
	sentences := sentenceSplit.Split(text, -1)
	if len(sentences) < 3 {
		return false
	}
	counts := make(map[string]int)
	maxCount := 0
	for _, s := range sentences {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		counts[s]++
		if counts[s] > maxCount {
			maxCount = counts[s]
		}
	}
	return float64(maxCount)/float64(len(sentences)) > ratio
}
