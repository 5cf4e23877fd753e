package export

import (
	"time"

	"go.uber.org/zap"

	"faqforge/internal/generation"
	"faqforge/internal/pipeline"
	"faqforge/internal/quality"
)

// GenerationSummary is the JSON shape of the post-run statistics report.
type GenerationSummary struct {
	RunID        string                  `json:"run_id"`
	Environment  string                  `json:"environment,omitempty"`
	TotalFAQs    int                     `json:"total_faqs"`
	Requested    int                     `json:"requested"`
	ByCategory   map[string]int          `json:"by_category"`
	ByDifficulty map[string]int          `json:"by_difficulty"`
	BySegment    map[string]int          `json:"by_segment"`
	AvgQuestion  float64                 `json:"avg_question_length"`
	AvgAnswer    float64                 `json:"avg_answer_length"`
	Failures     []pipeline.BatchFailure `json:"failures,omitempty"`
	Aborted      bool                    `json:"aborted,omitempty"`
	AbortReason  string                  `json:"abort_reason,omitempty"`
	StartedAt    time.Time               `json:"started_at"`
	FinishedAt   time.Time               `json:"finished_at"`
}

// WriteGenerationReport summarizes a pipeline run into a JSON report.
func (w *Writer) WriteGenerationReport(report *pipeline.AggregateReport, filename string) (string, error) {
	if filename == "" {
		filename = GenerationReportName
	}

	summary := GenerationSummary{
		RunID:        report.RunID,
		Environment:  report.Environment,
		TotalFAQs:    len(report.Records),
		Requested:    report.TotalRequested(),
		ByCategory:   countBy(report.Records, func(r generation.Record) string { return r.Category }),
		ByDifficulty: countBy(report.Records, func(r generation.Record) string { return r.Difficulty }),
		BySegment:    countBy(report.Records, func(r generation.Record) string { return r.Segment }),
		AvgQuestion:  avgLen(report.Records, func(r generation.Record) string { return r.Question }),
		AvgAnswer:    avgLen(report.Records, func(r generation.Record) string { return r.Answer }),
		Failures:     report.Failures,
		Aborted:      report.Aborted,
		AbortReason:  report.AbortReason,
		StartedAt:    report.StartedAt,
		FinishedAt:   report.FinishedAt,
	}

	path, err := w.writeJSONFile(filename, summary)
	if err != nil {
		return "", err
	}
	w.logger.Info("generation report saved", zap.String("path", path))
	return path, nil
}

// QualityCounts is the summary block of the quality report.
type QualityCounts struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// RejectedRecord identifies one excluded record and why.
type RejectedRecord struct {
	Question string   `json:"question"`
	Reasons  []string `json:"reasons"`
}

// QualitySummary is the JSON shape of the validation report.
type QualitySummary struct {
	Summary      QualityCounts    `json:"summary"`
	ByCategory   map[string]int   `json:"category_distribution"`
	ByDifficulty map[string]int   `json:"difficulty_distribution"`
	BySegment    map[string]int   `json:"segment_distribution"`
	AvgQuestion  float64          `json:"avg_question_length"`
	AvgAnswer    float64          `json:"avg_answer_length"`
	AvgKeywords  float64          `json:"avg_keywords"`
	Rejected     []RejectedRecord `json:"rejected,omitempty"`
}

// WriteQualityReport summarizes a validation pass into a JSON report.
func (w *Writer) WriteQualityReport(report *quality.Report, filename string) (string, error) {
	if filename == "" {
		filename = QualityReportName
	}

	records := make([]generation.Record, 0, len(report.Results))
	for _, res := range report.Results {
		records = append(records, res.Record)
	}

	summary := QualitySummary{
		Summary: QualityCounts{
			Total:    report.Total,
			Valid:    len(report.Accepted()),
			Errors:   len(report.Rejected()),
			Warnings: report.WarningCount(),
		},
		ByCategory:   countBy(records, func(r generation.Record) string { return r.Category }),
		ByDifficulty: countBy(records, func(r generation.Record) string { return r.Difficulty }),
		BySegment:    countBy(records, func(r generation.Record) string { return r.Segment }),
		AvgQuestion:  avgLen(records, func(r generation.Record) string { return r.Question }),
		AvgAnswer:    avgLen(records, func(r generation.Record) string { return r.Answer }),
		AvgKeywords:  avgKeywords(records),
	}
	for _, res := range report.Rejected() {
		summary.Rejected = append(summary.Rejected, RejectedRecord{
			Question: res.Record.Question,
			Reasons:  res.HardReasons(),
		})
	}

	path, err := w.writeJSONFile(filename, summary)
	if err != nil {
		return "", err
	}
	w.logger.Info("quality report saved", zap.String("path", path))
	return path, nil
}

func countBy(records []generation.Record, key func(generation.Record) string) map[string]int {
	out := make(map[string]int)
	for _, rec := range records {
		k := key(rec)
		if k == "" {
			k = "unknown"
		}
		out[k]++
	}
	return out
}

func avgLen(records []generation.Record, text func(generation.Record) string) float64 {
	if len(records) == 0 {
		return 0
	}
	total := 0
	for _, rec := range records {
		total += len(text(rec))
	}
	return float64(total) / float64(len(records))
}

func avgKeywords(records []generation.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	total := 0
	for _, rec := range records {
		total += len(rec.Keywords)
	}
	return float64(total) / float64(len(records))
}
