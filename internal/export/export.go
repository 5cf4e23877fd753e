// Package export writes the generated dataset out in its distribution
// formats: a flat CSV for knowledge-base import, a JSON envelope with dataset
// metadata, and a JSONL file shaped for vector search ingestion.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"faqforge/internal/generation"
)

// Default artifact filenames.
const (
	CSVName    = "banking_faqs.csv"
	JSONName   = "banking_faqs.json"
	VectorName = "banking_faqs_vectorsearch.jsonl"

	GenerationReportName = "generation_report.json"
	QualityReportName    = "quality_report.json"
)

const generatorName = "faqforge v1.0"

// Embedder is the slice of the embedding engine the vector export needs.
// A nil Embedder leaves the embedding field off each line.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Writer emits dataset artifacts into a single output directory.
type Writer struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger attaches a logger; the default is a nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Writer) { w.logger = logger }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// New creates a Writer rooted at dir. The directory is created on first
// write.
func New(dir string, opts ...Option) *Writer {
	w := &Writer{
		dir:    dir,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// recordID formats the stable position-based identifier, 1-indexed.
func recordID(idx int) string {
	return fmt.Sprintf("FAQ_%04d", idx)
}

// WriteCSV writes records as a flat CSV with one row per record. Keywords
// are joined with ", "; the created_date column carries the write date.
func (w *Writer) WriteCSV(records []generation.Record, filename string) (string, error) {
	if filename == "" {
		filename = CSVName
	}
	path, f, err := w.create(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	created := w.now().UTC().Format("2006-01-02")

	cw := csv.NewWriter(f)
	header := []string{
		"id", "question", "answer", "keywords", "difficulty",
		"segment", "category", "subcategory", "created_date",
	}
	if err := cw.Write(header); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i, rec := range records {
		row := []string{
			recordID(i + 1),
			rec.Question,
			rec.Answer,
			strings.Join(rec.Keywords, ", "),
			rec.Difficulty,
			rec.Segment,
			rec.Category,
			rec.Subcategory,
			created,
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("failed to write CSV row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}

	w.logger.Info("CSV exported", zap.String("path", path), zap.Int("records", len(records)))
	return path, nil
}

// Dataset is the JSON export envelope.
type Dataset struct {
	Metadata DatasetMetadata     `json:"metadata"`
	FAQs     []generation.Record `json:"faqs"`
}

// DatasetMetadata describes the exported record set.
type DatasetMetadata struct {
	TotalFAQs     int      `json:"total_faqs"`
	GeneratedDate string   `json:"generated_date"`
	Categories    []string `json:"categories"`
	Generator     string   `json:"generator"`
}

// WriteJSON writes records inside a metadata envelope.
func (w *Writer) WriteJSON(records []generation.Record, filename string) (string, error) {
	if filename == "" {
		filename = JSONName
	}

	ds := Dataset{
		Metadata: DatasetMetadata{
			TotalFAQs:     len(records),
			GeneratedDate: w.now().UTC().Format(time.RFC3339),
			Categories:    categoryNames(records),
			Generator:     generatorName,
		},
		FAQs: records,
	}
	path, err := w.writeJSONFile(filename, ds)
	if err != nil {
		return "", err
	}

	w.logger.Info("JSON exported", zap.String("path", path), zap.Int("records", len(records)))
	return path, nil
}

// VectorRecord is one JSONL line of the vector search export. Text combines
// question, answer, and keywords into the embedding input.
type VectorRecord struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Question  string         `json:"question"`
	Answer    string         `json:"answer"`
	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  VectorMetadata `json:"metadata"`
}

// VectorMetadata carries the filterable attributes per line.
type VectorMetadata struct {
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Difficulty  string   `json:"difficulty"`
	Segment     string   `json:"segment"`
	Keywords    []string `json:"keywords"`
	CreatedDate string   `json:"created_date"`
}

// WriteVectorJSONL writes one JSON object per line for vector search
// ingestion. With a non-nil embedder each line also carries the embedding of
// its combined text; embedding failure fails the export rather than emitting
// a partially embedded file.
func (w *Writer) WriteVectorJSONL(ctx context.Context, records []generation.Record, filename string, embedder Embedder) (string, error) {
	if filename == "" {
		filename = VectorName
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = combinedText(rec)
	}

	var vectors [][]float32
	if embedder != nil && len(records) > 0 {
		var err error
		vectors, err = embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return "", fmt.Errorf("failed to embed records: %w", err)
		}
		if len(vectors) != len(records) {
			return "", fmt.Errorf("embedder returned %d vectors for %d records", len(vectors), len(records))
		}
	}

	path, f, err := w.create(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	created := w.now().UTC().Format(time.RFC3339)
	enc := json.NewEncoder(f)
	for i, rec := range records {
		line := VectorRecord{
			ID:       recordID(i + 1),
			Text:     texts[i],
			Question: rec.Question,
			Answer:   rec.Answer,
			Metadata: VectorMetadata{
				Category:    rec.Category,
				Subcategory: rec.Subcategory,
				Difficulty:  rec.Difficulty,
				Segment:     rec.Segment,
				Keywords:    keywordsOrEmpty(rec.Keywords),
				CreatedDate: created,
			},
		}
		if vectors != nil {
			line.Embedding = vectors[i]
		}
		if err := enc.Encode(line); err != nil {
			return "", fmt.Errorf("failed to write JSONL line %d: %w", i+1, err)
		}
	}

	w.logger.Info("vector search JSONL exported",
		zap.String("path", path),
		zap.Int("records", len(records)),
		zap.Bool("embedded", vectors != nil))
	return path, nil
}

// ReadDataset loads records from a JSON file, accepting either the metadata
// envelope or a bare record array.
func ReadDataset(path string) ([]generation.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err == nil && ds.FAQs != nil {
		return ds.FAQs, nil
	}

	var records []generation.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("dataset must be a record array or an envelope with a faqs key: %w", err)
	}
	return records, nil
}

func combinedText(rec generation.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nAnswer: %s", rec.Question, rec.Answer)
	if len(rec.Keywords) > 0 {
		fmt.Fprintf(&b, "\n\nKeywords: %s", strings.Join(rec.Keywords, ", "))
	}
	return b.String()
}

func categoryNames(records []generation.Record) []string {
	seen := make(map[string]bool)
	var names []string
	for _, rec := range records {
		if !seen[rec.Category] {
			seen[rec.Category] = true
			names = append(names, rec.Category)
		}
	}
	sort.Strings(names)
	return names
}

func keywordsOrEmpty(kw []string) []string {
	if kw == nil {
		return []string{}
	}
	return kw
}

func (w *Writer) create(filename string) (string, *os.File, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(w.dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create %s: %w", filename, err)
	}
	return path, f, nil
}

func (w *Writer) writeJSONFile(filename string, v interface{}) (string, error) {
	path, f, err := w.create(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", filename, err)
	}
	return path, nil
}
