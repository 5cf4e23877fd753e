package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"faqforge/internal/embedding"
	"faqforge/internal/export"
	"faqforge/internal/generation"
	"faqforge/internal/pipeline"
	"faqforge/internal/prompt"
	"faqforge/internal/quality"
	"faqforge/internal/store"
)

var (
	outputDir    string
	dbPath       string
	skipStore    bool
	onlyCategory []string
)

// generateCmd runs the full pipeline: generate, validate, export, record.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the generation pipeline and export the dataset",
	Long: `Generates FAQ records for every configured category in rate-limited
batches, validates them against the quality rules, and exports the accepted
records as CSV, JSON, and vector search JSONL together with generation and
quality reports. Each run is recorded in the history database.

A credential failure aborts the whole run; everything generated up to that
point is still validated and exported.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&outputDir, "output", "o", "output", "directory for exported artifacts")
	generateCmd.Flags().StringVar(&dbPath, "db", "", "SQLite path for run history (default <output>/faqforge.db)")
	generateCmd.Flags().BoolVar(&skipStore, "no-store", false, "skip recording the run in the history database")
	generateCmd.Flags().StringSliceVar(&onlyCategory, "categories", nil, "generate only these configured categories")
}

// filterCategories keeps the configured categories named in the filter.
func filterCategories(categories []pipeline.Category, names []string) ([]pipeline.Category, error) {
	if len(names) == 0 {
		return categories, nil
	}
	byName := make(map[string]pipeline.Category, len(categories))
	for _, cat := range categories {
		byName[cat.Name] = cat
	}
	out := make([]pipeline.Category, 0, len(names))
	for _, name := range names {
		cat, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("category %q is not configured", name)
		}
		out = append(out, cat)
	}
	return out, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	doc, err := resolveDocument()
	if err != nil {
		return err
	}

	apiKey, err := doc.Secret("gemini_api_key")
	if err != nil {
		return err
	}

	categories, err := pipeline.CategoriesFromConfig(doc)
	if err != nil {
		return err
	}
	categories, err = filterCategories(categories, onlyCategory)
	if err != nil {
		return err
	}

	rules := quality.RulesFromConfig(doc)
	validator, err := quality.New(rules)
	if err != nil {
		return err
	}

	genCfg := generation.DefaultGeminiConfig(apiKey)
	genCfg.Model = doc.StringDefault("generation.model", genCfg.Model)
	genCfg.Temperature = doc.FloatDefault("generation.temperature", genCfg.Temperature)
	genCfg.MaxTokens = doc.IntDefault("generation.max_tokens", genCfg.MaxTokens)
	genCfg.MinInterval = doc.DurationDefault("generation.min_interval", genCfg.MinInterval)
	genCfg.Timeout = doc.DurationDefault("generation.timeout", genCfg.Timeout)
	genCfg.Logger = logger
	client := generation.NewGeminiClientWithConfig(genCfg)

	opts := pipeline.OptionsFromConfig(doc)
	opts.Logger = logger
	orch := pipeline.New(client, prompt.NewEngine(doc), opts)

	report, runErr := orch.Run(ctx, categories)
	report.Environment = doc.Environment()

	// Validate and export whatever the run produced, aborted or not.
	qualityReport := validator.Validate(report.Records)
	accepted := qualityReport.Accepted()

	writer := export.New(outputDir, export.WithLogger(logger))
	if _, err := writer.WriteCSV(accepted, ""); err != nil {
		return err
	}
	if _, err := writer.WriteJSON(accepted, ""); err != nil {
		return err
	}

	engine, err := embedding.FromConfig(ctx, doc)
	if err != nil {
		return err
	}
	var embedder export.Embedder
	if engine != nil {
		embedder = engine
		logger.Info("embedding vector export", zap.String("engine", engine.Name()))
	}
	if _, err := writer.WriteVectorJSONL(ctx, accepted, "", embedder); err != nil {
		return err
	}

	if _, err := writer.WriteGenerationReport(report, ""); err != nil {
		return err
	}
	if _, err := writer.WriteQualityReport(qualityReport, ""); err != nil {
		return err
	}

	if !skipStore {
		path := dbPath
		if path == "" {
			path = filepath.Join(outputDir, "faqforge.db")
		}
		st, err := store.Open(path)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveRun(report, accepted); err != nil {
			return err
		}
	}

	fmt.Printf("Run %s: requested %d, generated %d, accepted %d (%d rejected, %d warnings)\n",
		report.RunID,
		report.TotalRequested(),
		report.TotalObtained(),
		len(accepted),
		len(qualityReport.Rejected()),
		qualityReport.WarningCount())
	for _, f := range report.Failures {
		fmt.Printf("  failed batch: category=%s batch=%d reason=%s attempts=%d\n",
			f.Category, f.Batch, f.Reason, f.Attempts)
	}

	if runErr != nil {
		return fmt.Errorf("run aborted: %w", runErr)
	}
	return nil
}
