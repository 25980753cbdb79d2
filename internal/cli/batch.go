package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ppiankov/contractrag/internal/model"
	"github.com/ppiankov/contractrag/internal/pipeline"
	"github.com/ppiankov/contractrag/internal/report"
	"github.com/ppiankov/contractrag/internal/worker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	batchOpts    engineFlags
	concurrency  int
	globs        []string
	outputDir    string
	batchOutput  string
	batchFormat  string
	batchTimeout time.Duration
	rateLimit    float64
	noProgress   bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Extract fields from many documents in parallel",
	Long: `Batch processes many contracts concurrently:
- Read document paths or URIs from a file (one per line, # comments)
  and/or expand --glob patterns (** supported)
- Each document gets its own vector collection, so documents never mix
- A failing document is reported without stopping the batch
- Write one JSON field list per document and/or one combined report

Example:
  contractrag batch contracts.txt
  contractrag batch --glob 'contracts/**/*.pdf' --type msa --concurrency 4
  contractrag batch contracts.txt --output all.xlsx --store results.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchOpts.register(batchCmd)
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of documents processed at once")
	batchCmd.Flags().StringArrayVar(&globs, "glob", nil, "glob pattern selecting local documents (repeatable)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "write one JSON field list per document here")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "combined report file (json, csv or xlsx by extension)")
	batchCmd.Flags().StringVar(&batchFormat, "format", "", "combined report format (overrides the extension)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 2*time.Hour, "total timeout for batch processing")
	batchCmd.Flags().Float64Var(&rateLimit, "rate", 2, "remote document fetches per second per host (0 = unlimited)")
	batchCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	var listFile string
	if len(args) == 1 {
		listFile = args[0]
	}
	locations, err := collectLocations(listFile, globs)
	if err != nil {
		return err
	}
	if len(locations) == 0 {
		return fmt.Errorf("no documents to process (pass a list file or --glob)")
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	batchOpts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	cat, err := batchOpts.catalog()
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	opts := []pipeline.EngineOption{pipeline.WithDocumentType(cat.DocumentType)}
	results, err := openStore(cfg)
	if err != nil {
		return err
	}
	if results != nil {
		defer results.Close()
		opts = append(opts, pipeline.WithRecorder(results))
	}

	engine, closeEngine, err := pipeline.Build(ctx, cfg, cat.Fields, logger, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeEngine(); err != nil {
			logger.Printf("close engine: %v", err)
		}
	}()

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	stderrf("\n")
	stderrf("═══════════════════════════════════════════════════════════\n")
	stderrf("  ContractRAG Batch Extraction\n")
	stderrf("═══════════════════════════════════════════════════════════\n")
	stderrf("\n")
	stderrf("  Documents:    %d\n", len(locations))
	stderrf("  Catalog:      %s (%d fields)\n", cat.DocumentType, len(cat.Fields))
	stderrf("  Workers:      %d\n", concurrency)
	stderrf("  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	if outputDir != "" {
		stderrf("  Output dir:   %s\n", outputDir)
	}
	stderrf("\n")

	processor := worker.NewBatchProcessor(engine, concurrency, rateLimit, 1)
	var bar *progressbar.ProgressBar
	if !noProgress && !verbose {
		bar = newProgressBar(len(locations))
		processor.OnDone(func(*worker.DocumentResult) { _ = bar.Add(1) })
	}

	docResults := processor.ProcessDocuments(ctx, locations)
	if bar != nil {
		_ = bar.Finish()
	}

	var (
		reports  []*model.DocumentReport
		failures int
	)
	for _, res := range docResults {
		if res.Error != nil {
			failures++
			stderrf("✗ %s: %v\n", res.Location, res.Error)
			continue
		}
		reports = append(reports, res.Report)

		if outputDir != "" {
			path := filepath.Join(outputDir, reportFilename(res.Location))
			if err := report.WriteFile(path, report.FormatJSON, []*model.DocumentReport{res.Report}); err != nil {
				stderrf("✗ %s: failed to write JSON: %v\n", res.Location, err)
				continue
			}
		}
		stderrf("✓ %s (%d/%d fields found)\n", res.Location, res.Report.Stats.FieldsFound,
			res.Report.Stats.FieldsFound+res.Report.Stats.FieldsNotFound)
	}

	if batchOutput != "" && len(reports) > 0 {
		format := batchFormat
		if format == "" {
			format = report.FormatFromPath(batchOutput, cfg.Output.Format)
		}
		if err := report.WriteFile(batchOutput, format, reports); err != nil {
			return fmt.Errorf("write combined report: %w", err)
		}
	}

	stderrf("\n")
	stderrf("═══════════════════════════════════════════════════════════\n")
	stderrf("  Batch Complete\n")
	stderrf("═══════════════════════════════════════════════════════════\n")
	stderrf("\n")
	stderrf("  Total:     %d documents\n", len(docResults))
	stderrf("  Success:   %d\n", len(reports))
	stderrf("  Failures:  %d\n", failures)
	if batchOutput != "" {
		stderrf("  Output:    %s\n", batchOutput)
	}
	stderrf("\n")

	if len(reports) == 0 {
		return fmt.Errorf("all %d documents failed", failures)
	}
	return nil
}

// collectLocations merges the list file with glob matches, keeping first-seen order
func collectLocations(listFile string, patterns []string) ([]string, error) {
	var locations []string
	seen := make(map[string]bool)
	add := func(loc string) {
		if !seen[loc] {
			seen[loc] = true
			locations = append(locations, loc)
		}
	}

	if listFile != "" {
		fromFile, err := worker.ReadLocationsFromFile(listFile)
		if err != nil {
			return nil, err
		}
		for _, loc := range fromFile {
			add(loc)
		}
	}

	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
			return nil, fmt.Errorf("invalid glob pattern: %s", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", pattern, err)
		}
		for _, m := range matches {
			add(m)
		}
	}
	return locations, nil
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("extracting"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// reportFilename derives a safe JSON file name from a document location
func reportFilename(location string) string {
	name := location
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	name = strings.Trim(replacer.Replace(name), "._")
	if name == "" {
		name = "document"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name + ".json"
}
