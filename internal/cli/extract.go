package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/contractrag/internal/model"
	"github.com/ppiankov/contractrag/internal/pipeline"
	"github.com/ppiankov/contractrag/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	extractOpts    engineFlags
	extractOutput  string
	extractFormat  string
	extractTimeout time.Duration
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <document>",
	Short: "Extract contract fields from a single document",
	Long: `Extract loads one contract (PDF, text, HTML or JSON pages, from a local
path, an http(s) URL or s3://bucket/key), indexes it into a temporary
vector collection and resolves every field of the selected catalog.

The result is a list of {field, value, page_num} entries in catalog order.

Example:
  contractrag extract sow.pdf
  contractrag extract msa.pdf --type msa -o msa.xlsx
  contractrag extract s3://contracts/2024/sow.pdf --fields client_company_name,effective_date
  contractrag extract sow.pdf --catalog my-fields.yaml --llm-provider ollama --llm-model llama3`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractOpts.register(extractCmd)
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "output file (default: stdout)")
	extractCmd.Flags().StringVar(&extractFormat, "format", "", "output format: json, csv, xlsx (default: from --output extension or config)")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 15*time.Minute, "overall extraction timeout")
}

func runExtract(cmd *cobra.Command, args []string) error {
	location := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), extractTimeout)
	defer cancel()

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	extractOpts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	cat, err := extractOpts.catalog()
	if err != nil {
		return err
	}

	format := extractFormat
	if format == "" {
		format = report.FormatFromPath(extractOutput, cfg.Output.Format)
	}
	if format == report.FormatXLSX && extractOutput == "" {
		return fmt.Errorf("xlsx output needs --output")
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

	if verbose {
		stderrf("Extracting %d %s fields from %s\n", len(cat.Fields), cat.DocumentType, location)
		stderrf("LLM: %s/%s  Embeddings: %s  Index: %s\n\n", cfg.LLM.Provider, cfg.LLM.Model, cfg.Embedding.Provider, cfg.Index.Backend)
	}

	doc, err := engine.ProcessDocument(ctx, location)
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	if verbose {
		report.RenderSummary(os.Stderr, doc)
		stderrf("\n")
	}

	if extractOutput == "" {
		return report.Write(cmd.OutOrStdout(), format, []*model.DocumentReport{doc})
	}
	if err := report.WriteFile(extractOutput, format, []*model.DocumentReport{doc}); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	stderrf("✓ Wrote %s\n", extractOutput)
	return nil
}
