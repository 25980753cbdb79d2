package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/ppiankov/contractrag/internal/model"
	"github.com/ppiankov/contractrag/internal/report"
	"github.com/ppiankov/contractrag/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	resultsStore  string
	resultsType   string
	resultsLimit  int
	resultsFormat string
)

// resultsCmd browses reports saved with --store
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Browse saved extraction results",
	Long: `Results reads reports saved by extract or batch with --store
(or output.store_path in the config file).

Example:
  contractrag results list --store results.db --type msa
  contractrag results show 6f1c... --store results.db --format csv`,
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved reports, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openResults()
		if err != nil {
			return err
		}
		defer s.Close()

		summaries, err := s.List(cmd.Context(), store.ListOptions{DocumentType: resultsType, Limit: resultsLimit})
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTYPE\tPROCESSED\tFOUND\tNOT FOUND\tSOURCE")
		for _, sum := range summaries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", sum.ID, sum.DocumentType,
				sum.ProcessedAt.Local().Format(time.DateTime), sum.Stats.FieldsFound, sum.Stats.FieldsNotFound, sum.Source)
		}
		return tw.Flush()
	},
}

var resultsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one saved report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openResults()
		if err != nil {
			return err
		}
		defer s.Close()

		doc, err := s.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if resultsFormat == report.FormatXLSX {
			return fmt.Errorf("xlsx is only supported for files; use extract or batch with --output")
		}
		return report.Write(cmd.OutOrStdout(), resultsFormat, []*model.DocumentReport{doc})
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)

	resultsCmd.PersistentFlags().StringVar(&resultsStore, "store", "", "SQLite result database (default: output.store_path)")
	resultsListCmd.Flags().StringVarP(&resultsType, "type", "t", "", "only list this document type")
	resultsListCmd.Flags().IntVar(&resultsLimit, "limit", 20, "maximum reports to list (0 = all)")
	resultsShowCmd.Flags().StringVar(&resultsFormat, "format", report.FormatJSON, "output format: json, csv")
}

func openResults() (*store.ResultStore, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if resultsStore != "" {
		cfg.Output.StorePath = resultsStore
	}
	if cfg.Output.StorePath == "" {
		return nil, fmt.Errorf("no result store configured (use --store or output.store_path)")
	}
	return openStore(cfg)
}
