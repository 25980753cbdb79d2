package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ppiankov/contractrag/internal/catalog"
	"github.com/ppiankov/contractrag/internal/model"
	"github.com/spf13/cobra"
)

var (
	fieldsOpts engineFlags
	fieldsJSON bool
)

// fieldsCmd lists the fields of a catalog
var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the fields of a catalog",
	Long: `Fields prints the fields a catalog extracts, in output order, with their
retrieval depth and candidate queries.

Example:
  contractrag fields --type msa
  contractrag fields --catalog my-fields.yaml --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := fieldsOpts.catalog()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if fieldsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(cat)
		}

		fmt.Fprintf(out, "%s: %s\n", cat.DocumentType, cat.Description)
		fmt.Fprintf(out, "Built-in catalogs: %s\n\n", strings.Join(catalog.BuiltinTypes(), ", "))

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FIELD\tKIND\tK\tQUERIES")
		for _, f := range cat.Fields {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", f.Name, f.Kind(), f.TopK(model.DefaultTopK, model.GroupedTopK), len(f.CandidateQueries()))
			for _, sub := range f.Subfields {
				fmt.Fprintf(tw, "  └ %s\t\t\t\n", sub)
			}
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(fieldsCmd)

	fieldsCmd.Flags().StringVarP(&fieldsOpts.docType, "type", "t", "sow", "built-in field catalog")
	fieldsCmd.Flags().StringVar(&fieldsOpts.catalogPath, "catalog", "", "custom field catalog YAML")
	fieldsCmd.Flags().BoolVar(&fieldsJSON, "json", false, "print the catalog as JSON")
}
