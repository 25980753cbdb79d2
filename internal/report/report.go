// Package report renders document reports as JSON, CSV or XLSX
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ppiankov/contractrag/internal/model"
)

// Formats supported by Write
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var columns = []string{"source", "document_type", "field", "value", "page_num"}

// FormatFromPath picks a format from a file extension, falling back to def
func FormatFromPath(path, def string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".csv":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	}
	if def == "" {
		return FormatJSON
	}
	return strings.ToLower(def)
}

// Write renders reports in the given format
func Write(w io.Writer, format string, reports []*model.DocumentReport) error {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return WriteJSON(w, reports)
	case FormatCSV:
		return WriteCSV(w, reports)
	case FormatXLSX:
		return WriteXLSX(w, reports)
	default:
		return fmt.Errorf("unknown output format %q (supported: json, csv, xlsx)", format)
	}
}

// WriteFile renders reports to path, creating parent directories
func WriteFile(path, format string, reports []*model.DocumentReport) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := Write(f, format, reports); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteJSON writes a single report as its bare field list and several
// reports as an array of full reports
func WriteJSON(w io.Writer, reports []*model.DocumentReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	if len(reports) == 1 {
		return WriteFields(enc, reports[0].Fields)
	}
	if reports == nil {
		reports = []*model.DocumentReport{}
	}
	return enc.Encode(reports)
}

// WriteFields encodes the [{field, value, page_num}] list
func WriteFields(enc *json.Encoder, fields []model.FieldOutput) error {
	if fields == nil {
		fields = []model.FieldOutput{}
	}
	return enc.Encode(fields)
}

// WriteCSV writes one row per field output; list values are joined with ", "
func WriteCSV(w io.Writer, reports []*model.DocumentReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, r := range reports {
		for _, f := range r.Fields {
			if err := cw.Write(row(r, f)); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(r *model.DocumentReport, f model.FieldOutput) []string {
	return []string{r.Source, r.DocumentType, f.Field, f.Value.String(), strconv.Itoa(f.PageNum)}
}

// RenderSummary prints a short human summary of one report
func RenderSummary(w io.Writer, r *model.DocumentReport) {
	fmt.Fprintf(w, "\n%s", r.Source)
	if r.DocumentType != "" {
		fmt.Fprintf(w, " (%s)", r.DocumentType)
	}
	fmt.Fprintf(w, "\n  pages: %d  chunks: %d\n", r.Stats.Pages, r.Stats.Chunks)
	fmt.Fprintf(w, "  found: %d  not found: %d", r.Stats.FieldsFound, r.Stats.FieldsNotFound)
	if r.Stats.FieldErrors > 0 {
		fmt.Fprintf(w, "  errors: %d", r.Stats.FieldErrors)
	}
	fmt.Fprintln(w)

	width := 0
	for _, f := range r.Fields {
		if len(f.Field) > width {
			width = len(f.Field)
		}
	}
	for _, f := range r.Fields {
		if f.Value.IsNull() {
			fmt.Fprintf(w, "  %-*s  -\n", width, f.Field)
			continue
		}
		fmt.Fprintf(w, "  %-*s  %s (p.%d)\n", width, f.Field, truncate(f.Value.String(), 80), f.PageNum)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
