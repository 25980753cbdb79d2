package report

import (
	"fmt"
	"io"
	"time"

	"github.com/ppiankov/contractrag/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	fieldsSheet  = "Fields"
	summarySheet = "Summary"
)

var summaryColumns = []string{"source", "document_type", "processed_at", "pages", "chunks", "fields_found", "fields_not_found", "field_errors"}

// WriteXLSX writes a workbook with a field sheet and a per-document summary sheet
func WriteXLSX(w io.Writer, reports []*model.DocumentReport) error {
	f := excelize.NewFile()
	defer f.Close()

	// The default Sheet1 becomes the field sheet
	if err := f.SetSheetName(f.GetSheetName(0), fieldsSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	rows := [][]any{toAny(columns)}
	for _, r := range reports {
		for _, out := range r.Fields {
			rows = append(rows, []any{r.Source, r.DocumentType, out.Field, out.Value.String(), out.PageNum})
		}
	}
	if err := writeSheet(f, fieldsSheet, rows, header); err != nil {
		return err
	}
	_ = f.SetColWidth(fieldsSheet, "A", "A", 40)
	_ = f.SetColWidth(fieldsSheet, "C", "C", 32)
	_ = f.SetColWidth(fieldsSheet, "D", "D", 60)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	rows = [][]any{toAny(summaryColumns)}
	for _, r := range reports {
		st := r.Stats
		rows = append(rows, []any{
			r.Source, r.DocumentType, r.ProcessedAt.UTC().Format(time.RFC3339),
			st.Pages, st.Chunks, st.FieldsFound, st.FieldsNotFound, st.FieldErrors,
		})
	}
	if err := writeSheet(f, summarySheet, rows, header); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, values := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) > 0 {
		last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to style %s header: %w", sheet, err)
		}
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
