package document

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/ppiankov/contractrag/internal/model"
)

// PDFLoader reads one page per physical PDF page
type PDFLoader struct{}

func (PDFLoader) Name() string { return "pdf" }

func (PDFLoader) CanHandle(name, contentType string) bool {
	return hasExt(name, ".pdf") || mediaType(contentType) == "application/pdf"
}

func (PDFLoader) Load(data []byte) (pages []model.Page, err error) {
	// The reader panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	n := reader.NumPage()
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, model.Page{PageNumber: i, Text: text})
	}
	return pages, nil
}
