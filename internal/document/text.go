package document

import (
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/contractrag/internal/model"
)

// TextLoader reads plain text; form feeds separate pages
type TextLoader struct{}

func (TextLoader) Name() string { return "text" }

func (TextLoader) CanHandle(name, contentType string) bool {
	return hasExt(name, ".txt", ".text", ".md") || strings.HasPrefix(mediaType(contentType), "text/plain")
}

func (TextLoader) Load(data []byte) ([]model.Page, error) {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	parts := strings.Split(text, "\f")
	pages := make([]model.Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, model.Page{PageNumber: i + 1, Text: part})
	}
	return pages, nil
}
