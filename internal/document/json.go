package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/contractrag/internal/model"
)

// JSONLoader reads pre-extracted pages: [{"page_number": 1, "text": "..."}]
type JSONLoader struct{}

func (JSONLoader) Name() string { return "json" }

func (JSONLoader) CanHandle(name, contentType string) bool {
	return hasExt(name, ".json") || mediaType(contentType) == "application/json"
}

func (JSONLoader) Load(data []byte) ([]model.Page, error) {
	var pages []model.Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("decode pages: %w", err)
	}
	seen := make(map[int]bool, len(pages))
	for i, p := range pages {
		if p.PageNumber < 1 {
			return nil, fmt.Errorf("entry %d: page_number must be >= 1, got %d", i, p.PageNumber)
		}
		if seen[p.PageNumber] {
			return nil, fmt.Errorf("entry %d: duplicate page_number %d", i, p.PageNumber)
		}
		seen[p.PageNumber] = true
		pages[i].Text = strings.ToValidUTF8(p.Text, "�")
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].PageNumber < pages[j].PageNumber })
	return pages, nil
}
