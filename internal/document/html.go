package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ppiankov/contractrag/internal/model"
	"golang.org/x/net/html"
)

// HTMLLoader reads the visible text of an HTML document as a single page
type HTMLLoader struct{}

func (HTMLLoader) Name() string { return "html" }

func (HTMLLoader) CanHandle(name, contentType string) bool {
	mt := mediaType(contentType)
	return hasExt(name, ".html", ".htm", ".xhtml") || mt == "text/html" || mt == "application/xhtml+xml"
}

func (HTMLLoader) Load(data []byte) ([]model.Page, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return []model.Page{{PageNumber: 1, Text: visibleText(doc)}}, nil
}

// visibleText collects text nodes, skipping non-rendered elements.
// Block elements end with a newline so words from adjacent cells never merge.
func visibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "template", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "br", "li", "tr", "td", "th", "h1", "h2", "h3", "h4", "h5", "h6", "section", "table":
				buf.WriteString("\n")
			}
		}
	}

	walk(n)
	return buf.String()
}
