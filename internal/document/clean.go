package document

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	escapedNewline = regexp.MustCompile(`\\n`)
	unicodeEscape  = regexp.MustCompile(`\\u[a-zA-Z0-9]{4}`)
)

// Clean strips escape residue left by extraction and collapses whitespace
func Clean(text string) string {
	text = escapedNewline.ReplaceAllString(text, " ")
	text = unicodeEscape.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, `\`, "")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
