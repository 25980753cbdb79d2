package chunk

import (
	"fmt"
	"iter"
	"strings"

	"github.com/ppiankov/contractrag/internal/model"
)

// Boundary levels tried in order when a span is still larger than the chunk size.
// After the last level spans are cut at character granularity.
var separatorLevels = compileLevels(
	[]string{"\n\n"},
	[]string{"\n"},
	[]string{". ", "! ", "? ", "; "},
	[]string{" "},
)

// Splitter splits page text into bounded, overlapping segments
type Splitter struct {
	maxSize int
	overlap int
}

// Segment is one emitted chunk with its rune offsets in the source text
type Segment struct {
	Text  string
	Start int // inclusive rune offset
	End   int // exclusive rune offset
}

type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// NewSplitter creates a splitter; sizes are measured in characters (runes)
func NewSplitter(maxSize, overlap int) (*Splitter, error) {
	if maxSize <= 0 {
		return nil, &model.ConfigurationError{Reason: fmt.Sprintf("chunk size must be positive, got %d", maxSize)}
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, &model.ConfigurationError{Reason: fmt.Sprintf("chunk overlap must be in [0, %d), got %d", maxSize, overlap)}
	}
	return &Splitter{maxSize: maxSize, overlap: overlap}, nil
}

// MaxSize returns the configured chunk size
func (s *Splitter) MaxSize() int { return s.maxSize }

// Overlap returns the configured overlap
func (s *Splitter) Overlap() int { return s.overlap }

// Split yields the segments of text. Each range over the sequence re-splits
// from the start. Blank text yields nothing.
func (s *Splitter) Split(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for seg := range s.segments(text) {
			if !yield(seg.Text) {
				return
			}
		}
	}
}

// Segments returns all segments of text with their offsets
func (s *Splitter) Segments(text string) []Segment {
	var out []Segment
	for seg := range s.segments(text) {
		out = append(out, seg)
	}
	return out
}

// SplitPage splits one page into chunks tagged with its page number.
// Whitespace-only segments are not worth embedding and are skipped.
func (s *Splitter) SplitPage(page model.Page) []model.Chunk {
	var chunks []model.Chunk
	for text := range s.Split(page.Text) {
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, model.Chunk{Text: text, PageNumber: page.PageNumber})
	}
	return chunks
}

// SplitPages splits pages in order
func (s *Splitter) SplitPages(pages []model.Page) []model.Chunk {
	var chunks []model.Chunk
	for _, page := range pages {
		chunks = append(chunks, s.SplitPage(page)...)
	}
	return chunks
}

func (s *Splitter) segments(text string) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		if strings.TrimSpace(text) == "" {
			return
		}
		runes := []rune(text)
		pieces := s.pieces(runes, span{0, len(runes)}, 0)
		s.merge(pieces, func(sp span) bool {
			return yield(Segment{Text: string(runes[sp.start:sp.end]), Start: sp.start, End: sp.end})
		})
	}
}

// pieces cuts sp into contiguous spans no longer than maxSize, preferring
// the coarsest boundary level that works. Separators stay attached to the
// end of the piece they terminate, so pieces tile the text exactly.
func (s *Splitter) pieces(runes []rune, sp span, level int) []span {
	if sp.len() <= s.maxSize {
		return []span{sp}
	}
	if level >= len(separatorLevels) {
		out := make([]span, 0, sp.len())
		for i := sp.start; i < sp.end; i++ {
			out = append(out, span{i, i + 1})
		}
		return out
	}

	parts := splitAfter(runes, sp, separatorLevels[level])
	if len(parts) == 1 {
		return s.pieces(runes, sp, level+1)
	}

	out := make([]span, 0, len(parts))
	for _, p := range parts {
		if p.len() <= s.maxSize {
			out = append(out, p)
			continue
		}
		out = append(out, s.pieces(runes, p, level+1)...)
	}
	return out
}

// merge packs consecutive pieces into windows of at most maxSize runes.
// When a window is emitted, its trailing pieces totalling at most overlap
// runes are carried into the next window.
func (s *Splitter) merge(pieces []span, emit func(span) bool) {
	var window []span
	size := 0

	for _, p := range pieces {
		n := p.len()
		if len(window) > 0 && size+n > s.maxSize {
			if !emit(span{window[0].start, window[len(window)-1].end}) {
				return
			}
			for len(window) > 0 && (size > s.overlap || size+n > s.maxSize) {
				size -= window[0].len()
				window = window[1:]
			}
		}
		window = append(window, p)
		size += n
	}

	if len(window) > 0 {
		emit(span{window[0].start, window[len(window)-1].end})
	}
}

func splitAfter(runes []rune, sp span, seps [][]rune) []span {
	var out []span
	start := sp.start
	for i := sp.start; i < sp.end; {
		if n := matchAt(runes, i, sp.end, seps); n > 0 {
			i += n
			out = append(out, span{start, i})
			start = i
			continue
		}
		i++
	}
	if start < sp.end {
		out = append(out, span{start, sp.end})
	}
	return out
}

func matchAt(runes []rune, i, end int, seps [][]rune) int {
	for _, sep := range seps {
		if i+len(sep) > end {
			continue
		}
		matched := true
		for j, r := range sep {
			if runes[i+j] != r {
				matched = false
				break
			}
		}
		if matched {
			return len(sep)
		}
	}
	return 0
}

func compileLevels(levels ...[]string) [][][]rune {
	out := make([][][]rune, len(levels))
	for i, level := range levels {
		for _, sep := range level {
			out[i] = append(out[i], []rune(sep))
		}
	}
	return out
}
