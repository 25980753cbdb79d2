package model

// Page is one physical page of a loaded document
type Page struct {
	PageNumber int    `json:"page_number"` // 1-based physical page number
	Text       string `json:"text"`        // Cleaned page text
}

// Chunk is a bounded text segment derived from one page
type Chunk struct {
	ID         string    `json:"id,omitempty"`        // Opaque identifier assigned by the index
	Text       string    `json:"text"`                // Segment text
	PageNumber int       `json:"page_number"`         // Provenance
	Embedding  []float32 `json:"embedding,omitempty"` // Unit-length vector
}

// Passage is a retrieved chunk stripped of its similarity score
type Passage struct {
	Text       string `json:"text"`
	PageNumber int    `json:"page_number"`
}

// ScoredChunk is a search hit from the vector index
type ScoredChunk struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	PageNumber int     `json:"page_number"`
	Score      float32 `json:"score"` // Cosine similarity, higher is closer
}

// Passage drops the score, keeping text and provenance
func (s ScoredChunk) Passage() Passage {
	return Passage{Text: s.Text, PageNumber: s.PageNumber}
}
