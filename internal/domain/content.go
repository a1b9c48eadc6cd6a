package domain

// ContentRecord is one portfolio passage with its precomputed embedding.
// Records are immutable after the corpus is loaded.
type ContentRecord struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	URL       string    `json:"url"`
	Embedding []float32 `json:"embedding"`
}

// SeedRecord is a ContentRecord before embedding generation.
type SeedRecord struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// FallbackRecordID marks the synthetic record returned when no corpus
// source is available. Its zero vector scores 0 against every query.
const FallbackRecordID = "fallback"

// NewFallbackCorpus builds the single-record degraded corpus.
func NewFallbackCorpus(dimensions int) []ContentRecord {
	return []ContentRecord{{
		ID:        FallbackRecordID,
		Content:   "This is a fallback response because embeddings could not be loaded.",
		URL:       "#",
		Embedding: make([]float32, dimensions),
	}}
}

// ValidateCorpus reports whether records form a usable corpus: at least one
// record, and every embedding has the same non-zero dimension.
func ValidateCorpus(records []ContentRecord) bool {
	if len(records) == 0 {
		return false
	}
	dim := len(records[0].Embedding)
	if dim == 0 {
		return false
	}
	for _, r := range records[1:] {
		if len(r.Embedding) != dim {
			return false
		}
	}
	return true
}

// RankedResult is a per-query scored record. Not persisted.
type RankedResult struct {
	ID      string
	Content string
	URL     string
	Score   float64
}

// Reference points a caller back at the portfolio section an answer used.
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// EmbeddingResult is the outcome of one embedding call.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// GenerationResult is the outcome of one chat-completion call.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
