package answer

import (
	"context"

	"github.com/sohae-kim/foliochat/internal/domain"
)

// Embedder vectorizes the sanitized question.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Generator produces the answer text from a system prompt and question.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, question string) (domain.GenerationResult, error)
}

// CorpusLoader provides the content records to rank against.
type CorpusLoader interface {
	Load(ctx context.Context) ([]domain.ContentRecord, error)
}

// Governor admits or denies a client request. A non-nil error unwraps to
// domain.ErrRateLimited.
type Governor interface {
	Check(clientID string) error
}
