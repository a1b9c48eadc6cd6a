// Package answer orchestrates one chat request: guard, admission control,
// retrieval, prompt construction, and generation. Requests resolve to
// exactly one terminal outcome.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sohae-kim/foliochat/internal/domain"
	"github.com/sohae-kim/foliochat/internal/domain/guard"
	"github.com/sohae-kim/foliochat/internal/domain/rank"
	"github.com/sohae-kim/foliochat/internal/logger"
	"github.com/sohae-kim/foliochat/internal/metrics"
)

// topK is how many corpus records feed the generation context.
const topK = 3

// Outcome is the terminal state of one request.
type Outcome string

const (
	// OutcomeAnswered means the model produced an answer from context.
	OutcomeAnswered Outcome = "answered"
	// OutcomeEmptyInput means the question sanitized to nothing.
	OutcomeEmptyInput Outcome = "empty"
	// OutcomeInjectionBlocked means the injection filter fired.
	OutcomeInjectionBlocked Outcome = "injection"
	// OutcomeUnsafeBlocked means the safety filter fired.
	OutcomeUnsafeBlocked Outcome = "unsafe"
)

// Response is the user-facing result of an admitted request.
type Response struct {
	Outcome    Outcome
	Answer     string
	References []domain.Reference
}

// Service is the answer pipeline. It owns no state of its own; shared
// state lives in the loader and the governor.
type Service struct {
	embedder Embedder
	gen      Generator
	loader   CorpusLoader
	governor Governor
	logger   *zap.Logger
}

// New creates the answer pipeline.
func New(embedder Embedder, gen Generator, loader CorpusLoader, governor Governor, log *zap.Logger) *Service {
	return &Service{
		embedder: embedder,
		gen:      gen,
		loader:   loader,
		governor: governor,
		logger:   log,
	}
}

// Ask runs the pipeline for one question. Guard outcomes return canned
// responses with a nil error. A non-nil error is either a rate-limit
// denial (unwraps to domain.ErrRateLimited) or an external-service
// failure; everything else is normal control flow.
func (s *Service) Ask(ctx context.Context, clientIP, question string) (Response, error) {
	if err := s.governor.Check(clientIP); err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("rate_limited").Inc()
		logger.RateLimitEvent(s.logger, clientIP, err.Error())
		return Response{}, err
	}

	verdict := guard.Classify(question)
	switch verdict.Outcome {
	case guard.OutcomeEmpty:
		metrics.ChatRequestsTotal.WithLabelValues("empty").Inc()
		return Response{
			Outcome:    OutcomeEmptyInput,
			Answer:     emptyQuestionMessage,
			References: []domain.Reference{},
		}, nil

	case guard.OutcomeInjection:
		metrics.ChatRequestsTotal.WithLabelValues("injection").Inc()
		// Audit trail carries the original text, not the sanitized form.
		logger.SecurityEvent(s.logger, clientIP, logger.EventPromptInjection, question)
		return Response{
			Outcome:    OutcomeInjectionBlocked,
			Answer:     injectionMessage,
			References: []domain.Reference{},
		}, nil

	case guard.OutcomeUnsafe:
		metrics.ChatRequestsTotal.WithLabelValues("unsafe").Inc()
		logger.SecurityEvent(s.logger, clientIP, logger.EventUnsafeContent, question)
		return Response{
			Outcome:    OutcomeUnsafeBlocked,
			Answer:     unsafeMessage,
			References: []domain.Reference{},
		}, nil
	}

	resp, err := s.answer(ctx, clientIP, verdict.Sanitized)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("error").Inc()
		logger.SecurityEvent(s.logger, clientIP, logger.EventAPIError, err.Error())
		return Response{}, err
	}

	metrics.ChatRequestsTotal.WithLabelValues("answered").Inc()
	return resp, nil
}

// answer runs the retrieval-augmented generation path on an already
// sanitized, guard-cleared question.
func (s *Service) answer(ctx context.Context, clientIP, question string) (Response, error) {
	embResult, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return Response{}, fmt.Errorf("vectorize question: %w", err)
	}

	corpus, err := s.loader.Load(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("load corpus: %w", err)
	}

	ranked := rank.Rank(embResult.Embedding, corpus, topK)

	passages := make([]string, len(ranked))
	references := make([]domain.Reference, len(ranked))
	for i, res := range ranked {
		passages[i] = res.Content
		references[i] = domain.Reference{Title: res.ID, URL: res.URL}
	}

	prompt := buildSystemPrompt(strings.Join(passages, "\n\n"))

	genResult, err := s.gen.Generate(ctx, prompt, question)
	if err != nil {
		return Response{}, fmt.Errorf("generate answer: %w", err)
	}

	logger.APIUsage(s.logger, clientIP, question, len(strings.Fields(genResult.Text)))

	return Response{
		Outcome:    OutcomeAnswered,
		Answer:     genResult.Text,
		References: references,
	}, nil
}
