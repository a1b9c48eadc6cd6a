package health

import (
	"context"

	"github.com/sohae-kim/foliochat/internal/domain"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	corpus     CorpusLoader
	cache      CachePinger
	embedding  ProviderChecker
	generation ProviderChecker
}

// New creates a Service. cache, embedding, and generation may be nil.
func New(corpus CorpusLoader, cache CachePinger, embedding, generation ProviderChecker) *Service {
	return &Service{corpus: corpus, cache: cache, embedding: embedding, generation: generation}
}

// Check runs health checks against all configured components. The corpus
// check fails only when retrieval would run against the synthetic
// fallback record.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks["content"] = s.checkCorpus(ctx)

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			checks["cache"] = CheckError
		} else {
			checks["cache"] = CheckOK
		}
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	if s.generation != nil {
		if err := s.generation.HealthCheck(ctx); err != nil {
			checks["generation"] = CheckError
		} else {
			checks["generation"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) checkCorpus(ctx context.Context) CheckResult {
	records, err := s.corpus.Load(ctx)
	if err != nil {
		return CheckError
	}
	if len(records) == 1 && records[0].ID == domain.FallbackRecordID {
		return CheckError
	}
	return CheckOK
}
