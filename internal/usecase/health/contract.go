package health

import (
	"context"

	"github.com/sohae-kim/foliochat/internal/domain"
)

// CachePinger checks cache tier availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks an external API provider's availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// CorpusLoader provides the corpus for the content check.
type CorpusLoader interface {
	Load(ctx context.Context) ([]domain.ContentRecord, error)
}
