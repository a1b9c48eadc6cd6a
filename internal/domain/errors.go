package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited signals an admission rejection.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationProviderError signals a chat-completion provider failure.
	ErrGenerationProviderError = errors.New("generation provider error")
	// ErrEmptyCorpus signals that no content source produced any records.
	ErrEmptyCorpus = errors.New("empty corpus")
)

// RateLimitScope names which window produced a denial.
type RateLimitScope string

const (
	// ScopePerMinute is the trailing 60-second window.
	ScopePerMinute RateLimitScope = "per_minute"
	// ScopePerDay is the rolling 24-hour window anchored at first contact.
	ScopePerDay RateLimitScope = "per_day"
)

// RateLimitError wraps ErrRateLimited with the retry hint and window scope.
type RateLimitError struct {
	RetryAfter time.Duration
	Scope      RateLimitScope
}

func (e *RateLimitError) Error() string {
	if e.Scope == ScopePerDay {
		hours := int(e.RetryAfter.Hours())
		if hours < 1 {
			hours = 1
		}
		return fmt.Sprintf("Daily limit reached. Try again in %d hours.", hours)
	}
	return fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", int(e.RetryAfter.Seconds()))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// NewRateLimitError creates a rate limit denial.
func NewRateLimitError(retryAfter time.Duration, scope RateLimitScope) error {
	return &RateLimitError{RetryAfter: retryAfter, Scope: scope}
}
