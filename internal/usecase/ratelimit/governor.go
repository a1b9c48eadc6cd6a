// Package ratelimit implements per-client admission control: a sliding
// 60-second window nested inside a rolling 24-hour quota anchored at the
// client's first request.
package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sohae-kim/foliochat/internal/domain"
)

const (
	shortWindow = time.Minute
	longWindow  = 24 * time.Hour
)

// clientWindow is the per-client mutable state. timestamps holds only
// entries inside the trailing minute; total counts every admitted request
// since firstSeen, including ones the minute-pruning already dropped.
type clientWindow struct {
	timestamps []time.Time
	firstSeen  time.Time
	total      int
}

// Governor is an in-memory per-client rate limiter. Check-and-record is a
// single critical section; one lock covers the whole map.
type Governor struct {
	mu              sync.Mutex
	clients         map[string]*clientWindow
	perMinute       int
	perDay          int
	cleanupInterval time.Duration
	lastCleanup     time.Time
	logger          *zap.Logger

	now func() time.Time // injectable for tests
}

// New creates a governor admitting perMinute requests per trailing minute
// and perDay per rolling day. Stale clients are swept at most once per
// cleanupInterval.
func New(perMinute, perDay int, cleanupInterval time.Duration, logger *zap.Logger) *Governor {
	return &Governor{
		clients:         make(map[string]*clientWindow),
		perMinute:       perMinute,
		perDay:          perDay,
		cleanupInterval: cleanupInterval,
		lastCleanup:     time.Now(),
		logger:          logger,
		now:             time.Now,
	}
}

// Check admits or denies a request from clientID. nil means admitted and
// recorded; otherwise the error unwraps to domain.ErrRateLimited and
// carries the retry hint.
func (g *Governor) Check(clientID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.cleanupLocked(now)

	w, ok := g.clients[clientID]
	if !ok {
		w = &clientWindow{firstSeen: now}
		g.clients[clientID] = w
	}

	// The daily window is anchored at first contact, not a calendar day.
	// Once it elapses the client starts a fresh epoch.
	if now.Sub(w.firstSeen) >= longWindow {
		w.firstSeen = now
		w.total = 0
		w.timestamps = w.timestamps[:0]
	}

	g.pruneLocked(w, now)

	if len(w.timestamps) >= g.perMinute {
		oldest := w.timestamps[0]
		retryAfter := shortWindow - now.Sub(oldest)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		g.logger.Info("rate limit hit",
			zap.String("client", clientID),
			zap.String("scope", string(domain.ScopePerMinute)),
			zap.Duration("retry_after", retryAfter),
		)
		return domain.NewRateLimitError(retryAfter, domain.ScopePerMinute)
	}

	if w.total >= g.perDay {
		retryAfter := w.firstSeen.Add(longWindow).Sub(now)
		if retryAfter < time.Hour {
			retryAfter = time.Hour
		}
		g.logger.Info("rate limit hit",
			zap.String("client", clientID),
			zap.String("scope", string(domain.ScopePerDay)),
			zap.Duration("retry_after", retryAfter),
		)
		return domain.NewRateLimitError(retryAfter, domain.ScopePerDay)
	}

	w.timestamps = append(w.timestamps, now)
	w.total++
	return nil
}

// TrackedClients returns the number of client records currently held.
func (g *Governor) TrackedClients() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// pruneLocked drops timestamps outside the trailing minute.
func (g *Governor) pruneLocked(w *clientWindow, now time.Time) {
	cutoff := now.Add(-shortWindow)
	i := 0
	for i < len(w.timestamps) && !w.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[i:]...)
	}
}

// cleanupLocked evicts clients whose first request is more than a day old.
// Gated to run at most once per cleanupInterval so the sweep stays off the
// per-request hot path.
func (g *Governor) cleanupLocked(now time.Time) {
	if now.Sub(g.lastCleanup) < g.cleanupInterval {
		return
	}
	cutoff := now.Add(-longWindow)
	evicted := 0
	for id, w := range g.clients {
		if w.firstSeen.Before(cutoff) {
			delete(g.clients, id)
			evicted++
		}
	}
	g.lastCleanup = now
	if evicted > 0 {
		g.logger.Debug("evicted stale rate limit records", zap.Int("count", evicted))
	}
}
