package ratelimit

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sohae-kim/foliochat/internal/domain"
)

// fakeClock lets tests advance time deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGovernor(perMinute, perDay int) (*Governor, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	g := New(perMinute, perDay, time.Hour, zap.NewNop())
	g.now = clock.Now
	g.lastCleanup = clock.t
	return g, clock
}

func TestGovernor_AdmitsUpToPerMinute(t *testing.T) {
	g, _ := newTestGovernor(5, 20)

	for i := 0; i < 5; i++ {
		if err := g.Check("1.2.3.4"); err != nil {
			t.Fatalf("request %d: unexpected denial: %v", i+1, err)
		}
	}

	err := g.Check("1.2.3.4")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("6th request: got %v, want ErrRateLimited", err)
	}

	var rl *domain.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error is not *domain.RateLimitError: %v", err)
	}
	if rl.Scope != domain.ScopePerMinute {
		t.Errorf("Scope = %q, want %q", rl.Scope, domain.ScopePerMinute)
	}
	if rl.RetryAfter <= 0 || rl.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, want within (0, 1m]", rl.RetryAfter)
	}
}

func TestGovernor_MinuteWindowSlides(t *testing.T) {
	g, clock := newTestGovernor(5, 100)

	for i := 0; i < 5; i++ {
		if err := g.Check("c"); err != nil {
			t.Fatalf("warmup request %d: %v", i+1, err)
		}
	}
	if err := g.Check("c"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected denial while window full, got %v", err)
	}

	clock.Advance(61 * time.Second)
	if err := g.Check("c"); err != nil {
		t.Fatalf("expected admission after window slid, got %v", err)
	}
}

func TestGovernor_DailyQuota(t *testing.T) {
	g, clock := newTestGovernor(5, 20)
	start := clock.t

	// Burst 5 per minute with gaps so the short window never blocks.
	admitted := 0
	for admitted < 20 {
		for i := 0; i < 5 && admitted < 20; i++ {
			if err := g.Check("c"); err != nil {
				t.Fatalf("request %d: %v", admitted+1, err)
			}
			admitted++
		}
		clock.Advance(2 * time.Minute)
	}

	err := g.Check("c")
	var rl *domain.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("21st request: got %v, want *domain.RateLimitError", err)
	}
	if rl.Scope != domain.ScopePerDay {
		t.Errorf("Scope = %q, want %q", rl.Scope, domain.ScopePerDay)
	}
	wantRetry := start.Add(24 * time.Hour).Sub(clock.t)
	if rl.RetryAfter != wantRetry {
		t.Errorf("RetryAfter = %v, want %v", rl.RetryAfter, wantRetry)
	}
}

func TestGovernor_DailyQuotaMinimumRetryHint(t *testing.T) {
	g, clock := newTestGovernor(5, 3)

	for i := 0; i < 3; i++ {
		if err := g.Check("c"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}

	// Near the end of the epoch the true remainder is under an hour; the
	// hint is floored so the message never says zero hours.
	clock.Advance(23*time.Hour + 50*time.Minute)
	err := g.Check("c")
	var rl *domain.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("got %v, want *domain.RateLimitError", err)
	}
	if rl.RetryAfter != time.Hour {
		t.Errorf("RetryAfter = %v, want floor of 1h", rl.RetryAfter)
	}
}

func TestGovernor_EpochResetsAfterDay(t *testing.T) {
	g, clock := newTestGovernor(5, 3)

	for i := 0; i < 3; i++ {
		if err := g.Check("c"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if err := g.Check("c"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected daily denial, got %v", err)
	}

	clock.Advance(24 * time.Hour)
	if err := g.Check("c"); err != nil {
		t.Fatalf("expected fresh epoch after 24h, got %v", err)
	}
}

func TestGovernor_ClientsAreIndependent(t *testing.T) {
	g, _ := newTestGovernor(1, 20)

	if err := g.Check("a"); err != nil {
		t.Fatalf("client a: %v", err)
	}
	if err := g.Check("a"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("client a second request: got %v, want denial", err)
	}
	if err := g.Check("b"); err != nil {
		t.Fatalf("client b should be unaffected, got %v", err)
	}
}

func TestGovernor_EvictsStaleClients(t *testing.T) {
	g, clock := newTestGovernor(5, 20)

	if err := g.Check("old"); err != nil {
		t.Fatal(err)
	}
	if got := g.TrackedClients(); got != 1 {
		t.Fatalf("TrackedClients = %d, want 1", got)
	}

	// A day plus the cleanup interval later, the next check sweeps.
	clock.Advance(25 * time.Hour)
	if err := g.Check("fresh"); err != nil {
		t.Fatal(err)
	}
	if got := g.TrackedClients(); got != 1 {
		t.Errorf("TrackedClients after sweep = %d, want 1 (only fresh)", got)
	}
}
