// Package content loads and caches the portfolio corpus: records with
// precomputed embeddings read from an ordered list of durable sources,
// regenerated through the embedding provider when no source qualifies.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sohae-kim/foliochat/internal/db"
	"github.com/sohae-kim/foliochat/internal/domain"
	"github.com/sohae-kim/foliochat/internal/metrics"
)

// degradedRecordCap bounds how many seed records the emergency regeneration
// path embeds. Cost control: a cold start must not re-embed the whole
// corpus on the request path.
const degradedRecordCap = 3

// EmbeddingsFile is the corpus file name shared by every file-backed tier.
const EmbeddingsFile = "embeddings.json"

// SeedFile is the raw content file the regeneration path reads.
const SeedFile = "content.json"

// Embedder vectorizes text for the regeneration path.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// cache is the consumer interface for the optional corpus cache tier.
type cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config holds corpus source settings.
type Config struct {
	// DataDir is the packaged data location (content.json, embeddings.json).
	DataDir string
	// ExtraCandidates are additional embeddings.json paths tried after the
	// defaults, in order.
	ExtraCandidates []string
	// Dimensions is the expected embedding dimension, used for the
	// zero-vector fallback record.
	Dimensions int
	// CacheKey and CacheTTL configure the cache tier entry.
	CacheKey string
	CacheTTL time.Duration
}

// Repository owns the process-wide corpus cache. Load is memoized after
// the first success; concurrent callers share one in-flight population.
type Repository struct {
	cfg      Config
	embedder Embedder
	cache    cache
	logger   *zap.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	corpus []domain.ContentRecord
}

// New creates a content repository. store may be nil (cache tier disabled).
func New(cfg Config, embedder Embedder, store db.Store, logger *zap.Logger) *Repository {
	r := &Repository{cfg: cfg, embedder: embedder, logger: logger}
	if store != nil {
		r.cache = store
	}
	return r
}

// Load returns the corpus, populating it on first use. The result is
// never empty: when every source fails the single zero-vector fallback
// record is returned, which scores 0 against any query.
func (r *Repository) Load(ctx context.Context) ([]domain.ContentRecord, error) {
	r.mu.RLock()
	corpus := r.corpus
	r.mu.RUnlock()
	if corpus != nil {
		return corpus, nil
	}

	v, err, _ := r.group.Do("corpus", func() (any, error) {
		r.mu.RLock()
		cached := r.corpus
		r.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		loaded := r.populate(ctx)

		r.mu.Lock()
		r.corpus = loaded
		r.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.ContentRecord), nil
}

// Count returns the number of loaded records (0 before first Load).
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.corpus)
}

// CandidatePaths returns the embeddings.json locations in probe order:
// the ephemeral writable cache first, then the packaged data dir, then the
// working-directory data dir, then any configured extras.
func (r *Repository) CandidatePaths() []string {
	paths := []string{
		filepath.Join(os.TempDir(), EmbeddingsFile),
		filepath.Join(r.cfg.DataDir, EmbeddingsFile),
		filepath.Join("data", EmbeddingsFile),
	}
	return append(paths, r.cfg.ExtraCandidates...)
}

// populate tries every source in priority order. It never fails: the
// terminal fallback is a synthetic record signalling "no real content".
func (r *Repository) populate(ctx context.Context) []domain.ContentRecord {
	if records, ok := r.fromCacheTier(ctx); ok {
		return records
	}

	for _, path := range r.CandidatePaths() {
		records, err := readCorpusFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				r.logger.Warn("failed to load corpus candidate", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		r.logger.Info("corpus loaded", zap.String("path", path), zap.Int("records", len(records)))
		return records
	}

	records, err := r.Regenerate(ctx, degradedRecordCap)
	if err != nil {
		r.logger.Warn("corpus regeneration failed, using fallback record", zap.Error(err))
		return domain.NewFallbackCorpus(r.cfg.Dimensions)
	}
	return records
}

// Regenerate re-derives embeddings from the raw content seed. limit > 0
// caps the number of records embedded (the degraded cold-start path);
// limit <= 0 embeds everything (the embedgen path). The result is
// persisted to the writable tiers for subsequent loads.
func (r *Repository) Regenerate(ctx context.Context, limit int) ([]domain.ContentRecord, error) {
	seeds, err := r.loadSeed()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(seeds) > limit {
		r.logger.Warn("degraded regeneration, embedding a corpus prefix only",
			zap.Int("cap", limit), zap.Int("seed_records", len(seeds)))
		seeds = seeds[:limit]
	}

	records := make([]domain.ContentRecord, 0, len(seeds))
	for _, seed := range seeds {
		result, err := r.embedder.Embed(ctx, seed.Content)
		if err != nil {
			return nil, fmt.Errorf("embed record %q: %w", seed.ID, err)
		}
		url := seed.URL
		if url == "" {
			url = "https://sohae-kim.github.io/#" + seed.ID
		}
		records = append(records, domain.ContentRecord{
			ID:        seed.ID,
			Content:   seed.Content,
			URL:       url,
			Embedding: result.Embedding,
		})
	}

	if !domain.ValidateCorpus(records) {
		return nil, domain.ErrEmptyCorpus
	}

	r.persist(ctx, records)
	return records, nil
}

// loadSeed reads content.json from the data dir candidates.
func (r *Repository) loadSeed() ([]domain.SeedRecord, error) {
	candidates := []string{
		filepath.Join(r.cfg.DataDir, SeedFile),
		filepath.Join("data", SeedFile),
	}
	for _, path := range candidates {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			continue
		}
		var seeds []domain.SeedRecord
		if err := json.Unmarshal(data, &seeds); err != nil {
			r.logger.Warn("failed to parse content seed", zap.String("path", path), zap.Error(err))
			continue
		}
		if len(seeds) > 0 {
			return seeds, nil
		}
	}
	return nil, fmt.Errorf("no content seed found: %w", domain.ErrEmptyCorpus)
}

// persist writes the regenerated corpus to the ephemeral file cache and,
// when configured, the cache tier. Failures are logged and swallowed: the
// in-memory corpus is already usable.
func (r *Repository) persist(ctx context.Context, records []domain.ContentRecord) {
	data, err := json.Marshal(records)
	if err != nil {
		r.logger.Warn("failed to encode corpus for persistence", zap.Error(err))
		return
	}

	path := filepath.Join(os.TempDir(), EmbeddingsFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		r.logger.Warn("failed to persist corpus", zap.String("path", path), zap.Error(err))
	} else {
		r.logger.Info("corpus persisted", zap.String("path", path), zap.Int("records", len(records)))
	}

	if r.cache != nil {
		if err := r.cache.SetWithTTL(ctx, r.cfg.CacheKey, data, r.cfg.CacheTTL); err != nil {
			r.logger.Warn("failed to persist corpus to cache tier", zap.Error(err))
		}
	}
}

// fromCacheTier reads the corpus from the cache tier when configured.
func (r *Repository) fromCacheTier(ctx context.Context) ([]domain.ContentRecord, bool) {
	if r.cache == nil {
		return nil, false
	}

	data, err := r.cache.Get(ctx, r.cfg.CacheKey)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			r.logger.Warn("cache tier read failed", zap.Error(err))
		}
		metrics.CorpusCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	records, err := parseCorpus(data)
	if err != nil {
		r.logger.Warn("cache tier held an invalid corpus", zap.Error(err))
		metrics.CorpusCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	metrics.CorpusCacheTotal.WithLabelValues("hit").Inc()
	r.logger.Info("corpus loaded from cache tier", zap.Int("records", len(records)))
	return records, true
}

func readCorpusFile(path string) ([]domain.ContentRecord, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return parseCorpus(data)
}

func parseCorpus(data []byte) ([]domain.ContentRecord, error) {
	var records []domain.ContentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	if !domain.ValidateCorpus(records) {
		return nil, domain.ErrEmptyCorpus
	}
	return records, nil
}

// WriteCorpus writes records to path as the durable embeddings format.
// Used by the embedgen CLI to refresh the packaged data location.
func WriteCorpus(path string, records []domain.ContentRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write corpus: %w", err)
	}
	return nil
}
