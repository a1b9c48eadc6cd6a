// Command embedgen rebuilds the embeddings corpus: it reads the raw
// content seed, embeds every record through the configured provider, and
// writes embeddings.json into the data directory. Run it whenever the
// portfolio content changes.
package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sohae-kim/foliochat/internal/config"
	logpkg "github.com/sohae-kim/foliochat/internal/logger"
	"github.com/sohae-kim/foliochat/internal/metrics"
	contentrepo "github.com/sohae-kim/foliochat/internal/repository/content"
	openaiTransport "github.com/sohae-kim/foliochat/internal/transport/openai"
)

func main() {
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	metrics.RegisterChatMetrics()

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:  cfg.Embedding.APIKey,
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		Timeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	repo := contentrepo.New(contentrepo.Config{
		DataDir:    cfg.Content.DataDir,
		Dimensions: cfg.Content.Dimensions,
	}, embedder, nil, logger)

	ctx := context.Background()

	// Full regeneration: no degraded cap here, embed the whole seed.
	records, err := repo.Regenerate(ctx, 0)
	if err != nil {
		logger.Fatal("Regeneration failed", zap.Error(err))
	}

	out := filepath.Join(cfg.Content.DataDir, contentrepo.EmbeddingsFile)
	if err := contentrepo.WriteCorpus(out, records); err != nil {
		logger.Fatal("Failed to write corpus", zap.Error(err))
	}

	logger.Info("Corpus regenerated",
		zap.Int("records", len(records)),
		zap.String("path", out),
	)
}
