// Package chi exposes the HTTP API: the chat endpoint, health and
// diagnostic probes, metrics, and optional static portfolio hosting.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sohae-kim/foliochat/internal/domain"
	answeruc "github.com/sohae-kim/foliochat/internal/usecase/answer"
	healthuc "github.com/sohae-kim/foliochat/internal/usecase/health"
)

// Corpus is the read-only view of the content store the diagnostic
// endpoint consumes.
type Corpus interface {
	Load(ctx context.Context) ([]domain.ContentRecord, error)
	CandidatePaths() []string
}

// DiagnosticInfo holds environment facts surfaced by /api/diagnostic.
type DiagnosticInfo struct {
	DataDir             string
	EmbeddingKeySet     bool
	GenerationKeySet    bool
	CacheTierConfigured bool
}

// Server wires the use cases to HTTP handlers.
type Server struct {
	pipeline *answeruc.Service
	health   *healthuc.Service
	corpus   Corpus
	diag     DiagnosticInfo
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	pipeline *answeruc.Service,
	health *healthuc.Service,
	corpus Corpus,
	diag DiagnosticInfo,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline: pipeline,
		health:   health,
		corpus:   corpus,
		diag:     diag,
		logger:   logger,
	}
}

// Mount registers the API routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Post("/api/chat", s.Chat)
	r.Get("/api/health", s.HealthCheck)
	r.Get("/api/diagnostic", s.Diagnostic)
	r.Get("/metrics", s.Metrics)
}

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	Question string `json:"question"`
}

// chatResponse is the POST /api/chat success (and guard-handled) shape.
type chatResponse struct {
	Answer     string             `json:"answer"`
	References []domain.Reference `json:"references"`
}

// detailResponse is the error shape for rejected requests.
type detailResponse struct {
	Detail string `json:"detail"`
}

// Chat handles POST /api/chat. Guard outcomes are 200 responses with
// canned answers; only admission denial and external failures are
// non-200.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, detailResponse{Detail: "Invalid request body"})
		return
	}

	resp, err := s.pipeline.Ask(r.Context(), clientIP(r), req.Question)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			writeJSON(w, http.StatusTooManyRequests, detailResponse{Detail: err.Error()})
			return
		}
		// Detail stays server-side; the caller gets a generic failure.
		s.logger.Error("chat pipeline error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError,
			detailResponse{Detail: "An error occurred while processing your request."})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Answer: resp.Answer, References: resp.References})
}

// healthResponse is the GET /api/health shape.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles GET /api/health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

// diagnosticResponse is the GET /api/diagnostic shape.
type diagnosticResponse struct {
	Status      string                `json:"status"`
	Environment diagnosticEnvironment `json:"environment"`
	Embeddings  diagnosticEmbeddings  `json:"embeddings"`
}

type diagnosticEnvironment struct {
	DataDirExists        bool     `json:"data_directory_exists"`
	EmbeddingsFileExists bool     `json:"embeddings_file_exists"`
	EmbeddingKeySet      bool     `json:"embedding_api_key_set"`
	GenerationKeySet     bool     `json:"generation_api_key_set"`
	CacheTierConfigured  bool     `json:"cache_tier_configured"`
	CandidatePaths       []string `json:"candidate_paths"`
}

type diagnosticEmbeddings struct {
	Count     int      `json:"count"`
	SampleIDs []string `json:"sample_ids"`
}

// Diagnostic handles GET /api/diagnostic: operational visibility into the
// corpus and environment state.
func (s *Server) Diagnostic(w http.ResponseWriter, r *http.Request) {
	records, err := s.corpus.Load(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "embeddings": err.Error()})
		return
	}

	sampleIDs := make([]string, 0, 3)
	for _, rec := range records {
		if len(sampleIDs) == 3 {
			break
		}
		sampleIDs = append(sampleIDs, rec.ID)
	}

	_, dataDirErr := os.Stat(s.diag.DataDir)
	_, embFileErr := os.Stat(filepath.Join(s.diag.DataDir, "embeddings.json"))

	writeJSON(w, http.StatusOK, diagnosticResponse{
		Status: "ok",
		Environment: diagnosticEnvironment{
			DataDirExists:        dataDirErr == nil,
			EmbeddingsFileExists: embFileErr == nil,
			EmbeddingKeySet:      s.diag.EmbeddingKeySet,
			GenerationKeySet:     s.diag.GenerationKeySet,
			CacheTierConfigured:  s.diag.CacheTierConfigured,
			CandidatePaths:       s.corpus.CandidatePaths(),
		},
		Embeddings: diagnosticEmbeddings{
			Count:     len(records),
			SampleIDs: sampleIDs,
		},
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// clientIP resolves the client identity for admission control. RealIP
// middleware has already rewritten RemoteAddr when forwarding headers are
// present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
