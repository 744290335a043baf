// Package httpapi exposes the retrieval pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/clearhelm/kbsearch/internal/domain"
	"github.com/clearhelm/kbsearch/internal/domain/ranking"
	"github.com/clearhelm/kbsearch/internal/logger"
	"github.com/clearhelm/kbsearch/internal/metrics"
)

const (
	defaultTopK = 5
	maxTopK     = 50
)

// Retriever runs the hybrid pipeline for one query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) (ranking.Outcome, error)
}

// Pinger reports store liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP API: search, health, metrics.
type Server struct {
	retriever   Retriever
	store       Pinger
	logger      *zap.Logger
	defaultTopK int
}

// NewServer creates the HTTP API server. topK is the depth used when a
// search request omits top_k; non-positive values fall back to 5.
func NewServer(retriever Retriever, store Pinger, log *zap.Logger, topK int) *Server {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Server{retriever: retriever, store: store, logger: log, defaultTopK: topK}
}

// Routes mounts the API onto a chi router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/search", s.handleSearch)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResultItem struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

type searchResponse struct {
	Results  []searchResultItem `json:"results"`
	Statuses []string           `json:"statuses,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleSearch handles POST /search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return
	}
	if req.TopK == 0 {
		req.TopK = s.defaultTopK
	}
	if req.TopK < 0 || req.TopK > maxTopK {
		writeError(w, http.StatusBadRequest, "validation_failed",
			"top_k must be between 1 and 50")
		return
	}

	outcome, err := s.retriever.Retrieve(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if outcome.Degraded() {
		metrics.SearchRequestsTotal.WithLabelValues("degraded").Inc()
	} else {
		metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	}

	resp := searchResponse{Results: make([]searchResultItem, 0, len(outcome.Ranked()))}
	for i, item := range outcome.Ranked() {
		resp.Results = append(resp.Results, searchResultItem{
			DocID: item.ID(),
			Score: item.Score(),
			Rank:  i + 1,
		})
	}
	for _, st := range outcome.Statuses() {
		resp.Statuses = append(resp.Statuses, string(st))
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"store":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	metrics.SearchRequestsTotal.WithLabelValues("error").Inc()

	switch {
	case errors.Is(err, domain.ErrInvalidPredicate):
		log.Warn("invalid predicate", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid_predicate", err.Error())
	case errors.Is(err, domain.ErrRetrievalUnavailable):
		log.Error("retrieval unavailable", zap.Error(err))
		writeError(w, http.StatusBadGateway, "retrieval_unavailable", domain.ErrRetrievalUnavailable.Error())
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		log.Error("embedding provider error", zap.Error(err))
		writeError(w, http.StatusBadGateway, "embedding_provider_error", domain.ErrEmbeddingProviderError.Error())
	default:
		log.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
