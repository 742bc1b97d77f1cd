// Package chi exposes the search API over HTTP.
package chi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vitrine-search/vitrine/internal/domain"
	"github.com/vitrine-search/vitrine/internal/index"
	"github.com/vitrine-search/vitrine/internal/logger"
	healthuc "github.com/vitrine-search/vitrine/internal/usecase/health"
	searchuc "github.com/vitrine-search/vitrine/internal/usecase/search"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Enricher joins ranked hits with catalog metadata.
type Enricher interface {
	Enrich(ctx context.Context, hits domain.Ranked) ([]domain.EnrichedHit, error)
}

// Searcher runs a multimodal query against the index.
type Searcher interface {
	Search(ctx context.Context, q searchuc.Query) (domain.Ranked, error)
}

// Config holds HTTP handler settings.
type Config struct {
	MaxConcurrentSearches int
	MaxImageBytes         int64
}

// Server handles the search API endpoints.
type Server struct {
	search        Searcher
	enrich        Enricher
	health        *healthuc.Service
	cfg           Config
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	enrich Enricher,
	health *healthuc.Service,
	cfg Config,
	log *zap.Logger,
) *Server {
	if cfg.MaxConcurrentSearches <= 0 {
		cfg.MaxConcurrentSearches = 32
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 8 << 20
	}
	s := &Server{
		search: search,
		enrich: enrich,
		health: health,
		cfg:    cfg,
		logger: log,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, "invalid_query"),
		sentinelHandler(domain.ErrEmbedding, http.StatusBadRequest, "embedding_rejected"),
		sentinelHandler(domain.ErrNoMatches, http.StatusNotFound, "no_matches"),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusBadGateway, "index_unavailable"),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusBadGateway, "catalog_unavailable"),
		sentinelHandler(index.ErrNotBuilt, http.StatusConflict, "index_not_built"),
		sentinelHandler(domain.ErrDependencyTimeout, http.StatusGatewayTimeout, "dependency_timeout"),
	}
	return s
}

// Routes mounts the API on a chi router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1", func(r chi.Router) {
		r.With(concurrencyLimit(s.cfg.MaxConcurrentSearches)).Post("/search", s.Search)
	})
}

// searchRequest is the JSON body variant of the search endpoint.
type searchRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"` // base64
	TopK  *int   `json:"top_k"` // pointer so an explicit 0 stays distinguishable from absence
}

// searchResultItem is one enriched hit in the response.
type searchResultItem struct {
	ID          int64   `json:"id"`
	Rank        int     `json:"rank"`
	Score       float64 `json:"score"`
	Gender      string  `json:"gender,omitempty"`
	Category    string  `json:"category,omitempty"`
	SubCategory string  `json:"sub_category,omitempty"`
	ProductType string  `json:"product_type,omitempty"`
	Colour      string  `json:"colour,omitempty"`
	Usage       string  `json:"usage,omitempty"`
	Title       string  `json:"title"`
	ImageURL    string  `json:"image_url,omitempty"`
}

type searchResponse struct {
	Results []searchResultItem `json:"results"`
}

// Search handles POST /api/v1/search. Accepts either a JSON body or a
// multipart form with text, image, and top_k fields.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	query, err := s.parseQuery(r)
	if err != nil {
		s.handleDomainError(r, w, err)
		return
	}

	hits, err := s.search.Search(r.Context(), query)
	if err != nil {
		s.handleDomainError(r, w, err)
		return
	}

	enriched, err := s.enrich.Enrich(r.Context(), hits)
	if err != nil {
		s.handleDomainError(r, w, err)
		return
	}

	items := make([]searchResultItem, len(enriched))
	for i, e := range enriched {
		items[i] = searchResultItem{
			ID:          e.ID,
			Rank:        e.Rank,
			Score:       e.Score,
			Gender:      e.Gender,
			Category:    e.Category,
			SubCategory: e.SubCategory,
			ProductType: e.ProductType,
			Colour:      e.Colour,
			Usage:       e.Usage,
			Title:       e.Title,
			ImageURL:    e.ImageURL,
		}
	}

	writeJSON(w, http.StatusOK, searchResponse{Results: items})
}

// parseQuery extracts the query from either encoding. Errors wrap
// domain.ErrInvalidQuery so they map to 400.
func (s *Server) parseQuery(r *http.Request) (searchuc.Query, error) {
	ct := r.Header.Get("Content-Type")

	if strings.HasPrefix(ct, "multipart/form-data") {
		return s.parseMultipartQuery(r)
	}
	return s.parseJSONQuery(r)
}

func (s *Server) parseJSONQuery(r *http.Request) (searchuc.Query, error) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return searchuc.Query{}, fmt.Errorf("invalid request body: %w", domain.ErrInvalidQuery)
	}

	var image []byte
	if req.Image != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			return searchuc.Query{}, fmt.Errorf("image is not valid base64: %w", domain.ErrInvalidQuery)
		}
		if int64(len(decoded)) > s.cfg.MaxImageBytes {
			return searchuc.Query{}, fmt.Errorf("image exceeds %d bytes: %w", s.cfg.MaxImageBytes, domain.ErrInvalidQuery)
		}
		image = decoded
	}

	return searchuc.Query{Text: req.Text, Image: image, TopK: req.TopK}, nil
}

func (s *Server) parseMultipartQuery(r *http.Request) (searchuc.Query, error) {
	if err := r.ParseMultipartForm(s.cfg.MaxImageBytes); err != nil {
		return searchuc.Query{}, fmt.Errorf("invalid multipart form: %w", domain.ErrInvalidQuery)
	}

	query := searchuc.Query{Text: r.FormValue("text")}

	if v := r.FormValue("top_k"); v != "" {
		topK, err := strconv.Atoi(v)
		if err != nil {
			return searchuc.Query{}, fmt.Errorf("top_k is not a number: %w", domain.ErrInvalidQuery)
		}
		query.TopK = &topK
	}

	file, _, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxImageBytes+1))
		if err != nil {
			return searchuc.Query{}, fmt.Errorf("read image part: %w", domain.ErrInvalidQuery)
		}
		if int64(len(data)) > s.cfg.MaxImageBytes {
			return searchuc.Query{}, fmt.Errorf("image exceeds %d bytes: %w", s.cfg.MaxImageBytes, domain.ErrInvalidQuery)
		}
		query.Image = data
	} else if !errors.Is(err, http.ErrMissingFile) {
		return searchuc.Query{}, fmt.Errorf("image part: %w", domain.ErrInvalidQuery)
	}

	return query, nil
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrEmbedding,
		domain.ErrNoMatches,
		domain.ErrEmbeddingProvider,
		domain.ErrIndexUnavailable,
		domain.ErrStoreUnavailable,
		index.ErrNotBuilt,
		domain.ErrDependencyTimeout,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(r *http.Request, w http.ResponseWriter, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

// concurrencyLimit bounds in-flight search requests with a semaphore.
// Requests over the cap fail fast with 503 while the client is still
// listening, rather than queueing behind saturated embedding calls.
func concurrencyLimit(max int) func(next http.Handler) http.Handler {
	sem := make(chan struct{}, max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
				next.ServeHTTP(w, r)
			default:
				writeError(w, http.StatusServiceUnavailable, "overloaded", "server is overloaded")
			}
		})
	}
}
