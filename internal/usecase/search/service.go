// Package search turns a text and/or image query into a ranked list of
// product hits. Scores are raw index distances: lower means closer.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vitrine-search/vitrine/internal/domain"
	"github.com/vitrine-search/vitrine/internal/metrics"
)

// Query is a multimodal search request. At least one of Text and Image
// must be present.
type Query struct {
	Text  string
	Image []byte
	TopK  *int // nil = service default; an explicit value must be positive
}

// Config holds retrieval knobs.
type Config struct {
	DefaultTopK   int
	MaxTopK       int
	EFRuntime     int           // HNSW runtime beam width, 0 for FLAT
	EmbedTimeout  time.Duration // per-embedding-call budget, 0 = none
	SearchTimeout time.Duration // KNN round-trip budget, 0 = none
}

// Service orchestrates query embedding, fusion, and KNN retrieval.
type Service struct {
	index Searcher
	text  TextEmbedder
	image ImageEmbedder
	cfg   Config
}

// New creates a search service.
func New(index Searcher, text TextEmbedder, image ImageEmbedder, cfg Config) *Service {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 10
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 100
	}
	return &Service{index: index, text: text, image: image, cfg: cfg}
}

// Search validates the query, embeds the supplied modalities, fuses them
// into a single vector and runs one KNN retrieval. Hits come back in
// ascending distance order exactly as the index returned them.
func (s *Service) Search(ctx context.Context, q Query) (domain.Ranked, error) {
	modality, err := s.validate(&q)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(modality, "invalid").Inc()
		return nil, err
	}

	start := time.Now()

	vector, err := s.embedQuery(ctx, q)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(modality, "error").Inc()
		return nil, err
	}

	knnCtx := ctx
	if s.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		knnCtx, cancel = context.WithTimeout(ctx, s.cfg.SearchTimeout)
		defer cancel()
	}

	hits, err := s.index.SearchKNN(knnCtx, vector, *q.TopK, s.cfg.EFRuntime)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(modality, "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("knn search: %w", domain.ErrDependencyTimeout)
		}
		return nil, fmt.Errorf("knn search: %w", err)
	}

	metrics.SearchRequestsTotal.WithLabelValues(modality, "success").Inc()
	metrics.SearchDuration.WithLabelValues(modality).Observe(time.Since(start).Seconds())

	return hits, nil
}

// validate normalizes the query in place and names its modality.
// Runs before any external call so malformed input never costs a
// provider round trip.
func (s *Service) validate(q *Query) (string, error) {
	q.Text = strings.TrimSpace(q.Text)

	hasText := q.Text != ""
	hasImage := len(q.Image) > 0

	modality := "none"
	switch {
	case hasText && hasImage:
		modality = "multimodal"
	case hasText:
		modality = "text"
	case hasImage:
		modality = "image"
	default:
		return modality, fmt.Errorf("query needs text or image: %w", domain.ErrInvalidQuery)
	}

	// An explicit top_k of zero is a caller mistake, not a request for the
	// default; only absence selects the default.
	if q.TopK == nil {
		k := s.cfg.DefaultTopK
		q.TopK = &k
	}
	if *q.TopK <= 0 {
		return modality, fmt.Errorf("top_k must be positive, got %d: %w", *q.TopK, domain.ErrInvalidQuery)
	}
	if *q.TopK > s.cfg.MaxTopK {
		return modality, fmt.Errorf("top_k %d exceeds limit %d: %w", *q.TopK, s.cfg.MaxTopK, domain.ErrInvalidQuery)
	}

	return modality, nil
}

// embedQuery embeds whichever modalities are present and fuses them.
func (s *Service) embedQuery(ctx context.Context, q Query) (domain.Vector, error) {
	var textVec, imageVec domain.Vector

	if q.Text != "" {
		res, err := s.embedText(ctx, q.Text)
		if err != nil {
			return nil, err
		}
		textVec = res.Vector
	}

	if len(q.Image) > 0 {
		res, err := s.embedImage(ctx, q.Image)
		if err != nil {
			return nil, err
		}
		imageVec = res.Vector
	}

	vector, err := domain.Fuse(textVec, imageVec)
	if err != nil {
		return nil, fmt.Errorf("fuse query vectors: %w", err)
	}
	return vector, nil
}

func (s *Service) embedText(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	ctx, cancel := s.withEmbedTimeout(ctx)
	defer cancel()

	res, err := s.text.EmbedText(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.EmbeddingResult{}, fmt.Errorf("embed query text: %w", domain.ErrDependencyTimeout)
		}
		return domain.EmbeddingResult{}, fmt.Errorf("embed query text: %w", err)
	}
	return res, nil
}

func (s *Service) embedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error) {
	ctx, cancel := s.withEmbedTimeout(ctx)
	defer cancel()

	res, err := s.image.EmbedImage(ctx, image)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.EmbeddingResult{}, fmt.Errorf("embed query image: %w", domain.ErrDependencyTimeout)
		}
		return domain.EmbeddingResult{}, fmt.Errorf("embed query image: %w", err)
	}
	return res, nil
}

func (s *Service) withEmbedTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.EmbedTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.EmbedTimeout)
}
