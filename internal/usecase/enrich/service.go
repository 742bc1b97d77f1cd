// Package enrich joins index hits with catalog metadata while keeping the
// index ranking intact.
package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitrine-search/vitrine/internal/domain"
	"github.com/vitrine-search/vitrine/internal/metrics"
)

// ProductReader defines the catalog store contract.
type ProductReader interface {
	FetchByIDs(ctx context.Context, ids []int64) ([]domain.Product, error)
}

// Service filters hits by score threshold and attaches product metadata.
type Service struct {
	store          ProductReader
	scoreThreshold float64
}

// New creates an enrichment service. threshold is an upper bound on the
// distance score: hits above it are dropped before the metadata fetch.
// A negative threshold disables the filter.
func New(store ProductReader, threshold float64) *Service {
	return &Service{store: store, scoreThreshold: threshold}
}

// Enrich applies the score threshold, fetches metadata for the survivors
// in one batched query, and rebuilds the list in the original hit order.
// Rank is the 1-based position in the index ranking before the join.
// Hits without a catalog row are dropped silently.
func (s *Service) Enrich(ctx context.Context, hits domain.Ranked) ([]domain.EnrichedHit, error) {
	kept := make(domain.Ranked, 0, len(hits))
	ranks := make(map[int64]int, len(hits))
	for i, h := range hits {
		if s.scoreThreshold >= 0 && h.Score > s.scoreThreshold {
			continue
		}
		kept = append(kept, h)
		ranks[h.ID] = i + 1
	}

	metrics.SearchHitsBelowThreshold.Observe(float64(len(kept)))

	if len(kept) == 0 {
		return nil, fmt.Errorf("no hits under score threshold %g: %w", s.scoreThreshold, domain.ErrNoMatches)
	}

	ids := make([]int64, len(kept))
	for i, h := range kept {
		ids[i] = h.ID
	}

	products, err := s.store.FetchByIDs(ctx, ids)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("fetch products: %w", domain.ErrDependencyTimeout)
		}
		return nil, fmt.Errorf("fetch products: %w", err)
	}

	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	enriched := make([]domain.EnrichedHit, 0, len(kept))
	for _, h := range kept {
		p, ok := byID[h.ID]
		if !ok {
			continue
		}
		enriched = append(enriched, domain.EnrichedHit{
			Product: p,
			Rank:    ranks[h.ID],
			Score:   h.Score,
		})
	}

	if len(enriched) == 0 {
		return nil, fmt.Errorf("no catalog rows for %d hits: %w", len(kept), domain.ErrNoMatches)
	}

	return enriched, nil
}
