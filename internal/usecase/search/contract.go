package search

import (
	"context"

	"github.com/vitrine-search/vitrine/internal/domain"
)

// Searcher defines the vector index contract for KNN retrieval.
type Searcher interface {
	SearchKNN(ctx context.Context, vector domain.Vector, k, efRuntime int) (domain.Ranked, error)
}

// TextEmbedder vectorizes query text.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ImageEmbedder vectorizes query image bytes.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error)
}
