package domain

import (
	"context"
	"fmt"
)

// TextEmbedder vectorizes a text input.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchTextEmbedder vectorizes multiple texts in a single API call.
type BatchTextEmbedder interface {
	BatchEmbedText(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// ImageEmbedder vectorizes raw image bytes.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, image []byte) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the vector and token usage through decorators.
type EmbeddingResult struct {
	Vector       Vector
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Vectors      []Vector
	PromptTokens int
	TotalTokens  int
}

// BatchFallback embeds each text with a separate call. Safety net for
// providers without a batch endpoint.
func BatchFallback(ctx context.Context, e TextEmbedder, texts []string) (BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return BatchEmbeddingResult{}, nil
	}

	vectors := make([]Vector, 0, len(texts))
	var promptTokens, totalTokens int
	for i, text := range texts {
		res, err := e.EmbedText(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		vectors = append(vectors, res.Vector)
		promptTokens += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEmbeddingResult{
		Vectors:      vectors,
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}
