package ingest

import (
	"context"

	"github.com/vitrine-search/vitrine/internal/domain"
	"github.com/vitrine-search/vitrine/internal/index"
)

// Source streams catalog records. The callback returns false to stop early.
type Source interface {
	Records(ctx context.Context, fn func(domain.Record) bool) error
}

// IndexWriter defines the vector index contract for ingestion.
type IndexWriter interface {
	Upsert(ctx context.Context, entries []index.Entry) error
	Build(ctx context.Context, params index.Params) error
	ReadMeta(ctx context.Context) (index.Meta, bool, error)
}

// TextEmbedder vectorizes product descriptions.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ImageEmbedder vectorizes product images.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error)
}

// ImageLoader resolves a record's image bytes from disk or URL.
type ImageLoader interface {
	Load(ctx context.Context, rec domain.Record) ([]byte, error)
}
