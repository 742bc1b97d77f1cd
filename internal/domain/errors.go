package domain

import "errors"

var (
	// ErrInvalidQuery signals a query with no usable input or a bad top_k.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrNoInput signals fusion invoked without any modality vector.
	// Callers validate first; reaching this is an invariant violation.
	ErrNoInput = errors.New("no input to fuse")
	// ErrMalformedRecord signals a catalog record missing required fields.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrDimensionMismatch signals vectors of different dimensions.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmbedding signals that the embedding provider rejected the input.
	ErrEmbedding = errors.New("embedding rejected")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrIndexUnavailable signals lost connectivity to the vector index.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrStoreUnavailable signals lost connectivity to the product store.
	ErrStoreUnavailable = errors.New("product store unavailable")
	// ErrDependencyTimeout signals a dependency call that exceeded its deadline.
	ErrDependencyTimeout = errors.New("dependency timeout")
	// ErrNoMatches signals an empty result set after score filtering.
	// Distinct from store/index failures so callers can branch on it.
	ErrNoMatches = errors.New("no matches")
)
