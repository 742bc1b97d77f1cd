// Package store defines the read-only contract to the relational catalog
// store. Rows are owned by the catalog system; this service only joins them
// onto search results.
package store

import (
	"context"

	"github.com/vitrine-search/vitrine/internal/domain"
)

// Products fetches catalog metadata rows.
type Products interface {
	// FetchByIDs returns the rows for the given ids in one batched query.
	// Ids absent from the store are simply missing from the result; callers
	// handle the drift. Row order is unspecified.
	FetchByIDs(ctx context.Context, ids []int64) ([]domain.Product, error)

	Ping(ctx context.Context) error
}
