// Package sqlite implements the product metadata store over database/sql
// with the modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/vitrine-search/vitrine/internal/domain"
	"github.com/vitrine-search/vitrine/internal/store"
)

// Compile-time check: Store implements store.Products.
var _ store.Products = (*Store)(nil)

// Store reads product rows from a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the database at dsn and verifies connectivity.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// FetchByIDs returns metadata rows for the given ids in a single batched
// query. The id set is bound through placeholders, never interpolated into
// the statement text. Ids with no row are absent from the result.
func (s *Store) FetchByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`SELECT product_id, gender, category, sub_category, product_type,
		colour, usage, product_title, image, image_url
		FROM products WHERE product_id IN (%s)`, placeholders)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query products: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make([]domain.Product, 0, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.Gender, &p.Category, &p.SubCategory, &p.ProductType,
			&p.Colour, &p.Usage, &p.Title, &p.Image, &p.ImageURL,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read product rows: %w", domain.ErrStoreUnavailable, err)
	}
	return out, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the products table when absent. Used by tests and
// local development; in production the catalog owns the schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS products (
		product_id    INTEGER PRIMARY KEY,
		gender        TEXT NOT NULL DEFAULT '',
		category      TEXT NOT NULL DEFAULT '',
		sub_category  TEXT NOT NULL DEFAULT '',
		product_type  TEXT NOT NULL DEFAULT '',
		colour        TEXT NOT NULL DEFAULT '',
		usage         TEXT NOT NULL DEFAULT '',
		product_title TEXT NOT NULL DEFAULT '',
		image         TEXT NOT NULL DEFAULT '',
		image_url     TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		return fmt.Errorf("ensure products schema: %w", err)
	}
	return nil
}
