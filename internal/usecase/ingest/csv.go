package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vitrine-search/vitrine/internal/domain"
)

// CSVSource streams records from a catalog CSV export.
// The header row names the columns; order does not matter.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source reading the given CSV file.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Records implements Source. Rows that cannot be parsed at all (wrong
// field count, broken quoting) are surfaced as records with ID 0 so the
// pipeline can count them as skips instead of aborting.
func (s *CSVSource) Records(ctx context.Context, fn func(domain.Record) bool) error {
	f, err := os.Open(filepath.Clean(s.path))
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // validated per row against the header

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if !fn(domain.Record{}) {
				return nil
			}
			continue
		}

		if !fn(rowToRecord(row, cols)) {
			return nil
		}
	}
}

func rowToRecord(row []string, cols map[string]int) domain.Record {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	id, _ := strconv.ParseInt(get("ProductId"), 10, 64)

	return domain.Record{
		ID:          id,
		Gender:      get("Gender"),
		Category:    get("Category"),
		SubCategory: get("SubCategory"),
		ProductType: get("ProductType"),
		Colour:      get("Colour"),
		Usage:       get("Usage"),
		Title:       get("ProductTitle"),
		Image:       get("Image"),
		ImageURL:    get("ImageUrl"),
	}
}
