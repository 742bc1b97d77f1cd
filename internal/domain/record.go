package domain

import (
	"fmt"
	"strings"
)

// DescriptionVersion identifies the canonical description field order below.
// Recorded in the index metadata at build time: changing the order changes
// every document vector and requires a full re-ingest under a new version.
const DescriptionVersion = "v1"

// Record is a raw catalog record as read from the ingestion source.
type Record struct {
	ID          int64
	Gender      string
	Category    string
	SubCategory string
	ProductType string
	Colour      string
	Usage       string
	Title       string
	Image       string
	ImageURL    string
}

// Description builds the canonical text description: a fixed set of fields
// in a fixed order, single-space separated. The order is load-bearing for
// vector reproducibility (see DescriptionVersion).
func (r Record) Description() string {
	return strings.Join([]string{
		r.Gender, r.Category, r.SubCategory, r.ProductType,
		r.Colour, r.Usage, r.Title,
	}, " ")
}

// Validate checks that the primary key and every description field are
// present. A failing record is skipped, never fatal to the batch.
func (r Record) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("%w: missing or non-positive id", ErrMalformedRecord)
	}
	fields := map[string]string{
		"gender":        r.Gender,
		"category":      r.Category,
		"sub_category":  r.SubCategory,
		"product_type":  r.ProductType,
		"colour":        r.Colour,
		"usage":         r.Usage,
		"product_title": r.Title,
	}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: empty field %s", ErrMalformedRecord, name)
		}
	}
	return nil
}

// Skip records one rejected record and the reason it was rejected.
type Skip struct {
	ID     int64
	Reason string
}

// Report summarizes one ingestion run. Degraded counts entries whose image
// could not be resolved and whose vector therefore carries text-only signal.
type Report struct {
	Inserted int
	Degraded int
	Skipped  []Skip
}
