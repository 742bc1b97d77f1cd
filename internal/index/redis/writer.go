package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/vitrine-search/vitrine/internal/index"
)

// Upsert writes entries as hashes in a single pipelined round-trip. The
// vector is stored as a little-endian float32 BLOB, the layout FT.SEARCH
// expects for the @embedding field.
func (s *Store) Upsert(ctx context.Context, entries []index.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(entries))
	for i, e := range entries {
		degraded := "0"
		if e.Degraded {
			degraded = "1"
		}
		cmds[i] = s.b().Hset().Key(s.entryKey(e.ID)).
			FieldValue().
			FieldValue("product_id", strconv.FormatInt(e.ID, 10)).
			FieldValue("degraded", degraded).
			FieldValue("embedding", vectorToBytes(e.Vector)).
			Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return wrapOp(index.OpUpsert, fmt.Errorf("id %d: %w", entries[i].ID, err))
		}
	}
	return nil
}

// Build constructs the FT index over previously upserted entries and records
// the index identity in the metadata key. An existing index is dropped first:
// metric and structure changes always mean a rebuild, never an incremental
// update.
func (s *Store) Build(ctx context.Context, params index.Params) error {
	if err := s.dropIndex(ctx); err != nil {
		return err
	}

	args := []string{
		s.indexName,
		"ON", "HASH",
		"PREFIX", "1", s.keyPrefix + "product:",
		"SCHEMA",
		"product_id", "NUMERIC", "SORTABLE",
		"degraded", "TAG",
		"embedding", "VECTOR",
	}

	switch params.Algorithm {
	case index.AlgorithmHNSW:
		args = append(args, "HNSW", "10",
			"TYPE", "FLOAT32",
			"DIM", strconv.Itoa(params.Dimensions),
			"DISTANCE_METRIC", string(params.Metric),
			"M", strconv.Itoa(params.HNSWM),
			"EF_CONSTRUCTION", strconv.Itoa(params.EFConstruct),
		)
	default:
		args = append(args, "FLAT", "6",
			"TYPE", "FLOAT32",
			"DIM", strconv.Itoa(params.Dimensions),
			"DISTANCE_METRIC", string(params.Metric),
		)
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return wrapOp(index.OpCreateIndex, err)
	}

	return s.writeMeta(ctx, params)
}

func (s *Store) dropIndex(ctx context.Context) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(s.indexName).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return nil
		}
		return wrapOp(index.OpDropIndex, err)
	}
	return nil
}

func (s *Store) writeMeta(ctx context.Context, params index.Params) error {
	cmd := s.b().Hset().Key(s.metaKey()).
		FieldValue().
		FieldValue("dimensions", strconv.Itoa(params.Dimensions)).
		FieldValue("metric", string(params.Metric)).
		FieldValue("algorithm", string(params.Algorithm)).
		FieldValue("provider", params.Provider).
		FieldValue("model", params.Model).
		FieldValue("description_version", params.DescriptionVersion).
		FieldValue("built_at", time.Now().UTC().Format(time.RFC3339)).
		Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return wrapOp(index.OpUpsert, err)
	}
	return nil
}

// ReadMeta returns the recorded index identity; ok=false when no index has
// been built yet.
func (s *Store) ReadMeta(ctx context.Context) (index.Meta, bool, error) {
	cmd := s.b().Hgetall().Key(s.metaKey()).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return index.Meta{}, false, wrapOp(index.OpMeta, err)
	}
	if len(m) == 0 {
		return index.Meta{}, false, nil
	}

	dim, _ := strconv.Atoi(m["dimensions"])
	builtAt, _ := time.Parse(time.RFC3339, m["built_at"])

	return index.Meta{
		Dimensions:         dim,
		Metric:             index.Metric(m["metric"]),
		Algorithm:          index.Algorithm(m["algorithm"]),
		Provider:           m["provider"],
		Model:              m["model"],
		DescriptionVersion: m["description_version"],
		BuiltAt:            builtAt,
	}, true, nil
}
