package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/vitrine-search/vitrine/internal/domain"
	"github.com/vitrine-search/vitrine/internal/index"
)

// SearchKNN runs a k-nearest-neighbor query via FT.SEARCH. Hits are sorted
// ascending by distance by the query engine; scores are returned raw, with
// distance polarity preserved (lower = more similar).
//
// efRuntime is the search-time accuracy knob for HNSW indexes; pass 0 for
// FLAT indexes, where it does not apply.
func (s *Store) SearchKNN(ctx context.Context, vector domain.Vector, k, efRuntime int) (domain.Ranked, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	knnPart := fmt.Sprintf("[KNN %d @embedding $BLOB", k)
	if efRuntime > 0 {
		knnPart += fmt.Sprintf(" EF_RUNTIME %d", efRuntime)
	}
	knnPart += " AS dist]"

	args := []string{
		s.indexName,
		"*=>" + knnPart,
		"RETURN", "2", "product_id", "dist",
		"SORTBY", "dist", "ASC",
		"LIMIT", "0", strconv.Itoa(k),
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index name") {
			return nil, fmt.Errorf("%w: %w", index.ErrNotBuilt, err)
		}
		return nil, wrapOp(index.OpSearch, err)
	}

	return parseKNNResult(raw)
}

// parseKNNResult decodes the RESP2 FT.SEARCH reply:
// [total, key1, fields1, key2, fields2, ...].
func parseKNNResult(raw []rueidis.RedisMessage) (domain.Ranked, error) {
	if len(raw) == 0 {
		return domain.Ranked{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return domain.Ranked{}, nil
	}

	hits := make(domain.Ranked, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		pairs := parseFieldPairs(fields)

		id, err := strconv.ParseInt(pairs["product_id"], 10, 64)
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(pairs["dist"], 64)
		if err != nil {
			continue
		}

		hits = append(hits, domain.Hit{ID: id, Score: score})
	}

	return hits, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	pairs := make(map[string]string, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		name, err := fields[i].ToString()
		if err != nil {
			continue
		}
		value, err := fields[i+1].ToString()
		if err != nil {
			continue
		}
		pairs[name] = value
	}
	return pairs
}

// vectorToBytes encodes a vector as a little-endian float32 BLOB.
func vectorToBytes(v domain.Vector) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
