package index

import (
	"context"
	"time"

	"github.com/vitrine-search/vitrine/internal/domain"
)

// Entry is one id→vector pair stored in the vector index. Degraded marks
// entries whose image could not be resolved at ingestion time, so consumers
// can audit vector quality.
type Entry struct {
	ID       int64
	Vector   domain.Vector
	Degraded bool
}

// Metric is the distance metric pinned at index-construction time.
// All supported metrics are distances: lower score means more similar.
type Metric string

const (
	MetricL2     Metric = "L2"
	MetricIP     Metric = "IP"
	MetricCosine Metric = "COSINE"
)

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricL2, MetricIP, MetricCosine:
		return true
	}
	return false
}

// Algorithm selects the index structure built over stored vectors.
type Algorithm string

const (
	AlgorithmFlat Algorithm = "FLAT"
	AlgorithmHNSW Algorithm = "HNSW"
)

// Valid reports whether a is a supported algorithm.
func (a Algorithm) Valid() bool {
	return a == AlgorithmFlat || a == AlgorithmHNSW
}

// Params pins the index structure. Changing the metric or algorithm after
// ingestion invalidates the built structure; Build always drops and
// recreates, never updates incrementally.
type Params struct {
	Dimensions  int
	Metric      Metric
	Algorithm   Algorithm
	HNSWM       int
	EFConstruct int

	// Provider identity recorded alongside the index so a later ingest or
	// query path can detect an incompatible embedding configuration.
	Provider           string
	Model              string
	DescriptionVersion string
}

// Meta is the recorded identity of a built index.
type Meta struct {
	Dimensions         int
	Metric             Metric
	Algorithm          Algorithm
	Provider           string
	Model              string
	DescriptionVersion string
	BuiltAt            time.Time
}

// Writer ingests entries and constructs the searchable index.
type Writer interface {
	Upsert(ctx context.Context, entries []Entry) error
	Build(ctx context.Context, params Params) error
}

// Searcher answers k-nearest-neighbor queries. Hits come back ascending by
// distance per the index contract; callers do not re-sort.
type Searcher interface {
	SearchKNN(ctx context.Context, vector domain.Vector, k, efRuntime int) (domain.Ranked, error)
}

// MetaReader reads the recorded index identity.
type MetaReader interface {
	ReadMeta(ctx context.Context) (Meta, bool, error)
}

// KVStore provides simple key-value operations, used by the embedding cache.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Pinger checks index connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Index is the full vector-index facade. Consumers depend on the narrow
// sub-interfaces above.
type Index interface {
	Writer
	Searcher
	MetaReader
	KVStore
	Pinger
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}
