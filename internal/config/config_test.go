package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Index: IndexConfig{
			Addrs:     []string{"localhost:6379"},
			Algorithm: "FLAT",
			Metric:    "L2",
		},
		Catalog: CatalogConfig{DSN: "file:catalog.db"},
		Embedding: EmbeddingConfig{
			TextModel: "clip-vit-base-patch32",
		},
		Search: SearchConfig{DefaultTopK: 10, MaxTopK: 100},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingIndexAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Addrs = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing index addrs")
	}
}

func TestValidate_InvalidMetric(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Metric = "HAMMING"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid metric")
	}

	expected := `index.metric must be L2, COSINE or IP, got "HAMMING"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_InvalidAlgorithm(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Algorithm = "IVF_FLAT"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid algorithm")
	}
}

func TestValidate_MissingCatalogDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Catalog.DSN = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing catalog dsn")
	}
}

func TestValidate_MaxTopKBelowDefault(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DefaultTopK = 50
	cfg.Search.MaxTopK = 10

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for max_top_k below default_top_k")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.MaxConcurrentSearches != 32 {
		t.Errorf("expected MaxConcurrentSearches=32, got %d", cfg.HTTP.MaxConcurrentSearches)
	}
	if cfg.Index.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Index.ReadinessTimeout)
	}
	if cfg.Index.KeyPrefix != "vitrine:" {
		t.Errorf("expected KeyPrefix='vitrine:', got %q", cfg.Index.KeyPrefix)
	}
	if cfg.Index.Name != "idx:products" {
		t.Errorf("expected Name='idx:products', got %q", cfg.Index.Name)
	}
	if cfg.Index.Algorithm != "FLAT" {
		t.Errorf("expected Algorithm=FLAT, got %q", cfg.Index.Algorithm)
	}
	if cfg.Index.Metric != "L2" {
		t.Errorf("expected Metric=L2, got %q", cfg.Index.Metric)
	}
	if cfg.Embedding.Dimensions != 512 {
		t.Errorf("expected Dimensions=512, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Search.DefaultTopK != 10 {
		t.Errorf("expected DefaultTopK=10, got %d", cfg.Search.DefaultTopK)
	}
	if cfg.Search.MaxTopK != 100 {
		t.Errorf("expected MaxTopK=100, got %d", cfg.Search.MaxTopK)
	}
	if cfg.Search.ScoreThreshold == nil || *cfg.Search.ScoreThreshold != 50 {
		t.Errorf("expected ScoreThreshold=50, got %v", cfg.Search.ScoreThreshold)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5, MaxConcurrentSearches: 8},
		Index:  IndexConfig{ReadinessTimeout: 15, KeyPrefix: "custom:", Algorithm: "HNSW", Metric: "COSINE", HNSWM: 16},
		Search: SearchConfig{DefaultTopK: 5, MaxTopK: 50, ScoreThreshold: floatp(0.4)},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.MaxConcurrentSearches != 8 {
		t.Errorf("expected MaxConcurrentSearches=8, got %d", cfg.HTTP.MaxConcurrentSearches)
	}
	if cfg.Index.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Index.KeyPrefix)
	}
	if cfg.Index.Algorithm != "HNSW" {
		t.Errorf("expected Algorithm=HNSW, got %q", cfg.Index.Algorithm)
	}
	if cfg.Index.HNSWM != 16 {
		t.Errorf("expected HNSWM=16, got %d", cfg.Index.HNSWM)
	}
	if cfg.Search.ScoreThreshold == nil || *cfg.Search.ScoreThreshold != 0.4 {
		t.Errorf("expected ScoreThreshold=0.4, got %v", cfg.Search.ScoreThreshold)
	}
}

func floatp(v float64) *float64 { return &v }

func TestApplyDefaults_ExplicitZeroThresholdKept(t *testing.T) {
	cfg := Config{Search: SearchConfig{ScoreThreshold: floatp(0)}}
	cfg.ApplyDefaults()

	if cfg.Search.ScoreThreshold == nil || *cfg.Search.ScoreThreshold != 0 {
		t.Errorf("explicit zero threshold must survive defaults, got %v", cfg.Search.ScoreThreshold)
	}
}

func TestApplyDefaults_NegativeThresholdKept(t *testing.T) {
	// Negative disables the filter downstream; defaults must not rewrite it.
	cfg := Config{Search: SearchConfig{ScoreThreshold: floatp(-1)}}
	cfg.ApplyDefaults()

	if cfg.Search.ScoreThreshold == nil || *cfg.Search.ScoreThreshold != -1 {
		t.Errorf("negative threshold must survive defaults, got %v", cfg.Search.ScoreThreshold)
	}
}
