// Package clip talks to a CLIP inference service for image embeddings.
// The service exposes a single JSON endpoint accepting base64 image bytes
// and returning one vector per input, so the plain net/http client is enough.
package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vitrine-search/vitrine/internal/domain"
	"github.com/vitrine-search/vitrine/internal/metrics"
)

// Embedder produces image embeddings via a CLIP inference endpoint.
type Embedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	provider   string
	client     *http.Client
	logger     *zap.Logger
}

// Config holds the image embedding provider settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Provider   string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewEmbedder creates a CLIP image embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Embedder{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		provider:   cfg.Provider,
		client:     &http.Client{Timeout: timeout},
		logger:     log,
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Image string `json:"image"` // base64
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Detail string `json:"detail"`
}

// EmbedImage implements domain.ImageEmbedder.
func (e *Embedder) EmbedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error) {
	if len(image) == 0 {
		return domain.EmbeddingResult{}, fmt.Errorf("empty image payload: %w", domain.ErrEmbedding)
	}

	body, err := json.Marshal(embedRequest{
		Model: e.model,
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings/image", bytes.NewReader(body))
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	start := time.Now()

	resp, err := e.client.Do(req)

	duration := time.Since(start)

	if err != nil {
		e.logger.Warn("Image embedding request failed",
			zap.String("model", e.model), zap.Error(err))
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "image", "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "image", "timeout").Inc()
			return domain.EmbeddingResult{}, fmt.Errorf("image embedding request: %w", domain.ErrDependencyTimeout)
		}
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "image", "api_error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("do request: %w", domain.ErrEmbeddingProvider)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.logger.Warn("Image embedding request rejected",
			zap.String("model", e.model), zap.Int("status", resp.StatusCode))
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "image", "error").Inc()
		return domain.EmbeddingResult{}, statusError(resp)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "image", "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("decode: %w", domain.ErrEmbeddingProvider)
	}
	if len(result.Data) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "image", "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProvider)
	}

	got := result.Data[0].Embedding
	if e.dimensions > 0 && len(got) != e.dimensions {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "image", "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("embedding has %d dimensions, expected %d: %w",
			len(got), e.dimensions, domain.ErrEmbeddingProvider)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "image", "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, e.model, "image").Observe(duration.Seconds())

	return domain.EmbeddingResult{Vector: got}, nil
}

// HealthCheck probes the inference service.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clip inference: status %d", resp.StatusCode)
	}
	return nil
}

// statusError maps a non-200 response to the domain error taxonomy.
// 4xx means the image itself was rejected, anything else is a provider failure.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed struct {
		Detail string `json:"detail"`
	}
	detail := ""
	if json.Unmarshal(body, &parsed) == nil {
		detail = parsed.Detail
	}
	if detail == "" {
		detail = string(body)
	}

	wrap := domain.ErrEmbeddingProvider
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		wrap = domain.ErrEmbedding
	}
	return fmt.Errorf("image embedding API error %d: %s: %w", resp.StatusCode, detail, wrap)
}
