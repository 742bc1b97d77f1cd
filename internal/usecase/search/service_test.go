package search

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/vitrine-search/vitrine/internal/domain"
	"github.com/vitrine-search/vitrine/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterSearchMetrics()
	os.Exit(m.Run())
}

type mockSearcher struct {
	hits      domain.Ranked
	err       error
	calls     int
	gotVector domain.Vector
	gotK      int
	gotEF     int
}

func (m *mockSearcher) SearchKNN(_ context.Context, vector domain.Vector, k, efRuntime int) (domain.Ranked, error) {
	m.calls++
	m.gotVector = vector
	m.gotK = k
	m.gotEF = efRuntime
	return m.hits, m.err
}

type mockTextEmbedder struct {
	vector domain.Vector
	err    error
	calls  int
}

func (m *mockTextEmbedder) EmbedText(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return domain.EmbeddingResult{Vector: m.vector}, m.err
}

type mockImageEmbedder struct {
	vector domain.Vector
	err    error
	calls  int
}

func (m *mockImageEmbedder) EmbedImage(_ context.Context, _ []byte) (domain.EmbeddingResult, error) {
	m.calls++
	return domain.EmbeddingResult{Vector: m.vector}, m.err
}

func newTestService(idx *mockSearcher, text *mockTextEmbedder, image *mockImageEmbedder) *Service {
	return New(idx, text, image, Config{DefaultTopK: 10, MaxTopK: 100, EFRuntime: 10})
}

func TestSearch_TextOnly(t *testing.T) {
	idx := &mockSearcher{hits: domain.Ranked{
		{ID: 5, Score: 10.5},
		{ID: 9, Score: 42.25},
		{ID: 42, Score: 60.0},
	}}
	text := &mockTextEmbedder{vector: domain.Vector{1, 2, 3}}
	image := &mockImageEmbedder{}
	svc := newTestService(idx, text, image)

	hits, err := svc.Search(context.Background(), Query{Text: "red sneakers"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].ID != 5 || hits[1].ID != 9 || hits[2].ID != 42 {
		t.Errorf("hit order not preserved: %+v", hits)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score < hits[i-1].Score {
			t.Errorf("scores not ascending at %d: %+v", i, hits)
		}
	}
	if image.calls != 0 {
		t.Errorf("image embedder called %d times for text-only query", image.calls)
	}
	if idx.gotK != 10 {
		t.Errorf("expected default top_k=10, got %d", idx.gotK)
	}
	if idx.gotEF != 10 {
		t.Errorf("expected ef_runtime=10, got %d", idx.gotEF)
	}
	// Identity fusion: the text vector goes to the index unchanged.
	if len(idx.gotVector) != 3 || idx.gotVector[0] != 1 {
		t.Errorf("expected text vector passed through, got %v", idx.gotVector)
	}
}

func TestSearch_Multimodal_FusesVectors(t *testing.T) {
	idx := &mockSearcher{hits: domain.Ranked{{ID: 1, Score: 0.1}}}
	text := &mockTextEmbedder{vector: domain.Vector{1, 3}}
	image := &mockImageEmbedder{vector: domain.Vector{3, 5}}
	svc := newTestService(idx, text, image)

	_, err := svc.Search(context.Background(), Query{Text: "boots", Image: []byte{0xFF}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := domain.Vector{2, 4} // element-wise mean
	if len(idx.gotVector) != 2 || idx.gotVector[0] != want[0] || idx.gotVector[1] != want[1] {
		t.Errorf("expected fused vector %v, got %v", want, idx.gotVector)
	}
}

func TestSearch_EmptyQuery_NoProviderCalls(t *testing.T) {
	idx := &mockSearcher{}
	text := &mockTextEmbedder{}
	image := &mockImageEmbedder{}
	svc := newTestService(idx, text, image)

	_, err := svc.Search(context.Background(), Query{Text: "   "})
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	if text.calls != 0 || image.calls != 0 || idx.calls != 0 {
		t.Error("malformed query must not reach any external dependency")
	}
}

func TestSearch_TopKValidation(t *testing.T) {
	intp := func(v int) *int { return &v }

	tests := []struct {
		name string
		topK *int
		ok   bool
	}{
		{"absent uses default", nil, true},
		{"explicit", intp(25), true},
		{"at limit", intp(100), true},
		{"explicit zero", intp(0), false},
		{"negative", intp(-1), false},
		{"over limit", intp(101), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &mockSearcher{hits: domain.Ranked{}}
			text := &mockTextEmbedder{vector: domain.Vector{1}}
			svc := newTestService(idx, text, &mockImageEmbedder{})

			_, err := svc.Search(context.Background(), Query{Text: "q", TopK: tt.topK})
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				if !errors.Is(err, domain.ErrInvalidQuery) {
					t.Fatalf("expected ErrInvalidQuery, got %v", err)
				}
				if text.calls != 0 {
					t.Error("embedder called for invalid top_k")
				}
			}
		})
	}
}

func TestSearch_EmbedderError(t *testing.T) {
	idx := &mockSearcher{}
	text := &mockTextEmbedder{err: domain.ErrEmbeddingProvider}
	svc := newTestService(idx, text, &mockImageEmbedder{})

	_, err := svc.Search(context.Background(), Query{Text: "q"})
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("expected ErrEmbeddingProvider, got %v", err)
	}
	if idx.calls != 0 {
		t.Error("index must not be called when embedding fails")
	}
}

func TestSearch_EmbedderTimeout(t *testing.T) {
	idx := &mockSearcher{}
	text := &mockTextEmbedder{err: context.DeadlineExceeded}
	svc := newTestService(idx, text, &mockImageEmbedder{})

	_, err := svc.Search(context.Background(), Query{Text: "q"})
	if !errors.Is(err, domain.ErrDependencyTimeout) {
		t.Fatalf("expected ErrDependencyTimeout, got %v", err)
	}
}

func TestSearch_IndexTimeout(t *testing.T) {
	idx := &mockSearcher{err: context.DeadlineExceeded}
	text := &mockTextEmbedder{vector: domain.Vector{1}}
	svc := newTestService(idx, text, &mockImageEmbedder{})

	_, err := svc.Search(context.Background(), Query{Text: "q"})
	if !errors.Is(err, domain.ErrDependencyTimeout) {
		t.Fatalf("expected ErrDependencyTimeout, got %v", err)
	}
}

func TestSearch_IndexError(t *testing.T) {
	idx := &mockSearcher{err: domain.ErrIndexUnavailable}
	text := &mockTextEmbedder{vector: domain.Vector{1}}
	svc := newTestService(idx, text, &mockImageEmbedder{})

	_, err := svc.Search(context.Background(), Query{Text: "q"})
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}
