package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vitrine-search/vitrine/internal/domain"
)

func TestFileOrURLLoader_FromDir(t *testing.T) {
	dir := t.TempDir()
	want := []byte{0xFF, 0xD8, 0x01}
	if err := os.WriteFile(filepath.Join(dir, "42.jpg"), want, 0o600); err != nil {
		t.Fatal(err)
	}

	loader := NewFileOrURLLoader(dir, 0, 0)
	got, err := loader.Load(context.Background(), domain.Record{ID: 42, Image: "42.jpg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(want) {
		t.Error("file bytes do not match")
	}
}

func TestFileOrURLLoader_FallsBackToURL(t *testing.T) {
	want := []byte{0xFF, 0xD8, 0x02}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(want)
	}))
	defer server.Close()

	loader := NewFileOrURLLoader(t.TempDir(), 0, 0)
	got, err := loader.Load(context.Background(), domain.Record{
		ID:       42,
		Image:    "absent.jpg",
		ImageURL: server.URL + "/42.jpg",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(want) {
		t.Error("downloaded bytes do not match")
	}
}

func TestFileOrURLLoader_NoSource(t *testing.T) {
	loader := NewFileOrURLLoader("", 0, 0)

	_, err := loader.Load(context.Background(), domain.Record{ID: 42})
	if err == nil {
		t.Fatal("expected error when record has no image source")
	}
}

func TestFileOrURLLoader_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	loader := NewFileOrURLLoader("", 0, time.Second)
	_, err := loader.Load(context.Background(), domain.Record{ID: 42, ImageURL: server.URL})
	if err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFileOrURLLoader_SizeCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer server.Close()

	loader := NewFileOrURLLoader("", 16, time.Second)
	_, err := loader.Load(context.Background(), domain.Record{ID: 42, ImageURL: server.URL})
	if err == nil {
		t.Fatal("expected error for oversized image")
	}
}
