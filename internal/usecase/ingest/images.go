package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/vitrine-search/vitrine/internal/domain"
)

// FileOrURLLoader resolves images from a local directory first and falls
// back to the record's URL. Either source failing is fine; the caller
// degrades the record.
type FileOrURLLoader struct {
	dir      string
	maxBytes int64
	client   *http.Client
}

// NewFileOrURLLoader creates an image loader. dir may be empty to skip
// the filesystem lookup. maxBytes caps the downloaded size.
func NewFileOrURLLoader(dir string, maxBytes int64, timeout time.Duration) *FileOrURLLoader {
	if maxBytes <= 0 {
		maxBytes = 8 << 20
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FileOrURLLoader{
		dir:      dir,
		maxBytes: maxBytes,
		client:   &http.Client{Timeout: timeout},
	}
}

// Load implements ImageLoader.
func (l *FileOrURLLoader) Load(ctx context.Context, rec domain.Record) ([]byte, error) {
	if l.dir != "" && rec.Image != "" {
		path := filepath.Join(l.dir, filepath.Base(rec.Image))
		data, err := os.ReadFile(filepath.Clean(path))
		if err == nil {
			return data, nil
		}
		if rec.ImageURL == "" {
			return nil, fmt.Errorf("read image file: %w", err)
		}
	}

	if rec.ImageURL == "" {
		return nil, fmt.Errorf("record %d has no image source", rec.ID)
	}
	return l.download(ctx, rec.ImageURL)
}

func (l *FileOrURLLoader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", l.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image body")
	}
	return data, nil
}
