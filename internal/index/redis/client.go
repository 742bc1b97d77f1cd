package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/vitrine-search/vitrine/internal/domain"
	"github.com/vitrine-search/vitrine/internal/index"
)

// Compile-time check: Store implements index.Index.
var _ index.Index = (*Store)(nil)

// Config holds connection parameters for the Redis-backed vector index.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	IndexName string
}

// Store implements index.Index via rueidis against the Redis Query Engine.
type Store struct {
	client    rueidis.Client
	keyPrefix string
	indexName string
}

// NewStore creates a Redis-backed vector index client.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		indexName: cfg.IndexName,
	}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: ping: %w", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the index responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for vector index: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// entryKey builds the hash key for one index entry.
func (s *Store) entryKey(id int64) string {
	return fmt.Sprintf("%sproduct:%d", s.keyPrefix, id)
}

// metaKey is where the built-index identity is recorded.
func (s *Store) metaKey() string {
	return s.keyPrefix + "index:meta"
}

// wrapOp wraps a command error with the operation and, for connectivity
// failures, the domain sentinel. Server-side errors (bad syntax, unknown
// index) are not connectivity losses and keep their own identity.
func wrapOp(op string, err error) error {
	if _, ok := rueidis.IsRedisErr(err); ok {
		return &index.Error{Op: op, Err: err}
	}
	return &index.Error{Op: op, Err: fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)}
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
