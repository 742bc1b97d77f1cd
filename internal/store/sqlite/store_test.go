package sqlite

import (
	"context"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return s
}

func seed(t *testing.T, s *Store, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		_, err := s.db.Exec(
			`INSERT INTO products (product_id, gender, category, sub_category, product_type,
				colour, usage, product_title, image, image_url)
			 VALUES (?, 'Women', 'Footwear', 'Shoes', 'Sneakers', 'Red', 'Casual', ?, ?, '')`,
			id, "Product "+string(rune('A'+id%26)), "img.jpg",
		)
		if err != nil {
			t.Fatalf("seed id %d: %v", id, err)
		}
	}
}

func TestFetchByIDs_Batched(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, 5, 9, 42)

	rows, err := s.FetchByIDs(context.Background(), []int64{5, 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	got := map[int64]bool{}
	for _, p := range rows {
		got[p.ID] = true
		if p.Category != "Footwear" {
			t.Errorf("id %d: category = %q", p.ID, p.Category)
		}
	}
	if !got[5] || !got[42] {
		t.Errorf("missing expected ids in %v", got)
	}
}

func TestFetchByIDs_MissingIDsDropped(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, 5, 42)

	// id 9 has no row; the result is simply shorter, no error.
	rows, err := s.FetchByIDs(context.Background(), []int64{5, 9, 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, p := range rows {
		if p.ID == 9 {
			t.Error("id 9 should not be present")
		}
	}
}

func TestFetchByIDs_Empty(t *testing.T) {
	s := newTestStore(t)

	rows, err := s.FetchByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != nil {
		t.Errorf("expected nil rows, got %v", rows)
	}
}

func TestFetchByIDs_HostileIDsAreJustValues(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, 1)

	// Typed int64 ids bound as parameters cannot alter the statement.
	rows, err := s.FetchByIDs(context.Background(), []int64{1, -1, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != 1 {
		t.Fatalf("expected only id 1, got %v", rows)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
