package jsonbackend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/serpwalk/internal/storage"
)

func TestJSONBackend(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "results.ndjson")

	b, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create JSON backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	recs := []*storage.Record{
		{ID: "j1", Query: "golang", Rank: 1, Title: "Go", URL: "https://go.dev/", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "j2", Query: "rust", Rank: 1, Title: "Rust", URL: "https://www.rust-lang.org/", CreatedAt: now.Add(-time.Hour)},
		{ID: "j3", Query: "rust", Rank: 2, Title: "Rust book", URL: "https://doc.rust-lang.org/book/", CreatedAt: now.Add(-time.Hour)},
	}
	for _, r := range recs {
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("Failed to save %s: %v", r.ID, err)
		}
	}

	rust, err := b.Query(ctx, storage.Filter{Query: "rust"})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(rust) != 2 || rust[0].ID != "j2" || rust[1].ID != "j3" {
		t.Fatalf("unexpected rust results %+v", rust)
	}
	if !rust[0].CreatedAt.Equal(recs[1].CreatedAt) {
		t.Errorf("created_at not preserved: %s vs %s", rust[0].CreatedAt, recs[1].CreatedAt)
	}

	since := now.Add(-90 * time.Minute)
	recent, err := b.Query(ctx, storage.Filter{Since: &since})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("expected 2 recent records, got %d", len(recent))
	}

	paged, err := b.Query(ctx, storage.Filter{Offset: 2, Limit: 5})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(paged) != 1 || paged[0].ID != "j1" {
		t.Errorf("expected oldest record on the second page, got %+v", paged)
	}
}
