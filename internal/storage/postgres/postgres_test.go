package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/serpwalk/internal/storage"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if SERPWALK_TEST_PG_DSN is set
	dsn := os.Getenv("SERPWALK_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: SERPWALK_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	now := time.Now().UTC()
	query := "pg-" + uuid.NewString()

	rec := &storage.Record{
		ID:        uuid.NewString(),
		Query:     query,
		Rank:      1,
		Title:     "PostgreSQL",
		URL:       "https://www.postgresql.org/",
		CreatedAt: now,
	}
	if err := b.Save(ctx, rec); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}

	results, err := b.Query(ctx, storage.Filter{Query: query})
	if err != nil {
		t.Fatalf("Failed to query records: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	got := results[0]
	if got.ID != rec.ID || got.Title != rec.Title || got.URL != rec.URL || got.Rank != 1 {
		t.Errorf("unexpected record %+v", got)
	}
	if got.CreatedAt.Unix() != rec.CreatedAt.Unix() {
		t.Errorf("Expected CreatedAt %v, got %v", rec.CreatedAt, got.CreatedAt)
	}

	future := now.Add(time.Hour)
	none, err := b.Query(ctx, storage.Filter{Query: query, Since: &future})
	if err != nil {
		t.Fatalf("Failed to query with Since: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected 0 results, got %d", len(none))
	}
}
