package storage

import (
	"context"
	"testing"
	"time"
)

type mockBackend struct{}

func (m *mockBackend) Save(ctx context.Context, record *Record) error { return nil }
func (m *mockBackend) Query(ctx context.Context, filter Filter) ([]*Record, error) {
	return nil, nil
}
func (m *mockBackend) Close() error { return nil }

func TestBackendInterface(t *testing.T) {
	var b Backend = &mockBackend{}
	_ = b
}

func TestSelect(t *testing.T) {
	now := time.Now()
	records := []*Record{
		{ID: "1", Query: "go", Rank: 1, CreatedAt: now.Add(-time.Hour)},
		{ID: "2", Query: "go", Rank: 2, CreatedAt: now.Add(-time.Hour)},
		{ID: "3", Query: "rust", Rank: 1, CreatedAt: now},
		{ID: "4", Query: "rust", Rank: 2, CreatedAt: now},
	}

	ids := func(rs []*Record) string {
		s := ""
		for _, r := range rs {
			s += r.ID
		}
		return s
	}

	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{"all newest first", Filter{}, "3412"},
		{"by query", Filter{Query: "go"}, "12"},
		{"limit", Filter{Limit: 3}, "341"},
		{"offset", Filter{Offset: 1, Limit: 2}, "41"},
		{"offset past end", Filter{Offset: 10}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(Select(records, tt.filter)); got != tt.want {
				t.Errorf("Select() = %q, want %q", got, tt.want)
			}
		})
	}

	since := now.Add(-time.Minute)
	if got := ids(Select(records, Filter{Since: &since})); got != "34" {
		t.Errorf("Since filter = %q, want 34", got)
	}
}
