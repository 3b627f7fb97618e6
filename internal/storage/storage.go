// Package storage persists extracted search results.
package storage

import (
	"cmp"
	"context"
	"slices"
	"time"
)

// Record is one search result as persisted.
type Record struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Rank      int       `json:"rank"` // 1-based position on the results page
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter allows querying for specific Records.
type Filter struct {
	Query  string
	Since  *time.Time
	Limit  int
	Offset int
}

// Match reports whether r passes the field filters of f.
func (f Filter) Match(r *Record) bool {
	if f.Query != "" && r.Query != f.Query {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Backend defines the interface for storing and querying records.
type Backend interface {
	Save(ctx context.Context, record *Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}

// Select applies f to records held in memory: newest first, page order
// within a query run, then offset and limit.
func Select(records []*Record, f Filter) []*Record {
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}

	slices.SortStableFunc(out, func(a, b *Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Rank, b.Rank)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*Record{}
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out
}
