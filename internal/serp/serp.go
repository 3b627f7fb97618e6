// Package serp drives a search engine home page and extracts organic results
// from the rendered results page.
package serp

import (
	"context"
	"errors"

	"github.com/FranksOps/serpwalk/internal/browser"
	"github.com/FranksOps/serpwalk/internal/typing"
)

// ErrExtraction is returned when the results page cannot be read.
var ErrExtraction = errors.New("result extraction failed")

// Result is one organic result, in page order.
type Result struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Typist types text into a keystroke target.
type Typist interface {
	Type(ctx context.Context, t typing.Target, text string) error
}

// Provider abstracts a search engine driven through a browser page.
type Provider interface {
	// Open loads the home page and waits until it is usable.
	Open(ctx context.Context, page browser.Page) error
	// Search types query into the search box and submits it.
	Search(ctx context.Context, page browser.Page, typist Typist, query string) error
	// Extract reads the results currently shown. A page without results
	// yields an empty slice and no error.
	Extract(ctx context.Context, page browser.Page) ([]Result, error)
}
