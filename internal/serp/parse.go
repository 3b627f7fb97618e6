package serp

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parse extracts results from a rendered results page. Anchors without a
// title, or whose href is not an absolute http(s) URL, are skipped.
func Parse(html string, sel Selectors, logger *slog.Logger) ([]Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %w", ErrExtraction, err)
	}

	results := []Result{}
	doc.Find(sel.Result).Each(func(i int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find(sel.Title).First().Text())
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)

		if title == "" || href == "" {
			logger.Debug("skipping incomplete result", "index", i, "title", title, "href", href)
			return
		}
		u, err := url.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			logger.Debug("skipping result with unusable url", "index", i, "href", href)
			return
		}
		results = append(results, Result{Title: title, URL: href})
	})
	return results, nil
}
