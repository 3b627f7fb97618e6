package serp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp/kb"

	"github.com/FranksOps/serpwalk/internal/browser"
	"github.com/FranksOps/serpwalk/pkg/ratelimit"
)

// Selectors locate the parts of a search engine page.
type Selectors struct {
	Home      string
	Logo      string
	SearchBox string
	Result    string // anchor wrapping one organic result
	Title     string // title element inside Result
}

// GoogleSelectors match google.com as rendered for desktop browsers.
var GoogleSelectors = Selectors{
	Home:      "https://google.com",
	Logo:      "img.lnXdpd",
	SearchBox: "#APjFqb",
	Result:    `a[jsname="UWckNb"]`,
	Title:     "h3",
}

// GoogleConfig tunes waits and pacing. Zero values get defaults.
type GoogleConfig struct {
	Selectors     Selectors
	LoadTimeout   time.Duration // logo and search box, default 20s
	ResultTimeout time.Duration // result anchors, default 10s
	// StepDelay separates clicks, typing and submit. Default 1s.
	StepDelay time.Duration
}

// Google is the Provider for google.com.
type Google struct {
	cfg     GoogleConfig
	sleeper ratelimit.Sleeper
	logger  *slog.Logger
}

var _ Provider = (*Google)(nil)

// NewGoogle returns a Google provider. A nil sleeper sleeps for real.
func NewGoogle(cfg GoogleConfig, sleeper ratelimit.Sleeper, logger *slog.Logger) *Google {
	if cfg.Selectors == (Selectors{}) {
		cfg.Selectors = GoogleSelectors
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 20 * time.Second
	}
	if cfg.ResultTimeout <= 0 {
		cfg.ResultTimeout = 10 * time.Second
	}
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = time.Second
	}
	if sleeper == nil {
		sleeper = ratelimit.Real
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Google{cfg: cfg, sleeper: sleeper, logger: logger}
}

// Selectors returns the selectors in use.
func (g *Google) Selectors() Selectors { return g.cfg.Selectors }

func (g *Google) Open(ctx context.Context, page browser.Page) error {
	g.logger.Info("browsing to search engine", "url", g.cfg.Selectors.Home)
	if err := page.Navigate(ctx, g.cfg.Selectors.Home); err != nil {
		return fmt.Errorf("navigate %s: %w", g.cfg.Selectors.Home, err)
	}
	if err := page.WaitVisible(ctx, g.cfg.Selectors.Logo, g.cfg.LoadTimeout); err != nil {
		return fmt.Errorf("wait for home page: %w", err)
	}
	g.logger.Info("home page loaded")
	return g.sleeper.Sleep(ctx, g.cfg.StepDelay)
}

func (g *Google) Search(ctx context.Context, page browser.Page, typist Typist, query string) error {
	box := g.cfg.Selectors.SearchBox
	if err := page.WaitVisible(ctx, box, g.cfg.LoadTimeout); err != nil {
		return fmt.Errorf("wait for search box: %w", err)
	}
	if err := page.Click(ctx, box); err != nil {
		return fmt.Errorf("click search box: %w", err)
	}
	if err := g.sleeper.Sleep(ctx, g.cfg.StepDelay); err != nil {
		return err
	}

	g.logger.Info("typing query", "query", query)
	el := browser.Element{Page: page, Selector: box}
	if err := typist.Type(ctx, el, query); err != nil {
		return fmt.Errorf("type query: %w", err)
	}
	if err := g.sleeper.Sleep(ctx, 2*g.cfg.StepDelay); err != nil {
		return err
	}

	if err := el.SendKeys(ctx, kb.Enter); err != nil {
		return fmt.Errorf("submit query: %w", err)
	}
	return g.sleeper.Sleep(ctx, 3*g.cfg.StepDelay)
}

func (g *Google) Extract(ctx context.Context, page browser.Page) ([]Result, error) {
	g.logger.Info("looking for results")
	if err := page.WaitPresent(ctx, g.cfg.Selectors.Result, g.cfg.ResultTimeout); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			g.logger.Warn("no results found on page")
			return []Result{}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read page: %w", ErrExtraction, err)
	}

	results, err := Parse(html, g.cfg.Selectors, g.logger)
	if err != nil {
		return nil, err
	}
	g.logger.Info("results extracted", "count", len(results))
	return results, nil
}
