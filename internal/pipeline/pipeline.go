// Package pipeline runs the per-query workflow: provision a proxy, launch a
// profile, search, check for challenges, extract, persist and tear down.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/serpwalk/internal/browser"
	"github.com/FranksOps/serpwalk/internal/bypass"
	"github.com/FranksOps/serpwalk/internal/challenge"
	"github.com/FranksOps/serpwalk/internal/metrics"
	"github.com/FranksOps/serpwalk/internal/profile"
	"github.com/FranksOps/serpwalk/internal/report"
	"github.com/FranksOps/serpwalk/internal/serp"
	"github.com/FranksOps/serpwalk/internal/storage"
	"github.com/FranksOps/serpwalk/pkg/proxy"
	"github.com/FranksOps/serpwalk/pkg/ratelimit"
)

// ProxySource hands out validated proxies.
type ProxySource interface {
	Acquire(ctx context.Context) (proxy.Descriptor, error)
}

// ProfileLauncher starts a browser profile bound to a proxy and releases it.
type ProfileLauncher interface {
	Launch(ctx context.Context, d proxy.Descriptor) (*profile.Session, error)
	Close(ctx context.Context, s *profile.Session) error
}

// ChallengeChecker inspects a page for bot challenges.
type ChallengeChecker interface {
	Check(ctx context.Context, page browser.Page) (challenge.Outcome, error)
}

// Deps are the collaborators of a Pipeline. All are required.
type Deps struct {
	Proxies    ProxySource
	Profiles   ProfileLauncher
	Engine     serp.Provider
	Typist     serp.Typist
	Challenges ChallengeChecker
	Store      storage.Backend
}

// Config tunes the workflow. Zero values get defaults.
type Config struct {
	// MaxAttempts bounds restarts of a query after unresolved challenges. Default 3.
	MaxAttempts int
	// StepDelay separates workflow steps. Default 1s.
	StepDelay time.Duration
	// TeardownTimeout bounds closing the page and stopping the profile. Default 30s.
	TeardownTimeout time.Duration
	// Detectors classify the results page. Nil selects bypass.DefaultDetectors.
	Detectors []bypass.Detector
}

// Pipeline runs queries strictly one after another with at most one live
// profile at any time.
type Pipeline struct {
	deps    Deps
	cfg     Config
	sleeper ratelimit.Sleeper
	logger  *slog.Logger
	now     func() time.Time
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithSleeper replaces the real clock used for step pauses.
func WithSleeper(s ratelimit.Sleeper) Option {
	return func(p *Pipeline) { p.sleeper = s }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline. A nil logger falls back to slog.Default().
func New(cfg Config, deps Deps, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if deps.Proxies == nil || deps.Profiles == nil || deps.Engine == nil ||
		deps.Typist == nil || deps.Challenges == nil || deps.Store == nil {
		return nil, errors.New("pipeline: missing dependency")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = time.Second
	}
	if cfg.TeardownTimeout <= 0 {
		cfg.TeardownTimeout = 30 * time.Second
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		deps:    deps,
		cfg:     cfg,
		sleeper: ratelimit.Real,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run processes queries in order. A failing query is logged and reported and
// the run moves on; the returned error joins every query failure.
func (p *Pipeline) Run(ctx context.Context, queries []string) ([]report.Entry, error) {
	p.logger.Info("queries requested", "count", len(queries), "queries", queries)

	entries := make([]report.Entry, 0, len(queries))
	var errs []error
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		log := p.logger.With("query", q, "index", i+1)
		entry, err := p.runQuery(ctx, q, log)
		if err != nil {
			log.Error("query failed", "attempts", entry.Attempts, "err", err)
			errs = append(errs, fmt.Errorf("query %q: %w", q, err))
		}
		metrics.RecordQuery(err != nil, entry.Attempts, entry.Results, entry.Duration())
		entries = append(entries, entry)
	}

	word := "queries"
	if len(queries) == 1 {
		word = "query"
	}
	p.logger.Info(fmt.Sprintf("search for %d %s has been finished", len(queries), word), "failed", len(errs))
	return entries, errors.Join(errs...)
}

func (p *Pipeline) runQuery(ctx context.Context, q string, log *slog.Logger) (report.Entry, error) {
	entry := report.Entry{Query: q, Started: p.now()}
	finish := func(err error) (report.Entry, error) {
		entry.Finished = p.now()
		if err != nil {
			entry.Error = err.Error()
		}
		return entry, err
	}

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		entry.Attempts = attempt
		log.Info("starting attempt", "attempt", attempt, "max_attempts", p.cfg.MaxAttempts)

		res, err := p.attempt(ctx, q, log)
		if res.checked {
			entry.Challenge = res.outcome.String()
		}
		if err != nil {
			return finish(err)
		}

		if res.outcome == challenge.Unresolved {
			log.Warn("challenge not resolved, restarting query", "attempt", attempt)
			if err := p.pause(ctx); err != nil {
				return finish(err)
			}
			continue
		}

		entry.Results = res.saved
		entry.BlockedBy = res.blockedBy
		return finish(nil)
	}

	return finish(fmt.Errorf("%w after %d attempts", challenge.ErrTimeout, p.cfg.MaxAttempts))
}

type attemptResult struct {
	checked   bool
	outcome   challenge.Outcome
	saved     int
	blockedBy string
}

// attempt runs one pass with a fresh proxy and profile. The profile is torn
// down before attempt returns, whatever the outcome.
func (p *Pipeline) attempt(ctx context.Context, q string, log *slog.Logger) (attemptResult, error) {
	var res attemptResult

	d, err := p.deps.Proxies.Acquire(ctx)
	metrics.RecordProxy(err == nil)
	if err != nil {
		return res, err
	}

	sess, err := p.deps.Profiles.Launch(ctx, d)
	if err != nil {
		return res, err
	}
	log = log.With("profile_id", sess.ID)
	defer p.teardown(ctx, sess, log)

	page := sess.Page
	if err := p.deps.Engine.Open(ctx, page); err != nil {
		return res, fmt.Errorf("open search engine: %w", err)
	}
	if err := p.deps.Engine.Search(ctx, page, p.deps.Typist, q); err != nil {
		return res, fmt.Errorf("search: %w", err)
	}

	outcome, err := p.deps.Challenges.Check(ctx, page)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		log.Error("challenge check failed, continuing", "err", err)
	}
	res.checked, res.outcome = true, outcome
	metrics.RecordChallenge(outcome.String())
	if outcome == challenge.Unresolved {
		return res, nil
	}
	log.Info("no unresolved challenge, continuing", "outcome", outcome.String())

	results, err := p.deps.Engine.Extract(ctx, page)
	if err != nil {
		return res, err
	}
	log.Info("results found", "count", len(results))

	res.blockedBy = p.classify(ctx, page, log)
	res.saved = p.persist(ctx, q, results, log)
	return res, nil
}

// classify attributes the results page to a bot protection, if any.
func (p *Pipeline) classify(ctx context.Context, page browser.Page, log *slog.Logger) string {
	var snap bypass.Snapshot
	var err error
	if snap.HTML, err = page.HTML(ctx); err != nil {
		log.Debug("snapshot html", "err", err)
		return ""
	}
	snap.URL, _ = page.URL(ctx)
	snap.Title, _ = page.Title(ctx)

	src := bypass.Analyze(snap, p.cfg.Detectors)
	if src != "" {
		log.Warn("results page served by bot protection", "source", src)
		metrics.RecordBlocked(src)
	}
	return src
}

func (p *Pipeline) persist(ctx context.Context, q string, results []serp.Result, log *slog.Logger) int {
	now := p.now()
	saved := 0
	for i, r := range results {
		rec := &storage.Record{
			ID:        uuid.NewString(),
			Query:     q,
			Rank:      i + 1,
			Title:     r.Title,
			URL:       r.URL,
			CreatedAt: now,
		}
		if err := p.deps.Store.Save(ctx, rec); err != nil {
			log.Error("save result", "rank", rec.Rank, "url", rec.URL, "err", err)
			continue
		}
		saved++
	}
	if len(results) > 0 {
		log.Info("results saved", "saved", saved, "total", len(results))
	}
	return saved
}

func (p *Pipeline) teardown(ctx context.Context, sess *profile.Session, log *slog.Logger) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.TeardownTimeout)
	defer cancel()
	if err := p.deps.Profiles.Close(tctx, sess); err != nil {
		log.Warn("teardown", "err", err)
	}
}

func (p *Pipeline) pause(ctx context.Context) error {
	return p.sleeper.Sleep(ctx, p.cfg.StepDelay)
}
