// Package challenge detects a reCAPTCHA on the current page and gives the
// operator a window to solve it by hand.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/serpwalk/internal/browser"
	"github.com/FranksOps/serpwalk/pkg/ratelimit"
)

// ErrTimeout is returned by the workflow when a query kept hitting an
// unresolved challenge until its restarts ran out.
var ErrTimeout = errors.New("challenge not resolved")

// Outcome is the terminal state of a check.
type Outcome int

const (
	// Clear means no challenge was seen.
	Clear Outcome = iota
	// Resolved means a challenge was shown and then went away.
	Resolved
	// Unresolved means the challenge survived the grace period; the page
	// was reloaded and the attempt should be restarted.
	Unresolved
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case Unresolved:
		return "unresolved"
	default:
		return "clear"
	}
}

const (
	FrameSelector   = `iframe[title*="reCAPTCHA"]`
	ControlSelector = "#recaptcha-anchor"
)

// Config holds the detector timings. Zero values get defaults.
type Config struct {
	SearchTimeout  time.Duration // frame lookup, default 20s
	GracePeriod    time.Duration // time given to a human, default 30s
	RecheckTimeout time.Duration // control lookup after the grace period, default 20s
	SettleDelay    time.Duration // pause after reloading, default 15s
}

// Detector checks pages for challenges.
type Detector struct {
	cfg     Config
	sleeper ratelimit.Sleeper
	logger  *slog.Logger
}

// New returns a Detector. A nil sleeper sleeps for real; a nil logger falls
// back to slog.Default().
func New(cfg Config, sleeper ratelimit.Sleeper, logger *slog.Logger) *Detector {
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 20 * time.Second
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 30 * time.Second
	}
	if cfg.RecheckTimeout <= 0 {
		cfg.RecheckTimeout = 20 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 15 * time.Second
	}
	if sleeper == nil {
		sleeper = ratelimit.Real
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{cfg: cfg, sleeper: sleeper, logger: logger}
}

// Check looks for a challenge on page. Waits that time out mean the element
// is absent. Any other page error yields Clear together with the error so the
// caller can log it and carry on. The page is back on the top document when
// Check returns.
func (d *Detector) Check(ctx context.Context, page browser.Page) (Outcome, error) {
	defer page.ExitFrame()

	d.logger.Info("checking for challenge")
	if err := page.WaitPresent(ctx, FrameSelector, d.cfg.SearchTimeout); err != nil {
		return absent(err, "challenge frame")
	}

	if err := page.EnterFrame(ctx, FrameSelector); err != nil {
		return Clear, fmt.Errorf("enter challenge frame: %w", err)
	}
	if err := page.WaitVisible(ctx, ControlSelector, d.cfg.SearchTimeout); err != nil {
		return absent(err, "challenge control")
	}

	d.logger.Warn("challenge found, manual action needed", "grace", d.cfg.GracePeriod)
	if err := d.sleeper.Sleep(ctx, d.cfg.GracePeriod); err != nil {
		return Clear, err
	}

	err := page.WaitVisible(ctx, ControlSelector, d.cfg.RecheckTimeout)
	switch {
	case errors.Is(err, browser.ErrTimeout):
		d.logger.Info("challenge resolved")
		return Resolved, nil
	case err != nil:
		return Clear, fmt.Errorf("recheck challenge: %w", err)
	}

	d.logger.Warn("challenge still present, reloading page")
	page.ExitFrame()
	if err := page.Reload(ctx); err != nil {
		d.logger.Error("reload after challenge", "err", err)
	}
	if err := d.sleeper.Sleep(ctx, d.cfg.SettleDelay); err != nil {
		return Unresolved, err
	}
	return Unresolved, nil
}

func absent(err error, what string) (Outcome, error) {
	if errors.Is(err, browser.ErrTimeout) {
		return Clear, nil
	}
	return Clear, fmt.Errorf("wait for %s: %w", what, err)
}
