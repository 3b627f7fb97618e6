// Package provision obtains a residential proxy for each browser profile and
// checks it against the launcher before use.
package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/FranksOps/serpwalk/pkg/httpclient"
	"github.com/FranksOps/serpwalk/pkg/proxy"
	"github.com/FranksOps/serpwalk/pkg/ratelimit"
)

// ErrProxy is the error kind for every provisioning failure.
var ErrProxy = errors.New("proxy provisioning failed")

// Config describes the proxy to request and how hard to try.
type Config struct {
	ProxyURL    string // proxy service base, e.g. https://profile-proxy.multilogin.com
	LauncherURL string // launcher base hosting /v1/proxy/validate

	Country     string
	Region      string
	City        string
	Protocol    string
	SessionType string

	// MaxAttempts bounds Acquire. Default 2.
	MaxAttempts int
	// RetryDelay separates attempts. Default 1s.
	RetryDelay time.Duration
}

// Provisioner requests proxies from the remote service, or hands them out of
// a static pool when one is set.
type Provisioner struct {
	cfg     Config
	client  *httpclient.Client
	session httpclient.Session
	pool    *proxy.Pool
	sleeper ratelimit.Sleeper
	logger  *slog.Logger
}

// Option customises a Provisioner.
type Option func(*Provisioner)

// WithPool makes Acquire draw from pool instead of the proxy service.
func WithPool(pool *proxy.Pool) Option {
	return func(p *Provisioner) { p.pool = pool }
}

// WithSleeper replaces the real clock used between attempts.
func WithSleeper(s ratelimit.Sleeper) Option {
	return func(p *Provisioner) { p.sleeper = s }
}

// New creates a Provisioner. A nil logger falls back to slog.Default().
func New(cfg Config, client *httpclient.Client, sess httpclient.Session, logger *slog.Logger, opts ...Option) *Provisioner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "http"
	}
	cfg.ProxyURL = strings.TrimRight(cfg.ProxyURL, "/")
	cfg.LauncherURL = strings.TrimRight(cfg.LauncherURL, "/")
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provisioner{
		cfg:     cfg,
		client:  client,
		session: sess,
		sleeper: ratelimit.Real,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type connectionRequest struct {
	Country     string `json:"country"`
	Protocol    string `json:"protocol"`
	SessionType string `json:"sessionType"`
	Region      string `json:"region,omitempty"`
	City        string `json:"city,omitempty"`
}

type connectionResponse struct {
	Data string `json:"data"`
}

// Request asks the proxy service for a new connection string and parses it.
func (p *Provisioner) Request(ctx context.Context) (proxy.Descriptor, error) {
	body := connectionRequest{
		Country:     p.cfg.Country,
		Protocol:    p.cfg.Protocol,
		SessionType: p.cfg.SessionType,
		Region:      p.cfg.Region,
		City:        p.cfg.City,
	}

	var resp connectionResponse
	if _, err := p.client.JSON(ctx, http.MethodPost, p.cfg.ProxyURL+"/v1/proxy/connection_url", p.session, body, &resp); err != nil {
		return proxy.Descriptor{}, fmt.Errorf("%w: request connection: %w", ErrProxy, err)
	}

	d, err := proxy.Parse(resp.Data, p.cfg.Protocol)
	if err != nil {
		return proxy.Descriptor{}, fmt.Errorf("%w: %w", ErrProxy, err)
	}
	p.logger.Info("proxy received", "proxy", d.String())
	return d, nil
}

type serviceStatus struct {
	Status struct {
		Message string `json:"message"`
	} `json:"status"`
}

// Validate asks the launcher to test d. A 401 answer is accepted: the
// validator reports it for working proxies often enough to be meaningless.
func (p *Provisioner) Validate(ctx context.Context, d proxy.Descriptor) error {
	status, err := p.client.JSON(ctx, http.MethodPost, p.cfg.LauncherURL+"/v1/proxy/validate", p.session, d, nil)
	if err == nil {
		p.logger.Info("proxy validated", "proxy", d.String())
		return nil
	}

	if status == http.StatusUnauthorized {
		p.logger.Info("proxy validator answered 401, continuing", "proxy", d.String())
		return nil
	}

	var se *httpclient.StatusError
	if errors.As(err, &se) {
		var body serviceStatus
		if json.Unmarshal(se.Body, &body) == nil && body.Status.Message != "" {
			return fmt.Errorf("%w: validate %s: %s (status %d)", ErrProxy, d, body.Status.Message, se.StatusCode)
		}
	}
	return fmt.Errorf("%w: validate %s: %w", ErrProxy, d, err)
}

// Acquire returns a validated proxy, trying at most MaxAttempts fresh ones.
func (p *Provisioner) Acquire(ctx context.Context) (proxy.Descriptor, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.sleeper.Sleep(ctx, p.cfg.RetryDelay); err != nil {
				return proxy.Descriptor{}, err
			}
		}

		d, err := p.next(ctx)
		if err == nil {
			if err = p.Validate(ctx, d); err == nil {
				p.mark(d, true)
				return d, nil
			}
			p.mark(d, false)
		}
		if ctx.Err() != nil {
			return proxy.Descriptor{}, ctx.Err()
		}

		lastErr = err
		p.logger.Warn("proxy attempt failed", "attempt", attempt, "max_attempts", p.cfg.MaxAttempts, "err", err)
	}
	return proxy.Descriptor{}, fmt.Errorf("%w after %d attempts: %w", ErrProxy, p.cfg.MaxAttempts, lastErr)
}

func (p *Provisioner) next(ctx context.Context) (proxy.Descriptor, error) {
	if p.pool == nil {
		return p.Request(ctx)
	}
	d, ok := p.pool.Next()
	if !ok {
		return proxy.Descriptor{}, fmt.Errorf("%w: no healthy proxy in static pool", ErrProxy)
	}
	p.logger.Info("proxy taken from static pool", "proxy", d.String())
	return d, nil
}

func (p *Provisioner) mark(d proxy.Descriptor, ok bool) {
	if p.pool == nil {
		return
	}
	var err error
	if ok {
		err = p.pool.MarkSuccess(d)
	} else {
		err = p.pool.MarkFailure(d)
	}
	if err != nil {
		p.logger.Debug("pool mark failed", "proxy", d.String(), "err", err)
	}
}
