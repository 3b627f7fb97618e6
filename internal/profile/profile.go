// Package profile starts and stops quick browser profiles on the launcher
// and attaches to the started browser.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/FranksOps/serpwalk/internal/browser"
	"github.com/FranksOps/serpwalk/internal/fingerprint"
	"github.com/FranksOps/serpwalk/pkg/httpclient"
	"github.com/FranksOps/serpwalk/pkg/proxy"
)

// ErrLaunch is the error kind for every failure to obtain a usable profile.
var ErrLaunch = errors.New("profile launch failed")

// Config describes the profiles to launch.
type Config struct {
	LauncherURL string
	// ControlHost is where launched browsers expose their DevTools port.
	// Accepts a bare host or a URL such as http://127.0.0.1. Default 127.0.0.1.
	ControlHost string

	BrowserType string // "mimic" or "stealthfox"
	OSType      string
	Headless    bool
	// Automation is the control protocol requested from the launcher.
	// Default "puppeteer", which exposes DevTools on the returned port.
	Automation string
	StartURLs  []string
	Flags      fingerprint.Flags
}

// Session is one running profile attached to a page.
type Session struct {
	ID    string
	Port  int
	Proxy proxy.Descriptor
	Flags fingerprint.Flags
	Page  browser.Page
}

// Launcher talks to the launcher service.
type Launcher struct {
	cfg       Config
	client    *httpclient.Client
	session   httpclient.Session
	connector browser.Connector
	logger    *slog.Logger
}

// New creates a Launcher. A zero Flags value selects fingerprint.DefaultFlags.
func New(cfg Config, client *httpclient.Client, sess httpclient.Session, connector browser.Connector, logger *slog.Logger) *Launcher {
	cfg.LauncherURL = strings.TrimRight(cfg.LauncherURL, "/")
	if cfg.ControlHost == "" {
		cfg.ControlHost = "127.0.0.1"
	}
	if cfg.BrowserType == "" {
		cfg.BrowserType = "mimic"
	}
	if cfg.Automation == "" {
		cfg.Automation = "puppeteer"
	}
	if cfg.Flags == (fingerprint.Flags{}) {
		cfg.Flags = fingerprint.DefaultFlags()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{cfg: cfg, client: client, session: sess, connector: connector, logger: logger}
}

// Payload is the quick profile request body.
type Payload struct {
	BrowserType string     `json:"browser_type"`
	OSType      string     `json:"os_type"`
	IsHeadless  bool       `json:"is_headless"`
	Automation  string     `json:"automation"`
	Parameters  Parameters `json:"parameters"`
}

// Parameters carries the per-profile proxy and fingerprint settings.
type Parameters struct {
	Proxy           proxy.Descriptor  `json:"proxy"`
	Fingerprint     map[string]any    `json:"fingerprint"`
	Flags           fingerprint.Flags `json:"flags"`
	CustomStartURLs []string          `json:"custom_start_urls"`
}

// BuildPayload assembles the quick profile body for d.
func BuildPayload(d proxy.Descriptor, cfg Config) Payload {
	urls := cfg.StartURLs
	if urls == nil {
		urls = []string{}
	}
	return Payload{
		BrowserType: cfg.BrowserType,
		OSType:      cfg.OSType,
		IsHeadless:  cfg.Headless,
		Automation:  cfg.Automation,
		Parameters: Parameters{
			Proxy:           d,
			Fingerprint:     map[string]any{},
			Flags:           cfg.Flags,
			CustomStartURLs: urls,
		},
	}
}

type quickResponse struct {
	Status struct {
		HTTPCode int    `json:"http_code"`
		Message  string `json:"message"`
	} `json:"status"`
	Data struct {
		ID   string   `json:"id"`
		Port flexPort `json:"port"`
	} `json:"data"`
}

// flexPort accepts the port as a JSON number or string.
type flexPort int

func (p *flexPort) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("port %s: %w", b, err)
	}
	*p = flexPort(n)
	return nil
}

// Launch starts a quick profile bound to d and attaches to its browser. No
// connection is attempted unless the launcher returned an id and a port.
func (l *Launcher) Launch(ctx context.Context, d proxy.Descriptor) (*Session, error) {
	payload := BuildPayload(d, l.cfg)
	l.logger.Info("starting quick profile", "browser", l.cfg.BrowserType, "os", l.cfg.OSType, "proxy", d.String())

	var resp quickResponse
	if _, err := l.client.JSON(ctx, http.MethodPost, l.cfg.LauncherURL+"/v3/profile/quick", l.session, payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	if resp.Status.HTTPCode != http.StatusOK {
		return nil, fmt.Errorf("%w: launcher status %d: %s", ErrLaunch, resp.Status.HTTPCode, resp.Status.Message)
	}
	id, port := resp.Data.ID, int(resp.Data.Port)
	if id == "" || port <= 0 {
		return nil, fmt.Errorf("%w: launcher returned id %q port %d", ErrLaunch, id, port)
	}
	l.logger.Info("profile started", "profile_id", id, "port", port)

	ws := l.controlURL(port)
	page, err := l.connector.Connect(ctx, ws, browser.ModeFor(l.cfg.BrowserType))
	if err != nil {
		if stopErr := l.Stop(context.WithoutCancel(ctx), id); stopErr != nil {
			l.logger.Warn("stop after failed connect", "profile_id", id, "err", stopErr)
		}
		return nil, fmt.Errorf("%w: connect %s: %w", ErrLaunch, ws, err)
	}

	if err := page.Maximize(ctx); err != nil {
		l.logger.Warn("maximize window", "profile_id", id, "err", err)
	}
	if title, err := page.Title(ctx); err == nil {
		l.logger.Info("browser ready", "profile_id", id, "title", title)
	}

	return &Session{ID: id, Port: port, Proxy: d, Flags: l.cfg.Flags, Page: page}, nil
}

// Stop stops profile id. Failures are logged and returned to the caller.
func (l *Launcher) Stop(ctx context.Context, id string) error {
	endpoint := l.cfg.LauncherURL + "/v1/profile/stop/p/" + url.PathEscape(id)
	if _, err := l.client.JSON(ctx, http.MethodGet, endpoint, l.session, nil, nil); err != nil {
		l.logger.Error("stop profile", "profile_id", id, "err", err)
		return fmt.Errorf("stop profile %s: %w", id, err)
	}
	l.logger.Info("profile stopped", "profile_id", id)
	return nil
}

// Close releases the page of s and stops its profile.
func (l *Launcher) Close(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	if s.Page != nil {
		if err := s.Page.Close(); err != nil {
			l.logger.Warn("close page", "profile_id", s.ID, "err", err)
		}
	}
	return l.Stop(ctx, s.ID)
}

func (l *Launcher) controlURL(port int) string {
	host := l.cfg.ControlHost
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	return "ws://" + host + ":" + strconv.Itoa(port)
}
