package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// DefaultOpTimeout bounds page operations that carry no explicit timeout.
const DefaultOpTimeout = 60 * time.Second

const navMarker = "__serpwalkNav"

// CDP connects to remote browsers over the Chrome DevTools Protocol.
type CDP struct {
	// OpTimeout bounds navigation, clicks, key events and reads.
	OpTimeout time.Duration
	logger    *slog.Logger
}

// NewCDP returns a chromedp backed Connector.
func NewCDP(logger *slog.Logger) *CDP {
	if logger == nil {
		logger = slog.Default()
	}
	return &CDP{OpTimeout: DefaultOpTimeout, logger: logger}
}

// Connect attaches to the browser behind wsURL (ws://host:port) and opens a
// tab. The page outlives ctx; it is released by Close.
func (c *CDP) Connect(ctx context.Context, wsURL string, mode LoadMode) (Page, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), wsURL)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		c.logger.Debug(fmt.Sprintf(format, args...))
	}))

	p := &cdpPage{
		tab:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		mode:        mode,
		opTimeout:   c.OpTimeout,
		logger:      c.logger,
	}
	if p.opTimeout <= 0 {
		p.opTimeout = DefaultOpTimeout
	}

	if err := attach(ctx, tabCtx, cancelTab, p.opTimeout); err != nil {
		cancelAlloc()
		return nil, fmt.Errorf("connect %s: %w", wsURL, err)
	}

	c.logger.Debug("browser attached", "url", wsURL, "mode", mode.String())
	return p, nil
}

type cdpPage struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	mode        LoadMode
	opTimeout   time.Duration
	logger      *slog.Logger

	mu          sync.Mutex
	frame       context.Context
	cancelFrame context.CancelFunc
	frameDoc    *cdp.Node
}

// attach makes the first Run on target, which binds the browser connection
// or target session to target itself. It must not run on a derived context,
// so the timeout and ctx cancel target instead.
func attach(ctx, target context.Context, cancel context.CancelFunc, timeout time.Duration) error {
	timer := time.AfterFunc(timeout, cancel)
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(target)
	fired := !timer.Stop()
	cancelled := !stop()
	if err == nil && !fired && !cancelled {
		return nil
	}
	cancel()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if fired {
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	return err
}

// run executes actions against scope with a timeout, aborting early when the
// caller's ctx ends. A lapsed timeout becomes ErrTimeout.
func (p *cdpPage) run(ctx, scope context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(scope, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	return err
}

// scope returns the context and query options for selector lookups in the
// current frame.
func (p *cdpPage) scope() (context.Context, []chromedp.QueryOption) {
	p.mu.Lock()
	defer p.mu.Unlock()

	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if p.frame != nil {
		return p.frame, opts
	}
	if p.frameDoc != nil {
		opts = append(opts, chromedp.FromNode(p.frameDoc))
	}
	return p.tab, opts
}

func (p *cdpPage) Navigate(ctx context.Context, url string) error {
	if p.mode == LoadNormal {
		return p.run(ctx, p.tab, p.opTimeout, chromedp.Navigate(url))
	}

	target, err := json.Marshal(url)
	if err != nil {
		return err
	}
	assign := fmt.Sprintf(`(() => { window.%s = 1; window.location.assign(%s); return true; })()`, navMarker, target)
	ready := fmt.Sprintf(`(!window.%s) && document.readyState !== "loading"`, navMarker)

	var started bool
	return p.run(ctx, p.tab, p.opTimeout,
		chromedp.Evaluate(assign, &started),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return pollTrue(ctx, ready, 100*time.Millisecond)
		}),
	)
}

// pollTrue evaluates expr until it yields true. Evaluation errors while the
// old document is torn down are retried.
func pollTrue(ctx context.Context, expr string, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		var ok bool
		if err := chromedp.Evaluate(expr, &ok).Do(ctx); err == nil && ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *cdpPage) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, p.tab, p.opTimeout, chromedp.Title(&title))
	return title, err
}

func (p *cdpPage) URL(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, p.tab, p.opTimeout, chromedp.Location(&loc))
	return loc, err
}

func (p *cdpPage) Maximize(ctx context.Context) error {
	return p.run(ctx, p.tab, p.opTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		windowID, _, err := cdpbrowser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return fmt.Errorf("window for target: %w", err)
		}
		return cdpbrowser.SetWindowBounds(windowID, &cdpbrowser.Bounds{WindowState: cdpbrowser.WindowStateMaximized}).Do(ctx)
	}))
}

func (p *cdpPage) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	scope, opts := p.scope()
	return p.run(ctx, scope, timeout, chromedp.WaitVisible(sel, opts...))
}

func (p *cdpPage) WaitPresent(ctx context.Context, sel string, timeout time.Duration) error {
	scope, opts := p.scope()
	return p.run(ctx, scope, timeout, chromedp.WaitReady(sel, opts...))
}

func (p *cdpPage) Click(ctx context.Context, sel string) error {
	scope, opts := p.scope()
	return p.run(ctx, scope, p.opTimeout, chromedp.Click(sel, opts...))
}

func (p *cdpPage) SendKeys(ctx context.Context, sel, keys string) error {
	scope, opts := p.scope()
	return p.run(ctx, scope, p.opTimeout, chromedp.SendKeys(sel, keys, opts...))
}

// EnterFrame attaches to the iframe's own target when the browser runs it
// out of process, and otherwise scopes queries to its content document.
func (p *cdpPage) EnterFrame(ctx context.Context, sel string) error {
	var nodes []*cdp.Node
	scope, opts := p.scope()
	if err := p.run(ctx, scope, p.opTimeout, chromedp.Nodes(sel, &nodes, append(opts, chromedp.AtLeast(1))...)); err != nil {
		return fmt.Errorf("find frame %s: %w", sel, err)
	}
	node := nodes[0]
	src, _ := node.Attribute("src")

	if src != "" {
		targets, err := chromedp.Targets(p.tab)
		if err != nil {
			p.logger.Debug("list targets failed", "err", err)
		}
		for _, t := range targets {
			if t.Type != "iframe" || (t.URL != src && !strings.Contains(src, t.URL) && !strings.Contains(t.URL, src)) {
				continue
			}
			frameCtx, cancel := chromedp.NewContext(p.tab, chromedp.WithTargetID(t.TargetID))
			if err := attach(ctx, frameCtx, cancel, p.opTimeout); err != nil {
				return fmt.Errorf("attach frame %s: %w", sel, err)
			}
			p.mu.Lock()
			p.frame, p.cancelFrame, p.frameDoc = frameCtx, cancel, nil
			p.mu.Unlock()
			return nil
		}
	}

	doc := node.ContentDocument
	if doc == nil {
		doc = node
	}
	p.mu.Lock()
	p.frameDoc = doc
	p.mu.Unlock()
	return nil
}

func (p *cdpPage) ExitFrame() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelFrame != nil {
		p.cancelFrame()
	}
	p.frame, p.cancelFrame, p.frameDoc = nil, nil, nil
}

func (p *cdpPage) Reload(ctx context.Context) error {
	return p.run(ctx, p.tab, p.opTimeout, chromedp.Reload())
}

func (p *cdpPage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, p.tab, p.opTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *cdpPage) Close() error {
	p.ExitFrame()
	p.cancelTab()
	p.cancelAlloc()
	return nil
}
