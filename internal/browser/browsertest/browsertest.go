// Package browsertest provides scriptable browser.Page and browser.Connector
// fakes for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/FranksOps/serpwalk/internal/browser"
)

// Call is one recorded page interaction.
type Call struct {
	Method   string
	Selector string
	// Frame is the selector of the entered frame at call time, or "".
	Frame   string
	Timeout time.Duration
	Arg     string
}

// Page is an in-memory browser.Page. Waits consult WaitFunc; without one
// every selector is absent and waits return browser.ErrTimeout.
type Page struct {
	WaitFunc    func(c Call) error
	NavigateErr error
	Body        string
	HTMLErr     error
	TitleText   string
	Location    string

	mu     sync.Mutex
	calls  []Call
	keys   map[string]string
	frame  string
	closed bool
}

var _ browser.Page = (*Page)(nil)

func (p *Page) record(c Call) Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	c.Frame = p.frame
	p.calls = append(p.calls, c)
	return c
}

// Calls returns the recorded interactions in order.
func (p *Page) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Count returns how many calls of method were made.
func (p *Page) Count(method string) int {
	n := 0
	for _, c := range p.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Keys returns everything sent to sel.
func (p *Page) Keys(sel string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keys[sel]
}

// Frame returns the entered frame selector.
func (p *Page) Frame() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) wait(ctx context.Context, c Call) error {
	c = p.record(c)
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.WaitFunc == nil {
		return fmt.Errorf("%w: %s", browser.ErrTimeout, c.Selector)
	}
	return p.WaitFunc(c)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.record(Call{Method: "Navigate", Arg: url})
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.NavigateErr
}

func (p *Page) Title(context.Context) (string, error) {
	p.record(Call{Method: "Title"})
	return p.TitleText, nil
}

func (p *Page) URL(context.Context) (string, error) {
	p.record(Call{Method: "URL"})
	return p.Location, nil
}

func (p *Page) Maximize(context.Context) error {
	p.record(Call{Method: "Maximize"})
	return nil
}

func (p *Page) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	return p.wait(ctx, Call{Method: "WaitVisible", Selector: sel, Timeout: timeout})
}

func (p *Page) WaitPresent(ctx context.Context, sel string, timeout time.Duration) error {
	return p.wait(ctx, Call{Method: "WaitPresent", Selector: sel, Timeout: timeout})
}

func (p *Page) Click(ctx context.Context, sel string) error {
	p.record(Call{Method: "Click", Selector: sel})
	return ctx.Err()
}

func (p *Page) SendKeys(ctx context.Context, sel, keys string) error {
	p.record(Call{Method: "SendKeys", Selector: sel, Arg: keys})
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.keys == nil {
		p.keys = make(map[string]string)
	}
	p.keys[sel] += keys
	return nil
}

func (p *Page) EnterFrame(_ context.Context, sel string) error {
	p.record(Call{Method: "EnterFrame", Selector: sel})
	p.mu.Lock()
	p.frame = sel
	p.mu.Unlock()
	return nil
}

func (p *Page) ExitFrame() {
	p.record(Call{Method: "ExitFrame"})
	p.mu.Lock()
	p.frame = ""
	p.mu.Unlock()
}

func (p *Page) Reload(context.Context) error {
	p.record(Call{Method: "Reload"})
	return nil
}

func (p *Page) HTML(context.Context) (string, error) {
	p.record(Call{Method: "HTML"})
	return p.Body, p.HTMLErr
}

func (p *Page) Close() error {
	p.record(Call{Method: "Close"})
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Connector hands out pages from NewPage and records the endpoints.
type Connector struct {
	NewPage func() *Page
	Err     error

	mu    sync.Mutex
	urls  []string
	modes []browser.LoadMode
	pages []*Page
}

func (c *Connector) Connect(_ context.Context, wsURL string, mode browser.LoadMode) (browser.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urls = append(c.urls, wsURL)
	c.modes = append(c.modes, mode)
	if c.Err != nil {
		return nil, c.Err
	}
	p := &Page{}
	if c.NewPage != nil {
		p = c.NewPage()
	}
	c.pages = append(c.pages, p)
	return p, nil
}

// URLs returns the endpoints connected to.
func (c *Connector) URLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.urls...)
}

// Modes returns the load modes requested, in order.
func (c *Connector) Modes() []browser.LoadMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]browser.LoadMode(nil), c.modes...)
}

// Pages returns the pages handed out.
func (c *Connector) Pages() []*Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Page(nil), c.pages...)
}
