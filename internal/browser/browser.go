// Package browser defines the remote page contract the workflow drives and
// its chromedp implementation.
package browser

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrTimeout reports that a bounded wait elapsed before its condition held.
// Callers treat it as "absent", not as a failure.
var ErrTimeout = errors.New("browser: wait timed out")

// LoadMode selects when navigation is considered complete.
type LoadMode int

const (
	// LoadNormal waits for the load event.
	LoadNormal LoadMode = iota
	// LoadEager returns once the DOM is interactive.
	LoadEager
)

func (m LoadMode) String() string {
	if m == LoadEager {
		return "eager"
	}
	return "normal"
}

// ModeFor returns the load mode used for a profile engine. The Chromium based
// "mimic" engine is driven eagerly; everything else waits for load.
func ModeFor(browserType string) LoadMode {
	if strings.EqualFold(browserType, "mimic") {
		return LoadEager
	}
	return LoadNormal
}

// Page is a remotely controlled browser tab. Selectors are CSS selectors
// resolved in the current frame (the top document unless EnterFrame was
// called). Wait methods return ErrTimeout when the timeout elapses.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Maximize(ctx context.Context) error

	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	WaitPresent(ctx context.Context, sel string, timeout time.Duration) error
	Click(ctx context.Context, sel string) error
	SendKeys(ctx context.Context, sel, keys string) error

	// EnterFrame switches selector resolution into the iframe matched by sel.
	EnterFrame(ctx context.Context, sel string) error
	// ExitFrame returns to the top document. It is safe to call when no
	// frame is entered.
	ExitFrame()

	Reload(ctx context.Context) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Connector attaches to a browser exposing a DevTools endpoint.
type Connector interface {
	Connect(ctx context.Context, wsURL string, mode LoadMode) (Page, error)
}

// Element binds a page and a selector into a keystroke target.
type Element struct {
	Page     Page
	Selector string
}

// SendKeys sends keys to the bound element.
func (e Element) SendKeys(ctx context.Context, keys string) error {
	return e.Page.SendKeys(ctx, e.Selector, keys)
}
