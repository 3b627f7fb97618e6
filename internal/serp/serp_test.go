package serp

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp/kb"

	"github.com/FranksOps/serpwalk/internal/browser"
	"github.com/FranksOps/serpwalk/internal/browser/browsertest"
	"github.com/FranksOps/serpwalk/internal/typing"
	"github.com/FranksOps/serpwalk/pkg/ratelimit"
)

const resultsPage = `<html><body>
<div id="search">
  <a jsname="UWckNb" href="https://www.rust-lang.org/"><h3> Rust Programming Language </h3></a>
  <a jsname="UWckNb" href="https://github.com/rust-lang/rust"><h3>rust-lang/rust</h3></a>
  <a jsname="UWckNb" href="https://example.com/no-title"></a>
  <a jsname="UWckNb"><h3>No href</h3></a>
  <a jsname="UWckNb" href="/url?q=relative"><h3>Relative</h3></a>
  <a jsname="UWckNb" href="javascript:void(0)"><h3>Script</h3></a>
  <a href="https://ads.example.com"><h3>Not organic</h3></a>
  <a jsname="UWckNb" href="https://doc.rust-lang.org/book/"><h3>The Book</h3></a>
</div>
</body></html>`

func TestParse(t *testing.T) {
	got, err := Parse(resultsPage, GoogleSelectors, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Result{
		{Title: "Rust Programming Language", URL: "https://www.rust-lang.org/"},
		{Title: "rust-lang/rust", URL: "https://github.com/rust-lang/rust"},
		{Title: "The Book", URL: "https://doc.rust-lang.org/book/"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParse_KeepsDuplicates(t *testing.T) {
	page := `<a jsname="UWckNb" href="https://a.example"><h3>A</h3></a><a jsname="UWckNb" href="https://a.example"><h3>A</h3></a>`
	got, err := Parse(page, GoogleSelectors, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected duplicates kept, got %d results", len(got))
	}
}

func TestExtract_EmptyOnTimeout(t *testing.T) {
	page := &browsertest.Page{Body: resultsPage}
	g := NewGoogle(GoogleConfig{}, &ratelimit.Recorder{}, nil)

	got, err := g.Extract(context.Background(), page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
	if page.Count("HTML") != 0 {
		t.Error("expected no page read without results")
	}
	if c := page.Calls()[0]; c.Selector != GoogleSelectors.Result || c.Timeout != 10*time.Second {
		t.Errorf("expected 10s result wait, got %+v", c)
	}
}

func TestExtract(t *testing.T) {
	page := &browsertest.Page{
		Body:     resultsPage,
		WaitFunc: func(browsertest.Call) error { return nil },
	}
	got, err := NewGoogle(GoogleConfig{}, &ratelimit.Recorder{}, nil).Extract(context.Background(), page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0].URL != "https://www.rust-lang.org/" {
		t.Errorf("unexpected results %+v", got)
	}
}

func TestExtract_ReadFailure(t *testing.T) {
	page := &browsertest.Page{
		HTMLErr:  errors.New("target crashed"),
		WaitFunc: func(browsertest.Call) error { return nil },
	}
	_, err := NewGoogle(GoogleConfig{}, &ratelimit.Recorder{}, nil).Extract(context.Background(), page)
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("expected ErrExtraction, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	page := &browsertest.Page{WaitFunc: func(c browsertest.Call) error {
		if c.Selector == GoogleSelectors.Logo {
			return nil
		}
		return browser.ErrTimeout
	}}
	rec := &ratelimit.Recorder{}

	if err := NewGoogle(GoogleConfig{}, rec, nil).Open(context.Background(), page); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := page.Calls()
	if calls[0].Method != "Navigate" || calls[0].Arg != "https://google.com" {
		t.Errorf("expected navigation to google.com, got %+v", calls[0])
	}
	if calls[1].Selector != GoogleSelectors.Logo || calls[1].Timeout != 20*time.Second {
		t.Errorf("expected 20s logo wait, got %+v", calls[1])
	}
}

func TestOpen_LogoMissing(t *testing.T) {
	page := &browsertest.Page{}
	err := NewGoogle(GoogleConfig{}, &ratelimit.Recorder{}, nil).Open(context.Background(), page)
	if !errors.Is(err, browser.ErrTimeout) {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	page := &browsertest.Page{WaitFunc: func(browsertest.Call) error { return nil }}
	rec := &ratelimit.Recorder{}
	typist := typing.New(typing.Config{TypoRate: -1}, rand.New(rand.NewSource(1)), rec)

	if err := NewGoogle(GoogleConfig{}, rec, nil).Search(context.Background(), page, typist, "open source rust"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if page.Count("Click") != 1 {
		t.Errorf("expected the search box to be clicked once")
	}
	keys := page.Keys(GoogleSelectors.SearchBox)
	if !strings.HasSuffix(keys, kb.Enter) {
		t.Errorf("expected query to be submitted with enter, got %q", keys)
	}
	if got := strings.TrimSuffix(keys, kb.Enter); got != "open source rust" {
		t.Errorf("expected typed query, got %q", got)
	}
}
