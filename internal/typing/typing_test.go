package typing

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp/kb"

	"github.com/FranksOps/serpwalk/pkg/ratelimit"
)

type keyLog struct {
	keys []string
}

func (k *keyLog) SendKeys(_ context.Context, keys string) error {
	k.keys = append(k.keys, keys)
	return nil
}

// typed replays the log, applying backspaces, and returns the visible text.
func (k *keyLog) typed() string {
	var out []rune
	for _, key := range k.keys {
		if key == kb.Backspace {
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			continue
		}
		out = append(out, []rune(key)...)
	}
	return string(out)
}

func run(t *testing.T, cfg Config, seed int64, text string) (*keyLog, []time.Duration) {
	t.Helper()
	rec := &ratelimit.Recorder{}
	target := &keyLog{}
	if err := New(cfg, rand.New(rand.NewSource(seed)), rec).Type(context.Background(), target, text); err != nil {
		t.Fatalf("Type: %v", err)
	}
	return target, rec.Pauses()
}

func TestType_Deterministic(t *testing.T) {
	const text = "open source rust, fast and safe!"

	k1, p1 := run(t, Config{TypoRate: 0.3}, 42, text)
	k2, p2 := run(t, Config{TypoRate: 0.3}, 42, text)

	if !reflect.DeepEqual(k1.keys, k2.keys) {
		t.Errorf("key sequences differ for the same seed")
	}
	if !reflect.DeepEqual(p1, p2) {
		t.Errorf("delay sequences differ for the same seed")
	}
	if got := k1.typed(); got != text {
		t.Errorf("expected visible text %q, got %q", text, got)
	}
}

func TestType_NoTypos(t *testing.T) {
	const text = "open source rust"
	k, pauses := run(t, Config{TypoRate: -1}, 1, text)

	want := strings.Split(text, "")
	if !reflect.DeepEqual(k.keys, want) {
		t.Errorf("expected one key per rune %q, got %q", want, k.keys)
	}

	if pauses[0] != time.Second {
		t.Errorf("expected 1s lead-in, got %s", pauses[0])
	}
	// lead-in + one per rune + one or two bursts for 16 runes
	if n := len(pauses); n < 18 || n > 19 {
		t.Errorf("expected 18 or 19 pauses, got %d", n)
	}
	for i, d := range pauses[1:] {
		if d < 50*time.Millisecond || d > 600*time.Millisecond {
			t.Errorf("pause %d out of range: %s", i+1, d)
		}
	}
}

func TestType_AlwaysTypo(t *testing.T) {
	k, pauses := run(t, Config{TypoRate: 1}, 7, "ab!")

	// a and b each get a wrong letter and a backspace; punctuation does not.
	if len(k.keys) != 7 {
		t.Fatalf("expected 7 keys, got %d: %q", len(k.keys), k.keys)
	}
	for _, i := range []int{1, 4} {
		if k.keys[i] != kb.Backspace {
			t.Errorf("expected backspace at %d, got %q", i, k.keys[i])
		}
	}
	if k.keys[2] != "a" || k.keys[5] != "b" || k.keys[6] != "!" {
		t.Errorf("unexpected key order %q", k.keys)
	}
	if got := k.typed(); got != "ab!" {
		t.Errorf("expected corrected text, got %q", got)
	}
	for _, i := range []int{1, 3} { // typo correction pauses follow the lead-in and first rune pause
		if d := pauses[i]; d < 70*time.Millisecond || d > 200*time.Millisecond {
			t.Errorf("typo pause %d out of range: %s", i, d)
		}
	}
}

func TestType_PunctuationPause(t *testing.T) {
	_, pauses := run(t, Config{TypoRate: -1}, 3, "a.")
	if d := pauses[2]; d < 300*time.Millisecond || d > 600*time.Millisecond {
		t.Errorf("expected punctuation pause in [300ms,600ms], got %s", d)
	}
}

func TestType_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := &keyLog{}
	err := New(Config{}, rand.New(rand.NewSource(1)), &ratelimit.Recorder{}).Type(ctx, target, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(target.keys) != 0 {
		t.Errorf("expected no keys after cancellation, got %q", target.keys)
	}
}
