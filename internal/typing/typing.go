// Package typing sends text to a page element at a human pace, with
// occasional corrected typos.
package typing

import (
	"context"
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/chromedp/chromedp/kb"

	"github.com/FranksOps/serpwalk/pkg/ratelimit"
)

// Target receives keystrokes.
type Target interface {
	SendKeys(ctx context.Context, keys string) error
}

// Config tunes the typing rhythm. Zero values get defaults.
type Config struct {
	TypoRate float64       // chance of a typo before an alphanumeric rune, default 0.05; negative disables
	LeadIn   time.Duration // pause before the first key, default 1s
}

type span struct{ min, max time.Duration }

var (
	punctPause  = span{300 * time.Millisecond, 600 * time.Millisecond}
	spacePause  = span{150 * time.Millisecond, 400 * time.Millisecond}
	letterPause = span{50 * time.Millisecond, 200 * time.Millisecond}
	typoPause   = span{70 * time.Millisecond, 200 * time.Millisecond}
	burstPause  = span{100 * time.Millisecond, 300 * time.Millisecond}
)

const (
	burstMin   = 7
	burstMax   = 15
	pauseAfter = ".,?!;"
)

// Typist types text. It is not safe for concurrent use.
type Typist struct {
	cfg     Config
	rnd     *rand.Rand
	sleeper ratelimit.Sleeper
}

// New returns a Typist drawing randomness from rnd and pausing through
// sleeper. A nil rnd is seeded from the clock; a nil sleeper sleeps for real.
func New(cfg Config, rnd *rand.Rand, sleeper ratelimit.Sleeper) *Typist {
	if cfg.TypoRate == 0 {
		cfg.TypoRate = 0.05
	}
	if cfg.TypoRate < 0 {
		cfg.TypoRate = 0
	}
	if cfg.LeadIn == 0 {
		cfg.LeadIn = time.Second
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if sleeper == nil {
		sleeper = ratelimit.Real
	}
	return &Typist{cfg: cfg, rnd: rnd, sleeper: sleeper}
}

// Type sends text to t one rune at a time.
func (ty *Typist) Type(ctx context.Context, t Target, text string) error {
	if err := ty.sleeper.Sleep(ctx, ty.cfg.LeadIn); err != nil {
		return err
	}

	burst, count := ty.burstLen(), 0
	for _, r := range text {
		if err := ctx.Err(); err != nil {
			return err
		}

		if (unicode.IsLetter(r) || unicode.IsDigit(r)) && ty.rnd.Float64() < ty.cfg.TypoRate {
			wrong := string(rune('a' + ty.rnd.Intn(26)))
			if err := t.SendKeys(ctx, wrong); err != nil {
				return err
			}
			if err := ty.pause(ctx, typoPause); err != nil {
				return err
			}
			if err := t.SendKeys(ctx, kb.Backspace); err != nil {
				return err
			}
		}

		if err := t.SendKeys(ctx, string(r)); err != nil {
			return err
		}

		s := letterPause
		switch {
		case strings.ContainsRune(pauseAfter, r):
			s = punctPause
		case r == ' ':
			s = spacePause
		}
		if err := ty.pause(ctx, s); err != nil {
			return err
		}

		count++
		if count >= burst {
			if err := ty.pause(ctx, burstPause); err != nil {
				return err
			}
			burst, count = ty.burstLen(), 0
		}
	}
	return nil
}

func (ty *Typist) burstLen() int {
	return burstMin + ty.rnd.Intn(burstMax-burstMin+1)
}

func (ty *Typist) pause(ctx context.Context, s span) error {
	d := s.min + time.Duration(ty.rnd.Int63n(int64(s.max-s.min)+1))
	return ty.sleeper.Sleep(ctx, d)
}
