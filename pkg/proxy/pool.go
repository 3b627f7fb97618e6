package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrNotInPool is returned when marking a descriptor the pool does not hold.
var ErrNotInPool = errors.New("proxy not found in pool")

// entry is a single pooled proxy with health tracking.
type entry struct {
	Descriptor    Descriptor
	Failures      int
	Successes     int
	LastUsed      time.Time
	Disabled      bool
	DisabledUntil time.Time
}

// Pool is a static, health-tracked list of proxies used instead of the remote
// proxy service when one is configured.
type Pool struct {
	mu           sync.Mutex
	entries      []*entry
	currentIndex int
	maxFailures  int
	cooldown     time.Duration
	protocol     string
	now          func() time.Time
}

// Config defines settings for the Pool.
type Config struct {
	// MaxFailures before disabling a proxy temporarily.
	MaxFailures int
	// Cooldown is how long a proxy remains disabled after hitting MaxFailures.
	Cooldown time.Duration
	// Protocol applied to colon-form entries and URLs without a scheme.
	Protocol string
}

// NewPool creates a new proxy pool. Zero config values get defaults.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "http"
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		protocol:    cfg.Protocol,
		now:         time.Now,
	}
}

// LoadFile reads proxies from a file, one per line, either in
// host:port:user:pass form or as a URL. Blank lines and '#' comments are
// ignored.
func (p *Pool) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open proxy file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read proxy file: %w", err)
	}

	return p.Add(lines...)
}

// Add parses raw proxy strings and appends them to the pool.
func (p *Pool) Add(raw ...string) error {
	parsed := make([]Descriptor, 0, len(raw))
	for _, r := range raw {
		var (
			d   Descriptor
			err error
		)
		if !strings.Contains(r, "://") && strings.Count(r, ":") == 3 {
			d, err = Parse(r, p.protocol)
		} else {
			d, err = ParseURL(r, p.protocol)
		}
		if err != nil {
			return err
		}
		parsed = append(parsed, d)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range parsed {
		p.entries = append(p.entries, &entry{Descriptor: d})
	}
	return nil
}

// Len returns the number of pooled proxies.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next healthy proxy in round-robin order. ok is false when
// the pool is empty or every proxy is cooling down.
func (p *Pool) Next() (Descriptor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) == 0 {
		return Descriptor{}, false
	}

	now := p.now()
	for range p.entries {
		e := p.entries[p.currentIndex]
		p.currentIndex = (p.currentIndex + 1) % len(p.entries)

		if e.Disabled && now.After(e.DisabledUntil) {
			e.Disabled = false
			e.Failures = 0
		}

		if !e.Disabled {
			e.LastUsed = now
			return e.Descriptor, true
		}
	}
	return Descriptor{}, false
}

// MarkSuccess records a validated proxy.
func (p *Pool) MarkSuccess(d Descriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.find(d)
	if e == nil {
		return ErrNotInPool
	}

	e.Successes++
	if e.Failures > 0 {
		e.Failures--
	}
	return nil
}

// MarkFailure records a failed proxy and disables it for the cooldown once it
// reaches the failure limit.
func (p *Pool) MarkFailure(d Descriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.find(d)
	if e == nil {
		return ErrNotInPool
	}

	e.Failures++
	if e.Failures >= p.maxFailures {
		e.Disabled = true
		e.DisabledUntil = p.now().Add(p.cooldown)
	}
	return nil
}

// find must be called with the lock held.
func (p *Pool) find(d Descriptor) *entry {
	target := d.key()
	for _, e := range p.entries {
		if e.Descriptor.key() == target {
			return e
		}
	}
	return nil
}
