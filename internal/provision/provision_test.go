package provision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/serpwalk/pkg/httpclient"
	"github.com/FranksOps/serpwalk/pkg/proxy"
	"github.com/FranksOps/serpwalk/pkg/ratelimit"
)

type fakeServices struct {
	connections  []string // successive connection strings, last one repeats
	validateCode func(d proxy.Descriptor) int

	requests  atomic.Int32
	validates atomic.Int32
}

func (f *fakeServices) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/proxy/connection_url", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req connectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode connection request: %v", err)
		}
		if req.Country != "us" || req.SessionType != "sticky" || req.Protocol != "http" {
			t.Errorf("unexpected connection request %+v", req)
		}
		n := int(f.requests.Add(1)) - 1
		if n >= len(f.connections) {
			n = len(f.connections) - 1
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"data": f.connections[n]})
	})
	mux.HandleFunc("POST /v1/proxy/validate", func(w http.ResponseWriter, r *http.Request) {
		f.validates.Add(1)
		var d proxy.Descriptor
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			t.Errorf("decode validate request: %v", err)
		}
		code := http.StatusOK
		if f.validateCode != nil {
			code = f.validateCode(d)
		}
		w.WriteHeader(code)
		if code >= 300 {
			_, _ = w.Write([]byte(`{"status":{"message":"proxy unreachable"}}`))
		}
	})
	return mux
}

func newTestProvisioner(t *testing.T, f *fakeServices, opts ...Option) (*Provisioner, *ratelimit.Recorder) {
	t.Helper()
	ts := httptest.NewServer(f.handler(t))
	t.Cleanup(ts.Close)

	hc, err := httpclient.New(httpclient.Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("httpclient: %v", err)
	}
	rec := &ratelimit.Recorder{}
	opts = append([]Option{WithSleeper(rec)}, opts...)
	p := New(Config{
		ProxyURL:    ts.URL,
		LauncherURL: ts.URL,
		Country:     "us",
		SessionType: "sticky",
	}, hc, httpclient.Session{Token: "tok"}, nil, opts...)
	return p, rec
}

func TestRequest(t *testing.T) {
	p, _ := newTestProvisioner(t, &fakeServices{connections: []string{"1.2.3.4:8080:user1:pass1"}})

	d, err := p.Request(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := proxy.Descriptor{Protocol: "http", Host: "1.2.3.4", Port: 8080, Username: "user1", Password: "pass1"}
	if d != want {
		t.Errorf("expected %+v, got %+v", want, d)
	}
}

func TestRequest_Malformed(t *testing.T) {
	p, _ := newTestProvisioner(t, &fakeServices{connections: []string{"1.2.3.4:8080"}})

	_, err := p.Request(context.Background())
	if !errors.Is(err, ErrProxy) || !errors.Is(err, proxy.ErrInvalidFormat) {
		t.Errorf("expected ErrProxy wrapping ErrInvalidFormat, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"unauthorized is accepted", http.StatusUnauthorized, false},
		{"bad request", http.StatusBadRequest, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeServices{validateCode: func(proxy.Descriptor) int { return tt.code }}
			p, _ := newTestProvisioner(t, f)

			err := p.Validate(context.Background(), proxy.Descriptor{Protocol: "http", Host: "h", Port: 1})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrProxy) {
					t.Errorf("expected ErrProxy, got %v", err)
				}
				if !strings.Contains(err.Error(), "proxy unreachable") {
					t.Errorf("expected service message in error, got %v", err)
				}
			}
		})
	}
}

func TestAcquire_RetriesWithFreshProxy(t *testing.T) {
	f := &fakeServices{
		connections: []string{"10.0.0.1:1000:u:p", "10.0.0.2:2000:u:p"},
		validateCode: func(d proxy.Descriptor) int {
			if d.Host == "10.0.0.1" {
				return http.StatusBadGateway
			}
			return http.StatusOK
		},
	}
	p, rec := newTestProvisioner(t, f)

	d, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Host != "10.0.0.2" {
		t.Errorf("expected second proxy, got %s", d.Host)
	}
	if f.requests.Load() != 2 {
		t.Errorf("expected 2 connection requests, got %d", f.requests.Load())
	}
	if got := rec.Pauses(); len(got) != 1 || got[0] != time.Second {
		t.Errorf("expected one 1s retry pause, got %v", got)
	}
}

func TestAcquire_Exhausted(t *testing.T) {
	f := &fakeServices{
		connections:  []string{"10.0.0.1:1000:u:p"},
		validateCode: func(proxy.Descriptor) int { return http.StatusInternalServerError },
	}
	p, _ := newTestProvisioner(t, f)

	_, err := p.Acquire(context.Background())
	if !errors.Is(err, ErrProxy) {
		t.Fatalf("expected ErrProxy, got %v", err)
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("expected attempt count in error, got %v", err)
	}
	if f.validates.Load() != 2 {
		t.Errorf("expected 2 validations, got %d", f.validates.Load())
	}
}

func TestAcquire_StaticPool(t *testing.T) {
	f := &fakeServices{
		validateCode: func(d proxy.Descriptor) int {
			if d.Host == "bad.example" {
				return http.StatusBadGateway
			}
			return http.StatusOK
		},
	}

	pool := proxy.NewPool(proxy.Config{MaxFailures: 1, Cooldown: time.Hour})
	if err := pool.Add("bad.example:1:u:p", "good.example:2:u:p"); err != nil {
		t.Fatalf("pool add: %v", err)
	}
	p, _ := newTestProvisioner(t, f, WithPool(pool))

	d, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Host != "good.example" {
		t.Errorf("expected good proxy, got %s", d.Host)
	}
	if f.requests.Load() != 0 {
		t.Errorf("expected no remote requests with a static pool, got %d", f.requests.Load())
	}

	// The failing proxy is cooling down, so the pool only yields the good one.
	for i := 0; i < 3; i++ {
		next, ok := pool.Next()
		if !ok || next.Host != "good.example" {
			t.Fatalf("expected good proxy from pool, got %+v %v", next, ok)
		}
	}
}

func TestAcquire_Cancelled(t *testing.T) {
	f := &fakeServices{connections: []string{"10.0.0.1:1000:u:p"}}
	p, _ := newTestProvisioner(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
