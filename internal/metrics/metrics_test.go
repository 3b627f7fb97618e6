package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(body)
}

func TestHandler(t *testing.T) {
	ts := httptest.NewServer(Handler())
	defer ts.Close()

	RecordQuery(false, 2, 9, 45*time.Second)
	RecordChallenge("resolved")
	RecordProxy(true)
	RecordBlocked("GoogleSorry")
	RecordBlocked("")

	output := scrape(t, ts.URL+"/metrics")

	for _, want := range []string{
		`serpwalk_queries_total{outcome="ok"}`,
		`serpwalk_query_duration_seconds_bucket`,
		`serpwalk_query_attempts_bucket`,
		`serpwalk_results_total`,
		`serpwalk_challenges_total{outcome="resolved"}`,
		`serpwalk_proxy_attempts_total{result="ok"}`,
		`serpwalk_blocked_pages_total{source="GoogleSorry"}`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output", want)
		}
	}
	if strings.Contains(output, `source=""`) {
		t.Error("expected empty blocked source to be ignored")
	}
}

func TestStartStop(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	srv := Start(port, nil)
	defer srv.Stop(context.Background())

	var output string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/metrics")
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			output = string(body)
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(output, "serpwalk_") {
		t.Errorf("expected serpwalk metrics from the started server")
	}

	if err := srv.Stop(context.Background()); err != nil {
		t.Errorf("stop: %v", err)
	}
}
