package metrics

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestObserveRequestAndNormalizePath(t *testing.T) {
	recorder := New()

	cases := []struct {
		name     string
		method   string
		path     string
		status   int
		duration time.Duration
	}{
		{name: "root path", method: "get", path: "/", status: 200, duration: 50 * time.Millisecond},
		{name: "empty path", method: "GET", path: "", status: 200, duration: 25 * time.Millisecond},
		{name: "object id", method: "get", path: "/api/v1/video/64f1c0ffee64f1c0ffee64f1", status: 200, duration: 10 * time.Millisecond},
		{name: "trailing slash", method: "DELETE", path: "/api/v1/video/delete/64f1c0ffee64f1c0ffee64f1/", status: 200, duration: 5 * time.Millisecond},
		{name: "literal segment survives", method: "GET", path: "/api/v1/video/category/tech", status: 200, duration: 5 * time.Millisecond},
	}

	expected := make(map[requestLabel]struct {
		count    uint64
		duration time.Duration
	})
	for _, tc := range cases {
		recorder.ObserveRequest(tc.method, tc.path, tc.status, tc.duration)

		label := requestLabel{
			method: strings.ToUpper(tc.method),
			path:   normalizePath(tc.path),
			status: fmt.Sprintf("%d", tc.status),
		}
		current := expected[label]
		current.count++
		current.duration += tc.duration
		expected[label] = current
	}

	if len(recorder.requestCount) != len(expected) {
		t.Fatalf("unexpected number of labels: got %d want %d", len(recorder.requestCount), len(expected))
	}
	for label, want := range expected {
		if got := recorder.requestCount[label]; got != want.count {
			t.Errorf("count mismatch for %+v: got %d want %d", label, got, want.count)
		}
		if got := recorder.requestDuration[label]; got != want.duration {
			t.Errorf("duration mismatch for %+v: got %s want %s", label, got, want.duration)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{path: "/", want: "/"},
		{path: "", want: "/"},
		{path: "/api/v1/video/all", want: "/api/v1/video/all"},
		{path: "/api/v1/video/64f1c0ffee64f1c0ffee64f1", want: "/api/v1/video/:id"},
		{path: "/api/v1/video/category/tech", want: "/api/v1/video/category/tech"},
		{path: "/api/v1/video/tags/lofi", want: "/api/v1/video/tags/lofi"},
		{path: "/api/v1/comment/abc123def4", want: "/api/v1/comment/:id"},
	}
	for _, tc := range cases {
		if got := normalizePath(tc.path); got != tc.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestDomainEventCounters(t *testing.T) {
	recorder := New()

	recorder.ObserveVideoEvent("upload")
	recorder.ObserveVideoEvent("Upload")
	recorder.ObserveVideoEvent("delete")
	recorder.ObserveReaction("like")
	recorder.ObserveCommentEvent("")
	recorder.ObserveSubscription("subscribe")

	var buf bytes.Buffer
	recorder.Write(&buf)
	body := buf.String()

	for _, want := range []string{
		`clipriver_video_events_total{event="upload"} 2`,
		`clipriver_video_events_total{event="delete"} 1`,
		`clipriver_reactions_total{kind="like"} 1`,
		`clipriver_comment_events_total{event="unknown"} 1`,
		`clipriver_subscription_events_total{event="subscribe"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, body)
		}
	}
}

func TestMediaCountersConcurrent(t *testing.T) {
	recorder := New()

	var wg sync.WaitGroup
	attempts := 100
	failures := 40

	wg.Add(attempts + failures)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			recorder.ObserveMediaAttempt("upload")
		}()
	}
	for i := 0; i < failures; i++ {
		go func() {
			defer wg.Done()
			recorder.ObserveMediaFailure("upload")
		}()
	}
	wg.Wait()

	gotAttempts, gotFailures := recorder.MediaCounts()
	if gotAttempts["upload"] != uint64(attempts) {
		t.Fatalf("attempts = %d, want %d", gotAttempts["upload"], attempts)
	}
	if gotFailures["upload"] != uint64(failures) {
		t.Fatalf("failures = %d, want %d", gotFailures["upload"], failures)
	}
}

func TestHandlerServesPrometheusText(t *testing.T) {
	recorder := New()
	recorder.ObserveRequest("GET", "/healthz", 200, 5*time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("unexpected content type %q", got)
	}
	if !strings.Contains(rr.Body.String(), `clipriver_http_requests_total{method="GET",path="/healthz",status="200"} 1`) {
		t.Fatalf("missing request counter in output:\n%s", rr.Body.String())
	}
}

func TestResetClearsCounters(t *testing.T) {
	recorder := New()
	recorder.ObserveRequest("GET", "/healthz", 200, time.Millisecond)
	recorder.ObserveVideoEvent("upload")
	recorder.ObserveMediaAttempt("delete")

	recorder.Reset()

	var buf bytes.Buffer
	recorder.Write(&buf)
	if strings.Contains(buf.String(), "} 1") {
		t.Fatalf("expected empty counters after reset, got:\n%s", buf.String())
	}
}
