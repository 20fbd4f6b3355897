package httpadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/clinical-evidence-engine/internal/config"
)

func TestRateLimitRejectsBeforeSearching(t *testing.T) {
	searcher := &searcherFake{}
	handler := newTestHandler(config.Config{APIRateLimitRPS: 0.5, APIRateLimitBurst: 1}, searcher)

	if res := postJSON(t, handler, "/v1/evidence/search", `{"query":"aspirin dose"}`); res.Code != http.StatusOK {
		t.Fatalf("first search expected 200, got %d", res.Code)
	}
	res := postJSON(t, handler, "/v1/evidence/search", `{"query":"aspirin dose"}`)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("second search expected 429, got %d", res.Code)
	}
	if got := res.Header().Get("Retry-After"); got != "3" {
		t.Fatalf("expected Retry-After 3 for 0.5 rps, got %q", got)
	}
	if body := decodeError(t, res); body.Error != "rate_limited" {
		t.Fatalf("unexpected error body: %+v", body)
	}
	if searcher.calls != 1 {
		t.Fatalf("rate-limited request reached the searcher: calls=%d", searcher.calls)
	}

	health := httptest.NewRecorder()
	handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("health probe must bypass the rate limit, got %d", health.Code)
	}
}

func TestRateLimitDisabledWithoutRPS(t *testing.T) {
	handler := rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), 0, 0)
	for i := 0; i < 5; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/evidence/search", nil))
		if res.Code != http.StatusNoContent {
			t.Fatalf("request %d expected 204, got %d", i, res.Code)
		}
	}
}

func TestBackpressureShedsSearchesOverCapacity(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	firstCode := make(chan int, 1)

	handler := backpressureMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusNoContent)
	}), 1, 10*time.Millisecond)

	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/evidence/search", nil))
		firstCode <- res.Code
	}()
	<-entered

	shed := httptest.NewRecorder()
	handler.ServeHTTP(shed, httptest.NewRequest(http.MethodPost, "/v1/evidence/search", nil))
	if shed.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while the only slot is busy, got %d", shed.Code)
	}
	if body := decodeError(t, shed); body.Error != "overloaded" || body.Message == "" {
		t.Fatalf("unexpected overload body: %+v", body)
	}

	close(release)
	select {
	case code := <-firstCode:
		if code != http.StatusNoContent {
			t.Fatalf("in-flight search expected 204, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("in-flight search never finished")
	}
}

func TestBackpressureGivesUpWhenClientLeaves(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	busy := make(chan struct{})

	handler := backpressureMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Hold") != "" {
			close(busy)
			<-hold
		}
		w.WriteHeader(http.StatusNoContent)
	}), 1, time.Minute)

	go func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/evidence/search", nil)
		req.Header.Set("X-Hold", "1")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}()
	<-busy

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/evidence/search", nil).WithContext(ctx))
	if res.Code != http.StatusOK || res.Body.Len() != 0 {
		t.Fatalf("expected nothing written for a departed client, got %d %q", res.Code, res.Body.String())
	}
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	handler := newTestHandler(config.Config{}, &searcherFake{})

	res := postJSON(t, handler, "/v1/evidence/search", `{"query":"statins"}`, "X-Request-Id", "req-42")
	if got := res.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected caller request id to be echoed, got %q", got)
	}
	res = postJSON(t, handler, "/v1/evidence/search", `{"query":"statins"}`)
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestIsAuthorizedBearerHeader(t *testing.T) {
	cases := []struct {
		header, token string
		want          bool
	}{
		{"Bearer secret", "secret", true},
		{"  Bearer secret  ", "secret", true},
		{"bearer secret", "secret", false},
		{"Bearer other", "secret", false},
		{"Basic secret", "secret", false},
		{"", "secret", false},
		{"Bearer ", "", false},
	}
	for _, tc := range cases {
		if got := isAuthorizedBearerHeader(tc.header, tc.token); got != tc.want {
			t.Fatalf("isAuthorizedBearerHeader(%q, %q) = %v, want %v", tc.header, tc.token, got, tc.want)
		}
	}
}
