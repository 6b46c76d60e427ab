package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/metrics"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequestIDAssignsULID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if len(seen) != 26 {
		t.Errorf("request id %q is not a ULID", seen)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("response header = %q, context = %q", rec.Header().Get(RequestIDHeader), seen)
	}
}

func TestRequestIDKeepsWellFormedIncoming(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "trace-42")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "trace-42" {
		t.Errorf("request id = %q, want trace-42", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id\n")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "bad id\n" {
		t.Error("malformed request id was accepted")
	}
}

func TestTimeoutAnswers504(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	h := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}

func TestTimeoutPassesFastResponses(t *testing.T) {
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "1")
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot || rec.Header().Get("X-Test") != "1" {
		t.Errorf("status = %d header = %q", rec.Code, rec.Header().Get("X-Test"))
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://cdli.example"})(http.HandlerFunc(ok))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/search", nil)
	req.Header.Set("Origin", "https://cdli.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://cdli.example" {
		t.Error("allowed origin not echoed")
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), CallerHeader) {
		t.Error("caller header not allowed")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("foreign origin was allowed")
	}
}

func TestLimiterRefills(t *testing.T) {
	now := time.Unix(0, 0)
	l := NewLimiter(2, time.Second)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if l.Allow("a") {
		t.Error("third request within the window should be limited")
	}
	if !l.Allow("b") {
		t.Error("keys are independent")
	}
	now = now.Add(500 * time.Millisecond)
	if !l.Allow("a") {
		t.Error("a token should have refilled after half a window")
	}
}

func TestLimiterPrune(t *testing.T) {
	now := time.Unix(0, 0)
	l := NewLimiter(1, time.Second)
	l.now = func() time.Time { return now }
	l.Allow("a")
	now = now.Add(3 * time.Second)
	l.prune()
	if len(l.buckets) != 0 {
		t.Errorf("buckets = %d after prune", len(l.buckets))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Minute}
	h := RateLimit(cfg, NewLimiter(cfg.Requests, cfg.Window))(http.HandlerFunc(ok))

	call := func(path, caller string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if caller != "" {
			req.Header.Set(CallerHeader, caller)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := call("/api/v1/search", "alice"); rec.Code != http.StatusOK {
		t.Fatalf("first call = %d", rec.Code)
	}
	rec := call("/api/v1/search", "alice")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second call = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
	if rec := call("/api/v1/search", "bob"); rec.Code != http.StatusOK {
		t.Errorf("other caller = %d", rec.Code)
	}
	if rec := call("/health/ready", "alice"); rec.Code != http.StatusOK {
		t.Errorf("health probe = %d", rec.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(config.RateLimitConfig{}, nil)(http.HandlerFunc(ok))
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d = %d", i, rec.Code)
		}
	}
}

func TestMetricsLabelsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	h := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/search?q=a-na", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin", nil))

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	paths := map[string]bool{}
	for _, f := range families {
		if f.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "path" {
					paths[l.GetValue()] = true
				}
				if l.GetName() == "status" && l.GetValue() != "400" {
					t.Errorf("status label = %q", l.GetValue())
				}
			}
		}
	}
	if !paths["/api/v1/search"] || !paths["other"] || len(paths) != 2 {
		t.Errorf("path labels = %v", paths)
	}
}
