package kit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestAPIClient_Do(t *testing.T) {
	var gotReqID, gotCT string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get(RequestIDHeader)
		gotCT = r.Header.Get("Content-Type")
		switch r.URL.Path {
		case "/api/echo":
			WriteJSON(w, http.StatusOK, map[string]string{"method": r.Method})
		case "/api/teapot":
			WriteError(w, r, http.StatusTeapot, "short and stout", "spout missing")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := NewAPIClient(ts.URL+"/api/", time.Second, nil, zap.NewNop())
	ctx := context.Background()

	var out struct{ Method string }
	if err := c.Do(ctx, http.MethodPost, "/echo", map[string]int{"a": 1}, &out); err != nil {
		t.Fatalf("do: %v", err)
	}
	if out.Method != http.MethodPost || gotCT != "application/json" || gotReqID == "" {
		t.Fatalf("out=%+v ct=%q reqid=%q", out, gotCT, gotReqID)
	}

	err := c.Do(ctx, http.MethodGet, "/teapot", nil, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusTeapot {
		t.Fatalf("err=%v want StatusError 418", err)
	}
	if !strings.Contains(string(se.Body), "spout missing") {
		t.Fatalf("body=%s", se.Body)
	}
	if StatusOf(err) != http.StatusTeapot || StatusOf(errors.New("x")) != 0 {
		t.Fatalf("StatusOf mismatch")
	}
}

func TestAPIClient_PropagatesRequestID(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(RequestIDHeader)
	}))
	defer ts.Close()

	ctx := context.WithValue(context.Background(), chimw.RequestIDKey, "req-123")
	if err := NewAPIClient(ts.URL, time.Second, nil, nil).Do(ctx, http.MethodGet, "/", nil, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	if got != "req-123" {
		t.Fatalf("request id=%q", got)
	}
}

func TestAPIClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	err := NewAPIClient(url, time.Second, nil, nil).Do(context.Background(), http.MethodGet, "/", nil, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}

func TestAPIClient_BadJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer ts.Close()

	var out map[string]any
	err := NewAPIClient(ts.URL, time.Second, nil, nil).Do(context.Background(), http.MethodGet, "/", nil, &out)
	if !errors.Is(err, ErrBadResponse) {
		t.Fatalf("err=%v want ErrBadResponse", err)
	}
}

func TestIPRateLimiter_SlidingWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewIPRateLimiter(2, 60)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if _, limited := l.Allow("10.0.0.1"); limited {
			t.Fatalf("hit %d limited", i)
		}
	}
	retry, limited := l.Allow("10.0.0.1")
	if !limited || retry != 60*time.Second {
		t.Fatalf("retry=%v limited=%v", retry, limited)
	}
	if _, limited := l.Allow("10.0.0.2"); limited {
		t.Fatalf("other ip limited")
	}

	now = now.Add(61 * time.Second)
	if _, limited := l.Allow("10.0.0.1"); limited {
		t.Fatalf("window should have moved")
	}
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	l := NewIPRateLimiter(1, 60)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		h.ServeHTTP(rr, req)
		return rr
	}

	if rr := do(); rr.Code != http.StatusNoContent {
		t.Fatalf("first status=%d", rr.Code)
	}
	rr := do()
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("second status=%d retry-after=%q", rr.Code, rr.Header().Get("Retry-After"))
	}
}

func TestMetricsAuth(t *testing.T) {
	h := MetricsAuth("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for authz, want := range map[string]int{
		"":              http.StatusForbidden,
		"Bearer wrong":  http.StatusForbidden,
		"Basic s3cret":  http.StatusForbidden,
		"Bearer s3cret": http.StatusOK,
	} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		h.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Fatalf("authz=%q status=%d want %d", authz, rr.Code, want)
		}
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer ")
	MetricsAuth("")(http.NotFoundHandler()).ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("empty token must lock the endpoint, got %d", rr.Code)
	}
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware("catalog", ChiRoutePatternOrPath))
	r.Get("/products/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/products/"+id, nil))
	}

	got := testutil.ToFloat64(m.Requests.WithLabelValues("catalog", http.MethodGet, "/products/{id}", "200"))
	if got != 3 {
		t.Fatalf("requests=%v want 3", got)
	}
	if n := testutil.CollectAndCount(m.Requests); n != 1 {
		t.Fatalf("series=%d want 1", n)
	}
}
