package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"nexcart/internal/offline"

	"github.com/gin-gonic/gin"
)

type fakeEdgeWorker struct {
	messages []string
	served   []string
}

func (w *fakeEdgeWorker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	w.served = append(w.served, r.Method+" "+r.URL.Path)
	rw.Header().Set(offline.SourceHeader, "network")
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte("from worker"))
}

func (w *fakeEdgeWorker) HandleMessage(_ context.Context, msg offline.Message) error {
	w.messages = append(w.messages, msg.Type)
	if msg.Type != offline.MessageSkipWaiting {
		return offline.ErrUnknownMessage
	}
	return nil
}

func (w *fakeEdgeWorker) Status(context.Context) (offline.Status, error) {
	return offline.Status{Version: "nexcart-cache-v1", State: offline.StateActive, Caches: []string{"nexcart-cache-v1"}}, nil
}

func (w *fakeEdgeWorker) Refresh(context.Context) offline.RefreshReport {
	return offline.RefreshReport{Refreshed: []string{"/"}, Failed: map[string]string{}}
}

func edgeDo(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestEdgeControlRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	worker := &fakeEdgeWorker{}
	router := buildEdgeRouter(logDiscard(), worker, nil)

	rec := edgeDo(router, http.MethodGet, "/__offline/status", "")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"state":"active"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	expectStatus(t, edgeDo(router, http.MethodPost, "/__offline/message", `{"type":"SKIP_WAITING"}`), http.StatusNoContent)
	expectStatus(t, edgeDo(router, http.MethodPost, "/__offline/message", `{"type":"CLAIM"}`), http.StatusBadRequest)
	expectStatus(t, edgeDo(router, http.MethodPost, "/__offline/message", `{}`), http.StatusBadRequest)
	if len(worker.messages) != 2 {
		t.Fatalf("unexpected messages %v", worker.messages)
	}

	rec = edgeDo(router, http.MethodPost, "/__offline/refresh", "")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"refreshed":["/"]`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestEdgeForwardsEverythingElse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	worker := &fakeEdgeWorker{}
	router := buildEdgeRouter(logDiscard(), worker, nil)

	rec := edgeDo(router, http.MethodGet, "/products/7", "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "from worker" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	expectStatus(t, edgeDo(router, http.MethodPost, "/api/cart", `{}`), http.StatusOK)

	if len(worker.served) != 2 || worker.served[1] != "POST /api/cart" {
		t.Fatalf("unexpected forwarded requests %v", worker.served)
	}
}

func TestEdgeWithRealWorker(t *testing.T) {
	gin.SetMode(gin.TestMode)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<h1>" + r.URL.Path + "</h1>"))
	}))
	defer upstream.Close()

	u, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatalf("parse upstream: %v", err)
	}
	worker, err := offline.NewWorker(offline.Config{
		Version:     "nexcart-cache-v1",
		Upstream:    u,
		APIPrefix:   "/api/",
		Precache:    []string{"/", "/offline"},
		SkipWaiting: true,
	}, offline.NewMemoryStorage())
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	defer func() { _ = worker.Close(context.Background()) }()
	if err := worker.Install(context.Background()); err != nil {
		t.Fatalf("install: %v", err)
	}

	router := buildEdgeRouter(logDiscard(), worker, nil)
	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "<h1>/about</h1>" || rec.Header().Get(offline.SourceHeader) != "network" {
		t.Fatalf("unexpected response %q %v", rec.Body.String(), rec.Header())
	}
}

func TestEdgeServesMetricsUnderControlPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	worker := &fakeEdgeWorker{}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("nexcart_offline_responses_total 1"))
	})
	router := buildEdgeRouter(logDiscard(), worker, metrics)

	rec := edgeDo(router, http.MethodGet, "/__offline/metrics", "")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "nexcart_offline_responses_total") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	expectStatus(t, edgeDo(router, http.MethodGet, "/__offline/healthz", ""), http.StatusOK)

	edgeDo(router, http.MethodGet, "/metrics", "")
	if len(worker.served) != 1 || worker.served[0] != "GET /metrics" {
		t.Fatalf("storefront /metrics should reach the worker, got %v", worker.served)
	}
}
