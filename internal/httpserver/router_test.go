package httpserver

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func identifyRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(identify(&stubAccountService{}, stubGuestService{}))
	router.GET("/who", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": currentUserID(c), "origin": c.GetString(originCtxKey)})
	})
	return router
}

func TestIdentify_BearerUser(t *testing.T) {
	router := identifyRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "bearer "+userToken)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"origin":"user-u-1"`) || !strings.Contains(rec.Body.String(), `"user":"u-1"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestIdentify_GuestToken(t *testing.T) {
	router := identifyRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set(guestTokenHeader, guestToken)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"origin":"guest-1"`) || !strings.Contains(rec.Body.String(), `"user":""`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestIdentify_Anonymous(t *testing.T) {
	router := identifyRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/who", nil))

	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"origin":""`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestIdentify_InvalidTokens(t *testing.T) {
	router := identifyRouter(t)
	for _, h := range [][2]string{
		{"Authorization", "Bearer nope"},
		{guestTokenHeader, "nope"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/who", nil)
		req.Header.Set(h[0], h[1])
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		expectStatus(t, rec, http.StatusUnauthorized)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"Bearer ":     "",
		"":            "",
	}
	for in, want := range cases {
		if got := bearerToken(in); got != want {
			t.Fatalf("bearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(http.MethodGet, "/healthz", ""), http.StatusOK)
	expectStatus(t, env.do(http.MethodGet, "/readyz", ""), http.StatusOK)

	router, err := buildRouter(logDiscard(), stubPinger{err: errors.New("down")}, env.deps)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	expectStatus(t, rec, http.StatusServiceUnavailable)
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(http.MethodGet, "/metrics", ""), http.StatusNotFound)

	deps := env.deps
	deps.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("nexcart_up 1\n"))
	})
	router, err := buildRouter(logDiscard(), stubPinger{}, deps)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	expectStatus(t, rec, http.StatusOK)
}

func TestBuildRouterRequiresDeps(t *testing.T) {
	if _, err := buildRouter(logDiscard(), nil, Deps{}); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	deps := env.deps
	deps.CORSOrigins = []string{"https://shop.example.com"}
	router, err := buildRouter(logDiscard(), stubPinger{}, deps)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
