package httpserver

import (
	"net/http"
	"strings"
	"testing"

	"nexcart/internal/domain"
)

func TestChatPassesUser(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/ai/chat", `{"messages":[{"role":"user","content":"hi"}]}`, asUser()...)
	expectStatus(t, rec, http.StatusOK)
	if env.assistant.lastUser != testUser.ID || !strings.Contains(rec.Body.String(), `"response":"hello"`) {
		t.Fatalf("unexpected result user=%q body=%s", env.assistant.lastUser, rec.Body.String())
	}

	rec = env.do(http.MethodPost, "/api/ai/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	expectStatus(t, rec, http.StatusOK)
	if env.assistant.lastUser != "" {
		t.Fatalf("anonymous chat should carry no user, got %q", env.assistant.lastUser)
	}
	expectStatus(t, env.do(http.MethodPost, "/api/ai/chat", `{}`), http.StatusBadRequest)
}

func TestRecommendModelFailureIsNot5xx(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/ai/recommendations", `{"query":"drills"}`)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"recommendations":[]`) || !strings.Contains(rec.Body.String(), `"error"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	expectStatus(t, env.do(http.MethodPost, "/api/ai/recommendations", `{"query":""}`), http.StatusBadRequest)
}

func TestNegotiate(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/ai/negotiate", `{"productId":7,"offerCents":2300}`)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"counterOfferCents":2300`) || !strings.Contains(rec.Body.String(), `"accepted":true`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	expectStatus(t, env.do(http.MethodPost, "/api/ai/negotiate", `{"productId":7}`), http.StatusBadRequest)
}

func TestNegotiationDecision(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/ai/negotiations/neg-1/decision"

	expectStatus(t, env.do(http.MethodPost, path, `{"action":"accept"}`), http.StatusUnauthorized)
	expectStatus(t, env.do(http.MethodPost, path, `{"action":"haggle"}`, asUser()...), http.StatusBadRequest)

	rec := env.do(http.MethodPost, path, `{"action":"accept"}`, asUser()...)
	expectStatus(t, rec, http.StatusOK)
	if env.assistant.decided != domain.NegotiationAccepted {
		t.Fatalf("expected accepted, got %q", env.assistant.decided)
	}

	expectStatus(t, env.do(http.MethodPost, path, `{"action":"complete"}`, asUser()...), http.StatusConflict)
	expectStatus(t, env.do(http.MethodPost, "/api/ai/negotiations/neg-9/decision", `{"action":"reject"}`, asUser()...), http.StatusNotFound)
}

func TestAIHistoryRequiresUser(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(http.MethodGet, "/api/me/ai-history", ""), http.StatusUnauthorized)
	rec := env.do(http.MethodGet, "/api/me/ai-history", "", asUser()...)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"negotiations":[]`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
