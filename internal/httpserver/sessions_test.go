package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func openGuestSession(t *testing.T, env *testEnv) openSessionResponse {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/sessions", "")
	expectStatus(t, rec, http.StatusCreated)
	return decodeOpen(t, rec.Body.Bytes())
}

func decodeOpen(t *testing.T, body []byte) openSessionResponse {
	t.Helper()
	var resp openSessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartResponse {
	t.Helper()
	var cart cartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &cart); err != nil {
		t.Fatalf("decode cart %s: %v", rec.Body.String(), err)
	}
	return cart
}

func TestOpenSession_IssuesGuestIdentity(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/sessions", "")
	expectStatus(t, rec, http.StatusCreated)

	if rec.Header().Get(guestTokenHeader) != guestToken {
		t.Fatalf("expected guest token header, got %q", rec.Header().Get(guestTokenHeader))
	}
	var resp openSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Origin != guestID || resp.GuestToken != guestToken || resp.ID == "" {
		t.Fatalf("unexpected session %+v", resp)
	}
	if len(resp.Cart.Items) != 0 || resp.Cart.ItemCount != 0 {
		t.Fatalf("expected empty cart, got %+v", resp.Cart)
	}
}

func TestOpenSession_UserOrigin(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/sessions", "", asUser()...)
	expectStatus(t, rec, http.StatusCreated)
	if !strings.Contains(rec.Body.String(), `"origin":"user-u-1"`) || strings.Contains(rec.Body.String(), "guestToken") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestCartLifecycle(t *testing.T) {
	env := newTestEnv(t)
	sess := openGuestSession(t, env)
	base := "/api/sessions/" + sess.ID

	rec := env.do(http.MethodPost, base+"/cart/items", `{"productId":7,"quantity":2}`, asGuest()...)
	expectStatus(t, rec, http.StatusOK)
	cart := decodeCart(t, rec)
	if cart.ItemCount != 2 || cart.SubtotalCents != 5198 {
		t.Fatalf("unexpected cart %+v", cart)
	}

	rec = env.do(http.MethodPatch, base+"/cart/items/7", `{"quantity":3}`, asGuest()...)
	expectStatus(t, rec, http.StatusOK)
	if cart := decodeCart(t, rec); cart.ItemCount != 3 {
		t.Fatalf("expected quantity 3, got %+v", cart)
	}

	rec = env.do(http.MethodPost, base+"/cart/items", `{"productId":7}`, asGuest()...)
	expectStatus(t, rec, http.StatusConflict)

	rec = env.do(http.MethodPatch, base+"/cart/items/7", `{"quantity":0}`, asGuest()...)
	expectStatus(t, rec, http.StatusOK)
	if cart := decodeCart(t, rec); len(cart.Items) != 0 {
		t.Fatalf("quantity 0 should remove, got %+v", cart)
	}

	env.do(http.MethodPost, base+"/cart/items", `{"productId":7}`, asGuest()...)
	rec = env.do(http.MethodDelete, base+"/cart/items/7", "", asGuest()...)
	expectStatus(t, rec, http.StatusOK)
	rec = env.do(http.MethodDelete, base+"/cart/items/7", "", asGuest()...)
	expectStatus(t, rec, http.StatusOK)

	env.do(http.MethodPost, base+"/cart/items", `{"productId":7}`, asGuest()...)
	rec = env.do(http.MethodDelete, base+"/cart", "", asGuest()...)
	expectStatus(t, rec, http.StatusOK)
	if cart := decodeCart(t, rec); cart.ItemCount != 0 || cart.SubtotalCents != 0 {
		t.Fatalf("expected cleared cart, got %+v", cart)
	}

	expectStatus(t, env.do(http.MethodDelete, base, "", asGuest()...), http.StatusNoContent)
	expectStatus(t, env.do(http.MethodGet, base+"/cart", "", asGuest()...), http.StatusNotFound)
}

func TestAddItemValidation(t *testing.T) {
	env := newTestEnv(t)
	sess := openGuestSession(t, env)
	base := "/api/sessions/" + sess.ID + "/cart/items"

	expectStatus(t, env.do(http.MethodPost, base, `{"quantity":1}`, asGuest()...), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPost, base, `{"productId":7,"quantity":0}`, asGuest()...), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPost, base, `{"productId":404}`, asGuest()...), http.StatusNotFound)
	expectStatus(t, env.do(http.MethodPost, base, `{"productId":9}`, asGuest()...), http.StatusConflict)
	expectStatus(t, env.do(http.MethodPatch, base+"/abc", `{"quantity":1}`, asGuest()...), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPatch, base+"/7", `{}`, asGuest()...), http.StatusBadRequest)
}

func TestSessionOfAnotherOriginIsHidden(t *testing.T) {
	env := newTestEnv(t)
	sess := openGuestSession(t, env)
	path := "/api/sessions/" + sess.ID + "/cart"

	expectStatus(t, env.do(http.MethodGet, path, ""), http.StatusNotFound)
	expectStatus(t, env.do(http.MethodGet, path, "", asUser()...), http.StatusNotFound)
	expectStatus(t, env.do(http.MethodGet, path, "", asGuest()...), http.StatusOK)
}

func TestSessionsOfSameOriginConverge(t *testing.T) {
	env := newTestEnv(t)
	a := openGuestSession(t, env)
	rec := env.do(http.MethodPost, "/api/sessions", "", asGuest()...)
	expectStatus(t, rec, http.StatusCreated)
	var b openSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}

	env.do(http.MethodPost, "/api/sessions/"+a.ID+"/cart/items", `{"productId":7,"quantity":2}`, asGuest()...)

	deadline := time.Now().Add(2 * time.Second)
	for {
		cart := decodeCart(t, env.do(http.MethodGet, "/api/sessions/"+b.ID+"/cart", "", asGuest()...))
		if cart.ItemCount == 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("second context never reloaded, got %+v", cart)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t)
	sess := openGuestSession(t, env)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sessions/"+sess.ID+"/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set(guestTokenHeader, guestToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := make(chan string, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if name, ok := strings.CutPrefix(scanner.Text(), "event:"); ok {
				events <- strings.TrimSpace(name)
			}
		}
	}()

	waitFor := func(name string) {
		t.Helper()
		for {
			select {
			case got, ok := <-events:
				if !ok {
					t.Fatalf("stream closed before %s", name)
				}
				if got == name {
					return
				}
			case <-ctx.Done():
				t.Fatalf("no %s event", name)
			}
		}
	}

	waitFor("cart")
	env.do(http.MethodPost, "/api/sessions/"+sess.ID+"/cart/items", `{"productId":7}`, asGuest()...)
	waitFor("item-added")
	cancel()
}
