package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

const validForm = `"fullName":"Ada Lovelace","email":"ada@example.com","addressLine1":"1 Analytical Way",` +
	`"city":"London","state":"LDN","postalCode":"N1","country":"UK","phone":"555-0100","paymentMethod":"paypal"`

func openUserSession(t *testing.T, env *testEnv) string {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/sessions", "", asUser()...)
	expectStatus(t, rec, http.StatusCreated)
	return decodeOpen(t, rec.Body.Bytes()).ID
}

func TestCheckout_PlacesOrderAndClearsCart(t *testing.T) {
	env := newTestEnv(t)
	id := openUserSession(t, env)
	env.do(http.MethodPost, "/api/sessions/"+id+"/cart/items", `{"productId":7,"quantity":2}`, asUser()...)

	rec := env.do(http.MethodPost, "/api/checkout", `{"sessionId":"`+id+`",`+validForm+`}`, asUser()...)

	expectStatus(t, rec, http.StatusCreated)
	if !strings.Contains(rec.Body.String(), `"subtotalCents":5198`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	cart := decodeCart(t, env.do(http.MethodGet, "/api/sessions/"+id+"/cart", "", asUser()...))
	if cart.ItemCount != 0 {
		t.Fatalf("cart should be cleared, got %+v", cart)
	}
}

func TestCheckout_RequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	sess := openGuestSession(t, env)
	env.do(http.MethodPost, "/api/sessions/"+sess.ID+"/cart/items", `{"productId":7}`, asGuest()...)

	rec := env.do(http.MethodPost, "/api/checkout", `{"sessionId":"`+sess.ID+`",`+validForm+`}`, asGuest()...)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestCheckout_FormErrors(t *testing.T) {
	env := newTestEnv(t)
	id := openUserSession(t, env)
	env.do(http.MethodPost, "/api/sessions/"+id+"/cart/items", `{"productId":7}`, asUser()...)

	rec := env.do(http.MethodPost, "/api/checkout", `{"sessionId":"`+id+`","paymentMethod":"credit_card"}`, asUser()...)

	expectStatus(t, rec, http.StatusUnprocessableEntity)
	for _, want := range []string{"Full name is required", `"cardNumber"`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Fatalf("missing %s in %s", want, rec.Body.String())
		}
	}
}

func TestCheckout_EmptyCartAndForeignSession(t *testing.T) {
	env := newTestEnv(t)
	id := openUserSession(t, env)
	rec := env.do(http.MethodPost, "/api/checkout", `{"sessionId":"`+id+`",`+validForm+`}`, asUser()...)
	expectStatus(t, rec, http.StatusBadRequest)

	guestSess := openGuestSession(t, env)
	rec = env.do(http.MethodPost, "/api/checkout", `{"sessionId":"`+guestSess.ID+`",`+validForm+`}`, asUser()...)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestCheckout_StoreFailureIs500(t *testing.T) {
	env := newTestEnv(t)
	env.checkout.err = errors.New("db down")
	id := openUserSession(t, env)
	rec := env.do(http.MethodPost, "/api/checkout", `{"sessionId":"`+id+`",`+validForm+`}`, asUser()...)
	expectStatus(t, rec, http.StatusInternalServerError)
}

func TestOrders(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(http.MethodGet, "/api/orders", ""), http.StatusUnauthorized)

	rec := env.do(http.MethodGet, "/api/orders", "", asUser()...)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"id":"order-1"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	expectStatus(t, env.do(http.MethodGet, "/api/orders/order-1", "", asUser()...), http.StatusOK)
	expectStatus(t, env.do(http.MethodGet, "/api/orders/other", "", asUser()...), http.StatusNotFound)
}
