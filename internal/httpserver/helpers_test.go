package httpserver

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nexcart/internal/ai"
	"nexcart/internal/domain"
	"nexcart/internal/logging"
	"nexcart/internal/notify"
	productrepo "nexcart/internal/repository/product"
	"nexcart/internal/service/account"
	"nexcart/internal/service/checkout"
	"nexcart/internal/service/guest"
	"nexcart/internal/session"
	"nexcart/internal/storage/fastkv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	userToken  = "user-access"
	guestToken = "guest-token"
	guestID    = "guest-1"
)

var testUser = &domain.User{ID: "u-1", Email: "me@example.com", FullName: "Test User"}

func logDiscard() *logrus.Entry {
	return logging.Discard()
}

type stubAccountService struct {
	signupErr error
	loginErr  error
	session   *account.Session
}

func (s *stubAccountService) Signup(_ context.Context, in account.SignupInput) (*domain.User, error) {
	if s.signupErr != nil {
		return nil, s.signupErr
	}
	return &domain.User{ID: "new-user", Email: in.Email}, nil
}

func (s *stubAccountService) Login(_ context.Context, _, _ string) (*account.Session, error) {
	return s.session, s.loginErr
}

func (s *stubAccountService) Refresh(_ context.Context, token string) (*account.Session, error) {
	if token != "refresh-1" {
		return nil, account.ErrInvalidToken
	}
	return &account.Session{User: testUser, AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 60}, nil
}

func (s *stubAccountService) LookupByToken(_ context.Context, token string) (*domain.User, error) {
	if token != userToken {
		return nil, account.ErrInvalidToken
	}
	u := *testUser
	return &u, nil
}

func (s *stubAccountService) UpdateProfile(_ context.Context, userID string, in account.ProfileInput) (*domain.User, error) {
	u := *testUser
	u.ID = userID
	if in.FullName != nil {
		u.FullName = *in.FullName
	}
	return &u, nil
}

type stubGuestService struct{}

func (stubGuestService) Issue(context.Context) (*guest.Visitor, error) {
	return &guest.Visitor{Origin: guestID, Token: guestToken, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (stubGuestService) Resolve(_ context.Context, token string) (string, error) {
	if token != guestToken {
		return "", guest.ErrInvalidToken
	}
	return guestID, nil
}

type stubProductService struct {
	products []domain.Product
	lastList productrepo.ListFilter
}

func (s *stubProductService) List(_ context.Context, f productrepo.ListFilter) ([]domain.Product, error) {
	s.lastList = f
	return s.products, nil
}

func (s *stubProductService) Get(_ context.Context, id int64) (*domain.Product, error) {
	for _, p := range s.products {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubProductService) ListByCategory(_ context.Context, slug string, _ int) (*domain.Category, []domain.Product, error) {
	var out []domain.Product
	for _, p := range s.products {
		if p.Category == slug {
			out = append(out, p)
		}
	}
	if out == nil {
		return nil, nil, domain.ErrNotFound
	}
	return &domain.Category{Name: slug, Slug: slug}, out, nil
}

type stubCategoryService struct{}

func (stubCategoryService) List(context.Context) ([]domain.Category, error) {
	return []domain.Category{{ID: 1, Name: "Tools", Slug: "tools"}}, nil
}

type stubCheckoutService struct {
	err    error
	placed int
}

func (s *stubCheckoutService) PlaceOrder(_ context.Context, userID string, cart checkout.Cart, form checkout.Form) (*domain.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	if userID == "" {
		return nil, checkout.ErrLoginRequired
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}
	snap := cart.Snapshot()
	if len(snap.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	s.placed++
	cart.Clear()
	return &domain.Order{ID: "order-1", UserID: userID, Status: domain.OrderStatusPending, SubtotalCents: snap.SubtotalCents()}, nil
}

func (s *stubCheckoutService) ListOrders(_ context.Context, userID string) ([]domain.Order, error) {
	return []domain.Order{{ID: "order-1", UserID: userID}}, nil
}

func (s *stubCheckoutService) GetOrder(_ context.Context, userID, id string) (*domain.Order, error) {
	if id != "order-1" {
		return nil, domain.ErrNotFound
	}
	return &domain.Order{ID: id, UserID: userID}, nil
}

type stubAssistant struct {
	lastUser string
	decided  domain.NegotiationStatus
}

func (s *stubAssistant) Chat(_ context.Context, userID string, _ []domain.AIMessage, _ string) ai.ChatResult {
	s.lastUser = userID
	return ai.ChatResult{Response: "hello"}
}

func (s *stubAssistant) Recommend(_ context.Context, userID, _ string) ai.RecommendResult {
	s.lastUser = userID
	return ai.RecommendResult{Recommendations: []domain.Recommendation{}, Error: "ai model is not configured"}
}

func (s *stubAssistant) Negotiate(_ context.Context, userID string, _, offer int64) ai.NegotiationResult {
	s.lastUser = userID
	return ai.NegotiationResult{CounterOfferCents: offer, Accepted: true, Message: "Deal"}
}

func (s *stubAssistant) Decide(_ context.Context, userID, id string, next domain.NegotiationStatus) (*domain.Negotiation, error) {
	if id != "neg-1" {
		return nil, domain.ErrNotFound
	}
	if next == domain.NegotiationCompleted {
		return nil, domain.ErrInvalidTransition
	}
	s.decided = next
	return &domain.Negotiation{ID: id, UserID: userID, Status: next}, nil
}

func (s *stubAssistant) History(_ context.Context, userID string) (*ai.History, error) {
	return &ai.History{Negotiations: []domain.Negotiation{}, Conversations: []domain.Conversation{}, Searches: []domain.Search{}}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

var (
	lamp = domain.Product{ID: 7, Name: "Desk Lamp", PriceCents: 2599, Stock: 3, Category: "electronics"}
	gone = domain.Product{ID: 9, Name: "Sold Out Drill", PriceCents: 8999, Stock: 0, Category: "tools"}
)

type testEnv struct {
	router    *gin.Engine
	deps      Deps
	products  *stubProductService
	accounts  *stubAccountService
	checkout  *stubCheckoutService
	assistant *stubAssistant
	manager   *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := fastkv.NewRegistry(0)
	manager := session.NewManager(registry, notify.New(registry))
	t.Cleanup(func() {
		if err := manager.Shutdown(context.Background()); err != nil {
			t.Errorf("shutdown sessions: %v", err)
		}
	})

	env := &testEnv{
		products:  &stubProductService{products: []domain.Product{lamp, gone}},
		accounts:  &stubAccountService{},
		checkout:  &stubCheckoutService{},
		assistant: &stubAssistant{},
		manager:   manager,
	}
	env.deps = Deps{
		Sessions:    manager,
		ProductSvc:  env.products,
		CategorySvc: stubCategoryService{},
		AccountSvc:  env.accounts,
		GuestSvc:    stubGuestService{},
		CheckoutSvc: env.checkout,
		Assistant:   env.assistant,
		LoadWait:    time.Second,
	}
	router, err := buildRouter(logDiscard(), stubPinger{}, env.deps)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	env.router = router
	return env
}

func (e *testEnv) do(method, target, body string, header ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func asUser() []string  { return []string{"Authorization", "Bearer " + userToken} }
func asGuest() []string { return []string{guestTokenHeader, guestToken} }

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d body=%s", want, rec.Code, rec.Body.String())
	}
}
