package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nexcart/internal/ai"
	"nexcart/internal/domain"
	productrepo "nexcart/internal/repository/product"
	"nexcart/internal/service/account"
	"nexcart/internal/service/checkout"
	"nexcart/internal/service/guest"
	"nexcart/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ProductService interface {
	List(ctx context.Context, f productrepo.ListFilter) ([]domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	ListByCategory(ctx context.Context, slug string, limit int) (*domain.Category, []domain.Product, error)
}

type CategoryService interface {
	List(ctx context.Context) ([]domain.Category, error)
}

type AccountService interface {
	Signup(ctx context.Context, in account.SignupInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*account.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*account.Session, error)
	LookupByToken(ctx context.Context, token string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, in account.ProfileInput) (*domain.User, error)
}

type GuestService interface {
	Issue(ctx context.Context) (*guest.Visitor, error)
	Resolve(ctx context.Context, token string) (string, error)
}

type CheckoutService interface {
	PlaceOrder(ctx context.Context, userID string, cart checkout.Cart, form checkout.Form) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	GetOrder(ctx context.Context, userID, id string) (*domain.Order, error)
}

type AssistantService interface {
	Chat(ctx context.Context, userID string, messages []domain.AIMessage, extra string) ai.ChatResult
	Recommend(ctx context.Context, userID, query string) ai.RecommendResult
	Negotiate(ctx context.Context, userID string, productID, offerCents int64) ai.NegotiationResult
	Decide(ctx context.Context, userID, negotiationID string, next domain.NegotiationStatus) (*domain.Negotiation, error)
	History(ctx context.Context, userID string) (*ai.History, error)
}

type SessionManager interface {
	Open(ctx context.Context, origin string) (*session.Context, error)
	Get(id string) (*session.Context, error)
	Close(ctx context.Context, id string) error
}

// Deps are the collaborators of the API router.
type Deps struct {
	Sessions    SessionManager
	ProductSvc  ProductService
	CategorySvc CategoryService
	AccountSvc  AccountService
	GuestSvc    GuestService
	CheckoutSvc CheckoutService
	Assistant   AssistantService
	// Metrics is served on /metrics when set.
	Metrics     http.Handler
	CORSOrigins []string
	// LoadWait bounds how long opening a session waits for the durable cart.
	LoadWait time.Duration
}

func (d Deps) validate() error {
	switch {
	case d.Sessions == nil:
		return errors.New("httpserver: session manager is required")
	case d.ProductSvc == nil || d.CategorySvc == nil:
		return errors.New("httpserver: catalog services are required")
	case d.AccountSvc == nil || d.GuestSvc == nil:
		return errors.New("httpserver: account and guest services are required")
	case d.CheckoutSvc == nil:
		return errors.New("httpserver: checkout service is required")
	case d.Assistant == nil:
		return errors.New("httpserver: assistant is required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *logrus.Entry, db Pinger, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.LoadWait <= 0 {
		deps.LoadWait = 2 * time.Second
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = deps.CORSOrigins
		cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", guestTokenHeader)
		cfg.ExposeHeaders = []string{guestTokenHeader}
		router.Use(cors.New(cfg))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	h := &handlers{deps: deps, logger: logger}
	api := router.Group("/api", identify(deps.AccountSvc, deps.GuestSvc))

	api.POST("/sessions", h.openSession)
	sessions := api.Group("/sessions/:id", h.sessionAccess)
	sessions.DELETE("", h.closeSession)
	sessions.GET("/cart", h.getCart)
	sessions.DELETE("/cart", h.clearCart)
	sessions.POST("/cart/items", h.addItem)
	sessions.PATCH("/cart/items/:productId", h.updateItem)
	sessions.DELETE("/cart/items/:productId", h.removeItem)
	sessions.GET("/events", h.streamEvents)

	api.GET("/products", h.listProducts)
	api.GET("/products/:id", h.getProduct)
	api.GET("/categories", h.listCategories)
	api.GET("/categories/:slug/products", h.listCategoryProducts)

	api.POST("/auth/signup", h.signup)
	api.POST("/auth/token", h.token)
	me := api.Group("/me", requireUser())
	me.GET("", h.me)
	me.PUT("", h.updateMe)
	me.GET("/ai-history", h.aiHistory)

	api.POST("/checkout", h.checkout)
	orders := api.Group("/orders", requireUser())
	orders.GET("", h.listOrders)
	orders.GET("/:id", h.getOrder)

	api.POST("/ai/chat", h.chat)
	api.POST("/ai/recommendations", h.recommend)
	api.POST("/ai/negotiate", h.negotiate)
	api.POST("/ai/negotiations/:id/decision", requireUser(), h.decide)

	return router, nil
}

type handlers struct {
	deps   Deps
	logger *logrus.Entry
}
