package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"nexcart/internal/domain"
	"nexcart/internal/logging"
	airepo "nexcart/internal/repository/ai"
	productrepo "nexcart/internal/repository/product"

	"github.com/sirupsen/logrus"
)

const (
	chatApology        = "I'm sorry, I'm having trouble processing your request right now. Please try again later."
	negotiationApology = "I'm sorry, I'm having trouble processing your negotiation request right now. Please try again later."

	recommendationPool = 50
	// minimum acceptable offer as a percentage of the list price
	minOfferPercent = 85
)

// Catalog is the product lookup the assistant needs.
type Catalog interface {
	Get(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, f productrepo.ListFilter) ([]domain.Product, error)
}

// Assistant runs the AI features. Model and storage failures never surface
// as errors: callers get an apology and the failure text in Error.
type Assistant struct {
	model   Completer
	catalog Catalog
	history airepo.Repository
	logger  *logrus.Entry
}

type Option func(*Assistant)

func WithLogger(l *logrus.Entry) Option {
	return func(a *Assistant) { a.logger = l }
}

// WithHistory stores interactions of signed-in users.
func WithHistory(r airepo.Repository) Option {
	return func(a *Assistant) { a.history = r }
}

// New builds an Assistant. A nil model makes every call return its fallback.
func New(model Completer, catalog Catalog, opts ...Option) *Assistant {
	a := &Assistant{model: model, catalog: catalog}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.Discard()
	}
	return a
}

type ChatResult struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Chat answers the conversation so far. extra is appended to the system prompt.
func (a *Assistant) Chat(ctx context.Context, userID string, messages []domain.AIMessage, extra string) ChatResult {
	for _, m := range messages {
		if err := m.Validate(); err != nil {
			return ChatResult{Response: chatApology, Error: err.Error()}
		}
	}
	system := "You are a helpful AI assistant for Nexcart, an e-commerce platform specializing in electronics, tools, gadgets, and accessories.\n"
	if extra = strings.TrimSpace(extra); extra != "" {
		system += extra + "\n"
	}
	system += "Be concise, helpful, and friendly. If you don't know something, say so honestly."

	reply, err := a.complete(ctx, Request{System: system, Messages: messages, Temperature: 0.7, MaxTokens: 500})
	if err != nil {
		a.logger.WithError(err).Warn("ai: chat failed")
		return ChatResult{Response: chatApology, Error: err.Error()}
	}

	if userID != "" && a.history != nil {
		all := make([]domain.AIMessage, 0, len(messages)+2)
		all = append(all, domain.AIMessage{Role: domain.RoleSystem, Content: system})
		all = append(all, messages...)
		all = append(all, domain.AIMessage{Role: domain.RoleAssistant, Content: reply})
		if _, err := a.history.CreateConversation(ctx, domain.Conversation{UserID: userID, Messages: all}); err != nil {
			a.logger.WithError(err).WithField("user_id", userID).Warn("ai: save conversation")
		}
	}
	return ChatResult{Response: reply}
}

type RecommendResult struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
	Error           string                  `json:"error,omitempty"`
}

// Recommend asks the model to pick catalog products matching query. Picks
// that do not name a catalog product are dropped.
func (a *Assistant) Recommend(ctx context.Context, userID, query string) RecommendResult {
	fail := func(err error) RecommendResult {
		a.logger.WithError(err).Warn("ai: recommendations failed")
		return RecommendResult{Recommendations: []domain.Recommendation{}, Error: err.Error()}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return fail(errors.New("query is required"))
	}
	if a.model == nil {
		return fail(ErrNotConfigured)
	}
	products, err := a.catalog.List(ctx, productrepo.ListFilter{Limit: recommendationPool})
	if err != nil {
		return fail(fmt.Errorf("load products: %w", err))
	}
	catalogJSON, err := json.Marshal(promptProducts(products))
	if err != nil {
		return fail(err)
	}

	system := "You are a product recommendation assistant for Nexcart.\n" +
		"Based on the user's query, recommend relevant products from the following list.\n" +
		`Return your response as a JSON object {"recommendations": [...]} with exactly 3 products, each containing id, name, reason fields.` + "\n" +
		"Products: " + string(catalogJSON)
	raw, err := a.complete(ctx, Request{
		System:      system,
		Messages:    []domain.AIMessage{{Role: domain.RoleUser, Content: "Find me products related to: " + query}},
		Temperature: 0.7,
		MaxTokens:   1000,
		JSON:        true,
	})
	if err != nil {
		return fail(err)
	}

	var parsed struct {
		Recommendations []domain.Recommendation `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(stripFence(raw)), &parsed); err != nil {
		return fail(fmt.Errorf("failed to parse product recommendations: %w", err))
	}

	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	seen := map[int64]bool{}
	recs := make([]domain.Recommendation, 0, len(parsed.Recommendations))
	ids := make([]int64, 0, len(parsed.Recommendations))
	for _, r := range parsed.Recommendations {
		p, ok := byID[r.ID]
		if !ok || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		r.Product = &p
		if r.Name == "" {
			r.Name = p.Name
		}
		recs = append(recs, r)
		ids = append(ids, r.ID)
	}

	if userID != "" && a.history != nil {
		if _, err := a.history.CreateSearch(ctx, domain.Search{UserID: userID, Query: query, Recommendations: ids}); err != nil {
			a.logger.WithError(err).WithField("user_id", userID).Warn("ai: save search")
		}
	}
	return RecommendResult{Recommendations: recs}
}

type NegotiationResult struct {
	NegotiationID     string `json:"negotiationId,omitempty"`
	CounterOfferCents int64  `json:"counterOfferCents"`
	Message           string `json:"message"`
	Accepted          bool   `json:"accepted"`
	Error             string `json:"error,omitempty"`
}

// Negotiate answers a price offer. The offer is accepted iff it is at least
// 85% of the list price; otherwise the model's counter offer is kept within
// [offer, price], falling back to the midpoint.
func (a *Assistant) Negotiate(ctx context.Context, userID string, productID, offerCents int64) NegotiationResult {
	fail := func(err error) NegotiationResult {
		a.logger.WithError(err).WithField("product_id", productID).Warn("ai: negotiation failed")
		return NegotiationResult{Message: negotiationApology, Error: err.Error()}
	}
	if offerCents <= 0 {
		return fail(errors.New("offer must be positive"))
	}
	if a.model == nil {
		return fail(ErrNotConfigured)
	}
	product, err := a.catalog.Get(ctx, productID)
	if err != nil {
		return fail(fmt.Errorf("load product: %w", err))
	}

	price := product.PriceCents
	minimum := MinimumAcceptable(price)
	accepted := offerCents >= minimum

	system := fmt.Sprintf("You are an AI negotiation assistant for Nexcart.\n"+
		"You're negotiating the price of %s which costs %s.\n"+
		"The minimum acceptable price is %s.\n"+
		"The customer has offered %s.\n"+
		"If their offer is at or above the minimum acceptable price, accept it.\n"+
		"Otherwise, make a counter-offer between their offer and the original price.\n"+
		"Be friendly but firm. Highlight product benefits to justify the price.\n"+
		"Return your response as a JSON object with message and counterOffer fields.",
		product.Name, dollars(price), dollars(minimum), dollars(offerCents))
	userMsg := fmt.Sprintf("I'd like to buy %s for %s instead of %s.", product.Name, dollars(offerCents), dollars(price))

	raw, err := a.complete(ctx, Request{
		System:      system,
		Messages:    []domain.AIMessage{{Role: domain.RoleUser, Content: userMsg}},
		Temperature: 0.7,
		MaxTokens:   500,
		JSON:        true,
	})
	if err != nil {
		return fail(err)
	}
	var parsed struct {
		Message      string  `json:"message"`
		CounterOffer float64 `json:"counterOffer"`
	}
	if err := json.Unmarshal([]byte(stripFence(raw)), &parsed); err != nil {
		return fail(fmt.Errorf("failed to parse negotiation response: %w", err))
	}

	counter := CounterOffer(price, offerCents, accepted, int64(math.Round(parsed.CounterOffer*100)))
	result := NegotiationResult{CounterOfferCents: counter, Message: parsed.Message, Accepted: accepted}

	if userID != "" && a.history != nil {
		status := domain.NegotiationPending
		if accepted {
			status = domain.NegotiationAccepted
		}
		final := counter
		n, err := a.history.CreateNegotiation(ctx, domain.Negotiation{
			UserID:            userID,
			ProductID:         productID,
			InitialPriceCents: offerCents,
			FinalPriceCents:   &final,
			Status:            status,
			Messages: []domain.AIMessage{
				{Role: domain.RoleUser, Content: userMsg},
				{Role: domain.RoleAssistant, Content: parsed.Message},
			},
		})
		if err != nil {
			a.logger.WithError(err).WithField("user_id", userID).Warn("ai: save negotiation")
		} else {
			result.NegotiationID = n.ID
		}
	}
	return result
}

// Decide moves a stored negotiation to next.
func (a *Assistant) Decide(ctx context.Context, userID, negotiationID string, next domain.NegotiationStatus) (*domain.Negotiation, error) {
	if a.history == nil {
		return nil, domain.ErrNotFound
	}
	n, err := a.history.GetNegotiation(ctx, userID, negotiationID)
	if err != nil {
		return nil, err
	}
	if err := n.Transition(next); err != nil {
		return nil, err
	}
	if err := a.history.UpdateNegotiation(ctx, *n); err != nil {
		return nil, err
	}
	return n, nil
}

type History struct {
	Negotiations  []domain.Negotiation  `json:"negotiations"`
	Conversations []domain.Conversation `json:"conversations"`
	Searches      []domain.Search       `json:"searches"`
}

func (a *Assistant) History(ctx context.Context, userID string) (*History, error) {
	h := &History{
		Negotiations:  []domain.Negotiation{},
		Conversations: []domain.Conversation{},
		Searches:      []domain.Search{},
	}
	if a.history == nil {
		return h, nil
	}
	var err error
	if h.Negotiations, err = a.history.ListNegotiations(ctx, userID); err != nil {
		return nil, err
	}
	if h.Conversations, err = a.history.ListConversations(ctx, userID); err != nil {
		return nil, err
	}
	if h.Searches, err = a.history.ListSearches(ctx, userID); err != nil {
		return nil, err
	}
	return h, nil
}

// MinimumAcceptable is 85% of price, rounded up to the cent.
func MinimumAcceptable(price int64) int64 {
	return (price*minOfferPercent + 99) / 100
}

// CounterOffer picks the price to answer an offer with. An accepted offer
// stands; otherwise the model's counter is used when it lies within
// [offer, price] and the rounded midpoint when it does not.
func CounterOffer(price, offer int64, accepted bool, modelCounter int64) int64 {
	if accepted {
		return offer
	}
	if modelCounter >= offer && modelCounter <= price && modelCounter > 0 {
		return modelCounter
	}
	return (price + offer + 1) / 2
}

func (a *Assistant) complete(ctx context.Context, req Request) (string, error) {
	if a.model == nil {
		return "", ErrNotConfigured
	}
	return a.model.Complete(ctx, req)
}

type promptProduct struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Category    string `json:"category"`
}

func promptProducts(products []domain.Product) []promptProduct {
	out := make([]promptProduct, 0, len(products))
	for _, p := range products {
		out = append(out, promptProduct{ID: p.ID, Name: p.Name, Description: p.Description, Price: dollars(p.PriceCents), Category: p.Category})
	}
	return out
}

func dollars(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
