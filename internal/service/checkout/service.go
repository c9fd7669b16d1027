// Package checkout turns a cart context into an order.
package checkout

import (
	"context"
	"errors"
	"sort"
	"strings"

	"nexcart/internal/domain"
	"nexcart/internal/logging"
	orderrepo "nexcart/internal/repository/order"

	"github.com/sirupsen/logrus"
)

// ErrLoginRequired is returned when checking out without a signed-in user.
var ErrLoginRequired = errors.New("you must be logged in to place an order")

// FormError lists the invalid fields of a checkout form.
type FormError struct {
	Fields map[string]string
}

func (e *FormError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// Cart is the part of a cart context checkout needs.
type Cart interface {
	Snapshot() domain.CartSnapshot
	Clear()
}

type Form struct {
	FullName      string               `json:"fullName"`
	Email         string               `json:"email"`
	AddressLine1  string               `json:"addressLine1"`
	AddressLine2  string               `json:"addressLine2"`
	City          string               `json:"city"`
	State         string               `json:"state"`
	PostalCode    string               `json:"postalCode"`
	Country       string               `json:"country"`
	Phone         string               `json:"phone"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	CardNumber    string               `json:"cardNumber"`
	CardExpiry    string               `json:"cardExpiry"`
	CardCVC       string               `json:"cardCvc"`
}

// Validate mirrors the storefront's shipping and payment steps.
func (f Form) Validate() error {
	fields := map[string]string{}
	required := []struct{ key, value, msg string }{
		{"fullName", f.FullName, "Full name is required"},
		{"email", f.Email, "Email is required"},
		{"addressLine1", f.AddressLine1, "Address is required"},
		{"city", f.City, "City is required"},
		{"state", f.State, "State is required"},
		{"postalCode", f.PostalCode, "Postal code is required"},
		{"phone", f.Phone, "Phone number is required"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			fields[r.key] = r.msg
		}
	}
	switch f.PaymentMethod {
	case domain.PaymentCreditCard:
		if digits(f.CardNumber) < 13 {
			fields["cardNumber"] = "Card number is required"
		}
		if strings.TrimSpace(f.CardExpiry) == "" {
			fields["cardExpiry"] = "Expiry date is required"
		}
		if strings.TrimSpace(f.CardCVC) == "" {
			fields["cardCvc"] = "CVC is required"
		}
	case domain.PaymentPayPal:
	default:
		fields["paymentMethod"] = "Payment method must be credit_card or paypal"
	}
	if len(fields) > 0 {
		return &FormError{Fields: fields}
	}
	return nil
}

func (f Form) address() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName:     strings.TrimSpace(f.FullName),
		AddressLine1: strings.TrimSpace(f.AddressLine1),
		AddressLine2: strings.TrimSpace(f.AddressLine2),
		City:         strings.TrimSpace(f.City),
		State:        strings.TrimSpace(f.State),
		PostalCode:   strings.TrimSpace(f.PostalCode),
		Country:      strings.TrimSpace(f.Country),
		Phone:        strings.TrimSpace(f.Phone),
	}
}

type Service struct {
	orders orderrepo.Repository
	logger *logrus.Entry
}

func New(orders orderrepo.Repository, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{orders: orders, logger: logger}
}

// PlaceOrder records an order for the cart's current contents and clears the
// cart once the order is stored. Card details are validated but never stored.
func (s *Service) PlaceOrder(ctx context.Context, userID string, cart Cart, form Form) (*domain.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrLoginRequired
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}
	snap := cart.Snapshot()
	if len(snap.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	items := make([]domain.OrderItem, 0, len(snap.Items))
	for _, e := range snap.Items {
		items = append(items, domain.OrderItem{
			ProductID:  e.Product.ID,
			Quantity:   e.Quantity,
			PriceCents: e.Product.PriceCents,
			TotalCents: e.LineTotalCents(),
		})
	}
	subtotal := snap.SubtotalCents()
	shipping, tax, total := domain.OrderTotals(subtotal)

	order, err := s.orders.Create(ctx, domain.Order{
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		ShippingAddress: form.address(),
		PaymentMethod:   form.PaymentMethod,
		SubtotalCents:   subtotal,
		ShippingCents:   shipping,
		TaxCents:        tax,
		TotalCents:      total,
		Items:           items,
	})
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("checkout: create order")
		return nil, err
	}
	cart.Clear()
	s.logger.WithFields(logrus.Fields{"user_id": userID, "order_id": order.ID}).Info("checkout: order placed")
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *Service) GetOrder(ctx context.Context, userID, id string) (*domain.Order, error) {
	return s.orders.Get(ctx, userID, id)
}

func digits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
