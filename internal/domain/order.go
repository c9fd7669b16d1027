package domain

import "time"

type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentPayPal     PaymentMethod = "paypal"
)

const (
	OrderStatusPending = "pending"

	// FreeShippingThresholdCents is the subtotal above which shipping is free.
	FreeShippingThresholdCents int64 = 10000
	FlatShippingCents          int64 = 1000
	// TaxRatePercent is applied to the subtotal.
	TaxRatePercent int64 = 8
)

type ShippingAddress struct {
	FullName     string `json:"fullName"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
	Phone        string `json:"phone"`
}

type OrderItem struct {
	ID         int64  `json:"id"`
	OrderID    string `json:"orderId"`
	ProductID  int64  `json:"productId"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"priceCents"`
	TotalCents int64  `json:"totalCents"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Status          string          `json:"status"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	SubtotalCents   int64           `json:"subtotalCents"`
	ShippingCents   int64           `json:"shippingCents"`
	TaxCents        int64           `json:"taxCents"`
	TotalCents      int64           `json:"totalCents"`
	Items           []OrderItem     `json:"items,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// OrderTotals computes shipping, tax and total for a subtotal.
func OrderTotals(subtotal int64) (shipping, tax, total int64) {
	shipping = FlatShippingCents
	if subtotal > FreeShippingThresholdCents {
		shipping = 0
	}
	// round half up to the nearest cent
	tax = (subtotal*TaxRatePercent + 50) / 100
	return shipping, tax, subtotal + shipping + tax
}
