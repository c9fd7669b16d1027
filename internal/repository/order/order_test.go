package order

import (
	"context"
	"errors"
	"testing"

	"nexcart/internal/db/dbtest"
	"nexcart/internal/domain"
)

func TestPostgres_CreateListGet(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)

	userID := dbtest.InsertUser(t, pool, "ada@example.com")
	lamp := dbtest.InsertProduct(t, pool, "Desk Lamp", 2599, 10)
	hub := dbtest.InsertProduct(t, pool, "USB Hub", 1999, 1)

	subtotal := int64(2599*2 + 1999*3)
	shipping, tax, total := domain.OrderTotals(subtotal)
	created, err := repo.Create(ctx, domain.Order{
		UserID: userID,
		Status: domain.OrderStatusPending,
		ShippingAddress: domain.ShippingAddress{
			FullName: "Ada Lovelace", AddressLine1: "1 Main St", City: "London",
			State: "LDN", PostalCode: "N1", Country: "UK", Phone: "555",
		},
		PaymentMethod: domain.PaymentCreditCard,
		SubtotalCents: subtotal,
		ShippingCents: shipping,
		TaxCents:      tax,
		TotalCents:    total,
		Items: []domain.OrderItem{
			{ProductID: lamp, Quantity: 2, PriceCents: 2599, TotalCents: 5198},
			{ProductID: hub, Quantity: 3, PriceCents: 1999, TotalCents: 5997},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || len(created.Items) != 2 || created.ShippingAddress.City != "London" {
		t.Fatalf("unexpected order %+v", created)
	}

	var lampStock, hubStock int
	if err := pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, lamp).Scan(&lampStock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if err := pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, hub).Scan(&hubStock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if lampStock != 8 || hubStock != 0 {
		t.Fatalf("unexpected stock lamp=%d hub=%d", lampStock, hubStock)
	}

	list, err := repo.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].TotalCents != total {
		t.Fatalf("unexpected list %+v", list)
	}

	got, err := repo.Get(ctx, userID, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Items) != 2 || got.Items[0].ProductID != lamp || got.PaymentMethod != domain.PaymentCreditCard {
		t.Fatalf("unexpected order %+v", got)
	}

	other := dbtest.InsertUser(t, pool, "grace@example.com")
	if _, err := repo.Get(ctx, other, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("orders of other users must be hidden, got %v", err)
	}
}

func TestPostgres_CreateRollsBackOnUnknownProduct(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)

	userID := dbtest.InsertUser(t, pool, "ada@example.com")
	lamp := dbtest.InsertProduct(t, pool, "Desk Lamp", 2599, 10)

	_, err := repo.Create(ctx, domain.Order{
		UserID:        userID,
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentPayPal,
		Items: []domain.OrderItem{
			{ProductID: lamp, Quantity: 1, PriceCents: 2599, TotalCents: 2599},
			{ProductID: 9999, Quantity: 1, PriceCents: 100, TotalCents: 100},
		},
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var orders, stock int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&orders); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if err := pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, lamp).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if orders != 0 || stock != 10 {
		t.Fatalf("transaction not rolled back: orders=%d stock=%d", orders, stock)
	}
}
