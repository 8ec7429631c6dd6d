package cartstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salonpos/backend/internal/domain"
)

func sampleCart(session string) domain.Cart {
	return domain.Cart{
		Session: session,
		Lines: []domain.CartLine{{
			ID: "line-1", Kind: domain.KindProduct, CatalogID: "shampoo", Name: "Shampoo 250ml",
			UnitPrice: decimal.RequireFromString("19.90"), Quantity: decimal.NewFromInt(2), TaxCode: "CH-7.7",
		}},
		Discount: domain.Discount{Percent: decimal.NewFromInt(10)},
		Tip:      decimal.RequireFromString("2.50"),
	}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "nobody@main"); err != nil || ok {
		t.Fatalf("missing cart: ok=%t err=%v", ok, err)
	}

	if err := s.Save(ctx, sampleCart("cashier@main")); err != nil {
		t.Fatalf("save: %v", err)
	}
	cart, ok, err := s.Get(ctx, "cashier@main")
	if err != nil || !ok {
		t.Fatalf("get: ok=%t err=%v", ok, err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Kind != domain.KindProduct || !cart.Tip.Equal(decimal.RequireFromString("2.50")) {
		t.Fatalf("round trip lost data: %+v", cart)
	}

	if err := s.Delete(ctx, "cashier@main"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "cashier@main"); ok {
		t.Fatalf("cart still present after delete")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_ = s.Save(ctx, sampleCart("a@main"))

	cart, _, _ := s.Get(ctx, "a@main")
	cart.Lines[0].Quantity = decimal.NewFromInt(99)

	again, _, _ := s.Get(ctx, "a@main")
	if !again.Lines[0].Quantity.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("stored cart mutated through returned copy")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("POS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POS_TEST_REDIS_ADDR not set")
	}
	s := NewRedis(addr, os.Getenv("POS_TEST_REDIS_PASSWORD"), 0, time.Minute)
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	exerciseStore(t, s)
}
